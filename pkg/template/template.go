// Package template renders campaign message templates. Rendering is pure
// and total: unknown variables substitute the empty string and malformed
// conditional blocks are left untouched rather than failing the send.
package template

import (
	"regexp"
	"strings"

	"github.com/relaycrm/automation/domain"
)

var (
	variableRe    = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
	conditionalRe = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\}\}(.*?)(?:\{\{else\}\}(.*?))?\{\{/if\}\}`)
)

// Vars is the flat variable→value map a template is rendered against.
type Vars map[string]string

// ContactVars derives the variable map from a contact and its company.
func ContactVars(contact *domain.Contact) Vars {
	vars := Vars{}
	if contact == nil {
		return vars
	}
	vars["firstName"] = contact.FirstName
	vars["lastName"] = contact.LastName
	vars["email"] = contact.Email
	vars["phone"] = contact.Phone
	vars["role"] = contact.Role
	if contact.Company != nil {
		vars["companyName"] = contact.Company.Name
		vars["companyIndustry"] = contact.Company.Industry
		vars["hasCompany"] = "true"
	}
	if contact.Email != "" {
		vars["hasEmail"] = "true"
	}
	if contact.Phone != "" {
		vars["hasPhone"] = "true"
	}
	return vars
}

// Render substitutes {{var}} placeholders and resolves
// {{#if var}}...{{else}}...{{/if}} blocks against the variable map.
// Conditionals are resolved first so their bodies can carry variables.
func Render(template string, vars Vars) string {
	out := renderConditionals(template, vars)
	return variableRe.ReplaceAllStringFunc(out, func(match string) string {
		name := variableRe.FindStringSubmatch(match)[1]
		return vars[name]
	})
}

func renderConditionals(template string, vars Vars) string {
	return conditionalRe.ReplaceAllStringFunc(template, func(match string) string {
		groups := conditionalRe.FindStringSubmatch(match)
		name, ifBody, elseBody := groups[1], groups[2], groups[3]
		if strings.TrimSpace(vars[name]) != "" {
			return ifBody
		}
		return elseBody
	})
}
