package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycrm/automation/domain"
)

func TestRenderVariables(t *testing.T) {
	vars := Vars{"firstName": "Sam", "companyName": "Acme"}

	assert.Equal(t, "Hi Sam from Acme", Render("Hi {{firstName}} from {{companyName}}", vars))
	assert.Equal(t, "Hi Sam", Render("Hi {{ firstName }}", vars))
}

func TestRenderMissingVariableIsEmpty(t *testing.T) {
	out := Render("Hi {{firstName}} {{lastName}}!", Vars{"firstName": "Sam"})
	assert.Equal(t, "Hi Sam !", out)
}

func TestRenderConditionalWithElse(t *testing.T) {
	tpl := "{{#if companyName}}from {{companyName}}{{else}}independent{{/if}}"

	assert.Equal(t, "from Acme", Render(tpl, Vars{"companyName": "Acme"}))
	assert.Equal(t, "independent", Render(tpl, Vars{}))
	assert.Equal(t, "independent", Render(tpl, Vars{"companyName": ""}))
}

func TestRenderContactWithoutCompany(t *testing.T) {
	contact := &domain.Contact{FirstName: "Sam"}
	out := Render("Hi {{firstName}}{{#if companyName}}, from {{companyName}}{{/if}}!", ContactVars(contact))
	assert.Equal(t, "Hi Sam!", out)
}

func TestRenderContactWithCompany(t *testing.T) {
	contact := &domain.Contact{
		FirstName: "Sam",
		Email:     "sam@acme.test",
		Company:   &domain.Company{Name: "Acme", Industry: "Logistics"},
	}
	vars := ContactVars(contact)

	out := Render("Hi {{firstName}}{{#if companyName}}, from {{companyName}}{{/if}}!", vars)
	assert.Equal(t, "Hi Sam, from Acme!", out)
	assert.Equal(t, "true", vars["hasCompany"])
	assert.Equal(t, "true", vars["hasEmail"])
	assert.Equal(t, "", vars["phone"])
}

func TestRenderNeverPanicsOnMalformedInput(t *testing.T) {
	assert.NotPanics(t, func() {
		Render("{{#if broken}}never closed", Vars{})
		Render("{{}} {{ }} {{#if}}{{/if}}", Vars{})
		Render("", nil)
	})
}
