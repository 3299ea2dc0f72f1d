package domain

import "time"

// Contact is the read-side view of a CRM contact used by condition checks,
// template rendering and channel selection. Contact CRUD lives outside the
// automation core.
type Contact struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Role           string    `json:"role,omitempty"`
	TelegramChatID string    `json:"telegram_chat_id,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CompanyID      string    `json:"company_id,omitempty"`
	Company        *Company  `json:"company,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasTag reports whether the contact carries the given tag.
func (c *Contact) HasTag(tag string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether the contact's tag set intersects the given set.
func (c *Contact) HasAnyTag(tags []string) bool {
	for _, t := range tags {
		if c.HasTag(t) {
			return true
		}
	}
	return false
}

// PreferredChannel picks telegram when a chat identifier exists, else email.
func (c *Contact) PreferredChannel() Channel {
	if c != nil && c.TelegramChatID != "" {
		return ChannelTelegram
	}
	return ChannelEmail
}

// Channel identifies an outbound delivery channel.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
)

// Company is the read-side view of a contact's company.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
}
