// internal/models/contact.go
package models

import "time"

type Contact struct {
	JID           string                 `json:"jid"`
	Name          string                 `json:"name,omitempty"`
	PushName      string                 `json:"pushName,omitempty"`
	Phone         string                 `json:"phone,omitempty"`
	ProfilePic    string                 `json:"profilePic,omitempty"`
	IsGroup       bool                   `json:"isGroup"`
	CreatedAt     time.Time              `json:"createdAt"`
	LastMessageAt *time.Time             `json:"lastMessageAt,omitempty"`
	Tags          []string               `json:"tags"`
	Notes         string                 `json:"notes,omitempty"`
	LeadScore     int                    `json:"leadScore"`
	CustomData    map[string]interface{} `json:"customData,omitempty"`
}

// DisplayName prefers the saved name, then the WhatsApp push name, then the phone number.
func (c *Contact) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.PushName != "":
		return c.PushName
	default:
		return c.Phone
	}
}

type Message struct {
	ID          string    `json:"id"`
	ContactJID  string    `json:"contactJid"`
	Content     string    `json:"content"`
	MediaPath   string    `json:"mediaPath,omitempty"`
	MediaType   string    `json:"mediaType,omitempty"`
	FromMe      bool      `json:"fromMe"`
	Timestamp   time.Time `json:"timestamp"`
	IsRead      bool      `json:"isRead"`
	Status      string    `json:"status"`
	AIGenerated bool      `json:"aiGenerated"`
}
