// internal/models/campaign.go
package models

import "time"

const (
	CampaignTypeBroadcast         = "broadcast"
	CampaignTypeHyperPersonalized = "hyper_personalized"

	CampaignStatusDraft     = "draft"
	CampaignStatusRunning   = "running"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"

	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

type Campaign struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Status        string                 `json:"status"`
	Template      string                 `json:"template,omitempty"`
	AIPrompt      string                 `json:"aiPrompt,omitempty"`
	ContactsCount int                    `json:"contactsCount"`
	SentCount     int                    `json:"sentCount"`
	FailedCount   int                    `json:"failedCount"`
	CreatedAt     time.Time              `json:"createdAt"`
	StartedAt     *time.Time             `json:"startedAt,omitempty"`
	CompletedAt   *time.Time             `json:"completedAt,omitempty"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
}

type CampaignMessage struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaignId"`
	ContactJID string     `json:"contactJid"`
	Phone      string     `json:"phone,omitempty"`
	Name       string     `json:"name,omitempty"`
	Message    string     `json:"message"`
	Status     string     `json:"status"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Recipient is a campaign target before its message is generated.
type Recipient struct {
	JID        string                 `json:"jid"`
	Phone      string                 `json:"phone"`
	Name       string                 `json:"name,omitempty"`
	Company    string                 `json:"company,omitempty"`
	CustomData map[string]interface{} `json:"customData,omitempty"`
}
