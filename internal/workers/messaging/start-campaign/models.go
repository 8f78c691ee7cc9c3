// internal/workers/messaging/start-campaign/models.go
package startcampaign

import "whatsapp-sales-workers/internal/campaign"

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

type Input struct {
	CampaignID string `json:"campaignId"`
	Action     string `json:"action,omitempty"`
}

type Output struct {
	CampaignID string            `json:"campaignId"`
	Status     string            `json:"status"`
	Queued     int               `json:"queued"`
	Cleared    int               `json:"cleared"`
	Progress   campaign.Progress `json:"progress"`
}

const inputSchema = `{
	"type": "object",
	"required": ["campaignId"],
	"properties": {
		"campaignId": {"type": "string", "minLength": 1},
		"action": {"type": "string", "enum": ["start", "stop"]}
	}
}`
