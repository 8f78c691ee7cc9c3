// internal/workers/sales/score-hot-lead/models.go
package scorehotlead

type Input struct {
	ContactID string `json:"contactId"`
	Message   string `json:"message"`
}

type Output struct {
	IsHot          bool     `json:"isHot"`
	Score          int      `json:"score"`
	Signals        []string `json:"signals"`
	LeadID         string   `json:"leadId,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["contactId", "message"],
	"properties": {
		"contactId": {"type": "string", "minLength": 1},
		"message": {"type": "string"}
	}
}`
