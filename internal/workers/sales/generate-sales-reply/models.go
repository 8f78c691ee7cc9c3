// internal/workers/sales/generate-sales-reply/models.go
package generatesalesreply

type Input struct {
	ContactID string `json:"contactId"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
}

type Output struct {
	Reply     string `json:"reply"`
	Generated bool   `json:"generated"`
}

const inputSchema = `{
	"type": "object",
	"required": ["contactId", "message"],
	"properties": {
		"contactId": {"type": "string", "minLength": 1},
		"message": {"type": "string", "minLength": 1},
		"messageId": {"type": "string"}
	}
}`
