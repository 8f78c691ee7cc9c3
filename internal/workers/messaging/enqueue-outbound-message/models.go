// internal/workers/messaging/enqueue-outbound-message/models.go
package enqueueoutboundmessage

type Input struct {
	Target    string `json:"target"`
	Text      string `json:"text"`
	MediaURL  string `json:"mediaUrl,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

type Output struct {
	ItemID       string `json:"itemId"`
	Target       string `json:"target"`
	Pending      int    `json:"pending"`
	IsProcessing bool   `json:"isProcessing"`
}

const inputSchema = `{
	"type": "object",
	"required": ["target"],
	"properties": {
		"target": {"type": "string", "minLength": 1},
		"text": {"type": "string"},
		"mediaUrl": {"type": "string"},
		"mediaType": {"type": "string", "enum": ["image", "video", "document"]},
		"fileName": {"type": "string"},
		"ref": {"type": "string"}
	},
	"anyOf": [
		{"required": ["text"], "properties": {"text": {"minLength": 1}}},
		{"required": ["mediaUrl"], "properties": {"mediaUrl": {"minLength": 1}}}
	]
}`
