// internal/notify/process.go
package notify

import (
	"context"

	"whatsapp-sales-workers/internal/leads"
)

// MessageName is the BPMN message correlated when a lead turns hot.
const MessageName = "hot-lead-detected"

// MessagePublisher correlates a BPMN message.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, variables interface{}) error
}

// Process starts or advances the follow-up workflow keyed by the contact JID.
type Process struct {
	publisher MessagePublisher
}

func NewProcess(p MessagePublisher) *Process {
	return &Process{publisher: p}
}

func (p *Process) Name() string { return "zeebe" }

func (p *Process) Send(ctx context.Context, lead leads.HotLead) error {
	if p.publisher == nil {
		return ErrSkipped
	}
	signals := make([]string, 0, len(lead.Signals))
	for _, s := range lead.Signals {
		signals = append(signals, string(s.Type))
	}
	return p.publisher.PublishMessage(ctx, MessageName, lead.Contact.JID, map[string]interface{}{
		"leadId":         lead.LeadID,
		"contactJid":     lead.Contact.JID,
		"phone":          lead.Contact.Phone,
		"score":          lead.Score,
		"signals":        signals,
		"lastMessage":    Truncate(lead.LastMessage, 500),
		"recommendation": lead.Recommendation,
	})
}
