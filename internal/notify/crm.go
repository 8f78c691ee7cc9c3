// internal/notify/crm.go
package notify

import (
	"context"
	"fmt"

	"whatsapp-sales-workers/internal/common/zoho"
	"whatsapp-sales-workers/internal/leads"
)

// LeadUpserter is the CRM call used by the CRM channel.
type LeadUpserter interface {
	UpsertLead(ctx context.Context, lead *zoho.Lead) (string, error)
}

// CRM records the hot lead in Zoho, deduplicated on phone.
type CRM struct {
	client LeadUpserter
}

func NewCRM(client LeadUpserter) *CRM {
	return &CRM{client: client}
}

func (c *CRM) Name() string { return "zoho" }

func (c *CRM) Send(ctx context.Context, lead leads.HotLead) error {
	if c.client == nil {
		return ErrSkipped
	}
	_, err := c.client.UpsertLead(ctx, CRMLead(lead))
	return err
}

// CRMLead maps a hot lead onto the Zoho Leads module.
func CRMLead(lead leads.HotLead) *zoho.Lead {
	name := lead.Contact.DisplayName()
	if name == "" {
		name = lead.Contact.JID
	}
	rating := "Warm"
	if lead.Score >= 85 {
		rating = "Hot"
	}
	return &zoho.Lead{
		LastName:    name,
		Phone:       lead.Contact.Phone,
		Source:      "WhatsApp",
		Status:      "Contact in Future",
		Rating:      rating,
		Description: fmt.Sprintf("Score %d/100. %s\nDernier message: %s", lead.Score, lead.Recommendation, Truncate(lead.LastMessage, 200)),
	}
}
