// internal/common/zoho/crm.go
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"time"

	commonhttp "whatsapp-sales-workers/internal/common/http"
)

// CRMClient pushes hot leads into Zoho CRM.
type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *commonhttp.Client
}

// Lead is the subset of the Zoho Leads module we fill from a WhatsApp conversation.
type Lead struct {
	ID          string `json:"id,omitempty"`
	LastName    string `json:"Last_Name"`
	Phone       string `json:"Phone,omitempty"`
	Source      string `json:"Lead_Source,omitempty"`
	Status      string `json:"Lead_Status,omitempty"`
	Rating      string `json:"Rating,omitempty"`
	Description string `json:"Description,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Action  string `json:"action"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string) *CRMClient {
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    baseURL,
		http:       commonhttp.NewClient(30*time.Second, 2),
	}
}

// UpsertLead creates or updates a lead, deduplicating on phone. It returns the Zoho record id.
func (c *CRMClient) UpsertLead(ctx context.Context, lead *Lead) (string, error) {
	payload := map[string]interface{}{
		"data":                   []Lead{*lead},
		"duplicate_check_fields": []string{"Phone"},
	}

	var resp upsertResponse
	err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/Leads/upsert", c.authHeader(), payload, &resp)
	if err != nil {
		return "", fmt.Errorf("zoho upsert lead: %w", err)
	}

	if len(resp.Data) == 0 {
		return "", fmt.Errorf("zoho upsert lead: no data in response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("zoho upsert lead: %s (%s)", resp.Data[0].Message, resp.Data[0].Code)
	}
	return resp.Data[0].Details.ID, nil
}

func (c *CRMClient) GetLead(ctx context.Context, id string) (*Lead, error) {
	var result struct {
		Data []Lead `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/Leads/"+id, c.authHeader(), nil, &result); err != nil {
		return nil, fmt.Errorf("zoho get lead: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("zoho get lead: %s not found", id)
	}
	return &result.Data[0], nil
}

func (c *CRMClient) authHeader() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}
