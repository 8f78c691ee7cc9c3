// internal/workers/sales/negotiate-price/models.go
package negotiateprice

import (
	"encoding/json"
	"strings"

	"whatsapp-sales-workers/internal/negotiation"
)

type Input struct {
	ProductID         string   `json:"productId"`
	RequestedPrice    Price    `json:"requestedPrice"`
	ContactID         string   `json:"contactId,omitempty"`
	AppliedConditions []string `json:"appliedConditions,omitempty"`
}

// Price accepts a JSON number or a string such as "450,50 €".
type Price string

func (p *Price) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = Price(s)
		return nil
	}
	*p = Price(strings.TrimSpace(string(b)))
	return nil
}

// Value parses the amount with the negotiation price rules.
func (p Price) Value() (float64, error) {
	return negotiation.ParsePrice(strings.Trim(string(p), " €"))
}

type Output struct {
	Type            negotiation.ResultType  `json:"type"`
	Accepted        bool                    `json:"accepted"`
	FinalPrice      float64                 `json:"finalPrice"`
	DiscountPercent int                     `json:"discountPercent"`
	CounterOffers   []negotiation.Offer     `json:"counterOffers"`
	Message         string                  `json:"message"`
	Pricing         *negotiation.FinalPrice `json:"pricing,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["productId", "requestedPrice"],
	"properties": {
		"productId": {"type": "string", "minLength": 1},
		"requestedPrice": {"type": ["number", "string"]},
		"contactId": {"type": "string"},
		"appliedConditions": {"type": "array", "items": {"type": "string"}}
	}
}`
