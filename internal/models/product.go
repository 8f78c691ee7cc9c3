// internal/models/product.go
package models

import "time"

// Product is a catalog entry with its pricing policy.
// A nil MinNegotiable means the floor is the base price.
type Product struct {
	ID                    string            `json:"id"`
	Name                  string            `json:"name"`
	Category              string            `json:"category,omitempty"`
	Description           string            `json:"description,omitempty"`
	Features              []string          `json:"features"`
	Images                []string          `json:"images"`
	BasePrice             float64           `json:"basePrice"`
	Currency              string            `json:"currency"`
	PriceUnit             string            `json:"priceUnit"`
	MinNegotiable         *float64          `json:"minNegotiable,omitempty"`
	MaxDiscountPercent    float64           `json:"maxDiscountPercent"`
	NegotiationConditions string            `json:"negotiationConditions,omitempty"`
	TargetAudience        string            `json:"targetAudience,omitempty"`
	ObjectionsResponses   map[string]string `json:"objectionsResponses,omitempty"`
	SalesArguments        []string          `json:"salesArguments"`
	CTAPrimary            string            `json:"ctaPrimary,omitempty"`
	CTASecondary          string            `json:"ctaSecondary,omitempty"`
	IsActive              bool              `json:"isActive"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// Floor returns the lowest acceptable price.
func (p *Product) Floor() float64 {
	if p.MinNegotiable != nil {
		return *p.MinNegotiable
	}
	return p.BasePrice
}

// CurrencyOrDefault returns the product currency, EUR when unset.
func (p *Product) CurrencyOrDefault() string {
	if p.Currency == "" {
		return "EUR"
	}
	return p.Currency
}

type Goal struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	Priority          string                 `json:"priority"` // high, medium, low
	Tactics           []string               `json:"tactics"`
	SuccessIndicators []string               `json:"successIndicators"`
	AbortConditions   []string               `json:"abortConditions"`
	EscalationRules   map[string]interface{} `json:"escalationRules,omitempty"`
	IsActive          bool                   `json:"isActive"`
}

type BrainDocument struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Filepath  string    `json:"filepath"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
