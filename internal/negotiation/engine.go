// Package negotiation decides how to answer a customer's price proposal.
package negotiation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"whatsapp-sales-workers/internal/models"
)

type ResultType string

const (
	NoNegotiation ResultType = "NO_NEGOTIATION"
	FullPrice     ResultType = "FULL_PRICE"
	Negotiated    ResultType = "NEGOTIATED"
	CounterOffer  ResultType = "COUNTER_OFFER"
)

// maxOffersInMessage caps the number of alternatives listed to the customer.
const maxOffersInMessage = 3

// Offer is a conditional price the seller can propose instead of the requested one.
type Offer struct {
	Condition string  `json:"condition"`
	Label     string  `json:"label"`
	Discount  string  `json:"discount"`
	Price     float64 `json:"price"`
	Savings   float64 `json:"savings"`
}

// Result is the engine's decision. FinalPrice is zero for counter offers.
type Result struct {
	Type            ResultType `json:"type"`
	Accepted        bool       `json:"accepted"`
	RequestedPrice  float64    `json:"requestedPrice"`
	FinalPrice      float64    `json:"finalPrice,omitempty"`
	DiscountPercent int        `json:"discountPercent,omitempty"`
	MinPrice        float64    `json:"minPrice,omitempty"`
	Offers          []Offer    `json:"counterOffers,omitempty"`
	Message         string     `json:"message"`
}

type offerRule struct {
	key   string
	label string
	def   Condition
}

var offerRules = []offerRule{
	{key: Engagement12Months, label: "Engagement 12 mois", def: Condition{Name: Engagement12Months, Kind: Percent, Amount: 20}},
	{key: AnnualPayment, label: "Paiement annuel", def: Condition{Name: AnnualPayment, Kind: Percent, Amount: 15}},
	{key: Referral, label: "Parrainage", def: Condition{Name: Referral, Kind: Fixed, Amount: 50}},
}

// condition returns the rule's discount with the product override's magnitude.
// The rule kind is kept: "12 mois: -20" is still 20%.
func (r offerRule) condition(overrides Conditions) Condition {
	cond := r.def
	if o, ok := overrides[r.key]; ok {
		cond.Amount = o.Amount
	}
	return cond
}

// Negotiate evaluates a requested price against the product's pricing policy.
// It never quotes a price below the product floor.
func Negotiate(requested float64, p *models.Product) Result {
	cur := currencySymbol(p.CurrencyOrDefault())
	unit := p.PriceUnit
	base := p.BasePrice

	if p.MinNegotiable == nil && p.MaxDiscountPercent == 0 {
		return Result{
			Type:           NoNegotiation,
			RequestedPrice: requested,
			FinalPrice:     base,
			Message:        fmt.Sprintf("Le prix de %s est fixe à %s%s/%s.", p.Name, formatAmount(base), cur, unit),
		}
	}

	if requested >= base {
		return Result{
			Type:           FullPrice,
			Accepted:       true,
			RequestedPrice: requested,
			FinalPrice:     base,
			Message:        fmt.Sprintf("Parfait ! Le %s est à %s%s/%s.", p.Name, formatAmount(base), cur, unit),
		}
	}

	floor := p.Floor()
	if requested >= floor {
		return Result{
			Type:            Negotiated,
			Accepted:        true,
			RequestedPrice:  requested,
			FinalPrice:      requested,
			DiscountPercent: int(math.Round((1 - requested/base) * 100)),
			Message:         fmt.Sprintf("OK, je peux vous faire %s%s/%s pour le %s. Deal ? 🤝", formatAmount(requested), cur, unit, p.Name),
		}
	}

	offers := CounterOffers(p)
	return Result{
		Type:           CounterOffer,
		RequestedPrice: requested,
		MinPrice:       floor,
		Offers:         offers,
		Message:        counterOfferMessage(requested, floor, offers, cur, unit),
	}
}

// CounterOffers lists the conditional prices at or above the floor, highest first.
func CounterOffers(p *models.Product) []Offer {
	overrides := ParseConditions(p.NegotiationConditions)
	floor := p.Floor()
	cur := p.CurrencyOrDefault()

	var offers []Offer
	for _, rule := range offerRules {
		cond := rule.condition(overrides)
		price := cond.Apply(p.BasePrice)
		if price < floor {
			continue
		}
		offers = append(offers, Offer{
			Condition: rule.key,
			Label:     rule.label,
			Discount:  cond.Label(cur),
			Price:     price,
			Savings:   p.BasePrice - price,
		})
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price > offers[j].Price })
	return offers
}

func counterOfferMessage(requested, floor float64, offers []Offer, cur, unit string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s c'est un peu serré pour moi... ", formatAmount(requested), cur)

	if len(offers) == 0 {
		fmt.Fprintf(&b, "Le mieux que je puisse faire c'est %s%s/%s.", formatAmount(floor), cur, unit)
		return b.String()
	}

	b.WriteString("Par contre, j'ai quelques options :\n\n")
	for i, o := range offers {
		if i == maxOffersInMessage {
			break
		}
		fmt.Fprintf(&b, "• %s: %s%s/%s (économie de %s%s)\n",
			o.Label, formatAmount(o.Price), cur, unit, formatAmount(o.Savings), cur)
	}
	b.WriteString("\nÇa vous intéresse ?")
	return b.String()
}
