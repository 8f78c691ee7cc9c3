// internal/negotiation/pricing.go
package negotiation

import (
	"math"
	"regexp"
	"strconv"

	"whatsapp-sales-workers/internal/models"
)

// PriceStep records one applied condition and the running price after it.
type PriceStep struct {
	Condition  string  `json:"condition"`
	Discount   string  `json:"discount"`
	PriceAfter float64 `json:"priceAfter"`
}

type FinalPrice struct {
	BasePrice         float64     `json:"basePrice"`
	FinalPrice        float64     `json:"finalPrice"`
	AppliedConditions []string    `json:"appliedConditions"`
	TotalDiscount     float64     `json:"totalDiscount"`
	DiscountPercent   int         `json:"discountPercent"`
	Steps             []PriceStep `json:"steps"`
	Floored           bool        `json:"floored"`
}

var customPercent = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// CalculateFinalPrice applies the accepted conditions one after another on the base price.
// Discounts compound, and the result never goes below the product floor.
// Unknown conditions are ignored.
func CalculateFinalPrice(p *models.Product, applied []string) FinalPrice {
	overrides := ParseConditions(p.NegotiationConditions)
	cur := p.CurrencyOrDefault()
	price := p.BasePrice

	out := FinalPrice{BasePrice: p.BasePrice, AppliedConditions: []string{}}
	for _, raw := range applied {
		name := normalizeName(raw)
		cond, ok := resolveCondition(name, raw, overrides)
		if !ok {
			continue
		}
		price = cond.Apply(price)
		out.AppliedConditions = append(out.AppliedConditions, raw)
		out.Steps = append(out.Steps, PriceStep{
			Condition:  raw,
			Discount:   cond.Label(cur),
			PriceAfter: price,
		})
	}

	if floor := p.Floor(); price < floor {
		price = floor
		out.Floored = true
	}

	out.FinalPrice = price
	out.TotalDiscount = p.BasePrice - price
	if p.BasePrice > 0 {
		out.DiscountPercent = int(math.Round(out.TotalDiscount / p.BasePrice * 100))
	}
	return out
}

func resolveCondition(name, raw string, overrides Conditions) (Condition, bool) {
	for _, rule := range offerRules {
		if rule.key == name {
			return rule.condition(overrides), true
		}
	}
	if c, ok := overrides[name]; ok {
		return c, true
	}
	if m := customPercent.FindStringSubmatch(raw); m != nil {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err == nil && pct > 0 {
			return Condition{Name: name, Kind: Percent, Amount: pct}, true
		}
	}
	return Condition{}, false
}
