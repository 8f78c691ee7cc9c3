// internal/negotiation/conditions.go
package negotiation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Rule keys understood by the counter-offer generator.
const (
	Engagement12Months = "engagement_12_mois"
	AnnualPayment      = "paiement_annuel"
	Referral           = "parrainage"
)

type DiscountKind string

const (
	Percent DiscountKind = "percent"
	Fixed   DiscountKind = "fixed"
)

// Condition is one named discount. Amount is always positive.
type Condition struct {
	Name   string       `json:"name"`
	Kind   DiscountKind `json:"kind"`
	Amount float64      `json:"amount"`
}

// Apply returns price after this discount, rounded to the nearest unit for percentages.
func (c Condition) Apply(price float64) float64 {
	if c.Kind == Fixed {
		return price - c.Amount
	}
	return math.Round(price * (1 - c.Amount/100))
}

// Label renders the discount magnitude, e.g. "20%" or "50€".
func (c Condition) Label(currency string) string {
	if c.Kind == Fixed {
		return formatAmount(c.Amount) + currencySymbol(currency)
	}
	return formatAmount(c.Amount) + "%"
}

// Conditions maps a normalised condition name to its discount.
type Conditions map[string]Condition

var decimalComma = regexp.MustCompile(`(\d),(\d)`)

var clausePattern = regexp.MustCompile(`(?i)^\s*(.*?[\p{L}_].*?)\s*[:=]?\s*([-+]?\d+(?:[.,]\d+)?)\s*(%|€|eur|euros?)?\s*$`)

// ParseConditions reads clauses like "12 mois: -20%, annuel: -15%; parrainage: -50".
// Clauses that do not parse are skipped.
func ParseConditions(text string) Conditions {
	out := Conditions{}
	text = decimalComma.ReplaceAllString(text, "$1.$2")
	for _, clause := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' }) {
		m := clausePattern.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		amount, err := strconv.ParseFloat(m[2], 64)
		if err != nil || amount == 0 {
			continue
		}
		kind := Fixed
		if m[3] == "%" {
			kind = Percent
		}
		name := normalizeName(m[1])
		out[name] = Condition{Name: name, Kind: kind, Amount: math.Abs(amount)}
	}
	return out
}

var separators = regexp.MustCompile(`[\s\-]+`)

func normalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(name, "mois") || strings.Contains(name, "engagement"):
		return Engagement12Months
	case strings.Contains(name, "annuel") || name == "an" || strings.HasSuffix(name, " an"):
		return AnnualPayment
	case strings.Contains(name, "parrain"):
		return Referral
	default:
		return separators.ReplaceAllString(name, "_")
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func currencySymbol(currency string) string {
	if strings.EqualFold(currency, "EUR") {
		return "€"
	}
	return currency
}
