// internal/negotiation/analyzer.go
package negotiation

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/models"
)

// ProductSource loads products from the catalog. Product returns nil when the id is unknown.
type ProductSource interface {
	Product(ctx context.Context, id string) (*models.Product, error)
	ActiveProducts(ctx context.Context) ([]models.Product, error)
}

// ProductSearcher finds the product a free-text message is about, or nil.
type ProductSearcher interface {
	SearchProduct(ctx context.Context, text string) (*models.Product, error)
}

// Analysis is the negotiation context extracted from one customer message.
type Analysis struct {
	Product        *models.Product `json:"product"`
	RequestedPrice *float64        `json:"requestedPrice,omitempty"`
	BasePrice      float64         `json:"basePrice"`
	MinPrice       float64         `json:"minPrice"`
	MaxDiscount    float64         `json:"maxDiscount"`
	Conditions     Conditions      `json:"conditions"`
}

var (
	amountPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(€|euros?)`)
	pricePattern  = regexp.MustCompile(`(?i)prix|tarif|co[uû]t|cher|budget|réduction|remise|discount`)
)

type Analyzer struct {
	products ProductSource
	search   ProductSearcher
	log      logger.Logger
}

// NewAnalyzer builds an Analyzer. search may be nil.
func NewAnalyzer(products ProductSource, search ProductSearcher, log logger.Logger) *Analyzer {
	return &Analyzer{
		products: products,
		search:   search,
		log:      log.WithFields(map[string]interface{}{"component": "negotiation-analyzer"}),
	}
}

// Analyze returns nil when the message is not about price or no product can be resolved.
func (a *Analyzer) Analyze(ctx context.Context, message, productID string) (*Analysis, error) {
	amount := amountPattern.FindStringSubmatch(message)
	if amount == nil && !pricePattern.MatchString(message) {
		return nil, nil
	}

	var requested *float64
	if amount != nil {
		v, err := ParsePrice(amount[1])
		if err != nil {
			return nil, err
		}
		requested = &v
	}

	product, err := a.resolveProduct(ctx, message, productID)
	if err != nil || product == nil {
		return nil, err
	}

	return &Analysis{
		Product:        product,
		RequestedPrice: requested,
		BasePrice:      product.BasePrice,
		MinPrice:       product.Floor(),
		MaxDiscount:    product.MaxDiscountPercent,
		Conditions:     ParseConditions(product.NegotiationConditions),
	}, nil
}

func (a *Analyzer) resolveProduct(ctx context.Context, message, productID string) (*models.Product, error) {
	if productID != "" {
		p, err := a.products.Product(ctx, productID)
		if err != nil || p != nil {
			return p, err
		}
	}

	active, err := a.products.ActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(message)
	for i := range active {
		if active[i].Name != "" && strings.Contains(lower, strings.ToLower(active[i].Name)) {
			return &active[i], nil
		}
	}

	if a.search == nil {
		return nil, nil
	}
	p, err := a.search.SearchProduct(ctx, message)
	if err != nil {
		// Search is best effort; the message simply stays unmatched.
		a.log.Warn("product search failed", map[string]interface{}{"error": err.Error()})
		return nil, nil
	}
	return p, nil
}

// ParsePrice reads a positive amount, accepting a comma as decimal separator.
func ParsePrice(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(raw), ",", ".", 1), 64)
	if err != nil {
		return 0, apperrors.NewValidationError("requestedPrice", "cannot parse price "+strconv.Quote(raw))
	}
	return v, ValidatePrice(v)
}

// ValidatePrice rejects prices that are not finite and strictly positive.
func ValidatePrice(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return apperrors.NewValidationError("requestedPrice", "price must be a positive number")
	}
	return nil
}
