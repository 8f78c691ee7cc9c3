// internal/negotiation/service.go
package negotiation

import (
	"context"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
)

// Recorder persists negotiation outcomes.
type Recorder interface {
	Log(ctx context.Context, e LogEntry) error
}

// Outcome groups what the service found and decided for one request.
// Result is nil when no price was requested. Pricing is set when conditions were applied.
type Outcome struct {
	Analysis *Analysis   `json:"analysis,omitempty"`
	Result   *Result     `json:"result,omitempty"`
	Pricing  *FinalPrice `json:"pricing,omitempty"`
}

type Service struct {
	analyzer *Analyzer
	products ProductSource
	recorder Recorder
	log      logger.Logger
}

func NewService(analyzer *Analyzer, products ProductSource, recorder Recorder, log logger.Logger) *Service {
	return &Service{
		analyzer: analyzer,
		products: products,
		recorder: recorder,
		log:      log.WithFields(map[string]interface{}{"component": "negotiation"}),
	}
}

// HandleMessage analyzes a customer message and negotiates when it carries a price.
// It returns nil when the message is not a negotiation.
func (s *Service) HandleMessage(ctx context.Context, contactID, message, productID string) (*Outcome, error) {
	analysis, err := s.analyzer.Analyze(ctx, message, productID)
	if err != nil || analysis == nil {
		return nil, err
	}

	out := &Outcome{Analysis: analysis}
	if analysis.RequestedPrice == nil {
		return out, nil
	}

	res := Negotiate(*analysis.RequestedPrice, analysis.Product)
	out.Result = &res

	entry := EntryFor(contactID, analysis.Product.ID, res)
	entry.Excerpt = excerpt(message)
	s.record(ctx, entry, res)
	return out, nil
}

// NegotiateProduct runs the engine for an explicit product and price.
// applied lists conditions the customer accepted; they are priced with CalculateFinalPrice.
func (s *Service) NegotiateProduct(ctx context.Context, contactID, productID string, requested float64, applied []string) (*Outcome, error) {
	if err := ValidatePrice(requested); err != nil {
		return nil, err
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperrors.NewResourceNotFoundError("product", productID)
	}

	res := Negotiate(requested, product)
	out := &Outcome{Result: &res}
	entry := EntryFor(contactID, product.ID, res)

	// Conditions only settle a counter offer, and only when at least one of them resolves.
	if res.Type == CounterOffer && len(applied) > 0 {
		if pricing := CalculateFinalPrice(product, applied); len(pricing.AppliedConditions) > 0 {
			out.Pricing = &pricing
			entry.Accepted = true
			entry.FinalPrice = pricing.FinalPrice
			entry.ConditionsApplied = pricing.AppliedConditions
		}
	}

	s.record(ctx, entry, res)
	return out, nil
}

func (s *Service) record(ctx context.Context, entry LogEntry, res Result) {
	metrics.Negotiations.WithLabelValues(string(res.Type)).Inc()
	s.log.Info("negotiation evaluated", map[string]interface{}{
		"contactId":      entry.ContactID,
		"productId":      entry.ProductID,
		"type":           string(res.Type),
		"requestedPrice": res.RequestedPrice,
	})
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Log(ctx, entry); err != nil {
		s.log.Error("failed to record negotiation", map[string]interface{}{"error": err.Error()})
	}
}

func excerpt(message string) string {
	const max = 500
	r := []rune(message)
	if len(r) <= max {
		return message
	}
	return string(r[:max])
}
