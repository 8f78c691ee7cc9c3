// internal/workers/sales/negotiate-price/handler.go
package negotiateprice

import (
	"context"
	"encoding/json"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/validation"
	"whatsapp-sales-workers/internal/negotiation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "negotiate-price"
)

var schema = validation.MustCompile(inputSchema)

type Negotiator interface {
	NegotiateProduct(ctx context.Context, contactID, productID string, requested float64, applied []string) (*negotiation.Outcome, error)
}

type Handler struct {
	config     *Config
	negotiator Negotiator
	errors     *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, negotiator Negotiator, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		negotiator: negotiator,
		errors:     apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if err := schema.ValidateJSON(job.Variables); err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(context.Background(), client, job, apperrors.NewValidationError("variables", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	requested, err := input.RequestedPrice.Value()
	if err != nil {
		return nil, err
	}

	outcome, err := h.negotiator.NegotiateProduct(ctx, input.ContactID, input.ProductID, requested, input.AppliedConditions)
	if err != nil {
		return nil, err
	}

	res := outcome.Result
	out := &Output{
		Type:            res.Type,
		Accepted:        res.Accepted,
		FinalPrice:      res.FinalPrice,
		DiscountPercent: res.DiscountPercent,
		CounterOffers:   res.Offers,
		Message:         res.Message,
		Pricing:         outcome.Pricing,
	}
	if out.CounterOffers == nil {
		out.CounterOffers = []negotiation.Offer{}
	}
	if outcome.Pricing != nil {
		out.FinalPrice = outcome.Pricing.FinalPrice
		out.DiscountPercent = outcome.Pricing.DiscountPercent
		out.Accepted = true
	}
	return out, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
