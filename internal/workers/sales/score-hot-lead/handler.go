// internal/workers/sales/score-hot-lead/handler.go
package scorehotlead

import (
	"context"
	"encoding/json"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/validation"
	"whatsapp-sales-workers/internal/leads"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "score-hot-lead"
)

var schema = validation.MustCompile(inputSchema)

type LeadScorer interface {
	Score(ctx context.Context, contactID, message string) (*leads.Result, error)
}

type Handler struct {
	config *Config
	scorer LeadScorer
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, scorer LeadScorer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		scorer: scorer,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
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
	res, err := h.scorer.Score(ctx, input.ContactID, input.Message)
	if err != nil {
		return nil, err
	}

	signals := make([]string, 0, len(res.Signals))
	for _, s := range res.Signals {
		signals = append(signals, string(s.Type))
	}

	h.logger.Info("lead scored", map[string]interface{}{
		"contactId": input.ContactID,
		"score":     res.Score,
		"isHot":     res.IsHot,
	})

	return &Output{
		IsHot:          res.IsHot,
		Score:          res.Score,
		Signals:        signals,
		LeadID:         res.LeadID,
		Recommendation: res.Recommendation,
	}, nil
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
