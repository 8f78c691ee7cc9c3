// internal/workers/messaging/start-campaign/handler.go
package startcampaign

import (
	"context"
	"encoding/json"

	"whatsapp-sales-workers/internal/campaign"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/validation"
	"whatsapp-sales-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "start-campaign"
)

var schema = validation.MustCompile(inputSchema)

type Campaigns interface {
	Start(ctx context.Context, id string) (int, error)
	Stop(ctx context.Context, id string) (int, error)
	Progress(ctx context.Context, id string) (campaign.Progress, error)
}

type Handler struct {
	config    *Config
	campaigns Campaigns
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, campaigns Campaigns, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		campaigns: campaigns,
		errors:    apperrors.NewErrorHandler(log),
		logger:    log,
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
	out := &Output{CampaignID: input.CampaignID}

	switch input.Action {
	case "", ActionStart:
		queued, err := h.campaigns.Start(ctx, input.CampaignID)
		if err != nil {
			return nil, err
		}
		out.Status = models.CampaignStatusRunning
		out.Queued = queued
	case ActionStop:
		cleared, err := h.campaigns.Stop(ctx, input.CampaignID)
		if err != nil {
			return nil, err
		}
		out.Status = models.CampaignStatusPaused
		out.Cleared = cleared
	default:
		return nil, apperrors.NewValidationError("action", "action must be start or stop")
	}

	progress, err := h.campaigns.Progress(ctx, input.CampaignID)
	if err != nil {
		h.logger.Warn("campaign progress unavailable", map[string]interface{}{
			"campaignId": input.CampaignID,
			"error":      err,
		})
	}
	out.Progress = progress

	h.logger.Info("campaign action applied", map[string]interface{}{
		"campaignId": input.CampaignID,
		"status":     out.Status,
		"queued":     out.Queued,
		"cleared":    out.Cleared,
	})
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
