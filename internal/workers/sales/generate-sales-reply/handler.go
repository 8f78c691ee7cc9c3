// internal/workers/sales/generate-sales-reply/handler.go
package generatesalesreply

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/validation"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/transport"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "generate-sales-reply"
)

var schema = validation.MustCompile(inputSchema)

type Conversations interface {
	RecentMessages(ctx context.Context, jid string, limit int, excludeID string) ([]models.Message, error)
	Contact(ctx context.Context, jid string) (*models.Contact, error)
}

type Replier interface {
	GenerateReply(ctx context.Context, contact *models.Contact, message string, history []models.Message) (string, error)
}

type Handler struct {
	config        *Config
	conversations Conversations
	replier       Replier
	errors        *apperrors.ErrorHandler
	logger        logger.Logger
}

func NewHandler(config *Config, conversations Conversations, replier Replier, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:        config,
		conversations: conversations,
		replier:       replier,
		errors:        apperrors.NewErrorHandler(log),
		logger:        log,
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

// execute returns the LLM error so the error handler can retry timeouts.
// The history and contact lookups degrade to empty values.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	jid := transport.FormatJID(input.ContactID)

	history, err := h.conversations.RecentMessages(ctx, jid, h.config.HistoryLimit, input.MessageID)
	if err != nil {
		h.logger.Warn("history unavailable", map[string]interface{}{"contactId": jid, "error": err})
		history = nil
	}
	contact, err := h.conversations.Contact(ctx, jid)
	if err != nil {
		h.logger.Warn("contact unavailable", map[string]interface{}{"contactId": jid, "error": err})
	}
	if contact == nil {
		contact = &models.Contact{JID: jid, Phone: transport.PhoneFromJID(jid)}
	}

	reply, err := h.replier.GenerateReply(ctx, contact, input.Message, history)
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)

	h.logger.Info("reply generated", map[string]interface{}{
		"contactId": jid,
		"length":    len(reply),
	})
	return &Output{Reply: reply, Generated: reply != ""}, nil
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
