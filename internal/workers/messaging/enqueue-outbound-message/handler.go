// internal/workers/messaging/enqueue-outbound-message/handler.go
package enqueueoutboundmessage

import (
	"context"
	"encoding/json"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/validation"
	"whatsapp-sales-workers/internal/outbound"
	"whatsapp-sales-workers/internal/transport"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "enqueue-outbound-message"
)

var schema = validation.MustCompile(inputSchema)

type Queue interface {
	EnqueueItem(item outbound.Item) (outbound.Item, error)
	Status() outbound.Status
}

type Handler struct {
	config *Config
	queue  Queue
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, queue Queue, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		queue:  queue,
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

// execute only queues the message; delivery happens later on the scheduler's drain loop.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	payload := transport.Text(input.Text)
	if input.MediaURL != "" {
		kind := transport.MediaKind(input.MediaType)
		if kind == "" {
			kind = transport.MediaImage
		}
		payload.Media = &transport.Media{URL: input.MediaURL, Kind: kind, FileName: input.FileName}
	}

	item, err := h.queue.EnqueueItem(outbound.Item{
		Target:  transport.FormatJID(input.Target),
		Payload: payload,
		Ref:     input.Ref,
	})
	if err != nil {
		return nil, err
	}

	st := h.queue.Status()
	h.logger.Info("message queued", map[string]interface{}{
		"itemId":  item.ID,
		"target":  item.Target,
		"pending": st.Pending,
	})
	return &Output{
		ItemID:       item.ID,
		Target:       item.Target,
		Pending:      st.Pending,
		IsProcessing: st.IsProcessing,
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
