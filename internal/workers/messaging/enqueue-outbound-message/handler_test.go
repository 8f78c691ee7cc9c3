// internal/workers/messaging/enqueue-outbound-message/handler_test.go
package enqueueoutboundmessage

import (
	"context"
	"testing"

	"whatsapp-sales-workers/internal/common/config"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/outbound"
	"whatsapp-sales-workers/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	items []outbound.Item
	err   error
}

func (q *fakeQueue) EnqueueItem(item outbound.Item) (outbound.Item, error) {
	if q.err != nil {
		return outbound.Item{}, q.err
	}
	item.ID = "item-1"
	q.items = append(q.items, item)
	return item, nil
}

func (q *fakeQueue) Status() outbound.Status {
	return outbound.Status{Pending: len(q.items), IsProcessing: len(q.items) > 0}
}

func TestHandler_Execute_Text(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), q, logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{Target: "+33 6 12 34 56 78", Text: "Bonjour !", Ref: "bpmn:42"})
	require.NoError(t, err)
	assert.Equal(t, "item-1", out.ItemID)
	assert.Equal(t, "33612345678@s.whatsapp.net", out.Target)
	assert.Equal(t, 1, out.Pending)
	assert.True(t, out.IsProcessing)

	require.Len(t, q.items, 1)
	assert.Equal(t, "Bonjour !", q.items[0].Payload.Text)
	assert.Nil(t, q.items[0].Payload.Media)
	assert.Equal(t, "bpmn:42", q.items[0].Ref)
}

func TestHandler_Execute_MediaDefaultsToImage(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), q, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{Target: "33612345678@s.whatsapp.net", Text: "Notre brochure", MediaURL: "https://cdn.example.com/brochure.jpg"})
	require.NoError(t, err)
	media := q.items[0].Payload.Media
	require.NotNil(t, media)
	assert.Equal(t, transport.MediaImage, media.Kind)
	assert.Equal(t, "Notre brochure", q.items[0].Payload.Text)
}

func TestHandler_Execute_QueueRefusal(t *testing.T) {
	q := &fakeQueue{err: apperrors.NewBusinessRuleError("scheduler closed", "outbound scheduler is shut down")}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), q, logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{Target: "336", Text: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBusinessRule))
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name    string
		vars    string
		wantErr bool
	}{
		{"text", `{"target":"336","text":"Bonjour"}`, false},
		{"media only", `{"target":"336","mediaUrl":"https://x/y.pdf","mediaType":"document"}`, false},
		{"no content", `{"target":"336"}`, true},
		{"empty text", `{"target":"336","text":""}`, true},
		{"bad media type", `{"target":"336","mediaUrl":"https://x","mediaType":"sticker"}`, true},
		{"no target", `{"text":"Bonjour"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.ValidateJSON(tt.vars)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
