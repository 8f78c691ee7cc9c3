// internal/workers/sales/generate-sales-reply/handler_test.go
package generatesalesreply

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp-sales-workers/internal/common/config"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversations struct {
	history    []models.Message
	contact    *models.Contact
	historyErr error
	gotLimit   int
	gotExclude string
}

func (f *fakeConversations) RecentMessages(_ context.Context, _ string, limit int, excludeID string) ([]models.Message, error) {
	f.gotLimit, f.gotExclude = limit, excludeID
	return f.history, f.historyErr
}

func (f *fakeConversations) Contact(context.Context, string) (*models.Contact, error) {
	return f.contact, nil
}

type replierFunc func(ctx context.Context, contact *models.Contact, message string, history []models.Message) (string, error)

func (f replierFunc) GenerateReply(ctx context.Context, contact *models.Contact, message string, history []models.Message) (string, error) {
	return f(ctx, contact, message, history)
}

func TestHandler_Execute_GeneratesReply(t *testing.T) {
	convs := &fakeConversations{
		history: []models.Message{{ID: "m0", Content: "Bonjour", Timestamp: time.Now()}},
		contact: &models.Contact{JID: "33612345678@s.whatsapp.net", Name: "Marie"},
	}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), convs, replierFunc(func(_ context.Context, c *models.Contact, message string, history []models.Message) (string, error) {
		assert.Equal(t, "Marie", c.Name)
		assert.Equal(t, "Vous livrez à Lyon ?", message)
		assert.Len(t, history, 1)
		return "  Oui, sous 48h !  ", nil
	}), logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{ContactID: "+33 6 12 34 56 78", Message: "Vous livrez à Lyon ?", MessageID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "Oui, sous 48h !", out.Reply)
	assert.True(t, out.Generated)
	assert.Equal(t, 10, convs.gotLimit)
	assert.Equal(t, "m1", convs.gotExclude)
}

func TestHandler_Execute_UnknownContactAndHistoryFailure(t *testing.T) {
	convs := &fakeConversations{historyErr: errors.New("db down")}
	h := NewHandler(LoadConfig(config.WorkerConfig{}), convs, replierFunc(func(_ context.Context, c *models.Contact, _ string, history []models.Message) (string, error) {
		assert.Equal(t, "33612345678", c.DisplayName())
		assert.Empty(t, history)
		return "", nil
	}), logger.NewNoOpLogger())

	out, err := h.Execute(context.Background(), &Input{ContactID: "33612345678", Message: "Bonjour"})
	require.NoError(t, err)
	assert.False(t, out.Generated)
}

func TestHandler_Execute_LLMErrorsPropagate(t *testing.T) {
	h := NewHandler(LoadConfig(config.WorkerConfig{}), &fakeConversations{}, replierFunc(func(context.Context, *models.Contact, string, []models.Message) (string, error) {
		return "", apperrors.NewLLMTimeoutError(context.DeadlineExceeded)
	}), logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), &Input{ContactID: "c@s.whatsapp.net", Message: "Bonjour"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLLMTimeout))
}

func TestInputSchema_RequiresMessage(t *testing.T) {
	assert.NoError(t, schema.ValidateJSON(`{"contactId":"c1","message":"Bonjour"}`))
	assert.Error(t, schema.ValidateJSON(`{"contactId":"c1","message":""}`))
	assert.Error(t, schema.ValidateJSON(`{"message":"Bonjour"}`))
}
