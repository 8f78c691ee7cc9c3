// internal/negotiation/service_test.go
package negotiation

import (
	"context"
	"errors"
	"testing"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorderFunc func(ctx context.Context, e LogEntry) error

func (f recorderFunc) Log(ctx context.Context, e LogEntry) error { return f(ctx, e) }

func newTestService(t *testing.T, rec Recorder) *Service {
	t.Helper()
	products := catalogFixture()
	log := logger.NewTestLogger(t)
	return NewService(NewAnalyzer(products, nil, log), products, rec, log)
}

func TestService_HandleMessage_RecordsNegotiation(t *testing.T) {
	var logged []LogEntry
	svc := newTestService(t, recorderFunc(func(_ context.Context, e LogEntry) error {
		logged = append(logged, e)
		return nil
	}))

	out, err := svc.HandleMessage(context.Background(), "c1", "Je vous propose 50€ pour le CRM Pro", "")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.NotNil(t, out.Result)
	assert.Equal(t, CounterOffer, out.Result.Type)

	require.Len(t, logged, 1)
	assert.Equal(t, "c1", logged[0].ContactID)
	assert.Equal(t, "crm-pro", logged[0].ProductID)
	assert.Equal(t, float64(50), logged[0].RequestedPrice)
	assert.False(t, logged[0].Accepted)
	assert.Equal(t, "Je vous propose 50€ pour le CRM Pro", logged[0].Excerpt)
}

func TestService_HandleMessage_NoPriceNoRecord(t *testing.T) {
	svc := newTestService(t, recorderFunc(func(context.Context, LogEntry) error {
		t.Fatal("nothing to record")
		return nil
	}))

	out, err := svc.HandleMessage(context.Background(), "c1", "C'est combien le tarif du CRM Pro ?", "")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Nil(t, out.Result)
	assert.Equal(t, "crm-pro", out.Analysis.Product.ID)

	out, err = svc.HandleMessage(context.Background(), "c1", "merci beaucoup", "")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestService_RecorderFailureIsSwallowed(t *testing.T) {
	svc := newTestService(t, recorderFunc(func(context.Context, LogEntry) error {
		return errors.New("db down")
	}))

	out, err := svc.HandleMessage(context.Background(), "c1", "70 euros", "crm-pro")
	require.NoError(t, err)
	assert.Equal(t, Negotiated, out.Result.Type)
}

func TestService_NegotiateProduct(t *testing.T) {
	var logged LogEntry
	svc := newTestService(t, recorderFunc(func(_ context.Context, e LogEntry) error {
		logged = e
		return nil
	}))

	out, err := svc.NegotiateProduct(context.Background(), "c1", "crm-pro", 50, []string{Engagement12Months})
	require.NoError(t, err)
	assert.Equal(t, CounterOffer, out.Result.Type)
	require.NotNil(t, out.Pricing)
	assert.Equal(t, float64(80), out.Pricing.FinalPrice)

	assert.True(t, logged.Accepted)
	assert.Equal(t, float64(80), logged.FinalPrice)
	assert.Equal(t, []string{Engagement12Months}, logged.ConditionsApplied)
}

func TestService_NegotiateProduct_ConditionsOnlySettleCounterOffers(t *testing.T) {
	var logged LogEntry
	svc := newTestService(t, recorderFunc(func(_ context.Context, e LogEntry) error {
		logged = e
		return nil
	}))

	out, err := svc.NegotiateProduct(context.Background(), "c1", "crm-pro", 100, []string{Engagement12Months})
	require.NoError(t, err)
	assert.Equal(t, FullPrice, out.Result.Type)
	assert.Equal(t, float64(100), out.Result.FinalPrice)
	assert.Nil(t, out.Pricing)
	assert.Empty(t, logged.ConditionsApplied)

	out, err = svc.NegotiateProduct(context.Background(), "c1", "crm-pro", 50, []string{"cadeau"})
	require.NoError(t, err)
	assert.Equal(t, CounterOffer, out.Result.Type)
	assert.Nil(t, out.Pricing)
	assert.False(t, logged.Accepted)
}

func TestService_NegotiateProduct_Errors(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.NegotiateProduct(context.Background(), "c1", "crm-pro", -1, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	_, err = svc.NegotiateProduct(context.Background(), "c1", "missing", 10, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceNotFound))
}
