// internal/events/bus_test.go
package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-sales-workers/internal/common/logger"
)

func TestBus_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bus := NewBus(client, "", logger.NewNoOpLogger())
	bus.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := bus.Subscribe(ctx)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(ctx, HotLeadDetected, map[string]interface{}{"score": 85})

	select {
	case ev := <-events:
		assert.Equal(t, HotLeadDetected, ev.Event)
		assert.JSONEq(t, `{"score":85}`, string(ev.Data))
		assert.Equal(t, 2026, ev.At.Year())
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}

func TestBus_PublishErrorIsSwallowed(t *testing.T) {
	client, mock := redismock.NewClientMock()
	bus := NewBus(client, "ch", logger.NewNoOpLogger())
	bus.now = func() time.Time { return time.Unix(0, 0) }

	mock.ExpectPublish("ch", []byte(`{"event":"message:new","data":{"id":"m1"},"at":"1970-01-01T00:00:00Z"}`)).
		SetErr(errors.New("connection refused"))

	bus.Publish(context.Background(), MessageNew, map[string]string{"id": "m1"})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBus_UnencodablePayloadSkipsPublish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	bus := NewBus(client, "ch", logger.NewNoOpLogger())

	bus.Publish(context.Background(), MessageNew, make(chan int))
	assert.NoError(t, mock.ExpectationsWereMet())
}
