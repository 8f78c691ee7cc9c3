// Package events publishes UI events on a Redis pub/sub channel.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-sales-workers/internal/common/logger"
)

const DefaultChannel = "whatsapp-sales:events"

// Event names published by the core.
const (
	MessageNew       = "message:new"
	MessageFailed    = "message:failed"
	HotLeadDetected  = "hotlead:detected"
	WhatsAppStatus   = "whatsapp:status"
	CampaignStart    = "campaign:start"
	CampaignProgress = "campaign:progress"
	CampaignError    = "campaign:error"
	CampaignComplete = "campaign:completed"
	CampaignStopped  = "campaign:stopped"
)

// Event is the envelope written to the channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

type Bus struct {
	redis   *redis.Client
	channel string
	logger  logger.Logger
	now     func() time.Time
}

func NewBus(client *redis.Client, channel string, log logger.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bus{
		redis:   client,
		channel: channel,
		logger:  log.WithFields(map[string]interface{}{"component": "events"}),
		now:     time.Now,
	}
}

// Publish never fails the caller; errors are logged.
func (b *Bus) Publish(ctx context.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("event payload not encodable", map[string]interface{}{"event": event, "error": err})
		return
	}
	msg, err := json.Marshal(Event{Event: event, Data: data, At: b.now().UTC()})
	if err != nil {
		return
	}
	if err := b.redis.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.logger.Warn("event publish failed", map[string]interface{}{"event": event, "error": err})
	}
}

// Subscribe delivers decoded events until ctx ends. Undecodable messages are dropped.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	sub := b.redis.Subscribe(ctx, b.channel)
	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
