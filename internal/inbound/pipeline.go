// Package inbound persists the conversation log and routes customer messages
// through lead scoring, negotiation and the automatic reply.
package inbound

import (
	"context"
	"time"

	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
	"whatsapp-sales-workers/internal/events"
	"whatsapp-sales-workers/internal/leads"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/negotiation"
	"whatsapp-sales-workers/internal/outbound"
	"whatsapp-sales-workers/internal/settings"
	"whatsapp-sales-workers/internal/transport"
)

// HistoryLimit is how many earlier messages are handed to the reply generator.
const HistoryLimit = 10

// ReplyRefPrefix marks queue items produced by the automatic reply.
const ReplyRefPrefix = "reply:"

type Conversations interface {
	TouchContact(ctx context.Context, jid, phone, pushName string, at time.Time) error
	UpsertContacts(ctx context.Context, updates []transport.ContactUpdate) error
	SetProfilePic(ctx context.Context, jid, url string) error
	SaveMessage(ctx context.Context, m models.Message) (bool, error)
	RecentMessages(ctx context.Context, jid string, limit int, excludeID string) ([]models.Message, error)
	Contact(ctx context.Context, jid string) (*models.Contact, error)
}

type LeadScorer interface {
	Score(ctx context.Context, contactID, message string) (*leads.Result, error)
}

type Negotiator interface {
	HandleMessage(ctx context.Context, contactID, message, productID string) (*negotiation.Outcome, error)
}

type Replier interface {
	GenerateReply(ctx context.Context, contact *models.Contact, message string, history []models.Message) (string, error)
}

type Queue interface {
	EnqueueItem(item outbound.Item) (outbound.Item, error)
}

type Toggles interface {
	Bool(ctx context.Context, key string, def bool) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

type ProfileSource interface {
	ProfilePicture(ctx context.Context, jid string) (string, error)
}

// Deps wires the pipeline. Scorer, Negotiator, Replier and Profiles are optional.
type Deps struct {
	Store      Conversations
	Scorer     LeadScorer
	Negotiator Negotiator
	Replier    Replier
	Queue      Queue
	Toggles    Toggles
	Events     Publisher
	Profiles   ProfileSource
}

// Pipeline implements transport.Sink, transport.ContactSink and outbound.Observer.
type Pipeline struct {
	deps   Deps
	log    logger.Logger
	record time.Duration
}

func NewPipeline(deps Deps, log logger.Logger) *Pipeline {
	return &Pipeline{
		deps:   deps,
		log:    log.WithFields(map[string]interface{}{"component": "inbound"}),
		record: 10 * time.Second,
	}
}

type messageEvent struct {
	ID          string    `json:"id"`
	JID         string    `json:"jid"`
	Content     string    `json:"content"`
	FromMe      bool      `json:"fromMe"`
	Timestamp   time.Time `json:"timestamp"`
	PushName    string    `json:"pushName,omitempty"`
	AIGenerated bool      `json:"aiGenerated,omitempty"`
}

type failedEvent struct {
	ItemID string `json:"itemId"`
	JID    string `json:"jid"`
	Ref    string `json:"ref,omitempty"`
	Error  string `json:"error"`
}

// HandleInbound stores the message and, for customer messages, runs the sales automation.
// A message id seen before is ignored so redelivered webhooks are harmless.
func (p *Pipeline) HandleInbound(ctx context.Context, msg transport.InboundMessage) error {
	if msg.ContactJID == "" || msg.Content == "" {
		return nil
	}
	phone := msg.Phone
	if phone == "" {
		phone = transport.PhoneFromJID(msg.ContactJID)
	}
	pushName := msg.PushName
	if pushName == "" {
		pushName = phone
	}
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	if err := p.deps.Store.TouchContact(ctx, msg.ContactJID, phone, pushName, at); err != nil {
		return err
	}
	inserted, err := p.deps.Store.SaveMessage(ctx, models.Message{
		ID:         msg.ID,
		ContactJID: msg.ContactJID,
		Content:    msg.Content,
		FromMe:     msg.FromMe,
		Timestamp:  at,
		IsRead:     msg.FromMe,
	})
	if err != nil {
		return err
	}
	if !inserted {
		p.log.Debug("duplicate message ignored", map[string]interface{}{"messageId": msg.ID})
		return nil
	}
	metrics.InboundMessages.WithLabelValues(direction(msg.FromMe)).Inc()

	p.publish(ctx, messageEvent{
		ID: msg.ID, JID: msg.ContactJID, Content: msg.Content,
		FromMe: msg.FromMe, Timestamp: at, PushName: msg.PushName,
	})

	if msg.FromMe {
		return nil
	}
	p.fetchProfile(msg.ContactJID)
	p.score(ctx, msg)
	p.negotiate(ctx, msg)
	p.autoReply(ctx, msg)
	return nil
}

// UpsertContacts forwards contact name changes to the store.
func (p *Pipeline) UpsertContacts(ctx context.Context, updates []transport.ContactUpdate) error {
	return p.deps.Store.UpsertContacts(ctx, updates)
}

func (p *Pipeline) score(ctx context.Context, msg transport.InboundMessage) {
	if p.deps.Scorer == nil {
		return
	}
	res, err := p.deps.Scorer.Score(ctx, msg.ContactJID, msg.Content)
	if err != nil {
		p.log.Warn("lead scoring failed", map[string]interface{}{"contact": msg.ContactJID, "error": err})
		return
	}
	if res != nil && res.IsHot {
		p.log.Info("hot lead", map[string]interface{}{"contact": msg.ContactJID, "score": res.Score})
	}
}

func (p *Pipeline) negotiate(ctx context.Context, msg transport.InboundMessage) {
	if p.deps.Negotiator == nil {
		return
	}
	out, err := p.deps.Negotiator.HandleMessage(ctx, msg.ContactJID, msg.Content, "")
	if err != nil {
		p.log.Warn("negotiation analysis failed", map[string]interface{}{"contact": msg.ContactJID, "error": err})
		return
	}
	if out == nil || out.Result == nil {
		return
	}
	p.log.Info("price negotiation", map[string]interface{}{
		"contact":  msg.ContactJID,
		"product":  out.Analysis.Product.ID,
		"type":     string(out.Result.Type),
		"accepted": out.Result.Accepted,
	})
}

// autoReply generates and queues an answer when the auto_reply_enabled setting is on.
// Any failure only drops the reply.
func (p *Pipeline) autoReply(ctx context.Context, msg transport.InboundMessage) {
	if p.deps.Replier == nil || p.deps.Queue == nil || p.deps.Toggles == nil {
		return
	}
	enabled, err := p.deps.Toggles.Bool(ctx, settings.KeyAutoReplyEnabled, false)
	if err != nil {
		p.log.Warn("auto reply setting unreadable", map[string]interface{}{"error": err})
		return
	}
	if !enabled {
		return
	}

	history, err := p.deps.Store.RecentMessages(ctx, msg.ContactJID, HistoryLimit, msg.ID)
	if err != nil {
		p.log.Warn("history unavailable", map[string]interface{}{"contact": msg.ContactJID, "error": err})
		history = nil
	}
	contact, err := p.deps.Store.Contact(ctx, msg.ContactJID)
	if err != nil {
		p.log.Warn("contact unavailable", map[string]interface{}{"contact": msg.ContactJID, "error": err})
	}
	if contact == nil {
		contact = &models.Contact{JID: msg.ContactJID, PushName: msg.PushName, Phone: msg.Phone}
	}

	reply, err := p.deps.Replier.GenerateReply(ctx, contact, msg.Content, history)
	if err != nil || reply == "" {
		p.log.Warn("auto reply skipped", map[string]interface{}{"contact": msg.ContactJID, "error": err})
		return
	}

	item, err := p.deps.Queue.EnqueueItem(outbound.Item{
		Target:      msg.ContactJID,
		Payload:     transport.Text(reply),
		Ref:         ReplyRefPrefix + msg.ID,
		AIGenerated: true,
	})
	if err != nil {
		p.log.Warn("auto reply not queued", map[string]interface{}{"contact": msg.ContactJID, "error": err})
		return
	}
	p.log.Info("auto reply queued", map[string]interface{}{"contact": msg.ContactJID, "item": item.ID})
}

func (p *Pipeline) fetchProfile(jid string) {
	if p.deps.Profiles == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.record)
		defer cancel()
		url, err := p.deps.Profiles.ProfilePicture(ctx, jid)
		if err != nil || url == "" {
			return
		}
		if err := p.deps.Store.SetProfilePic(ctx, jid, url); err != nil {
			p.log.Debug("profile picture not stored", map[string]interface{}{"contact": jid, "error": err})
		}
	}()
}

// OnDispatched records a delivered message in the conversation log.
func (p *Pipeline) OnDispatched(item outbound.Item, res transport.SendResult) {
	ctx, cancel := context.WithTimeout(context.Background(), p.record)
	defer cancel()

	id := res.MessageID
	if id == "" {
		id = item.ID
	}
	at := res.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	m := models.Message{
		ID:          id,
		ContactJID:  item.Target,
		Content:     item.Payload.Summary(),
		FromMe:      true,
		Timestamp:   at,
		IsRead:      true,
		AIGenerated: item.AIGenerated,
	}
	inserted, err := p.deps.Store.SaveMessage(ctx, m)
	if err != nil {
		p.log.Warn("sent message not recorded", map[string]interface{}{"item": item.ID, "error": err})
		return
	}
	if !inserted {
		return
	}
	p.publish(ctx, messageEvent{
		ID: m.ID, JID: m.ContactJID, Content: m.Content,
		FromMe: true, Timestamp: at, AIGenerated: m.AIGenerated,
	})
}

// OnFailed signals an undelivered queue item on the event bus.
func (p *Pipeline) OnFailed(item outbound.Item, sendErr error) {
	if p.deps.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.record)
	defer cancel()

	reason := ""
	if sendErr != nil {
		reason = sendErr.Error()
	}
	p.deps.Events.Publish(ctx, events.MessageFailed, failedEvent{
		ItemID: item.ID,
		JID:    item.Target,
		Ref:    item.Ref,
		Error:  reason,
	})
}

func (p *Pipeline) publish(ctx context.Context, ev messageEvent) {
	if p.deps.Events == nil {
		return
	}
	p.deps.Events.Publish(ctx, events.MessageNew, ev)
}

func direction(fromMe bool) string {
	if fromMe {
		return "outgoing"
	}
	return "incoming"
}
