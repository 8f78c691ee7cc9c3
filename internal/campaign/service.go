// Package campaign prepares, starts and tracks bulk WhatsApp campaigns on top of the outbound queue.
package campaign

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"whatsapp-sales-workers/internal/assistant"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/events"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/outbound"
	"whatsapp-sales-workers/internal/transport"
)

// RefPrefix tags queue items that belong to a campaign message.
const RefPrefix = "campaign:"

type Repository interface {
	Create(ctx context.Context, c *models.Campaign) (string, error)
	Get(ctx context.Context, id string) (*models.Campaign, error)
	AddRecipients(ctx context.Context, campaignID string, recipients []models.Recipient) (int, error)
	PendingMessages(ctx context.Context, campaignID string, withText bool) ([]PendingMessage, error)
	SetMessageText(ctx context.Context, messageID, text string) error
	SetStatus(ctx context.Context, id, status string) error
	MarkSent(ctx context.Context, messageID string) (string, bool, error)
	MarkFailed(ctx context.Context, messageID, reason string) (string, bool, error)
	Progress(ctx context.Context, campaignID string) (Progress, error)
}

// Queue is the outbound scheduler surface used by campaigns.
type Queue interface {
	EnqueueItem(item outbound.Item) (outbound.Item, error)
	Clear() int
}

type Generator interface {
	GenerateCampaignMessages(ctx context.Context, template string, recipients []models.Recipient) ([]assistant.Generated, error)
}

type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// GenerateResult reports how many pending messages received AI text.
type GenerateResult struct {
	Generated int `json:"generated"`
	Total     int `json:"total"`
}

type Service struct {
	repo      Repository
	queue     Queue
	generator Generator
	events    Publisher
	logger    logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	settleTimeout time.Duration
}

// NewService wires the campaign flow. generator and events may be nil.
func NewService(repo Repository, queue Queue, generator Generator, events Publisher, log logger.Logger) *Service {
	return &Service{
		repo:          repo,
		queue:         queue,
		generator:     generator,
		events:        events,
		logger:        log.WithFields(map[string]interface{}{"component": "campaign"}),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		settleTimeout: 10 * time.Second,
	}
}

func (s *Service) Create(ctx context.Context, c *models.Campaign) (string, error) {
	if strings.TrimSpace(c.Name) == "" || c.Type == "" {
		return "", apperrors.NewValidationError("campaign", "Nom et type sont requis")
	}
	if c.Type != models.CampaignTypeBroadcast && c.Type != models.CampaignTypeHyperPersonalized {
		return "", apperrors.NewValidationError("type", "unknown campaign type "+c.Type)
	}
	return s.repo.Create(ctx, c)
}

var numberSeparators = regexp.MustCompile(`[\n,;]`)

// ParseNumbers splits a pasted list of phone numbers into recipients.
func ParseNumbers(raw string) []models.Recipient {
	var out []models.Recipient
	for _, part := range numberSeparators.Split(raw, -1) {
		phone := strings.TrimSpace(part)
		if phone == "" {
			continue
		}
		jid := transport.FormatJID(phone)
		out = append(out, models.Recipient{JID: jid, Phone: transport.PhoneFromJID(jid)})
	}
	return out
}

func (s *Service) AddRecipients(ctx context.Context, id string, recipients []models.Recipient) (int, error) {
	if _, err := s.mustGet(ctx, id); err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, apperrors.NewValidationError("contacts", "Aucun contact valide trouvé")
	}
	for i := range recipients {
		if recipients[i].JID == "" {
			recipients[i].JID = transport.FormatJID(recipients[i].Phone)
		}
	}
	return s.repo.AddRecipients(ctx, id, recipients)
}

// PrepareBroadcast fills every pending message with a spintax variant of the template.
func (s *Service) PrepareBroadcast(ctx context.Context, id string) (int, error) {
	c, err := s.mustGet(ctx, id)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(c.Template) == "" {
		return 0, apperrors.NewValidationError("template", "Template de message requis")
	}
	msgs, err := s.repo.PendingMessages(ctx, id, false)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		if err := s.repo.SetMessageText(ctx, m.ID, s.spin(c.Template, m.Name)); err != nil {
			return 0, err
		}
	}
	return len(msgs), nil
}

func (s *Service) spin(template, name string) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return ApplySpintax(template, name, s.rng)
}

// GenerateAI writes one AI message per pending recipient of a hyper_personalized campaign.
func (s *Service) GenerateAI(ctx context.Context, id string) (GenerateResult, error) {
	c, err := s.mustGet(ctx, id)
	if err != nil {
		return GenerateResult{}, err
	}
	if c.Type != models.CampaignTypeHyperPersonalized {
		return GenerateResult{}, apperrors.NewBusinessRuleError("campaign is not AI generated", "Cette campagne n'utilise pas la génération IA")
	}
	if s.generator == nil {
		return GenerateResult{}, apperrors.NewConfigurationError("apis.genai", "AI generation is not configured")
	}
	msgs, err := s.repo.PendingMessages(ctx, id, false)
	if err != nil {
		return GenerateResult{}, err
	}
	if len(msgs) == 0 {
		return GenerateResult{}, apperrors.NewBusinessRuleError("no pending recipient", "Aucun contact en attente")
	}

	recipients := make([]models.Recipient, len(msgs))
	for i, m := range msgs {
		recipients[i] = models.Recipient{JID: m.ContactJID, Phone: m.Phone, Name: m.Name, CustomData: m.CustomData}
	}
	generated, err := s.generator.GenerateCampaignMessages(ctx, c.AIPrompt, recipients)
	if err != nil {
		return GenerateResult{}, err
	}

	res := GenerateResult{Total: len(msgs)}
	for i, g := range generated {
		if !g.Success || g.Message == "" {
			continue
		}
		if err := s.repo.SetMessageText(ctx, msgs[i].ID, g.Message); err != nil {
			return res, err
		}
		res.Generated++
	}
	s.logger.Info("campaign messages generated", map[string]interface{}{
		"campaignId": id,
		"generated":  res.Generated,
		"total":      res.Total,
	})
	return res, nil
}

// Start marks the campaign running and enqueues every pending message that has text.
// It returns how many items were queued.
func (s *Service) Start(ctx context.Context, id string) (int, error) {
	c, err := s.mustGet(ctx, id)
	if err != nil {
		return 0, err
	}
	if c.Status == models.CampaignStatusRunning {
		return 0, apperrors.NewBusinessRuleError("campaign already running", "Campagne déjà en cours")
	}
	msgs, err := s.repo.PendingMessages(ctx, id, true)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, apperrors.NewBusinessRuleError("no message ready", "Aucun message prêt à envoyer")
	}
	if err := s.repo.SetStatus(ctx, id, models.CampaignStatusRunning); err != nil {
		return 0, err
	}
	s.publish(ctx, events.CampaignStart, map[string]interface{}{"campaignId": id, "total": len(msgs)})

	queued := 0
	for _, m := range msgs {
		_, err := s.queue.EnqueueItem(outbound.Item{
			Target:  m.ContactJID,
			Payload: transport.Text(m.Message),
			Ref:     RefPrefix + m.ID,
		})
		if err != nil {
			s.logger.Warn("campaign message not queued", map[string]interface{}{
				"campaignId": id,
				"messageId":  m.ID,
				"error":      err,
			})
			if _, _, markErr := s.repo.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
				s.logger.Error("mark campaign message failed", map[string]interface{}{"messageId": m.ID, "error": markErr})
			}
			continue
		}
		queued++
	}
	s.logger.Info("campaign started", map[string]interface{}{"campaignId": id, "queued": queued})
	return queued, nil
}

// Stop clears the outbound queue and pauses the campaign. Unsent messages stay pending.
func (s *Service) Stop(ctx context.Context, id string) (int, error) {
	if _, err := s.mustGet(ctx, id); err != nil {
		return 0, err
	}
	cleared := s.queue.Clear()
	if err := s.repo.SetStatus(ctx, id, models.CampaignStatusPaused); err != nil {
		return cleared, err
	}
	s.publish(ctx, events.CampaignStopped, map[string]interface{}{"campaignId": id, "cleared": cleared})
	return cleared, nil
}

func (s *Service) Progress(ctx context.Context, id string) (Progress, error) {
	return s.repo.Progress(ctx, id)
}

// OnDispatched implements outbound.Observer.
func (s *Service) OnDispatched(item outbound.Item, _ transport.SendResult) {
	messageID, ok := campaignMessageID(item)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
	defer cancel()

	campaignID, settled, err := s.repo.MarkSent(ctx, messageID)
	if err != nil {
		s.logger.Error("mark campaign message sent", map[string]interface{}{"messageId": messageID, "error": err})
		return
	}
	if !settled {
		return
	}
	p, err := s.repo.Progress(ctx, campaignID)
	if err != nil {
		s.logger.Error("campaign progress", map[string]interface{}{"campaignId": campaignID, "error": err})
		return
	}
	s.publish(ctx, events.CampaignProgress, map[string]interface{}{
		"campaignId":     campaignID,
		"sent":           p.Sent,
		"failed":         p.Failed,
		"total":          p.Total,
		"currentContact": transport.PhoneFromJID(item.Target),
	})
	s.completeIfDone(ctx, campaignID, p)
}

// OnFailed implements outbound.Observer.
func (s *Service) OnFailed(item outbound.Item, sendErr error) {
	messageID, ok := campaignMessageID(item)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
	defer cancel()

	campaignID, settled, err := s.repo.MarkFailed(ctx, messageID, sendErr.Error())
	if err != nil {
		s.logger.Error("mark campaign message failed", map[string]interface{}{"messageId": messageID, "error": err})
		return
	}
	if !settled {
		return
	}
	s.publish(ctx, events.CampaignError, map[string]interface{}{
		"campaignId": campaignID,
		"jid":        item.Target,
		"error":      sendErr.Error(),
	})
	p, err := s.repo.Progress(ctx, campaignID)
	if err != nil {
		s.logger.Error("campaign progress", map[string]interface{}{"campaignId": campaignID, "error": err})
		return
	}
	s.completeIfDone(ctx, campaignID, p)
}

func (s *Service) completeIfDone(ctx context.Context, campaignID string, p Progress) {
	if p.Pending > 0 {
		return
	}
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil || c == nil || c.Status != models.CampaignStatusRunning {
		return
	}
	if err := s.repo.SetStatus(ctx, campaignID, models.CampaignStatusCompleted); err != nil {
		s.logger.Error("complete campaign", map[string]interface{}{"campaignId": campaignID, "error": err})
		return
	}
	s.logger.Info("campaign completed", map[string]interface{}{"campaignId": campaignID, "sent": p.Sent, "failed": p.Failed})
	s.publish(ctx, events.CampaignComplete, map[string]interface{}{
		"campaignId": campaignID,
		"sent":       p.Sent,
		"failed":     p.Failed,
	})
}

func campaignMessageID(item outbound.Item) (string, bool) {
	if !strings.HasPrefix(item.Ref, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(item.Ref, RefPrefix), true
}

func (s *Service) mustGet(ctx context.Context, id string) (*models.Campaign, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperrors.NewResourceNotFoundError("campaign", id)
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, event string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(ctx, event, payload)
	}
}
