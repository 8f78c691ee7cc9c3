// internal/leads/scorer.go
package leads

import (
	"context"
	"strings"
	"time"

	"whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/lock"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
	"whatsapp-sales-workers/internal/common/observability"
	"whatsapp-sales-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// HotLead is handed to the notifier once per escalated record.
type HotLead struct {
	LeadID         string
	Contact        models.Contact
	Score          int
	Signals        []Signal
	LastMessage    string
	Recommendation string
}

// Notifier alerts the sales team about a hot lead.
type Notifier interface {
	NotifyHotLead(ctx context.Context, lead HotLead) error
}

// ThresholdSource supplies the live hot-lead threshold.
type ThresholdSource interface {
	HotLeadThreshold(ctx context.Context) (int, error)
}

// Publisher broadcasts UI events. Failures are the publisher's concern.
type Publisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

const EventHotLeadDetected = "hotlead:detected"

type ScorerConfig struct {
	Window           time.Duration
	DefaultThreshold int
	NotifierTimeout  time.Duration
}

// Deps groups the scorer collaborators. Notifier, Events, Locker and Observability may be nil.
type Deps struct {
	Store         Store
	Thresholds    ThresholdSource
	Notifier      Notifier
	Events        Publisher
	Locker        lock.Locker
	Observability *observability.Observability
}

// Result is what Score reports. Signals holds the accumulated window when hot, the new detection otherwise.
type Result struct {
	IsHot          bool     `json:"isHot"`
	Score          int      `json:"score"`
	Signals        []Signal `json:"signals"`
	LeadID         string   `json:"leadId,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Scorer accumulates signals per contact and escalates hot leads.
type Scorer struct {
	cfg      ScorerConfig
	deps     Deps
	detector *Detector
	log      logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewScorer(cfg ScorerConfig, deps Deps, log logger.Logger) *Scorer {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 70
	}
	if cfg.NotifierTimeout <= 0 {
		cfg.NotifierTimeout = 10 * time.Second
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyed()
	}
	return &Scorer{
		cfg:      cfg,
		deps:     deps,
		detector: NewDetector(),
		log:      log.WithFields(map[string]interface{}{"component": "lead-scorer"}),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Score runs detection on message and folds the signals into the contact's window record.
// Messages without signals return early without touching storage.
func (s *Scorer) Score(ctx context.Context, contactID, message string) (*Result, error) {
	newSignals := s.detector.Detect(message)
	if len(newSignals) == 0 {
		return &Result{IsHot: false}, nil
	}

	ctx, span := s.deps.Observability.StartSpan(ctx, "leads.score", attribute.String("contact", contactID))
	defer span.End()

	unlock, err := s.deps.Locker.Lock(ctx, contactID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now().UTC()
	prior, err := s.deps.Store.FindActive(ctx, contactID, now.Add(-s.cfg.Window))
	if err != nil {
		return nil, err
	}

	var combined []Signal
	if prior != nil {
		combined = append(combined, prior.Signals...)
	}
	combined = append(combined, newSignals...)

	score := ScoreOf(combined)
	threshold := s.threshold(ctx)
	hot := score >= threshold

	metrics.LeadScore.Observe(float64(score))
	s.deps.Observability.RecordLeadScore(ctx, score, hot)

	rec := prior
	if rec == nil {
		rec = &LeadRecord{ID: s.newID(), ContactID: contactID}
	}
	rec.Signals = combined
	rec.Score = score
	rec.IsHot = hot
	rec.DetectedAt = now

	if prior == nil {
		err = s.deps.Store.Insert(ctx, rec)
	} else {
		err = s.deps.Store.Update(ctx, rec)
	}
	if err != nil {
		return nil, err
	}

	if !hot {
		s.log.Debug("lead below threshold", map[string]interface{}{
			"contactId": contactID,
			"score":     score,
			"threshold": threshold,
		})
		return &Result{IsHot: false, Score: score, Signals: newSignals}, nil
	}

	if err := s.deps.Store.UpdateContactScore(ctx, contactID, score); err != nil {
		return nil, err
	}

	result := &Result{
		IsHot:          true,
		Score:          score,
		Signals:        combined,
		LeadID:         rec.ID,
		Recommendation: Recommendation(score),
	}

	if !rec.Notified {
		s.escalate(ctx, rec, message, result)
	}

	return result, nil
}

func (s *Scorer) escalate(ctx context.Context, rec *LeadRecord, message string, result *Result) {
	claimed, err := s.deps.Store.ClaimNotification(ctx, rec.ID)
	if err != nil {
		s.log.Warn("claim notification failed", map[string]interface{}{"leadId": rec.ID, "error": err})
		return
	}
	if !claimed {
		return
	}
	rec.Notified = true
	metrics.HotLeadsDetected.Inc()

	contact := s.contact(ctx, rec.ContactID)
	s.log.Info("hot lead detected", map[string]interface{}{
		"leadId":    rec.ID,
		"contactId": rec.ContactID,
		"score":     result.Score,
	})

	if s.deps.Events != nil {
		s.deps.Events.Publish(ctx, EventHotLeadDetected, map[string]interface{}{
			"leadId":         rec.ID,
			"contact":        contact,
			"score":          result.Score,
			"signals":        result.Signals,
			"lastMessage":    message,
			"recommendation": result.Recommendation,
		})
	}

	if s.deps.Notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifierTimeout)
	defer cancel()
	err = s.deps.Notifier.NotifyHotLead(notifyCtx, HotLead{
		LeadID:         rec.ID,
		Contact:        contact,
		Score:          result.Score,
		Signals:        result.Signals,
		LastMessage:    message,
		Recommendation: result.Recommendation,
	})
	if err != nil {
		s.log.Warn("hot lead notification failed", map[string]interface{}{
			"leadId": rec.ID,
			"error":  err,
		})
	}
}

func (s *Scorer) contact(ctx context.Context, contactID string) models.Contact {
	fallback := models.Contact{JID: contactID, Phone: strings.SplitN(contactID, "@", 2)[0]}
	c, err := s.deps.Store.Contact(ctx, contactID)
	if err != nil {
		s.log.Warn("contact lookup failed", map[string]interface{}{"contactId": contactID, "error": err})
		return fallback
	}
	if c == nil {
		return fallback
	}
	if c.Phone == "" {
		c.Phone = fallback.Phone
	}
	return *c
}

// threshold reads the live setting and falls back to the configured default.
func (s *Scorer) threshold(ctx context.Context) int {
	if s.deps.Thresholds == nil {
		return s.cfg.DefaultThreshold
	}
	t, err := s.deps.Thresholds.HotLeadThreshold(ctx)
	if err != nil {
		s.log.Warn("using default hot lead threshold", map[string]interface{}{
			"default": s.cfg.DefaultThreshold,
			"error":   errors.NewConfigurationError("hot_lead_threshold", err.Error()),
		})
		return s.cfg.DefaultThreshold
	}
	return t
}

// ListHot returns the most recent hot records.
func (s *Scorer) ListHot(ctx context.Context, limit int) ([]LeadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.deps.Store.ListHot(ctx, limit)
}

// MarkHandled records that a salesperson followed up on a lead.
func (s *Scorer) MarkHandled(ctx context.Context, id, handledBy, notes string) error {
	if strings.TrimSpace(handledBy) == "" {
		return errors.NewValidationError("handledBy", "handledBy is required")
	}
	return s.deps.Store.MarkHandled(ctx, id, handledBy, notes)
}
