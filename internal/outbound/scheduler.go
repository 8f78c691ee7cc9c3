// Package outbound paces WhatsApp sends through a single FIFO drain loop.
package outbound

import (
	"context"
	"math/rand"
	"sync"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
	"whatsapp-sales-workers/internal/common/observability"
	"whatsapp-sales-workers/internal/transport"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Item is one queued message. Ref carries the caller's id, e.g. a campaign message id.
type Item struct {
	ID          string            `json:"id"`
	Target      string            `json:"target"`
	Payload     transport.Payload `json:"payload"`
	Ref         string            `json:"ref,omitempty"`
	AIGenerated bool              `json:"aiGenerated,omitempty"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
}

type Status struct {
	Pending      int  `json:"pending"`
	IsProcessing bool `json:"isProcessing"`
}

// Pacing is the anti-ban configuration read at the start of each item.
type Pacing struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	TypingEnabled bool
}

type PacingSource interface {
	Pacing(ctx context.Context) (Pacing, error)
}

// PacingFunc adapts a function to PacingSource.
type PacingFunc func(ctx context.Context) (Pacing, error)

func (f PacingFunc) Pacing(ctx context.Context) (Pacing, error) { return f(ctx) }

// Observer is told about every dispatch outcome. Calls come from the drain goroutine.
type Observer interface {
	OnDispatched(item Item, res transport.SendResult)
	OnFailed(item Item, err error)
}

// Observers fans delivery results out in order.
type Observers []Observer

func (o Observers) OnDispatched(item Item, res transport.SendResult) {
	for _, ob := range o {
		ob.OnDispatched(item, res)
	}
}

func (o Observers) OnFailed(item Item, err error) {
	for _, ob := range o {
		ob.OnFailed(item, err)
	}
}

type Config struct {
	ThinkingMin     time.Duration
	ThinkingMax     time.Duration
	TypingPerChar   time.Duration
	MaxTyping       time.Duration
	DispatchTimeout time.Duration
	// DefaultPacing applies when no PacingSource is set or it fails.
	DefaultPacing Pacing
}

func DefaultConfig() Config {
	return Config{
		ThinkingMin:     1000 * time.Millisecond,
		ThinkingMax:     2000 * time.Millisecond,
		TypingPerChar:   50 * time.Millisecond,
		MaxTyping:       5000 * time.Millisecond,
		DispatchTimeout: 30 * time.Second,
		DefaultPacing: Pacing{
			MinDelay:      15000 * time.Millisecond,
			MaxDelay:      45000 * time.Millisecond,
			TypingEnabled: true,
		},
	}
}

// sleepFunc waits for d and reports false when cancel fired first.
type sleepFunc func(d time.Duration, cancel <-chan struct{}) bool

// Scheduler owns the outbound queue. At most one drain goroutine dispatches at a time.
type Scheduler struct {
	cfg       Config
	transport transport.Transport
	pacing    PacingSource
	observer  Observer
	obs       *observability.Observability
	log       logger.Logger

	mu         sync.Mutex
	items      []Item
	waiting    bool // head item popped but not yet dispatched
	processing bool
	generation uint64
	cancelGen  chan struct{}
	closed     bool
	rng        *rand.Rand

	// dispatchMu keeps a stale drain loop's in-flight send from interleaving with a new loop.
	dispatchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sleep sleepFunc
	newID func() string
	now   func() time.Time
}

type Option func(*Scheduler)

func WithPacing(src PacingSource) Option { return func(s *Scheduler) { s.pacing = src } }

func WithObserver(o Observer) Option { return func(s *Scheduler) { s.observer = o } }

func WithObservability(o *observability.Observability) Option {
	return func(s *Scheduler) { s.obs = o }
}

func NewScheduler(cfg Config, t transport.Transport, log logger.Logger, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.ThinkingMax <= 0 {
		cfg.ThinkingMin, cfg.ThinkingMax = def.ThinkingMin, def.ThinkingMax
	}
	if cfg.TypingPerChar <= 0 {
		cfg.TypingPerChar = def.TypingPerChar
	}
	if cfg.MaxTyping <= 0 {
		cfg.MaxTyping = def.MaxTyping
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = def.DispatchTimeout
	}
	if cfg.DefaultPacing.MaxDelay <= 0 {
		cfg.DefaultPacing = def.DefaultPacing
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		transport: t,
		log:       log.WithFields(map[string]interface{}{"component": "outbound-scheduler"}),
		cancelGen: make(chan struct{}),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:       ctx,
		cancel:    cancel,
		sleep:     timerSleep,
		newID:     func() string { return uuid.New().String() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func timerSleep(d time.Duration, cancel <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-cancel:
		return false
	}
}

// Enqueue appends a message and starts the drain loop when none is running.
func (s *Scheduler) Enqueue(target string, p transport.Payload) (Item, error) {
	return s.EnqueueItem(Item{Target: target, Payload: p})
}

// EnqueueItem is Enqueue with caller-provided Ref and flags.
func (s *Scheduler) EnqueueItem(item Item) (Item, error) {
	if item.Target == "" {
		return Item{}, apperrors.NewValidationError("target", "target is required")
	}
	if err := item.Payload.Validate(); err != nil {
		return Item{}, err
	}
	if item.ID == "" {
		item.ID = s.newID()
	}
	item.EnqueuedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Item{}, apperrors.NewBusinessRuleError("scheduler closed", "outbound scheduler is shut down")
	}
	s.items = append(s.items, item)
	metrics.OutboundQueuePending.Set(float64(len(s.items)))

	if !s.processing {
		s.processing = true
		s.wg.Add(1)
		go s.drain(s.generation, s.cancelGen)
	}
	return item, nil
}

// Status counts the item being prepared for dispatch as pending.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := len(s.items)
	if s.waiting {
		pending++
	}
	return Status{Pending: pending, IsProcessing: s.processing}
}

// Clear drops every pending item and resets processing. A send already in progress completes.
// It returns the number of dropped items.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := len(s.items)
	s.items = nil
	s.waiting = false
	s.processing = false
	s.generation++
	close(s.cancelGen)
	s.cancelGen = make(chan struct{})
	metrics.OutboundQueuePending.Set(0)

	s.log.Info("outbound queue cleared", map[string]interface{}{"dropped": dropped})
	return dropped
}

// Close stops accepting items, interrupts waits and blocks until drain loops return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.generation++
		s.items = nil
		s.waiting = false
		s.processing = false
		close(s.cancelGen)
		s.cancelGen = make(chan struct{})
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) drain(gen uint64, cancel <-chan struct{}) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return
		}
		if len(s.items) == 0 {
			s.processing = false
			s.mu.Unlock()
			return
		}
		item := s.items[0]
		s.items = s.items[1:]
		s.waiting = true
		metrics.OutboundQueuePending.Set(float64(len(s.items)))
		s.mu.Unlock()

		s.process(gen, cancel, item)
	}
}

func (s *Scheduler) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.generation
}

func (s *Scheduler) dispatched(gen uint64) {
	s.mu.Lock()
	if gen == s.generation {
		s.waiting = false
	}
	s.mu.Unlock()
}

func (s *Scheduler) process(gen uint64, cancel <-chan struct{}, item Item) {
	pacing := s.currentPacing()

	if !s.sleep(s.uniform(s.cfg.ThinkingMin, s.cfg.ThinkingMax), cancel) {
		return
	}

	s.dispatchMu.Lock()
	if s.stale(gen) {
		s.dispatchMu.Unlock()
		return
	}
	if pacing.TypingEnabled {
		s.simulateTyping(item, cancel)
		if s.stale(gen) {
			s.dispatchMu.Unlock()
			return
		}
	}
	res, err := s.dispatch(item)
	s.dispatched(gen)
	s.dispatchMu.Unlock()

	if err != nil {
		s.reportFailure(item, err)
	} else {
		s.reportSuccess(item, res)
	}

	s.sleep(s.uniform(pacing.MinDelay, pacing.MaxDelay), cancel)
}

func (s *Scheduler) currentPacing() Pacing {
	if s.pacing == nil {
		return s.cfg.DefaultPacing
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	p, err := s.pacing.Pacing(ctx)
	if err != nil {
		s.log.Warn("using default anti-ban pacing", map[string]interface{}{"error": err.Error()})
		return s.cfg.DefaultPacing
	}
	if p.MaxDelay < p.MinDelay {
		p.MinDelay, p.MaxDelay = p.MaxDelay, p.MinDelay
	}
	return p
}

// TypingDuration is how long "composing" is shown for a payload.
func (s *Scheduler) TypingDuration(p transport.Payload) time.Duration {
	d := time.Duration(p.Length()) * s.cfg.TypingPerChar
	if d > s.cfg.MaxTyping {
		return s.cfg.MaxTyping
	}
	return d
}

func (s *Scheduler) simulateTyping(item Item, cancel <-chan struct{}) {
	ctx, done := context.WithTimeout(s.ctx, s.cfg.DispatchTimeout)
	defer done()

	if err := s.transport.SetPresence(ctx, item.Target, transport.Composing); err != nil {
		s.log.Debug("presence update failed", map[string]interface{}{"target": item.Target, "error": err.Error()})
		return
	}
	s.sleep(s.TypingDuration(item.Payload), cancel)
	if err := s.transport.SetPresence(ctx, item.Target, transport.Paused); err != nil {
		s.log.Debug("presence update failed", map[string]interface{}{"target": item.Target, "error": err.Error()})
	}
}

func (s *Scheduler) dispatch(item Item) (transport.SendResult, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.DispatchTimeout)
	defer cancel()
	ctx, span := s.obs.StartSpan(ctx, "outbound.dispatch", attribute.String("target", item.Target))
	defer span.End()

	start := time.Now()
	res, err := s.transport.Send(ctx, item.Target, item.Payload)
	metrics.OutboundDispatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return res, apperrors.NewDispatchError(item.Target, err)
	}
	return res, nil
}

func (s *Scheduler) reportSuccess(item Item, res transport.SendResult) {
	metrics.OutboundMessages.WithLabelValues("sent").Inc()
	s.obs.RecordDispatch(s.ctx, "sent")
	s.log.Info("message dispatched", map[string]interface{}{
		"itemId":    item.ID,
		"target":    item.Target,
		"messageId": res.MessageID,
	})
	if s.observer != nil {
		s.observer.OnDispatched(item, res)
	}
}

func (s *Scheduler) reportFailure(item Item, err error) {
	metrics.OutboundMessages.WithLabelValues("failed").Inc()
	s.obs.RecordDispatch(s.ctx, "failed")
	s.log.Warn("message dispatch failed", map[string]interface{}{
		"itemId": item.ID,
		"target": item.Target,
		"error":  err.Error(),
	})
	if s.observer != nil {
		s.observer.OnFailed(item, err)
	}
}

func (s *Scheduler) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}
