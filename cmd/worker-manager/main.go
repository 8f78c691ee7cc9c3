// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"whatsapp-sales-workers/internal/assistant"
	"whatsapp-sales-workers/internal/campaign"
	"whatsapp-sales-workers/internal/catalog"
	commonaws "whatsapp-sales-workers/internal/common/aws"
	"whatsapp-sales-workers/internal/common/camunda"
	"whatsapp-sales-workers/internal/common/config"
	"whatsapp-sales-workers/internal/common/database"
	"whatsapp-sales-workers/internal/common/lock"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/observability"
	"whatsapp-sales-workers/internal/common/zoho"
	"whatsapp-sales-workers/internal/events"
	"whatsapp-sales-workers/internal/inbound"
	"whatsapp-sales-workers/internal/leads"
	"whatsapp-sales-workers/internal/negotiation"
	"whatsapp-sales-workers/internal/notify"
	"whatsapp-sales-workers/internal/outbound"
	"whatsapp-sales-workers/internal/settings"
	"whatsapp-sales-workers/internal/transport"

	eom "whatsapp-sales-workers/internal/workers/messaging/enqueue-outbound-message"
	stc "whatsapp-sales-workers/internal/workers/messaging/start-campaign"
	gsr "whatsapp-sales-workers/internal/workers/sales/generate-sales-reply"
	ngp "whatsapp-sales-workers/internal/workers/sales/negotiate-price"
	shl "whatsapp-sales-workers/internal/workers/sales/score-hot-lead"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Observability.JaegerEndpoint, log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(camunda.ConfigFrom(cfg.Camunda))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, pg.DB); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional: product search falls back to name containment) ---
	var productIndex *catalog.ProductIndex
	if cfg.Database.Elasticsearch.GetURL() != "" {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = retryWithBackoff(func() error { return esClient.Ping(ctx) }, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		}
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, product search disabled", zap.Error(err))
		} else {
			productIndex = catalog.NewProductIndex(esClient.Client, cfg.Database.Elasticsearch.ProductIndex, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Settings, events, catalog ---
	settingsStore := settings.NewStore(pg.DB, rdb.Client, settings.Defaults{
		HotLeadThreshold: cfg.Leads.DefaultThreshold,
		AntiBan: settings.AntiBan{
			MinDelay:      config.GetDuration(cfg.AntiBan.MinDelay),
			MaxDelay:      config.GetDuration(cfg.AntiBan.MaxDelay),
			TypingEnabled: cfg.AntiBan.TypingEnabled,
		},
	}, log)
	bus := events.NewBus(rdb.Client, cfg.Events.Channel, log)
	catalogStore := catalog.NewStore(pg.DB)

	if productIndex != nil {
		syncProductIndex(ctx, productIndex, catalogStore, zapLog)
	}

	// --- WhatsApp gateway session ---
	session := transport.NewGatewaySession(transport.GatewayConfig{
		BaseURL:        cfg.WhatsApp.GatewayURL,
		Token:          cfg.WhatsApp.GatewayToken,
		StatusInterval: config.GetDuration(cfg.WhatsApp.StatusInterval),
		RequestTimeout: config.GetDuration(cfg.WhatsApp.DispatchTimeout),
	}, log)
	session.OnStatus(func(st transport.ConnectionState) {
		bus.Publish(context.Background(), events.WhatsAppStatus, st)
	})
	if autoConnect, _ := settingsStore.Bool(ctx, settings.KeyWhatsAppAutoStart, true); autoConnect {
		if err := session.Open(ctx); err != nil {
			zapLog.Warn("whatsapp gateway not reachable yet", zap.Error(err))
		}
	}
	defer session.Close()

	// --- Notifier channels ---
	channels := []notify.Channel{notify.NewProcess(zeebe)}
	if cfg.Integrations.Telegram.Enabled {
		channels = append(channels, notify.NewTelegram(settingsStore, cfg.Integrations.Telegram.BaseURL))
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Warn("sns alerts disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewSMS(snsClient, cfg.Integrations.AWS.SNS.PhoneNumbers))
		}
	}
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Warn("ses alerts disabled", zap.Error(err))
		} else {
			channels = append(channels, notify.NewEmail(sesClient, cfg.Integrations.AWS.SES.FromEmail, cfg.Integrations.AWS.SES.To))
		}
	}
	if cfg.Integrations.Zoho.Enabled {
		channels = append(channels, notify.NewCRM(zoho.NewCRMClient(cfg.Integrations.Zoho.BaseURL, cfg.Integrations.Zoho.AuthToken)))
	}
	notifier := notify.NewMulti(config.GetDuration(cfg.Leads.NotifierTimeout), log, channels...)

	// --- Lead scorer ---
	var locker lock.Locker = lock.NewKeyed()
	if cfg.Leads.DistributedLock {
		locker = lock.Chain{locker, lock.NewRedis(rdb.Client, "lead-lock:", config.GetDuration(cfg.Leads.LockTTL))}
	}
	scorer := leads.NewScorer(leads.ScorerConfig{
		Window:           config.GetDuration(cfg.Leads.Window),
		DefaultThreshold: cfg.Leads.DefaultThreshold,
		NotifierTimeout:  config.GetDuration(cfg.Leads.NotifierTimeout),
	}, leads.Deps{
		Store:         leads.NewPostgresStore(pg.DB),
		Thresholds:    settingsStore,
		Notifier:      notifier,
		Events:        bus,
		Locker:        locker,
		Observability: obs,
	}, log)

	// --- Negotiation ---
	var searcher negotiation.ProductSearcher
	if productIndex != nil {
		searcher = productIndex
	}
	negotiator := negotiation.NewService(
		negotiation.NewAnalyzer(catalogStore, searcher, log),
		catalogStore,
		negotiation.NewStore(pg.DB),
		log,
	)

	// --- Assistant ---
	genaiCfg := assistant.DefaultConfig()
	if cfg.APIs.GenAI.Temperature > 0 {
		genaiCfg.Temperature = cfg.APIs.GenAI.Temperature
	}
	if cfg.APIs.GenAI.MaxTokens > 0 {
		genaiCfg.MaxTokens = cfg.APIs.GenAI.MaxTokens
	}
	ai := assistant.New(assistant.NewClient(assistant.ClientConfig{
		BaseURL: cfg.APIs.GenAI.BaseURL,
		APIKey:  cfg.APIs.GenAI.APIKey,
		Model:   cfg.APIs.GenAI.Model,
		Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	}), catalogStore, genaiCfg, log)

	// --- Outbound scheduler, campaigns, inbound pipeline ---
	conversations := inbound.NewConversationStore(pg.DB)
	observers := outbound.Observers{}
	schedCfg := outbound.DefaultConfig()
	schedCfg.ThinkingMin = config.GetDuration(cfg.AntiBan.ThinkingMin)
	schedCfg.ThinkingMax = config.GetDuration(cfg.AntiBan.ThinkingMax)
	schedCfg.DispatchTimeout = config.GetDuration(cfg.WhatsApp.DispatchTimeout)
	schedCfg.DefaultPacing = outbound.Pacing{
		MinDelay:      config.GetDuration(cfg.AntiBan.MinDelay),
		MaxDelay:      config.GetDuration(cfg.AntiBan.MaxDelay),
		TypingEnabled: cfg.AntiBan.TypingEnabled,
	}
	scheduler := outbound.NewScheduler(schedCfg, session, log,
		outbound.WithPacing(outbound.PacingFunc(func(ctx context.Context) (outbound.Pacing, error) {
			ab, err := settingsStore.AntiBan(ctx)
			if err != nil {
				return outbound.Pacing{}, err
			}
			return outbound.Pacing{MinDelay: ab.MinDelay, MaxDelay: ab.MaxDelay, TypingEnabled: ab.TypingEnabled}, nil
		})),
		outbound.WithObserver(&observers),
		outbound.WithObservability(obs),
	)
	defer scheduler.Close()

	campaigns := campaign.NewService(campaign.NewStore(pg.DB), scheduler, ai, bus, log)
	pipeline := inbound.NewPipeline(inbound.Deps{
		Store:      conversations,
		Scorer:     scorer,
		Negotiator: negotiator,
		Replier:    ai,
		Queue:      scheduler,
		Toggles:    settingsStore,
		Events:     bus,
		Profiles:   session,
	}, log)
	observers = append(observers, campaigns, pipeline)

	// --- Workers ---
	zc := zeebe.GetClient()
	workers := []worker.JobWorker{}
	register := func(taskType string, handler func(worker.JobClient, entities.Job)) {
		if !config.IsWorkerEnabled(cfg, taskType) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			return
		}
		workers = append(workers, camunda.StartWorker(zc, taskType, config.GetWorkerConfig(cfg, taskType), handler, zapLog))
	}

	register(shl.TaskType, shl.NewHandler(shl.LoadConfig(config.GetWorkerConfig(cfg, shl.TaskType)), scorer, log).Handle)
	register(ngp.TaskType, ngp.NewHandler(ngp.LoadConfig(config.GetWorkerConfig(cfg, ngp.TaskType)), negotiator, log).Handle)
	register(gsr.TaskType, gsr.NewHandler(gsr.LoadConfig(config.GetWorkerConfig(cfg, gsr.TaskType)), conversations, ai, log).Handle)
	register(eom.TaskType, eom.NewHandler(eom.LoadConfig(config.GetWorkerConfig(cfg, eom.TaskType)), scheduler, log).Handle)
	register(stc.TaskType, stc.NewHandler(stc.LoadConfig(config.GetWorkerConfig(cfg, stc.TaskType)), campaigns, log).Handle)
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Webhook, health & metrics server ---
	mux := http.NewServeMux()
	mux.Handle(cfg.WhatsApp.WebhookPath, transport.NewWebhookHandler(cfg.WhatsApp.WebhookSecret, pipeline, session, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if err := pg.Ping(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]interface{}{
			"status":    status,
			"whatsapp":  session.State(),
			"queue":     scheduler.Status(),
			"time":      time.Now().Format(time.RFC3339),
			"workers":   len(workers),
			"component": cfg.App.Name,
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, w := range workers {
		w.Close()
	}
	stop()
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error flushing telemetry", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// syncProductIndex makes sure the products index exists and mirrors the active catalog.
func syncProductIndex(ctx context.Context, index *catalog.ProductIndex, store *catalog.Store, log *zap.Logger) {
	if err := index.EnsureIndex(ctx); err != nil {
		log.Warn("product index not created", zap.Error(err))
		return
	}
	products, err := store.ActiveProducts(ctx)
	if err != nil {
		log.Warn("catalog not loaded for indexing", zap.Error(err))
		return
	}
	n, err := index.Reindex(ctx, products)
	if err != nil {
		log.Warn("product reindex incomplete", zap.Int("indexed", n), zap.Error(err))
		return
	}
	log.Info("product index synced", zap.Int("indexed", n))
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
