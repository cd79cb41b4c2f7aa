// cmd/bot/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"webgen-bot/internal/ai"
	"webgen-bot/internal/common/config"
	"webgen-bot/internal/common/database"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/common/observability"
	"webgen-bot/internal/faq"
	"webgen-bot/internal/generator"
	"webgen-bot/internal/intent"
	"webgen-bot/internal/menu"
	"webgen-bot/internal/notify"
	"webgen-bot/internal/payment"
	"webgen-bot/internal/register"
	"webgen-bot/internal/router"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
	"webgen-bot/internal/submitter"
	"webgen-bot/internal/subscription"
	"webgen-bot/internal/transport"
	"webgen-bot/internal/webpage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// observedSubmitter records job outcome and duration on the otel instruments
// around every generation job.
type observedSubmitter struct {
	inner *submitter.Submitter
	obs   *observability.Observability
}

func (o *observedSubmitter) Submit(ctx context.Context, req submitter.JobRequest) submitter.Result {
	start := time.Now()
	res := o.inner.Submit(ctx, req)

	status := "failed"
	switch res.Kind {
	case submitter.KindSuccess:
		status = "success"
	case submitter.KindQueueSaturated:
		status = "queue_saturated"
	case submitter.KindCanceled:
		status = "canceled"
	}
	o.obs.RecordJobProcessed(ctx, status)
	o.obs.RecordJobDuration(ctx, time.Since(start), status)
	return res
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting bot...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("webgen-bot")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Persistence ---
	guard := store.NewGuard(cfg.App.IsProduction(), log)
	st := store.New(pg, guard, log)

	sessions := session.NewManager(
		redis,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute,
		cfg.Session.KeyPrefix,
		log,
	)

	// --- External API clients ---
	aiClient := ai.NewClient(&ai.Config{
		BaseURL:     cfg.APIs.AI.BaseURL,
		APIKey:      cfg.APIs.AI.APIKey,
		Model:       cfg.APIs.AI.Model,
		Timeout:     time.Duration(cfg.APIs.AI.Timeout) * time.Millisecond,
		MaxRetries:  cfg.APIs.AI.MaxRetries,
		Temperature: cfg.APIs.AI.Temperature,
	}, log)

	genClient := generator.NewClient(&generator.Config{
		BaseURL: cfg.APIs.Generator.BaseURL,
		APIKey:  cfg.APIs.Generator.APIKey,
		Model:   cfg.APIs.Generator.Model,
		Timeout: time.Duration(cfg.APIs.Generator.Timeout) * time.Millisecond,
	}, log)

	payClient := payment.NewClient(&payment.Config{
		BaseURL: cfg.APIs.Payments.BaseURL,
		APIKey:  cfg.APIs.Payments.APIKey,
		Timeout: time.Duration(cfg.APIs.Payments.Timeout) * time.Millisecond,
	}, log)

	zapLog.Info("All external service clients initialized")

	// --- Generation pipeline ---
	limiter := submitter.NewLimiter(cfg.Generation.MaxConcurrentRequests)
	sub := submitter.New(&submitter.Config{
		MaxConcurrent:     cfg.Generation.MaxConcurrentRequests,
		MaxRetries:        cfg.Generation.MaxRetries,
		AttemptTimeout:    time.Duration(cfg.Generation.AttemptTimeout) * time.Second,
		QueuePollInterval: time.Duration(cfg.Generation.QueuePollInterval) * time.Second,
		QueueWaitLimit:    time.Duration(cfg.Generation.QueueWaitLimit) * time.Second,
		ProgressInterval:  time.Duration(cfg.Generation.ProgressInterval) * time.Second,
	}, limiter, genClient, log)

	// --- Notifications (optional) ---
	var notifier register.Notifier
	var pageNotifier webpage.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		n, err := notify.New(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Warn("notifier init failed, continuing without notifications", zap.Error(err))
		} else {
			notifier = n
			pageNotifier = n
		}
	}

	// --- Conversation flows ---
	classifier := intent.NewClassifier(aiClient, log)
	registerFlow := register.NewFlow(st, sessions, notifier, log)
	webFlow := webpage.NewFlow(st, sessions, aiClient, &observedSubmitter{inner: sub, obs: obs}, pageNotifier, log)
	subFlow := subscription.NewFlow(st, payClient, sessions, log)
	faqFlow := faq.NewFlow(aiClient, st, log)

	responder := transport.NewHTTPResponder(cfg.Server.OutboundURL, log)

	rtr := router.New(router.Deps{
		BotNumber:    cfg.Bot.Number,
		Classifier:   classifier,
		Media:        aiClient,
		Store:        st,
		Sessions:     sessions,
		Responder:    responder,
		Register:     registerFlow,
		WebPage:      webFlow,
		Subscription: subFlow,
		FAQ:          faqFlow,
		Menu:         menu.NewFlow(),
		Logger:       log,
	})

	// --- HTTP Server ---
	mux := http.NewServeMux()
	mux.Handle("/webhook", transport.NewWebhookHandler(rtr, log))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Bot stopped gracefully")
}
