package submitter

import (
	"context"
	"sync"
	"time"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/common/metrics"
	"webgen-bot/internal/generator"
)

// Generator is the slice of the generation client a job needs.
type Generator interface {
	CreateChat(ctx context.Context, prompt string) (*generator.Chat, error)
	ChatStatus(ctx context.Context, chatID string) (*generator.Chat, error)
}

// ProgressFunc receives user-facing progress updates. It may be nil.
type ProgressFunc func(message string)

// JobRequest is one generation job. The prompt is synthesized once by the
// caller and reused verbatim across every retry attempt.
type JobRequest struct {
	UserID     string
	Prompt     string
	OnProgress ProgressFunc
}

// ResultKind tags the outcome of a job.
type ResultKind int

const (
	KindSuccess ResultKind = iota
	KindQueueSaturated
	KindCanceled
	KindFailed
)

// Result is the tagged outcome of Submit.
type Result struct {
	Kind     ResultKind
	ChatID   string
	DemoURL  string
	Message  string // user-facing text for non-success outcomes
	Err      error
	Attempts int
}

type Config struct {
	MaxConcurrent     int
	MaxRetries        int
	AttemptTimeout    time.Duration
	QueuePollInterval time.Duration
	QueueWaitLimit    time.Duration
	ProgressInterval  time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:     3,
		MaxRetries:        3,
		AttemptTimeout:    600 * time.Second,
		QueuePollInterval: 5 * time.Second,
		QueueWaitLimit:    300 * time.Second,
		ProgressInterval:  45 * time.Second,
	}
}

// Submitter runs generation jobs under admission control.
type Submitter struct {
	config    *Config
	limiter   *Limiter
	generator Generator
	logger    logger.Logger

	// Injected for tests; default to the real clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(config *Config, limiter *Limiter, gen Generator, log logger.Logger) *Submitter {
	return &Submitter{
		config:    config,
		limiter:   limiter,
		generator: gen,
		logger: log.With(map[string]interface{}{
			"component": "submitter",
		}),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit runs one generation job to completion: wait for a slot, then retry
// the generation call until it succeeds, exhausts its attempts, or hits a
// non-retryable error. The slot is released exactly once on every path.
func (s *Submitter) Submit(ctx context.Context, req JobRequest) Result {
	log := s.logger.With(map[string]interface{}{"userId": req.UserID})
	start := s.now()

	release, admitted := s.awaitAdmission(ctx, req, log)
	if !admitted {
		if ctx.Err() != nil {
			return Result{Kind: KindCanceled, Err: ctx.Err()}
		}
		waited := s.now().Sub(start)
		log.Warn("generation queue saturated", map[string]interface{}{
			"waitedSeconds": int(waited.Seconds()),
		})
		metrics.GenerationJobsFailed.WithLabelValues(string(errors.ErrCodeQueueSaturated)).Inc()
		return Result{
			Kind:    KindQueueSaturated,
			Message: queueSaturatedMessage,
			Err:     errors.NewQueueSaturatedError(req.UserID, waited),
		}
	}
	defer release()

	metrics.GenerationJobsSubmitted.Inc()
	result := s.runAttempts(ctx, req, log)

	elapsed := s.now().Sub(start)
	metrics.GenerationDuration.Observe(elapsed.Seconds())
	switch result.Kind {
	case KindSuccess:
		metrics.GenerationJobsCompleted.WithLabelValues("success").Inc()
		log.Info("generation completed", map[string]interface{}{
			"chatId":         result.ChatID,
			"attempts":       result.Attempts,
			"elapsedSeconds": int(elapsed.Seconds()),
		})
	default:
		metrics.GenerationJobsFailed.WithLabelValues(string(errors.ErrCodeGenerationFailed)).Inc()
		log.Error("generation failed", map[string]interface{}{
			"attempts": result.Attempts,
			"error":    errText(result.Err),
		})
	}
	return result
}

// awaitAdmission polls for a slot every QueuePollInterval, reporting progress
// on every third poll, up to QueueWaitLimit.
func (s *Submitter) awaitAdmission(ctx context.Context, req JobRequest, log logger.Logger) (func(), bool) {
	release, ok := s.limiter.TryAcquire(req.UserID)
	if ok {
		return release, true
	}

	metrics.GenerationQueueWaiters.Inc()
	defer metrics.GenerationQueueWaiters.Dec()

	start := s.now()
	polls := 0
	for {
		if s.now().Sub(start) >= s.config.QueueWaitLimit {
			return nil, false
		}
		if err := s.sleep(ctx, s.config.QueuePollInterval); err != nil {
			return nil, false
		}
		polls++

		release, ok = s.limiter.TryAcquire(req.UserID)
		if ok {
			return release, true
		}

		if polls%3 == 0 {
			elapsed := s.now().Sub(start)
			depth := s.limiter.InFlight()
			log.Info("waiting for generation slot", map[string]interface{}{
				"queueDepth":     depth,
				"elapsedSeconds": int(elapsed.Seconds()),
			})
			s.progress(req, queueMessage(depth, elapsed))
		}
	}
}

// runAttempts drives the retry loop over a single synthesized prompt.
func (s *Submitter) runAttempts(ctx context.Context, req JobRequest, log logger.Logger) Result {
	totalAttempts := 1 + s.config.MaxRetries
	var lastErr error

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		if attempt > 1 {
			s.progress(req, retryMessage(attempt, totalAttempts))
			if err := s.sleep(ctx, backoffDelay(attempt)); err != nil {
				return Result{Kind: KindCanceled, Err: err, Attempts: attempt - 1}
			}
		}

		chat, err := s.attempt(ctx, req, attempt)
		if err == nil {
			return Result{
				Kind:     KindSuccess,
				ChatID:   chat.ID,
				DemoURL:  chat.DemoURL,
				Attempts: attempt,
			}
		}
		lastErr = err

		log.Warn("generation attempt failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})

		if errors.IsNonRetryableAPIError(err) {
			log.Error("non-retryable generation error, aborting retries", map[string]interface{}{
				"attempt": attempt,
			})
			return Result{
				Kind:     KindFailed,
				Message:  failureMessage(err, attempt),
				Err:      err,
				Attempts: attempt,
			}
		}

		if ctx.Err() != nil {
			return Result{Kind: KindCanceled, Err: ctx.Err(), Attempts: attempt}
		}
	}

	return Result{
		Kind:     KindFailed,
		Message:  failureMessage(lastErr, totalAttempts),
		Err:      lastErr,
		Attempts: totalAttempts,
	}
}

// attempt runs one generation call under the per-attempt timeout with the
// escalating progress ticker.
func (s *Submitter) attempt(ctx context.Context, req JobRequest, attempt int) (*generator.Chat, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.config.AttemptTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := s.now()
		stage := 0
		for {
			if err := s.sleep(attemptCtx, s.config.ProgressInterval); err != nil {
				return
			}
			stage++
			s.progress(req, stageMessage(stage, s.now().Sub(start)))
		}
	}()

	chat, err := s.generator.CreateChat(attemptCtx, req.Prompt)
	if err == nil && chat.DemoURL == "" {
		chat, err = s.awaitDemo(attemptCtx, chat)
	}
	cancel()
	wg.Wait()
	return chat, err
}

// awaitDemo polls the chat until the platform publishes its preview URL. The
// attempt timeout bounds the loop.
func (s *Submitter) awaitDemo(ctx context.Context, chat *generator.Chat) (*generator.Chat, error) {
	for {
		if err := s.sleep(ctx, s.config.QueuePollInterval); err != nil {
			return nil, err
		}
		next, err := s.generator.ChatStatus(ctx, chat.ID)
		if err != nil {
			return nil, err
		}
		if next.DemoURL != "" {
			return next, nil
		}
	}
}

// backoffDelay returns the sleep before the given attempt (2-based), capped
// at 30 seconds: 1s, 2s, 4s, ...
func backoffDelay(attempt int) time.Duration {
	retry := attempt - 2
	d := time.Duration(1000*(1<<retry)) * time.Millisecond
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func (s *Submitter) progress(req JobRequest, msg string) {
	if req.OnProgress != nil {
		req.OnProgress(msg)
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
