// internal/submitter/submitter_test.go
package submitter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/generator"
)

// fakeClock drives the submitter's injected now/sleep. Sleeps advance the
// fake time instantly; progress-ticker sleeps block until the attempt
// context is canceled so they never interfere with the recorded schedule.
type fakeClock struct {
	mu               sync.Mutex
	current          time.Time
	sleeps           []time.Duration
	progressInterval time.Duration
}

func newFakeClock(progressInterval time.Duration) *fakeClock {
	return &fakeClock{
		current:          time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		progressInterval: progressInterval,
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if d == c.progressInterval {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

type fakeGenerator struct {
	mu          sync.Mutex
	errs        []error // per-call results; nil entry or exhausted list means success
	prompts     []string
	calls       int
	created     *generator.Chat   // CreateChat success result; nil means a completed chat
	statuses    []*generator.Chat // ChatStatus results in order; exhausted list means completed
	statusCalls int
}

func (g *fakeGenerator) CreateChat(ctx context.Context, prompt string) (*generator.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	g.calls++
	if g.calls <= len(g.errs) && g.errs[g.calls-1] != nil {
		return nil, g.errs[g.calls-1]
	}
	if g.created != nil {
		return g.created, nil
	}
	return &generator.Chat{ID: "chat-1", Status: "completed", DemoURL: "https://demo.example/1"}, nil
}

func (g *fakeGenerator) ChatStatus(ctx context.Context, chatID string) (*generator.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusCalls <= len(g.statuses) {
		return g.statuses[g.statusCalls-1], nil
	}
	return &generator.Chat{ID: chatID, Status: "completed", DemoURL: "https://demo.example/1"}, nil
}

func testConfig() *Config {
	return &Config{
		MaxConcurrent:     3,
		MaxRetries:        3,
		AttemptTimeout:    600 * time.Second,
		QueuePollInterval: 5 * time.Second,
		QueueWaitLimit:    300 * time.Second,
		ProgressInterval:  45 * time.Second,
	}
}

func newTestSubmitter(t *testing.T, cfg *Config, l *Limiter, gen Generator) (*Submitter, *fakeClock) {
	clock := newFakeClock(cfg.ProgressInterval)
	s := New(cfg, l, gen, logger.NewTestLogger(t))
	s.now = clock.Now
	s.sleep = clock.Sleep
	return s, clock
}

func TestSubmit_SuccessFirstAttempt(t *testing.T) {
	gen := &fakeGenerator{}
	limiter := NewLimiter(3)
	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "landing page"})

	assert.Equal(t, KindSuccess, result.Kind)
	assert.Equal(t, "chat-1", result.ChatID)
	assert.Equal(t, "https://demo.example/1", result.DemoURL)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, clock.sleeps, "no backoff on first-attempt success")
	assert.Equal(t, 0, limiter.InFlight(), "slot released after success")
}

func TestSubmit_PollsUntilDemoReady(t *testing.T) {
	gen := &fakeGenerator{
		created: &generator.Chat{ID: "chat-1", Status: "processing"},
		statuses: []*generator.Chat{
			{ID: "chat-1", Status: "processing"},
			{ID: "chat-1", Status: "processing"},
			{ID: "chat-1", Status: "completed", DemoURL: "https://demo.example/1"},
		},
	}
	limiter := NewLimiter(3)
	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "landing page"})

	assert.Equal(t, KindSuccess, result.Kind)
	assert.Equal(t, "https://demo.example/1", result.DemoURL)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 3, gen.statusCalls)
	// One poll-interval sleep per status check.
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, clock.sleeps)
	assert.Equal(t, 0, limiter.InFlight())
}

func TestSubmit_RetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		errors.New("socket hang up"),
		errors.New("econnreset"),
	}}
	limiter := NewLimiter(3)
	var progress []string
	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{
		UserID:     "u1",
		Prompt:     "landing page",
		OnProgress: func(msg string) { progress = append(progress, msg) },
	})

	assert.Equal(t, KindSuccess, result.Kind)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clock.sleeps)
	require.Len(t, progress, 2)
	assert.Contains(t, progress[0], "intento 2 de 4")
	assert.Contains(t, progress[1], "intento 3 de 4")
	assert.Equal(t, 0, limiter.InFlight())
}

func TestSubmit_ExhaustsRetries(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		errors.New("socket hang up"),
		errors.New("socket hang up"),
		errors.New("socket hang up"),
		errors.New("socket hang up"),
	}}
	limiter := NewLimiter(3)
	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "landing page"})

	assert.Equal(t, KindFailed, result.Kind)
	assert.Equal(t, 4, result.Attempts)
	assert.Equal(t, 4, gen.calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
	assert.Contains(t, result.Message, "problema de conexión")
	assert.Equal(t, 0, limiter.InFlight())
}

func TestSubmit_NonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", errors.New("GENERATION_UNAUTHORIZED: Unauthorized")},
		{"forbidden", errors.New("GENERATION_UNAUTHORIZED: Forbidden")},
		{"bad request", errors.New("GENERATION_FAILED: Bad Request: missing message")},
		{"invalid key", errors.New("Invalid API key provided")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{errs: []error{tt.err, tt.err, tt.err, tt.err}}
			limiter := NewLimiter(3)
			s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

			result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "p"})

			assert.Equal(t, KindFailed, result.Kind)
			assert.Equal(t, 1, result.Attempts, "no retries on non-retryable errors")
			assert.Equal(t, 1, gen.calls)
			assert.Empty(t, clock.sleeps)
			assert.Equal(t, 0, limiter.InFlight())
		})
	}
}

func TestSubmit_PromptStableAcrossRetries(t *testing.T) {
	gen := &fakeGenerator{errs: []error{
		errors.New("timeout"),
		errors.New("timeout"),
	}}
	limiter := NewLimiter(3)
	s, _ := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "the one prompt"})

	assert.Equal(t, KindSuccess, result.Kind)
	require.Len(t, gen.prompts, 3)
	for _, p := range gen.prompts {
		assert.Equal(t, "the one prompt", p)
	}
}

func TestSubmit_QueueSaturated(t *testing.T) {
	gen := &fakeGenerator{}
	limiter := NewLimiter(1)
	blocker, ok := limiter.TryAcquire("other-user")
	require.True(t, ok)
	defer blocker()

	var progress []string
	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	result := s.Submit(context.Background(), JobRequest{
		UserID:     "u1",
		Prompt:     "p",
		OnProgress: func(msg string) { progress = append(progress, msg) },
	})

	assert.Equal(t, KindQueueSaturated, result.Kind)
	assert.Equal(t, queueSaturatedMessage, result.Message)
	assert.Error(t, result.Err)
	assert.Equal(t, 0, gen.calls, "saturated jobs never reach the generator")

	// 300s ceiling at 5s polls is 60 polls, progress on every third.
	assert.Len(t, clock.sleeps, 60)
	require.NotEmpty(t, progress)
	assert.Len(t, progress, 20)
	assert.Contains(t, progress[0], "solicitudes en proceso")
}

func TestSubmit_QueueFreesUp(t *testing.T) {
	gen := &fakeGenerator{}
	limiter := NewLimiter(1)
	blocker, ok := limiter.TryAcquire("other-user")
	require.True(t, ok)

	s, clock := newTestSubmitter(t, testConfig(), limiter, gen)

	// Free the slot after the second poll.
	released := false
	s.sleep = func(ctx context.Context, d time.Duration) error {
		err := clock.Sleep(ctx, d)
		if d == 5*time.Second && !released && len(clock.sleeps) == 2 {
			released = true
			blocker()
		}
		return err
	}

	result := s.Submit(context.Background(), JobRequest{UserID: "u1", Prompt: "p"})

	assert.Equal(t, KindSuccess, result.Kind)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 0, limiter.InFlight())
}

func TestSubmit_CanceledContext(t *testing.T) {
	gen := &fakeGenerator{}
	limiter := NewLimiter(1)
	blocker, ok := limiter.TryAcquire("other-user")
	require.True(t, ok)
	defer blocker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := newTestSubmitter(t, testConfig(), limiter, gen)
	result := s.Submit(ctx, JobRequest{UserID: "u1", Prompt: "p"})

	assert.Equal(t, KindCanceled, result.Kind)
	assert.Equal(t, 0, gen.calls)
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 1*time.Second, backoffDelay(2), "first retry waits 1s")
	assert.Equal(t, 2*time.Second, backoffDelay(3))
	assert.Equal(t, 4*time.Second, backoffDelay(4))
	assert.Equal(t, 8*time.Second, backoffDelay(5))
	assert.Equal(t, 16*time.Second, backoffDelay(6))
	assert.Equal(t, 30*time.Second, backoffDelay(7), "capped at 30s")
	assert.Equal(t, 30*time.Second, backoffDelay(10))
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"timeout", errors.New("request timeout"), "10-15 minutos"},
		{"aborted", errors.New("job aborted"), "10-15 minutos"},
		{"deadline", errors.New("context deadline exceeded"), "10-15 minutos"},
		{"hang up", errors.New("socket hang up"), "problema de conexión"},
		{"reset", errors.New("read: ECONNRESET"), "problema de conexión"},
		{"rate limit", errors.New("rate limit exceeded"), "5-10 minutos"},
		{"too many requests", errors.New("Too Many Requests"), "5-10 minutos"},
		{"status code", errors.New("unexpected status 429"), "5-10 minutos"},
		{"generic", errors.New("something odd"), "intento 4: something odd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, failureMessage(tt.err, 4), tt.contains)
		})
	}
}

func TestStageMessage(t *testing.T) {
	assert.Contains(t, stageMessage(1, 45*time.Second), "Analizando")
	assert.Contains(t, stageMessage(2, 90*time.Second), "Generando")
	assert.Contains(t, stageMessage(3, 135*time.Second), "estilos")
	assert.Contains(t, stageMessage(4, 180*time.Second), "180 segundos")
}
