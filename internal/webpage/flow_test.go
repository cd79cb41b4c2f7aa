// internal/webpage/flow_test.go
package webpage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
	"webgen-bot/internal/submitter"
)

type fakeStore struct {
	user         *store.User
	userErr      error
	quota        *store.Quota
	createdPages []*store.Page
	createdUsers int
}

func (f *fakeStore) UserByContact(ctx context.Context, contactID string) (*store.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error) {
	f.createdUsers++
	f.userErr = nil
	f.user = &store.User{ID: "u-new", ContactID: contactID, Name: name, Tokens: tokens}
	return "u-new", nil
}

func (f *fakeStore) CanCreatePage(ctx context.Context, user *store.User) (*store.Quota, error) {
	return f.quota, nil
}

func (f *fakeStore) CreatePage(ctx context.Context, p *store.Page) (string, error) {
	f.createdPages = append(f.createdPages, p)
	return "page-1", nil
}

type fakeSessions struct {
	records map[string]*session.Record
	cleared int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{records: make(map[string]*session.Record)}
}

func (f *fakeSessions) Put(ctx context.Context, phone string, rec *session.Record) error {
	f.records[phone] = rec
	return nil
}

func (f *fakeSessions) Clear(ctx context.Context, phone string) error {
	f.cleared++
	delete(f.records, phone)
	return nil
}

type fakeAI struct {
	completion string
	rawJSON    json.RawMessage
}

func (f *fakeAI) Completion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	return f.completion, nil
}

func (f *fakeAI) CompletionJSON(ctx context.Context, system, user string, temperature float64) (json.RawMessage, error) {
	if f.rawJSON == nil {
		return json.RawMessage(`{}`), nil
	}
	return f.rawJSON, nil
}

type fakeSubmitter struct {
	result  submitter.Result
	prompts []string
}

func (f *fakeSubmitter) Submit(ctx context.Context, req submitter.JobRequest) submitter.Result {
	f.prompts = append(f.prompts, req.Prompt)
	return f.result
}

func testContact() *store.Contact {
	return &store.Contact{ID: "c1", Phone: "573001112233", Name: "Ana"}
}

func allowedQuota() *store.Quota {
	return &store.Quota{Allowed: true, Limit: 5, Used: 1, RemainingPages: 4, PlanName: "Basic"}
}

func TestApply(t *testing.T) {
	st := State{Answers: map[string]string{}}

	st = apply(st, " tienda ")
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, "tienda", st.Answers["websiteType"])

	st = apply(st, "venta de artesanías")
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, "venta de artesanías", st.Answers["projectDescription"])
	assert.False(t, st.done())
}

func TestApply_CompletesAfterAllQuestions(t *testing.T) {
	st := State{Answers: map[string]string{}}
	for range questions {
		assert.False(t, st.done())
		st = apply(st, "respuesta")
	}
	assert.True(t, st.done())
	assert.Len(t, st.Answers, len(questions))
}

func TestBegin_OpensInterview(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	f := NewFlow(st, sessions, &fakeAI{}, &fakeSubmitter{}, nil, logger.NewTestLogger(t))

	replies, err := f.Begin(context.Background(), "573001112233", testContact())

	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "8 preguntas")
	assert.Contains(t, replies[1], "tipo de página")
	require.Contains(t, sessions.records, "573001112233")
	assert.Equal(t, session.FlowWebPage, sessions.records["573001112233"].Flow)
}

func TestBegin_QuotaExhausted(t *testing.T) {
	st := &fakeStore{
		user:  &store.User{ID: "u1"},
		quota: &store.Quota{Allowed: false, Limit: 1, Used: 1, PlanName: "Free"},
	}
	sessions := newFakeSessions()
	f := NewFlow(st, sessions, &fakeAI{}, &fakeSubmitter{}, nil, logger.NewTestLogger(t))

	replies, err := f.Begin(context.Background(), "573001112233", testContact())

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "1 de 1")
	assert.Contains(t, replies[0], "*suscribirse*")
	assert.Empty(t, sessions.records, "no interview opens on exhausted quota")
}

func TestBegin_AutoCreatesUser(t *testing.T) {
	st := &fakeStore{
		userErr: notFoundErr(),
		quota:   allowedQuota(),
	}
	sessions := newFakeSessions()
	f := NewFlow(st, sessions, &fakeAI{}, &fakeSubmitter{}, nil, logger.NewTestLogger(t))

	_, err := f.Begin(context.Background(), "573001112233", testContact())

	require.NoError(t, err)
	assert.Equal(t, 1, st.createdUsers)
	assert.Equal(t, 1, st.user.Tokens, "auto-created accounts get one free page")
}

func TestResume_NextQuestion(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	f := NewFlow(st, sessions, &fakeAI{}, &fakeSubmitter{}, nil, logger.NewTestLogger(t))

	rec := &session.Record{Flow: session.FlowWebPage}
	require.NoError(t, rec.EncodeData(State{Answers: map[string]string{}}))

	replies, err := f.Resume(context.Background(), "573001112233", rec, testContact(), "tienda", func(string) {})

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "2️⃣")

	var state State
	require.NoError(t, sessions.records["573001112233"].DecodeData(&state))
	assert.Equal(t, 1, state.Step)
	assert.Equal(t, "tienda", state.Answers["websiteType"])
}

func completedRec(t *testing.T) *session.Record {
	answers := map[string]string{}
	for _, q := range questions[:len(questions)-1] {
		answers[q.key] = "respuesta " + q.key
	}
	rec := &session.Record{Flow: session.FlowWebPage}
	require.NoError(t, rec.EncodeData(State{Step: len(questions) - 1, Answers: answers}))
	return rec
}

func TestResume_LastAnswerRunsGeneration(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	sub := &fakeSubmitter{result: submitter.Result{
		Kind:    submitter.KindSuccess,
		ChatID:  "chat-1",
		DemoURL: "https://demo.example/1",
	}}
	ai := &fakeAI{completion: "Create a polished single-page site"}
	f := NewFlow(st, sessions, ai, sub, nil, logger.NewTestLogger(t))

	var sent []string
	replies, err := f.Resume(context.Background(), "573001112233", completedRec(t), testContact(), "comprar", func(msg string) {
		sent = append(sent, msg)
	})

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "🎉")
	assert.Contains(t, replies[0], "https://demo.example/1")

	assert.Equal(t, 1, sessions.cleared, "interview session cleared before generation")
	require.Len(t, sub.prompts, 1)
	assert.Equal(t, "Create a polished single-page site", sub.prompts[0])

	require.Len(t, st.createdPages, 1)
	assert.Equal(t, "u1", st.createdPages[0].UserID)
	assert.Equal(t, "https://demo.example/1", st.createdPages[0].PublicLink)
	assert.Equal(t, "Active", st.createdPages[0].Status)

	require.NotEmpty(t, sent)
	assert.Contains(t, sent[0], "Esto es lo que entendí")
}

func TestResume_GenerationFailureReturnsMessage(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	sub := &fakeSubmitter{result: submitter.Result{
		Kind:    submitter.KindFailed,
		Message: "⚠️ La generación falló en el intento 4: boom",
	}}
	f := NewFlow(st, sessions, &fakeAI{completion: "p"}, sub, nil, logger.NewTestLogger(t))

	replies, err := f.Resume(context.Background(), "573001112233", completedRec(t), testContact(), "comprar", func(string) {})

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, sub.result.Message, replies[0])
	assert.Empty(t, st.createdPages, "failed jobs persist nothing")
}

type fakeNotifier struct {
	emails []string // "email|name|link"
	sms    []string // "phone|message"
	err    error
}

func (f *fakeNotifier) SendPageReady(ctx context.Context, email, name, link string) error {
	f.emails = append(f.emails, email+"|"+name+"|"+link)
	return f.err
}

func (f *fakeNotifier) SendSMS(ctx context.Context, phone, message string) error {
	f.sms = append(f.sms, phone+"|"+message)
	return f.err
}

func TestResume_SuccessNotifiesPageReady(t *testing.T) {
	st := &fakeStore{
		user:  &store.User{ID: "u1", Name: "Ana", Email: "ana@example.com"},
		quota: allowedQuota(),
	}
	sessions := newFakeSessions()
	sub := &fakeSubmitter{result: submitter.Result{
		Kind:    submitter.KindSuccess,
		ChatID:  "chat-1",
		DemoURL: "https://demo.example/1",
	}}
	notifier := &fakeNotifier{}
	f := NewFlow(st, sessions, &fakeAI{completion: "p"}, sub, notifier, logger.NewTestLogger(t))

	replies, err := f.Resume(context.Background(), "573001112233", completedRec(t), testContact(), "comprar", func(string) {})

	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Len(t, notifier.emails, 1)
	assert.Equal(t, "ana@example.com|Ana|https://demo.example/1", notifier.emails[0])
	require.Len(t, notifier.sms, 1)
	assert.Contains(t, notifier.sms[0], "573001112233|")
	assert.Contains(t, notifier.sms[0], "https://demo.example/1")
}

func TestResume_NotifierFailureDoesNotBreakReply(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	sub := &fakeSubmitter{result: submitter.Result{
		Kind:    submitter.KindSuccess,
		DemoURL: "https://demo.example/1",
	}}
	notifier := &fakeNotifier{err: errors.NewNotificationSendFailedError("page-ready", context.DeadlineExceeded)}
	f := NewFlow(st, sessions, &fakeAI{completion: "p"}, sub, notifier, logger.NewTestLogger(t))

	replies, err := f.Resume(context.Background(), "573001112233", completedRec(t), testContact(), "comprar", func(string) {})

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "https://demo.example/1")
}

func TestResume_FailureSendsNoNotices(t *testing.T) {
	st := &fakeStore{user: &store.User{ID: "u1"}, quota: allowedQuota()}
	sessions := newFakeSessions()
	sub := &fakeSubmitter{result: submitter.Result{
		Kind:    submitter.KindFailed,
		Message: "⚠️ La generación falló en el intento 4: boom",
	}}
	notifier := &fakeNotifier{}
	f := NewFlow(st, sessions, &fakeAI{completion: "p"}, sub, notifier, logger.NewTestLogger(t))

	_, err := f.Resume(context.Background(), "573001112233", completedRec(t), testContact(), "comprar", func(string) {})

	require.NoError(t, err)
	assert.Empty(t, notifier.emails)
	assert.Empty(t, notifier.sms)
}

func TestThrottleProgress(t *testing.T) {
	var sent []string
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	fn := throttleProgress(func(msg string) { sent = append(sent, msg) }, 10*time.Second, now)

	fn("a")
	current = current.Add(3 * time.Second)
	fn("b") // dropped, inside the window
	current = current.Add(8 * time.Second)
	fn("c")
	fn("🎉 listo") // celebrations always pass
	fn("⚠️ ojo")   // warnings always pass

	assert.Equal(t, []string{"a", "c", "🎉 listo", "⚠️ ojo"}, sent)
}

func notFoundErr() error {
	return errors.NewRecordNotFoundError("user", "c1")
}
