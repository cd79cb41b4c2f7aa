// internal/router/router_test.go
package router

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/intent"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
	"webgen-bot/internal/transport"
)

type fakeClassifier struct {
	result intent.Intent
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) intent.Intent {
	f.calls++
	return f.result
}

type fakeMedia struct {
	transcript  string
	description string
	err         error
}

func (f *fakeMedia) Transcribe(ctx context.Context, audioURL string) (string, error) {
	return f.transcript, f.err
}

func (f *fakeMedia) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	return f.description, f.err
}

type fakeStore struct {
	lineID          string
	lineErr         error
	contact         *store.Contact
	contactErr      error
	exists          bool
	existsCalls     int
	createdContacts int
}

func (f *fakeStore) LineIDByNumber(ctx context.Context, botNumber string) (string, error) {
	if f.lineErr != nil {
		return "", f.lineErr
	}
	return f.lineID, nil
}

func (f *fakeStore) ContactByPhone(ctx context.Context, phone, lineID string) (*store.Contact, error) {
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	return f.contact, nil
}

func (f *fakeStore) ContactExistsInLine(ctx context.Context, phone, lineID string) (bool, error) {
	f.existsCalls++
	return f.exists, nil
}

func (f *fakeStore) CreateContact(ctx context.Context, phone, name, lineID string) (string, error) {
	f.createdContacts++
	f.contactErr = nil
	f.contact = &store.Contact{ID: "c-new", Phone: phone, Name: name}
	return "c-new", nil
}

type fakeSessions struct {
	rec     *session.Record
	cleared int
}

func (f *fakeSessions) Get(ctx context.Context, phone string) (*session.Record, error) {
	return f.rec, nil
}

func (f *fakeSessions) Clear(ctx context.Context, phone string) error {
	f.cleared++
	f.rec = nil
	return nil
}

type fakeResponder struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeResponder) Send(ctx context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeRegister struct {
	began   int
	resumed int
}

func (f *fakeRegister) Begin(ctx context.Context, phone string) ([]string, error) {
	f.began++
	return []string{"registro: nombre?"}, nil
}

func (f *fakeRegister) Resume(ctx context.Context, phone, lineID string, rec *session.Record, text string) ([]string, error) {
	f.resumed++
	return []string{"registro: siguiente"}, nil
}

type fakeWebPage struct {
	began   int
	resumed int
}

func (f *fakeWebPage) Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error) {
	f.began++
	return []string{"webpage: pregunta 1"}, nil
}

func (f *fakeWebPage) Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string, send func(string)) ([]string, error) {
	f.resumed++
	send("progreso")
	return []string{"webpage: siguiente"}, nil
}

type fakeSubscription struct {
	began   int
	resumed int
}

func (f *fakeSubscription) Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error) {
	f.began++
	return []string{"planes"}, nil
}

func (f *fakeSubscription) Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string) ([]string, error) {
	f.resumed++
	return []string{"pago"}, nil
}

type fakeFAQ struct {
	answered int
}

func (f *fakeFAQ) Answer(ctx context.Context, contactID, text string) []string {
	f.answered++
	return []string{"respuesta faq"}
}

type fakeMenu struct{}

func (fakeMenu) Render() string { return "menu de opciones" }

type deps struct {
	classifier   *fakeClassifier
	media        *fakeMedia
	store        *fakeStore
	sessions     *fakeSessions
	responder    *fakeResponder
	register     *fakeRegister
	webpage      *fakeWebPage
	subscription *fakeSubscription
	faq          *fakeFAQ
}

func newTestRouter(t *testing.T, d *deps) *Router {
	return New(Deps{
		BotNumber:    "573138381310",
		Classifier:   d.classifier,
		Media:        d.media,
		Store:        d.store,
		Sessions:     d.sessions,
		Responder:    d.responder,
		Register:     d.register,
		WebPage:      d.webpage,
		Subscription: d.subscription,
		FAQ:          d.faq,
		Menu:         fakeMenu{},
		Logger:       logger.NewTestLogger(t),
	})
}

func defaultDeps() *deps {
	return &deps{
		classifier:   &fakeClassifier{result: intent.NotDetected},
		media:        &fakeMedia{},
		store:        &fakeStore{lineID: "line-1", contact: &store.Contact{ID: "c1", Phone: "573001112233", Name: "Ana"}, exists: true},
		sessions:     &fakeSessions{},
		responder:    &fakeResponder{},
		register:     &fakeRegister{},
		webpage:      &fakeWebPage{},
		subscription: &fakeSubscription{},
		faq:          &fakeFAQ{},
	}
}

func textMsg(body string) transport.Message {
	return transport.Message{From: "+57 300 111 2233", Type: transport.TypeText, Body: body}
}

func TestDispatch_Greeting(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.Greeting
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("Hola"))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, greetingReply, d.responder.sent[0])
}

func TestDispatch_Menu(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.MenuOptions
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("menu"))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, "menu de opciones", d.responder.sent[0])
}

func TestDispatch_CancelSubscription(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.CancelSubscription
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("quiero cancelar"))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, cancelReply, d.responder.sent[0])
}

func TestDispatch_CancelSubscription_Unregistered(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.CancelSubscription
	d.store.exists = false
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("cancelar"))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, noAccountReply, d.responder.sent[0])
}

func TestDispatch_RequestQuote(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.RequestQuote
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("necesito una cotización"))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, quoteReply, d.responder.sent[0])

	d = defaultDeps()
	d.classifier.result = intent.RequestQuote
	d.store.exists = false
	r = newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("necesito una cotización"))

	assert.Equal(t, 1, d.register.began, "unregistered senders register first")
}

func TestDispatch_RegisterProject(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.RegisterProject
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("quiero registrar mi proyecto"))

	assert.Equal(t, 1, d.register.began)
}

func TestDispatch_NotDetected(t *testing.T) {
	d := defaultDeps()
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("asdfgh"))

	assert.Equal(t, 1, d.classifier.calls)
	assert.Equal(t, 0, d.faq.answered)
	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, notUnderstoodReply, d.responder.sent[0])
}

func TestDispatch_CreateWebPage_Registered(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.CreateWebPage
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("quiero una página"))

	assert.Equal(t, 1, d.webpage.began)
	assert.Equal(t, 0, d.register.began)
	assert.Equal(t, 1, d.store.existsCalls, "registration checked on this turn")
	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, "webpage: pregunta 1", d.responder.sent[0])
}

func TestDispatch_CreateWebPage_Unregistered(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.CreateWebPage
	d.store.exists = false
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("quiero una página"))

	assert.Equal(t, 0, d.webpage.began)
	assert.Equal(t, 1, d.register.began, "unregistered senders go to onboarding")
}

func TestDispatch_SubscriptionIntents(t *testing.T) {
	for _, in := range []intent.Intent{intent.StartSubscription, intent.ChangeSubscription} {
		d := defaultDeps()
		d.classifier.result = in
		r := newTestRouter(t, d)

		r.Dispatch(context.Background(), textMsg("planes"))

		assert.Equal(t, 1, d.subscription.began, "intent=%s", in)
	}
}

func TestDispatch_FAQFallback(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.FAQ
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("¿cuánto cuesta?"))

	assert.Equal(t, 1, d.faq.answered)
	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, "respuesta faq", d.responder.sent[0])
}

func TestDispatch_FAQCreatesPlaceholderContact(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.FAQ
	d.store.contactErr = errors.NewRecordNotFoundError("contact", "573001112233")
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("hola, una duda"))

	assert.Equal(t, 1, d.store.createdContacts)
	assert.Equal(t, 1, d.faq.answered)
}

func TestDispatch_ActiveSessionSkipsClassification(t *testing.T) {
	d := defaultDeps()
	d.sessions.rec = &session.Record{Flow: session.FlowWebPage}
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("tienda"))

	assert.Equal(t, 0, d.classifier.calls, "active flows own the message")
	assert.Equal(t, 1, d.webpage.resumed)
	// The progress send plus the flow reply.
	assert.Equal(t, []string{"progreso", "webpage: siguiente"}, d.responder.sent)
}

func TestDispatch_ResumeByFlow(t *testing.T) {
	tests := []struct {
		flow  string
		check func(*deps) int
	}{
		{session.FlowRegister, func(d *deps) int { return d.register.resumed }},
		{session.FlowWebPage, func(d *deps) int { return d.webpage.resumed }},
		{session.FlowSubscription, func(d *deps) int { return d.subscription.resumed }},
	}

	for _, tt := range tests {
		t.Run(tt.flow, func(t *testing.T) {
			d := defaultDeps()
			d.sessions.rec = &session.Record{Flow: tt.flow}
			r := newTestRouter(t, d)

			r.Dispatch(context.Background(), textMsg("respuesta"))

			assert.Equal(t, 1, tt.check(d))
		})
	}
}

func TestDispatch_UnknownFlowCleared(t *testing.T) {
	d := defaultDeps()
	d.sessions.rec = &session.Record{Flow: "legacy"}
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("hola"))

	assert.Equal(t, 1, d.sessions.cleared)
	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, notUnderstoodReply, d.responder.sent[0])
}

func TestDispatch_AudioTranscribed(t *testing.T) {
	d := defaultDeps()
	d.classifier.result = intent.FAQ
	d.media.transcript = "quiero información"
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), transport.Message{
		From:     "573001112233",
		Type:     transport.TypeAudio,
		MediaURL: "https://media.example/audio.ogg",
	})

	assert.Equal(t, 1, d.faq.answered)
}

func TestDispatch_AudioWithoutMediaNotUnderstood(t *testing.T) {
	d := defaultDeps()
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), transport.Message{
		From: "573001112233",
		Type: transport.TypeAudio,
	})

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, notUnderstoodReply, d.responder.sent[0])
	assert.Equal(t, 0, d.classifier.calls)
}

func TestDispatch_EmptyTextNotUnderstood(t *testing.T) {
	d := defaultDeps()
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg(""))

	require.Len(t, d.responder.sent, 1)
	assert.Equal(t, notUnderstoodReply, d.responder.sent[0])
}

func TestDispatch_ErrorsProduceUserMessage(t *testing.T) {
	d := defaultDeps()
	d.store.lineErr = errors.NewQueryExecutionFailedError("LineIDByNumber", assert.AnError)
	r := newTestRouter(t, d)

	r.Dispatch(context.Background(), textMsg("hola"))

	require.Len(t, d.responder.sent, 1, "failures still reply")
	assert.NotEmpty(t, d.responder.sent[0])
}
