// internal/register/flow_test.go
package register

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/session"
)

type fakeStore struct {
	contactPhone  string
	contactName   string
	contactLineID string
	userEmail     string
	userTokens    int
}

func (f *fakeStore) CreateContact(ctx context.Context, phone, name, lineID string) (string, error) {
	f.contactPhone = phone
	f.contactName = name
	f.contactLineID = lineID
	return "c-new", nil
}

func (f *fakeStore) CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error) {
	f.userEmail = email
	f.userTokens = tokens
	return "u-new", nil
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

type fakeNotifier struct {
	emails []string
	err    error
}

func (f *fakeNotifier) SendWelcome(ctx context.Context, email, name string) error {
	f.emails = append(f.emails, email)
	return f.err
}

func TestApply(t *testing.T) {
	st := State{}

	next, replies, done := Apply(st, "  Ana  ")
	assert.False(t, done)
	assert.Equal(t, stepEmail, next.Step)
	assert.Equal(t, "Ana", next.Name)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Ana")

	// Empty name re-prompts without advancing.
	same, replies, done := Apply(st, "   ")
	assert.False(t, done)
	assert.Equal(t, st, same)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "nombre")
}

func TestApply_EmailValidation(t *testing.T) {
	st := State{Step: stepEmail, Name: "Ana"}

	tests := []struct {
		email string
		valid bool
	}{
		{"ana@example.com", true},
		{"ana.maria+web@sub.dominio.co", true},
		{"ana", false},
		{"ana@", false},
		{"ana@dominio", false},
		{"@dominio.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			next, replies, done := Apply(st, tt.email)
			if tt.valid {
				assert.True(t, done)
				assert.Equal(t, tt.email, next.Email)
				assert.Equal(t, "Ana", next.Name)
			} else {
				assert.False(t, done)
				require.Len(t, replies, 1)
				assert.Contains(t, replies[0], "no parece válido")
			}
		})
	}
}

func TestBegin(t *testing.T) {
	sessions := newFakeSessions()
	f := NewFlow(&fakeStore{}, sessions, nil, logger.NewTestLogger(t))

	replies, err := f.Begin(context.Background(), "573001112233")

	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, replies[1], "cómo te llamas")
	require.Contains(t, sessions.records, "573001112233")
	assert.Equal(t, session.FlowRegister, sessions.records["573001112233"].Flow)
}

func TestResume_FullInterview(t *testing.T) {
	st := &fakeStore{}
	sessions := newFakeSessions()
	notifier := &fakeNotifier{}
	f := NewFlow(st, sessions, notifier, logger.NewTestLogger(t))

	rec := &session.Record{Flow: session.FlowRegister}
	require.NoError(t, rec.EncodeData(State{}))

	replies, err := f.Resume(context.Background(), "573001112233", "line-1", rec, "Ana")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "correo")

	rec = sessions.records["573001112233"]
	replies, err = f.Resume(context.Background(), "573001112233", "line-1", rec, "ana@example.com")
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "¡Tu cuenta quedó lista, Ana!")

	assert.Equal(t, "573001112233", st.contactPhone)
	assert.Equal(t, "Ana", st.contactName)
	assert.Equal(t, "line-1", st.contactLineID)
	assert.Equal(t, "ana@example.com", st.userEmail)
	assert.Equal(t, starterTokens, st.userTokens)
	assert.Equal(t, []string{"ana@example.com"}, notifier.emails)
	assert.Equal(t, 1, sessions.cleared)
}

func TestResume_WelcomeFailureStillRegisters(t *testing.T) {
	st := &fakeStore{}
	sessions := newFakeSessions()
	notifier := &fakeNotifier{err: errors.New("ses unavailable")}
	f := NewFlow(st, sessions, notifier, logger.NewTestLogger(t))

	rec := &session.Record{Flow: session.FlowRegister}
	require.NoError(t, rec.EncodeData(State{Step: stepEmail, Name: "Ana"}))

	replies, err := f.Resume(context.Background(), "573001112233", "line-1", rec, "ana@example.com")

	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "🎉")
	assert.Equal(t, "ana@example.com", st.userEmail)
}
