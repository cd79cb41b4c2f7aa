// Package register runs the onboarding conversation for unknown contacts.
package register

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/session"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Steps of the registration interview.
const (
	stepName = iota
	stepEmail
)

// starterTokens is the page allowance new registrations begin with.
const starterTokens = 10

// State is the registration session record.
type State struct {
	Step  int    `json:"step"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Apply is the registration reducer: feed an answer, get the next state and
// the replies to send. Done is true once both answers were captured.
func Apply(st State, answer string) (next State, replies []string, done bool) {
	answer = strings.TrimSpace(answer)

	switch st.Step {
	case stepName:
		if answer == "" {
			return st, []string{"¿Cómo te llamas? Escribe tu nombre para continuar."}, false
		}
		next = State{Step: stepEmail, Name: answer}
		return next, []string{fmt.Sprintf(
			"¡Mucho gusto, %s! 😄\nAhora escribe tu correo electrónico para crear tu cuenta.", answer,
		)}, false
	case stepEmail:
		if !emailRe.MatchString(answer) {
			return st, []string{"Ese correo no parece válido. 🤔 Escríbelo de nuevo, por ejemplo: nombre@dominio.com"}, false
		}
		next = State{Step: stepEmail + 1, Name: st.Name, Email: answer}
		return next, nil, true
	default:
		return st, nil, true
	}
}

// Store is the persistence slice registration needs.
type Store interface {
	CreateContact(ctx context.Context, phone, name, lineID string) (string, error)
	CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error)
}

// Notifier sends the welcome email. It may be nil.
type Notifier interface {
	SendWelcome(ctx context.Context, email, name string) error
}

type Flow struct {
	store    Store
	sessions Sessions
	notifier Notifier
	logger   logger.Logger
}

type Sessions interface {
	Put(ctx context.Context, phone string, rec *session.Record) error
	Clear(ctx context.Context, phone string) error
}

func NewFlow(st Store, sessions Sessions, notifier Notifier, log logger.Logger) *Flow {
	return &Flow{
		store:    st,
		sessions: sessions,
		notifier: notifier,
		logger:   log.With(map[string]interface{}{"flow": "register"}),
	}
}

// Begin opens the registration session and asks for the name.
func (f *Flow) Begin(ctx context.Context, phone string) ([]string, error) {
	rec := &session.Record{Flow: session.FlowRegister}
	if err := rec.EncodeData(State{}); err != nil {
		return nil, err
	}
	if err := f.sessions.Put(ctx, phone, rec); err != nil {
		return nil, err
	}
	return []string{
		"Para continuar necesito crear tu cuenta. ✨ Solo te tomará un momento.",
		"Primero, ¿cómo te llamas?",
	}, nil
}

// Resume advances the interview. When it completes, the contact and user
// records are created and the welcome is sent.
func (f *Flow) Resume(ctx context.Context, phone, lineID string, rec *session.Record, text string) ([]string, error) {
	var st State
	if err := rec.DecodeData(&st); err != nil {
		_ = f.sessions.Clear(ctx, phone)
		return nil, err
	}

	next, replies, done := Apply(st, text)
	if !done {
		if err := rec.EncodeData(next); err != nil {
			return nil, err
		}
		if err := f.sessions.Put(ctx, phone, rec); err != nil {
			return nil, err
		}
		return replies, nil
	}

	contactID, err := f.store.CreateContact(ctx, phone, next.Name, lineID)
	if err != nil {
		return nil, err
	}
	if _, err := f.store.CreateUser(ctx, contactID, next.Name, next.Email, starterTokens); err != nil {
		return nil, err
	}

	_ = f.sessions.Clear(ctx, phone)

	if f.notifier != nil {
		if err := f.notifier.SendWelcome(ctx, next.Email, next.Name); err != nil {
			f.logger.Warn("welcome email failed", map[string]interface{}{
				"email": next.Email, "error": err.Error(),
			})
		}
	}

	f.logger.Info("user registered", map[string]interface{}{
		"contactId": contactID,
	})

	return []string{fmt.Sprintf(
		"¡Tu cuenta quedó lista, %s! 🎉\nYa puedes escribir *crear página web* para empezar, o *menu* para ver todo lo que puedo hacer.",
		next.Name,
	)}, nil
}
