// Package router turns inbound messages into replies: it extracts text,
// resumes in-progress flows, classifies intent, and routes to the right
// conversation flow with a fresh registration check on every turn.
package router

import (
	"context"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/common/metrics"
	"webgen-bot/internal/intent"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
	"webgen-bot/internal/transport"
)

const (
	greetingReply = "¡Hola! 👋 Soy tu asistente para crear páginas web.\nEscribe *crear página web* para empezar, *suscribirse* para ver los planes, o *menu* para todas las opciones."

	cancelReply = "Lamento que quieras cancelar. 😔 Para gestionar la cancelación de tu suscripción escribe a nuestro equipo de soporte: soporte@tudominio.com y la procesaremos el mismo día."

	noAccountReply = "❓ No tienes una cuenta registrada todavía, así que no hay suscripción que cancelar. Escribe *crear página web* para empezar."

	quoteReply = "¡Perfecto! 😊 Me encantaría prepararte una cotización personalizada.\n\n¿Podrías contarme qué tipo de página web necesitas? (tienda online, página informativa, portafolio...)"

	notUnderstoodReply = "No pude entender tu mensaje. 🤔 ¿Puedes escribirlo de nuevo? También puedes escribir *menu* para ver las opciones."
)

// Classifier resolves message intent.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Intent
}

// Media converts audio and images into text.
type Media interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

// Store is the persistence slice routing needs.
type Store interface {
	LineIDByNumber(ctx context.Context, botNumber string) (string, error)
	ContactByPhone(ctx context.Context, phone, lineID string) (*store.Contact, error)
	ContactExistsInLine(ctx context.Context, phone, lineID string) (bool, error)
	CreateContact(ctx context.Context, phone, name, lineID string) (string, error)
}

// Sessions reads active flow state.
type Sessions interface {
	Get(ctx context.Context, phone string) (*session.Record, error)
	Clear(ctx context.Context, phone string) error
}

// The conversation flows, by their router-facing surface.
type RegisterFlow interface {
	Begin(ctx context.Context, phone string) ([]string, error)
	Resume(ctx context.Context, phone, lineID string, rec *session.Record, text string) ([]string, error)
}

type WebPageFlow interface {
	Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error)
	Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string, send func(string)) ([]string, error)
}

type SubscriptionFlow interface {
	Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error)
	Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string) ([]string, error)
}

type FAQFlow interface {
	Answer(ctx context.Context, contactID, text string) []string
}

type MenuFlow interface {
	Render() string
}

type Router struct {
	botNumber    string
	classifier   Classifier
	media        Media
	store        Store
	sessions     Sessions
	responder    transport.Responder
	register     RegisterFlow
	webpage      WebPageFlow
	subscription SubscriptionFlow
	faq          FAQFlow
	menu         MenuFlow
	errs         *errors.ErrorHandler
	logger       logger.Logger
}

type Deps struct {
	BotNumber    string
	Classifier   Classifier
	Media        Media
	Store        Store
	Sessions     Sessions
	Responder    transport.Responder
	Register     RegisterFlow
	WebPage      WebPageFlow
	Subscription SubscriptionFlow
	FAQ          FAQFlow
	Menu         MenuFlow
	Logger       logger.Logger
}

func New(d Deps) *Router {
	log := d.Logger.With(map[string]interface{}{"component": "router"})
	return &Router{
		botNumber:    d.BotNumber,
		classifier:   d.Classifier,
		media:        d.Media,
		store:        d.Store,
		sessions:     d.Sessions,
		responder:    d.Responder,
		register:     d.Register,
		webpage:      d.WebPage,
		subscription: d.Subscription,
		faq:          d.FAQ,
		menu:         d.Menu,
		errs:         errors.NewErrorHandler(log),
		logger:       log,
	}
}

// Dispatch handles one inbound message end to end. Every message gets a
// reply; failures turn into the error handler's user message.
func (r *Router) Dispatch(ctx context.Context, msg transport.Message) {
	metrics.MessagesProcessed.WithLabelValues(string(msg.Type)).Inc()
	phone := store.SanitizePhone(msg.From)
	log := r.logger.With(map[string]interface{}{"phone": phone})

	text, ok := r.extractText(ctx, msg, log)
	if !ok {
		r.send(ctx, phone, notUnderstoodReply)
		return
	}

	replies, err := r.route(ctx, phone, msg, text, log)
	if err != nil {
		replies = []string{r.errs.Handle(phone, err)}
	}
	for _, reply := range replies {
		r.send(ctx, phone, reply)
	}
}

// extractText gets the working text out of the message, delegating media to
// the AI service.
func (r *Router) extractText(ctx context.Context, msg transport.Message, log logger.Logger) (string, bool) {
	switch msg.Type {
	case transport.TypeAudio:
		if msg.MediaURL == "" {
			return "", false
		}
		text, err := r.media.Transcribe(ctx, msg.MediaURL)
		if err != nil {
			log.Warn("audio transcription failed", map[string]interface{}{"error": err.Error()})
			return "", false
		}
		return text, text != ""
	case transport.TypeImage:
		if msg.MediaURL == "" {
			return "", false
		}
		text, err := r.media.DescribeImage(ctx, msg.MediaURL)
		if err != nil {
			log.Warn("image description failed", map[string]interface{}{"error": err.Error()})
			return "", false
		}
		return text, text != ""
	default:
		return msg.Body, msg.Body != ""
	}
}

func (r *Router) route(ctx context.Context, phone string, msg transport.Message, text string, log logger.Logger) ([]string, error) {
	lineID, err := r.store.LineIDByNumber(ctx, r.botNumber)
	if err != nil {
		return nil, err
	}

	// An active flow owns the message, no classification.
	rec, err := r.sessions.Get(ctx, phone)
	if err != nil {
		log.Warn("session lookup failed, treating as fresh turn", map[string]interface{}{
			"error": err.Error(),
		})
		rec = nil
	}
	if rec != nil {
		return r.resumeFlow(ctx, phone, lineID, rec, text, log)
	}

	detected := r.classifier.Classify(ctx, text)
	metrics.IntentsDetected.WithLabelValues(string(detected)).Inc()
	log.Info("message routed", map[string]interface{}{"intent": string(detected)})

	switch detected {
	case intent.Greeting:
		return []string{greetingReply}, nil
	case intent.MenuOptions:
		return []string{r.menu.Render()}, nil
	case intent.CancelSubscription:
		exists, err := r.store.ContactExistsInLine(ctx, phone, lineID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return []string{noAccountReply}, nil
		}
		return []string{cancelReply}, nil
	case intent.CreateWebPage:
		return r.guarded(ctx, phone, msg, lineID, func(contact *store.Contact) ([]string, error) {
			return r.webpage.Begin(ctx, phone, contact)
		})
	case intent.RequestQuote:
		return r.guarded(ctx, phone, msg, lineID, func(contact *store.Contact) ([]string, error) {
			return []string{quoteReply}, nil
		})
	case intent.RegisterProject:
		// Registration handles both new contacts and data updates.
		return r.register.Begin(ctx, phone)
	case intent.StartSubscription, intent.ChangeSubscription:
		return r.guarded(ctx, phone, msg, lineID, func(contact *store.Contact) ([]string, error) {
			return r.subscription.Begin(ctx, phone, contact)
		})
	case intent.FAQ:
		contact, err := r.ensureContact(ctx, phone, msg.PushName, lineID)
		if err != nil {
			return nil, err
		}
		return r.faq.Answer(ctx, contact.ID, text), nil
	default: // NO_DETECTED or out-of-enum
		return []string{notUnderstoodReply}, nil
	}
}

// guarded checks registration freshly for this message and starts either the
// registration flow or the target flow.
func (r *Router) guarded(ctx context.Context, phone string, msg transport.Message, lineID string, begin func(*store.Contact) ([]string, error)) ([]string, error) {
	exists, err := r.store.ContactExistsInLine(ctx, phone, lineID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return r.register.Begin(ctx, phone)
	}

	contact, err := r.store.ContactByPhone(ctx, phone, lineID)
	if err != nil {
		return nil, err
	}
	return begin(contact)
}

func (r *Router) resumeFlow(ctx context.Context, phone, lineID string, rec *session.Record, text string, log logger.Logger) ([]string, error) {
	switch rec.Flow {
	case session.FlowRegister:
		return r.register.Resume(ctx, phone, lineID, rec, text)
	case session.FlowWebPage:
		contact, err := r.store.ContactByPhone(ctx, phone, lineID)
		if err != nil {
			return nil, err
		}
		send := func(update string) { r.send(ctx, phone, update) }
		return r.webpage.Resume(ctx, phone, rec, contact, text, send)
	case session.FlowSubscription:
		contact, err := r.store.ContactByPhone(ctx, phone, lineID)
		if err != nil {
			return nil, err
		}
		return r.subscription.Resume(ctx, phone, rec, contact, text)
	default:
		log.Warn("unknown flow in session, clearing", map[string]interface{}{
			"flow": rec.Flow,
		})
		_ = r.sessions.Clear(ctx, phone)
		return []string{notUnderstoodReply}, nil
	}
}

// ensureContact loads the contact for a phone, creating a placeholder one
// when the sender never registered, so FAQ history has somewhere to live.
func (r *Router) ensureContact(ctx context.Context, phone, pushName, lineID string) (*store.Contact, error) {
	contact, err := r.store.ContactByPhone(ctx, phone, lineID)
	if err == nil {
		return contact, nil
	}
	stdErr, ok := err.(*errors.StandardError)
	if !ok || stdErr.Code != errors.ErrCodeRecordNotFound {
		return nil, err
	}

	if _, err := r.store.CreateContact(ctx, phone, pushName, lineID); err != nil {
		return nil, err
	}
	return r.store.ContactByPhone(ctx, phone, lineID)
}

func (r *Router) send(ctx context.Context, phone, text string) {
	if text == "" {
		return
	}
	if err := r.responder.Send(ctx, phone, text); err != nil {
		r.logger.Error("reply delivery failed", map[string]interface{}{
			"phone": phone, "error": err.Error(),
		})
	}
}
