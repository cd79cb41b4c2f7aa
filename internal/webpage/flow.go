package webpage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
	"webgen-bot/internal/submitter"
)

// question is one step of the requirement interview.
type question struct {
	key    string
	prompt string
}

var questions = []question{
	{"websiteType", "1️⃣ ¿Qué tipo de página web necesitas? (por ejemplo: tienda, portafolio, restaurante, servicios)"},
	{"projectDescription", "2️⃣ Cuéntame brevemente de qué trata tu proyecto o negocio."},
	{"mainObjective", "3️⃣ ¿Cuál es el objetivo principal de la página? (vender, informar, captar clientes...)"},
	{"targetAudience", "4️⃣ ¿A quién va dirigida? Describe tu público ideal."},
	{"features", "5️⃣ ¿Qué funcionalidades necesitas? (formulario de contacto, galería, testimonios...)"},
	{"style", "6️⃣ ¿Qué estilo visual prefieres? (moderno, elegante, colorido, minimalista...)"},
	{"sections", "7️⃣ ¿Qué secciones debe tener la página?"},
	{"callToAction", "8️⃣ Por último, ¿qué acción quieres que tomen los visitantes? (llamar, comprar, escribir...)"},
}

// State is the interview record persisted between turns.
type State struct {
	Step    int               `json:"step"`
	Answers map[string]string `json:"answers"`
}

// apply is the interview reducer: record the answer for the current step and
// advance.
func apply(st State, answer string) State {
	answers := make(map[string]string, len(st.Answers)+1)
	for k, v := range st.Answers {
		answers[k] = v
	}
	if st.Step >= 0 && st.Step < len(questions) {
		answers[questions[st.Step].key] = strings.TrimSpace(answer)
	}
	return State{Step: st.Step + 1, Answers: answers}
}

func (st State) done() bool {
	return st.Step >= len(questions)
}

// Store is the persistence slice the flow needs.
type Store interface {
	UserByContact(ctx context.Context, contactID string) (*store.User, error)
	CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error)
	CanCreatePage(ctx context.Context, user *store.User) (*store.Quota, error)
	CreatePage(ctx context.Context, p *store.Page) (string, error)
}

// Sessions is the session slice the flow needs.
type Sessions interface {
	Put(ctx context.Context, phone string, rec *session.Record) error
	Clear(ctx context.Context, phone string) error
}

// Submitter runs the generation job.
type Submitter interface {
	Submit(ctx context.Context, req submitter.JobRequest) submitter.Result
}

// AI bundles the model calls the pipeline makes.
type AI interface {
	Completer
	JSONCompleter
}

// Notifier announces a finished page outside the chat. It may be nil.
type Notifier interface {
	SendPageReady(ctx context.Context, email, name, link string) error
	SendSMS(ctx context.Context, phone, message string) error
}

type Flow struct {
	store     Store
	sessions  Sessions
	ai        AI
	submitter Submitter
	notifier  Notifier
	logger    logger.Logger

	now func() time.Time
}

func NewFlow(st Store, sessions Sessions, ai AI, sub Submitter, notifier Notifier, log logger.Logger) *Flow {
	return &Flow{
		store:     st,
		sessions:  sessions,
		ai:        ai,
		submitter: sub,
		notifier:  notifier,
		logger:    log.With(map[string]interface{}{"flow": "webpage"}),
		now:       time.Now,
	}
}

// Begin checks the page quota and opens the interview. A contact without an
// account gets one created on the spot with a single free page.
func (f *Flow) Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error) {
	user, err := f.resolveUser(ctx, contact)
	if err != nil {
		return nil, err
	}

	quota, err := f.store.CanCreatePage(ctx, user)
	if err != nil {
		return nil, err
	}
	if !quota.Allowed {
		f.logger.Debug("page quota exhausted", map[string]interface{}{
			"userId": user.ID,
			"plan":   quota.PlanName,
			"limit":  quota.Limit,
		})
		return []string{fmt.Sprintf(
			"Has usado %d de %d páginas de tu plan %s. 😕\nEscribe *suscribirse* para conocer los planes y crear más páginas. 🚀",
			quota.Used, quota.Limit, quota.PlanName,
		)}, nil
	}

	rec := &session.Record{Flow: session.FlowWebPage}
	if err := rec.EncodeData(State{Answers: map[string]string{}}); err != nil {
		return nil, err
	}
	if err := f.sessions.Put(ctx, phone, rec); err != nil {
		return nil, err
	}

	return []string{
		"¡Perfecto! Vamos a crear tu página web. 🚀 Te haré 8 preguntas rápidas.",
		questions[0].prompt,
	}, nil
}

// Resume feeds the answer into the interview. When the last question is
// answered it clears the session and runs the generation job, streaming
// progress through send.
func (f *Flow) Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string, send func(string)) ([]string, error) {
	var st State
	if err := rec.DecodeData(&st); err != nil {
		_ = f.sessions.Clear(ctx, phone)
		return nil, err
	}

	st = apply(st, text)

	if !st.done() {
		if err := rec.EncodeData(st); err != nil {
			return nil, err
		}
		if err := f.sessions.Put(ctx, phone, rec); err != nil {
			return nil, err
		}
		return []string{questions[st.Step].prompt}, nil
	}

	if err := f.sessions.Clear(ctx, phone); err != nil {
		f.logger.Warn("failed to clear interview session", map[string]interface{}{
			"phone": phone, "error": err.Error(),
		})
	}

	send(f.summary(st))
	return f.generate(ctx, contact, st, send)
}

func (f *Flow) summary(st State) string {
	var b strings.Builder
	b.WriteString("📋 Esto es lo que entendí de tu página:\n")
	for _, q := range questions {
		if v := st.Answers[q.key]; v != "" {
			fmt.Fprintf(&b, "• %s: %s\n", q.key, v)
		}
	}
	b.WriteString("\n🛠️ Empezando la generación, esto puede tardar unos minutos...")
	return b.String()
}

// generate runs the pipeline: facts, one prompt, one supervised job.
func (f *Flow) generate(ctx context.Context, contact *store.Contact, st State, send func(string)) ([]string, error) {
	user, err := f.resolveUser(ctx, contact)
	if err != nil {
		return nil, err
	}

	facts := f.buildFacts(ctx, st)
	// The prompt is synthesized exactly once; retries reuse it verbatim.
	prompt := SynthesizePrompt(ctx, f.ai, f.logger, facts)

	result := f.submitter.Submit(ctx, submitter.JobRequest{
		UserID:     user.ID,
		Prompt:     prompt,
		OnProgress: throttleProgress(send, 10*time.Second, f.now),
	})

	switch result.Kind {
	case submitter.KindSuccess:
		page := &store.Page{
			UserID:       user.ID,
			Title:        facts.WebsiteType,
			Description:  facts.ProjectDescription,
			PublicLink:   result.DemoURL,
			Status:       "Active",
			Requirements: f.requirementsJSON(st),
		}
		if _, err := f.store.CreatePage(ctx, page); err != nil {
			f.logger.Warn("generated page could not be persisted", map[string]interface{}{
				"userId": user.ID, "error": fmt.Sprint(err),
			})
		}
		f.notifyPageReady(ctx, user, contact, result.DemoURL)
		return []string{fmt.Sprintf(
			"🎉 ¡Tu página web está lista!\n\n🔗 Puedes verla aquí: %s\n\nSi quieres ajustes o una nueva versión, escríbeme.",
			result.DemoURL,
		)}, nil
	case submitter.KindCanceled:
		return []string{"⚠️ La generación fue cancelada. Escribe *crear página web* para intentarlo de nuevo."}, nil
	default:
		return []string{result.Message}, nil
	}
}

// buildFacts maps interview answers onto the fact record and enriches the
// gaps from a model pass over the combined text.
func (f *Flow) buildFacts(ctx context.Context, st State) Facts {
	base := Facts{
		WebsiteType:        st.Answers["websiteType"],
		ProjectDescription: st.Answers["projectDescription"],
		MainObjective:      st.Answers["mainObjective"],
		TargetAudience:     st.Answers["targetAudience"],
		Features:           st.Answers["features"],
		Style:              st.Answers["style"],
		Sections:           st.Answers["sections"],
		CallToAction:       st.Answers["callToAction"],
	}

	var combined strings.Builder
	for _, q := range questions {
		if v := st.Answers[q.key]; v != "" {
			combined.WriteString(v)
			combined.WriteString(". ")
		}
	}
	extracted := ExtractFacts(ctx, f.ai, f.logger, combined.String())

	if base.Colors == "" {
		base.Colors = extracted.Colors
	}
	if base.Content == "" {
		base.Content = extracted.Content
	}
	if base.References == "" {
		base.References = extracted.References
	}
	if base.AdditionalInfo == "" {
		base.AdditionalInfo = extracted.AdditionalInfo
	}
	return base
}

func (f *Flow) requirementsJSON(st State) string {
	data, err := json.Marshal(st.Answers)
	if err != nil {
		return ""
	}
	return string(data)
}

// notifyPageReady sends the out-of-band page-ready notices. Delivery
// failures are logged, never surfaced to the conversation.
func (f *Flow) notifyPageReady(ctx context.Context, user *store.User, contact *store.Contact, link string) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.SendPageReady(ctx, user.Email, user.Name, link); err != nil {
		f.logger.Warn("page-ready email failed", map[string]interface{}{
			"userId": user.ID, "error": err.Error(),
		})
	}
	sms := fmt.Sprintf("🎉 Tu página web ya está lista: %s", link)
	if err := f.notifier.SendSMS(ctx, contact.Phone, sms); err != nil {
		f.logger.Warn("page-ready SMS failed", map[string]interface{}{
			"userId": user.ID, "error": err.Error(),
		})
	}
}

// resolveUser loads the account for a contact, creating one with a single
// free page when it does not exist yet.
func (f *Flow) resolveUser(ctx context.Context, contact *store.Contact) (*store.User, error) {
	user, err := f.store.UserByContact(ctx, contact.ID)
	if err == nil {
		return user, nil
	}
	stdErr, ok := err.(*errors.StandardError)
	if !ok || stdErr.Code != errors.ErrCodeRecordNotFound {
		return nil, err
	}

	id, err := f.store.CreateUser(ctx, contact.ID, contact.Name, "", 1)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("auto-created user for contact", map[string]interface{}{
		"contactId": contact.ID, "userId": id,
	})
	return f.store.UserByContact(ctx, contact.ID)
}

// throttleProgress drops updates arriving within minInterval of the previous
// one. Celebration and warning messages always pass.
func throttleProgress(send func(string), minInterval time.Duration, now func() time.Time) func(string) {
	var last time.Time
	return func(msg string) {
		if strings.Contains(msg, "🎉") || strings.Contains(msg, "⚠️") {
			send(msg)
			return
		}
		if t := now(); last.IsZero() || t.Sub(last) >= minInterval {
			last = t
			send(msg)
		}
	}
}
