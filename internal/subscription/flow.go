package subscription

import (
	"context"
	"fmt"
	"strings"

	"webgen-bot/internal/common/errors"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/intent"
	"webgen-bot/internal/session"
	"webgen-bot/internal/store"
)

// Stages of the subscription session.
const (
	StageSelectingPlan   = "selecting_plan"
	StageAwaitingPayment = "awaiting_payment"
)

// affirmations end the awaiting-payment stage. Matched as substrings of the
// normalized message.
var affirmations = []string{"listo", "pagado", "pague", "complete"}

// State is the subscription session record.
type State struct {
	Stage       string  `json:"stage"`
	PlanID      string  `json:"planId,omitempty"`
	PlanName    string  `json:"planName,omitempty"`
	PlanTokens  int     `json:"planTokens,omitempty"`
	PlanPrice   float64 `json:"planPrice,omitempty"`
	PaymentLink string  `json:"paymentLink,omitempty"`
	UserID      string  `json:"userId,omitempty"`
}

// Store is the persistence slice the flow needs.
type Store interface {
	UserByContact(ctx context.Context, contactID string) (*store.User, error)
	CreateUser(ctx context.Context, contactID, name, email string, tokens int) (string, error)
	AllPlans(ctx context.Context) ([]store.Plan, error)
	UserPlan(ctx context.Context, user *store.User) (store.Plan, error)
	UpdateUserPlan(ctx context.Context, userID, planID string, tokens int) error
	CreatePaymentRecord(ctx context.Context, userID, contactID, planID, status string) (string, error)
}

// Payments creates checkout links.
type Payments interface {
	CreateSubscription(ctx context.Context, userID, planID string) (string, error)
}

type Sessions interface {
	Put(ctx context.Context, phone string, rec *session.Record) error
	Clear(ctx context.Context, phone string) error
}

type Flow struct {
	store    Store
	payments Payments
	sessions Sessions
	logger   logger.Logger
}

func NewFlow(st Store, payments Payments, sessions Sessions, log logger.Logger) *Flow {
	return &Flow{
		store:    st,
		payments: payments,
		sessions: sessions,
		logger:   log.With(map[string]interface{}{"flow": "subscription"}),
	}
}

// Begin shows the plan menu and opens a selecting-plan session.
func (f *Flow) Begin(ctx context.Context, phone string, contact *store.Contact) ([]string, error) {
	user, err := f.resolveUser(ctx, contact)
	if err != nil {
		return nil, err
	}

	plans, err := f.store.AllPlans(ctx)
	if err != nil {
		return nil, err
	}

	rec := &session.Record{Flow: session.FlowSubscription}
	if err := rec.EncodeData(State{Stage: StageSelectingPlan, UserID: user.ID}); err != nil {
		return nil, err
	}
	if err := f.sessions.Put(ctx, phone, rec); err != nil {
		return nil, err
	}

	return []string{planMenu(plans)}, nil
}

// Resume advances the session with the user's answer.
func (f *Flow) Resume(ctx context.Context, phone string, rec *session.Record, contact *store.Contact, text string) ([]string, error) {
	var st State
	if err := rec.DecodeData(&st); err != nil {
		_ = f.sessions.Clear(ctx, phone)
		return nil, err
	}

	switch st.Stage {
	case StageAwaitingPayment:
		return f.confirmPayment(ctx, phone, rec, st, contact, text)
	default:
		return f.selectPlan(ctx, phone, rec, st, contact, text)
	}
}

// selectPlan is the selecting-plan reducer.
func (f *Flow) selectPlan(ctx context.Context, phone string, rec *session.Record, st State, contact *store.Contact, text string) ([]string, error) {
	plans, err := f.store.AllPlans(ctx)
	if err != nil {
		return nil, err
	}

	canon := ClassifyCanonical(text)
	if canon == CanonUnknown {
		return []string{unknownPlanMessage(plans)}, nil
	}

	plan, found := findPlan(plans, canon)
	if !found {
		return []string{unknownPlanMessage(plans)}, nil
	}

	user, err := f.resolveUser(ctx, contact)
	if err != nil {
		return nil, err
	}

	current, err := f.store.UserPlan(ctx, user)
	if err != nil {
		return nil, err
	}
	if planCanonical(current.Name) == canon && canon != CanonFree {
		_ = f.sessions.Clear(ctx, phone)
		return []string{fmt.Sprintf("Ya tienes el plan %s activo. ✅ No necesitas hacer nada más.", current.Name)}, nil
	}

	// The free tier activates immediately, no checkout involved.
	if plan.Price == 0 {
		if err := f.store.UpdateUserPlan(ctx, user.ID, plan.ID, plan.Tokens); err != nil {
			return nil, err
		}
		_ = f.sessions.Clear(ctx, phone)
		return []string{fmt.Sprintf(
			"¡Listo! Tu plan %s quedó activo. 🎉 Incluye %s.", plan.Name, pagesText(plan.Tokens),
		)}, nil
	}

	link, err := f.payments.CreateSubscription(ctx, user.ID, plan.ID)
	if err != nil {
		f.logger.Warn("checkout link creation failed", map[string]interface{}{
			"userId": user.ID, "planId": plan.ID, "error": err.Error(),
		})
		return []string{errors.UserMessage(errors.NewPaymentLinkFailedError(err))}, nil
	}

	if _, err := f.store.CreatePaymentRecord(ctx, user.ID, contact.ID, plan.ID, "pending"); err != nil {
		f.logger.Warn("payment record insert failed", map[string]interface{}{
			"userId": user.ID, "error": fmt.Sprint(err),
		})
	}

	st = State{
		Stage:       StageAwaitingPayment,
		PlanID:      plan.ID,
		PlanName:    plan.Name,
		PlanTokens:  plan.Tokens,
		PlanPrice:   plan.Price,
		PaymentLink: link,
		UserID:      user.ID,
	}
	if err := rec.EncodeData(st); err != nil {
		return nil, err
	}
	if err := f.sessions.Put(ctx, phone, rec); err != nil {
		return nil, err
	}

	return []string{fmt.Sprintf(
		"Elegiste el plan %s ($%.2f/mes). 💳\n\nCompleta tu pago aquí:\n%s\n\nCuando termines, escribe *listo* para activar tu plan.",
		plan.Name, plan.Price, link,
	)}, nil
}

// confirmPayment is the awaiting-payment reducer. It requires an affirmation
// and then checks whether the provider webhook already assigned the plan.
func (f *Flow) confirmPayment(ctx context.Context, phone string, rec *session.Record, st State, contact *store.Contact, text string) ([]string, error) {
	if !isAffirmation(text) {
		return []string{fmt.Sprintf(
			"Estoy esperando la confirmación de tu pago del plan %s. 💳\nSi aún no pagas, usa este enlace:\n%s\n\nCuando termines, escribe *listo*.",
			st.PlanName, st.PaymentLink,
		)}, nil
	}

	user, err := f.store.UserByContact(ctx, contact.ID)
	if err != nil {
		return nil, err
	}

	if !user.PlanID.Valid || user.PlanID.String == "" || user.PlanID.String != st.PlanID {
		return []string{errors.UserMessage(errors.NewPaymentNotConfirmedError(user.ID))}, nil
	}

	_ = f.sessions.Clear(ctx, phone)
	return []string{fmt.Sprintf(
		"🎉 ¡Pago confirmado! Tu plan %s ya está activo e incluye %s. ¡Gracias por suscribirte!",
		st.PlanName, pagesText(st.PlanTokens),
	)}, nil
}

func isAffirmation(text string) bool {
	n := intent.Normalize(text)
	for _, a := range affirmations {
		if strings.Contains(n, a) {
			return true
		}
	}
	return false
}

func (f *Flow) resolveUser(ctx context.Context, contact *store.Contact) (*store.User, error) {
	user, err := f.store.UserByContact(ctx, contact.ID)
	if err == nil {
		return user, nil
	}
	stdErr, ok := err.(*errors.StandardError)
	if !ok || stdErr.Code != errors.ErrCodeRecordNotFound {
		return nil, err
	}
	if _, err := f.store.CreateUser(ctx, contact.ID, contact.Name, "", 1); err != nil {
		return nil, err
	}
	return f.store.UserByContact(ctx, contact.ID)
}

func planMenu(plans []store.Plan) string {
	if len(plans) == 0 {
		plans = []store.Plan{
			store.DefaultFreePlan,
			{ID: "basic", Name: "Basic", Price: 9.99, Tokens: 5},
			{ID: "pro", Name: "Pro", Price: 29.99, Tokens: 15},
			{ID: "business", Name: "Business", Price: 49.99, Tokens: 30},
		}
	}
	var b strings.Builder
	b.WriteString("Estos son nuestros planes: 📝\n\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "• *%s* — $%.2f/mes, %s\n", p.Name, p.Price, pagesText(p.Tokens))
	}
	b.WriteString("\n¿Cuál te interesa? Responde con el nombre del plan.")
	return b.String()
}

func unknownPlanMessage(plans []store.Plan) string {
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		names = []string{"Free", "Basic", "Pro", "Business"}
	}
	return fmt.Sprintf(
		"No reconocí ese plan. 🤔 Los planes disponibles son: %s.\nResponde con el nombre de uno de ellos.",
		strings.Join(names, ", "),
	)
}

// pagesText renders a token allowance; 999 is the unlimited marker.
func pagesText(tokens int) string {
	if tokens == 999 {
		return "páginas Ilimitadas"
	}
	if tokens == 1 {
		return "1 página"
	}
	return fmt.Sprintf("%d páginas", tokens)
}
