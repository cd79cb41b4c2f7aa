// Package faq answers free-form questions with the advisor persona over the
// recent conversation history.
package faq

import (
	"context"

	"webgen-bot/internal/ai"
	"webgen-bot/internal/common/logger"
	"webgen-bot/internal/store"
)

// historyTurns is how much context the advisor sees.
const historyTurns = 6

const fallbackReply = "Lo siento, no puedo responder en este momento. 🙏 Intenta de nuevo en unos minutos o escribe *menu* para ver las opciones."

// Chatter is the slice of the AI client the flow needs.
type Chatter interface {
	Chat(ctx context.Context, history []ai.Message, text string) string
}

// Store is the persistence slice the flow needs.
type Store interface {
	RecentHistory(ctx context.Context, contactID string, n int) ([]store.Turn, error)
	AppendTurn(ctx context.Context, contactID, role, content string) error
}

type Flow struct {
	chatter Chatter
	store   Store
	logger  logger.Logger
}

func NewFlow(chatter Chatter, st Store, log logger.Logger) *Flow {
	return &Flow{
		chatter: chatter,
		store:   st,
		logger:  log.With(map[string]interface{}{"flow": "faq"}),
	}
}

// Answer runs one advisor turn and persists both sides of the exchange.
func (f *Flow) Answer(ctx context.Context, contactID, text string) []string {
	history := f.history(ctx, contactID)

	reply := f.chatter.Chat(ctx, history, text)
	if reply == ai.ErrorSentinel {
		return []string{fallbackReply}
	}

	if err := f.store.AppendTurn(ctx, contactID, ai.RoleUser, text); err != nil {
		f.logger.Warn("failed to persist user turn", map[string]interface{}{
			"contactId": contactID, "error": err.Error(),
		})
	}
	if err := f.store.AppendTurn(ctx, contactID, ai.RoleAssistant, reply); err != nil {
		f.logger.Warn("failed to persist assistant turn", map[string]interface{}{
			"contactId": contactID, "error": err.Error(),
		})
	}

	return []string{reply}
}

func (f *Flow) history(ctx context.Context, contactID string) []ai.Message {
	turns, err := f.store.RecentHistory(ctx, contactID, historyTurns)
	if err != nil {
		f.logger.Warn("history fetch failed, answering without context", map[string]interface{}{
			"contactId": contactID, "error": err.Error(),
		})
		return nil
	}

	msgs := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		role := t.Role
		if role != ai.RoleAssistant {
			role = ai.RoleUser
		}
		msgs = append(msgs, ai.Message{Role: role, Content: t.Content})
	}
	return msgs
}
