package intent

import (
	"context"
	"strings"
)

// classifierSystemPrompt fixes the label set and the tie-break rules the
// model must apply.
const classifierSystemPrompt = `Eres un clasificador de intenciones para un asistente que crea páginas web por WhatsApp.
Responde ÚNICAMENTE con una de estas etiquetas, sin texto adicional:

FAQ - preguntas generales, dudas técnicas, cualquier consulta informativa
CREATE_WEB_PAGE - el usuario quiere crear, diseñar o pedir una página web
STARTSUBSCRIPTION - el usuario quiere suscribirse o conocer los planes
CHANCE_SUBSCRIPTION - el usuario quiere cambiar su plan actual
CANCEL_SUBSCRIPTION - el usuario quiere cancelar su suscripción
MENU_OPCIONES - el usuario pide el menú o la lista de servicios
SALUDO - saludos sin otra petición ("hola", "buenos días")
REGISTRAR_PROYECTO - el usuario quiere registrar un proyecto existente
SOLICITAR_COTIZACION - el usuario pide una cotización o presupuesto
NO_DETECTED - nada de lo anterior aplica

Reglas de desempate:
- Si el mensaje mezcla crear una página con una pregunta técnica, elige CREATE_WEB_PAGE.
- Si el mensaje mezcla cancelar con cambiar de plan, elige CANCEL_SUBSCRIPTION.
- Un saludo acompañado de otra petición NO es SALUDO.`

// Completer is the slice of the AI client the classifier needs.
type Completer interface {
	Completion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Classifier resolves the intent of a message. A deterministic keyword check
// runs before the model so hot subscription phrases never depend on it.
type Classifier struct {
	completer Completer
	logger    Logger
}

func NewClassifier(completer Completer, log Logger) *Classifier {
	return &Classifier{completer: completer, logger: log}
}

// Classify returns the detected intent. Classification never fails: any
// model error or out-of-enum label degrades to NotDetected.
func (c *Classifier) Classify(ctx context.Context, text string) Intent {
	if MatchSubscriptionKeyword(text) {
		c.logger.Debug("subscription keyword override", map[string]interface{}{
			"text": text,
		})
		return StartSubscription
	}

	label, err := c.completer.Completion(ctx, classifierSystemPrompt, text, 0, 20)
	if err != nil {
		c.logger.Warn("intent classification failed, defaulting to NO_DETECTED", map[string]interface{}{
			"error": err.Error(),
		})
		return NotDetected
	}

	detected := Parse(strings.Trim(label, "\" \n"))
	c.logger.Debug("intent detected", map[string]interface{}{
		"intent": string(detected),
	})
	return detected
}
