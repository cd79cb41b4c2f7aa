// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes failures from flows and clients, logs them with
// their category, and picks the reply the end user should see.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err, logs it, and returns the user-facing reply text.
func (h *ErrorHandler) Handle(conversationID string, err error) string {
	stdErr := h.normalizeError(err)
	h.logError(conversationID, stdErr)
	return UserMessage(stdErr)
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(conversationID string, stdErr *StandardError) {
	h.logger.Error("conversation step failed", map[string]interface{}{
		"conversationId": conversationID,
		"errorCode":      string(stdErr.Code),
		"message":        stdErr.Message,
		"details":        stdErr.Details,
		"retryable":      stdErr.Retryable,
		"errorCategory":  GetErrorCategory(stdErr.Code),
	})
}

// UserMessage maps an error code to the Spanish reply shown in the chat.
// Anything unmapped falls back to a generic apology so the conversation
// never goes silent.
func UserMessage(stdErr *StandardError) string {
	switch stdErr.Code {
	case ErrCodeQueueSaturated:
		return "⚠️ El sistema está procesando muchas solicitudes en este momento. Por favor, intenta de nuevo en unos minutos."
	case ErrCodePageQuotaExceeded:
		return "Has alcanzado el límite de páginas de tu plan actual. Escribe *suscribirse* para conocer los planes disponibles. 🚀"
	case ErrCodeGenerationRateLimited:
		return "⚠️ Hemos alcanzado el límite de solicitudes. Por favor, intenta de nuevo en 5-10 minutos."
	case ErrCodeGenerationTimeout:
		return "⚠️ El servicio está experimentando alta demanda. Por favor, intenta de nuevo en 10-15 minutos."
	case ErrCodeGenerationConnection:
		return "⚠️ Hubo un problema de conexión con el servicio. Por favor, intenta de nuevo."
	case ErrCodePaymentLinkFailed:
		return "No pude generar el enlace de pago en este momento. Por favor, intenta de nuevo más tarde. 🙏"
	case ErrCodePaymentNotConfirmed:
		return "Aún no hemos recibido la confirmación de tu pago. Dame un momento e intenta de nuevo escribiendo *listo*."
	default:
		return "Lo siento, ocurrió un error inesperado. Por favor, intenta de nuevo. 🙏"
	}
}
