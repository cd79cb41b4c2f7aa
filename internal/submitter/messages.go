package submitter

import (
	"fmt"
	"strings"
	"time"
)

// Progress stage texts shown while an attempt is running. After the known
// stages the message falls back to an elapsed counter.
func stageMessage(stage int, elapsed time.Duration) string {
	switch stage {
	case 1:
		return "🔍 Analizando los requisitos de tu página..."
	case 2:
		return "🧩 Generando los componentes de tu página..."
	case 3:
		return "🎨 Aplicando estilos y ajustes finales..."
	default:
		return fmt.Sprintf("⏳ Tu página sigue en proceso... (%d segundos)", int(elapsed.Seconds()))
	}
}

// queueMessage reports the wait position while admission is pending.
func queueMessage(depth int, elapsed time.Duration) string {
	return fmt.Sprintf(
		"⏳ Hay %d solicitudes en proceso. Tu página entrará a generación en cuanto haya un cupo disponible (llevas %d segundos esperando).",
		depth, int(elapsed.Seconds()),
	)
}

// queueSaturatedMessage is the terminal reply when the wait ceiling expires.
const queueSaturatedMessage = "⚠️ El sistema está procesando muchas solicitudes en este momento. Por favor, intenta crear tu página de nuevo en unos minutos."

// retryMessage announces the next attempt.
func retryMessage(attempt, total int) string {
	return fmt.Sprintf("🔄 Reintentando la generación (intento %d de %d)...", attempt, total)
}

// failureMessage classifies the final error into the reply the user sees.
// The match is a best-effort substring scan over the upstream error text.
func failureMessage(err error, attempts int) string {
	if err == nil {
		return ""
	}
	text := strings.ToLower(err.Error())

	switch {
	case strings.Contains(text, "aborted"),
		strings.Contains(text, "timeout"),
		strings.Contains(text, "context deadline exceeded"):
		return "⚠️ El servicio de generación está experimentando alta demanda. Por favor, intenta de nuevo en 10-15 minutos."
	case strings.Contains(text, "socket hang up"),
		strings.Contains(text, "econnreset"),
		strings.Contains(text, "connection"):
		return "⚠️ Hubo un problema de conexión con el servicio de generación. Por favor, intenta de nuevo."
	case strings.Contains(text, "rate limit"),
		strings.Contains(text, "too many requests"),
		strings.Contains(text, "429"):
		return "⚠️ Hemos alcanzado el límite de solicitudes del servicio. Por favor, intenta de nuevo en 5-10 minutos."
	default:
		return fmt.Sprintf("⚠️ La generación falló en el intento %d: %s", attempts, err.Error())
	}
}
