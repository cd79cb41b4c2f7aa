// Package intent classifies inbound messages into conversation intents.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Intent is the label driving conversation routing.
type Intent string

const (
	FAQ                 Intent = "FAQ"
	CreateWebPage       Intent = "CREATE_WEB_PAGE"
	StartSubscription   Intent = "STARTSUBSCRIPTION"
	ChangeSubscription  Intent = "CHANCE_SUBSCRIPTION"
	CancelSubscription  Intent = "CANCEL_SUBSCRIPTION"
	MenuOptions         Intent = "MENU_OPCIONES"
	Greeting            Intent = "SALUDO"
	RegisterProject     Intent = "REGISTRAR_PROYECTO"
	RequestQuote        Intent = "SOLICITAR_COTIZACION"
	NotDetected         Intent = "NO_DETECTED"
)

var validIntents = map[Intent]bool{
	FAQ:                true,
	CreateWebPage:      true,
	StartSubscription:  true,
	ChangeSubscription: true,
	CancelSubscription: true,
	MenuOptions:        true,
	Greeting:           true,
	RegisterProject:    true,
	RequestQuote:       true,
	NotDetected:        true,
}

// Parse coerces a raw classifier label to a valid Intent. Anything outside
// the enum maps to NotDetected.
func Parse(label string) Intent {
	candidate := Intent(strings.ToUpper(strings.TrimSpace(label)))
	if validIntents[candidate] {
		return candidate
	}
	return NotDetected
}

// Normalize lowercases, trims, and strips diacritics so keyword matching
// treats "Suscribirse" and "suscríbirse" the same way.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// MatchSubscriptionKeyword reports whether the text is an unambiguous
// subscription request that must bypass the model.
func MatchSubscriptionKeyword(text string) bool {
	n := Normalize(text)
	if n == "suscribirse" || n == "suscribirme" {
		return true
	}
	return strings.Contains(n, "quiero suscrib")
}
