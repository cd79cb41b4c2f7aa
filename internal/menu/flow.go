// Package menu renders the fixed service menu.
package menu

// Option is one entry of the service menu.
type Option struct {
	Code        string
	Title       string
	Description string
}

var options = []Option{
	{"WEB001", "Crear página web", "Diseño y publico tu página web profesional en minutos. Escribe *crear página web*."},
	{"WEB002", "Planes y precios", "Conoce los planes disponibles y sus beneficios. Escribe *suscribirse*."},
	{"WEB003", "Asesoría", "Resuelvo tus dudas sobre presencia digital y páginas web. Solo pregúntame."},
}

// Options returns the menu entries, e.g. for a list-style transport message.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// Flow is the menu as a handler dependency.
type Flow struct{}

func NewFlow() Flow { return Flow{} }

func (Flow) Render() string { return Render() }

// Render returns the menu as plain text.
func Render() string {
	text := "Esto es lo que puedo hacer por ti: 📋\n\n"
	for _, o := range options {
		text += "• *" + o.Title + "*\n  " + o.Description + "\n\n"
	}
	text += "¿Por dónde quieres empezar?"
	return text
}
