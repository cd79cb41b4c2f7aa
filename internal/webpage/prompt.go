package webpage

import (
	"context"
	"fmt"
	"strings"

	"webgen-bot/internal/common/logger"
)

// Defaults used when the user never answered a question. The synthesized
// prompt always carries every field.
var factDefaults = Facts{
	WebsiteType:        "landing page profesional",
	ProjectDescription: "una página web para un negocio o proyecto personal",
	MainObjective:      "presentar el negocio y captar clientes",
	TargetAudience:     "público general",
	Features:           "formulario de contacto y enlaces a redes sociales",
	Style:              "moderno y minimalista",
	Colors:             "paleta sobria con un color de acento",
	Content:            "textos placeholder profesionales",
	References:         "sin referencias específicas",
	Sections:           "inicio, servicios, sobre nosotros, contacto",
	CallToAction:       "contáctanos",
	AdditionalInfo:     "ninguna",
}

const synthesisSystemPrompt = `Eres un experto redactando prompts para una herramienta que genera páginas web con Next.js 14, shadcn/ui y Tailwind CSS.
A partir de los requisitos del usuario escribe UN solo prompt en inglés, claro y detallado, que describa la página completa: tipo, secciones, estilo, colores, contenido y llamada a la acción.
Reglas de la herramienta: una sola página, componentes shadcn/ui, Tailwind para estilos, diseño responsive, sin backend.
Responde únicamente con el prompt, sin explicaciones.`

// fallbackPromptTemplate is used verbatim when synthesis fails. The page
// still gets generated, just from a generic brief.
const fallbackPromptTemplate = `Create a professional single-page website using Next.js 14, shadcn/ui components and Tailwind CSS.
Type: %s. Description: %s. Objective: %s. Audience: %s.
Features: %s. Style: %s. Colors: %s. Sections: %s. Call to action: %s.
Make it fully responsive with polished spacing and typography.`

// Completer is the slice of the AI client synthesis needs.
type Completer interface {
	Completion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// withDefaults fills unanswered fields.
func withDefaults(f Facts) Facts {
	def := factDefaults
	fill := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Facts{
		WebsiteType:        fill(f.WebsiteType, def.WebsiteType),
		ProjectDescription: fill(f.ProjectDescription, def.ProjectDescription),
		MainObjective:      fill(f.MainObjective, def.MainObjective),
		TargetAudience:     fill(f.TargetAudience, def.TargetAudience),
		Features:           fill(f.Features, def.Features),
		Style:              fill(f.Style, def.Style),
		Colors:             fill(f.Colors, def.Colors),
		Content:            fill(f.Content, def.Content),
		References:         fill(f.References, def.References),
		Sections:           fill(f.Sections, def.Sections),
		CallToAction:       fill(f.CallToAction, def.CallToAction),
		AdditionalInfo:     fill(f.AdditionalInfo, def.AdditionalInfo),
	}
}

func (f Facts) brief() string {
	return fmt.Sprintf(
		"Tipo: %s\nDescripción: %s\nObjetivo: %s\nAudiencia: %s\nFuncionalidades: %s\nEstilo: %s\nColores: %s\nContenido: %s\nReferencias: %s\nSecciones: %s\nLlamada a la acción: %s\nInformación adicional: %s",
		f.WebsiteType, f.ProjectDescription, f.MainObjective, f.TargetAudience,
		f.Features, f.Style, f.Colors, f.Content, f.References, f.Sections,
		f.CallToAction, f.AdditionalInfo,
	)
}

// SynthesizePrompt builds the generation prompt from the collected facts.
// Synthesis never fails: if the model call does, the fixed fallback template
// is used. The result is computed once per job and reused across retries.
func SynthesizePrompt(ctx context.Context, completer Completer, log logger.Logger, facts Facts) string {
	full := withDefaults(facts)

	prompt, err := completer.Completion(ctx, synthesisSystemPrompt, full.brief(), 0.4, 900)
	if err != nil || strings.TrimSpace(prompt) == "" {
		log.Warn("prompt synthesis failed, using fallback template", map[string]interface{}{
			"error": errString(err),
		})
		return fmt.Sprintf(fallbackPromptTemplate,
			full.WebsiteType, full.ProjectDescription, full.MainObjective,
			full.TargetAudience, full.Features, full.Style, full.Colors,
			full.Sections, full.CallToAction,
		)
	}
	return strings.TrimSpace(prompt)
}

func errString(err error) string {
	if err == nil {
		return "empty output"
	}
	return err.Error()
}
