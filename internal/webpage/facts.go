// Package webpage holds the page creation pipeline: the requirement
// interview, structured fact extraction, prompt synthesis, and the hand-off
// to the generation submitter.
package webpage

import (
	"context"
	"encoding/json"

	"github.com/xeipuuv/gojsonschema"

	"webgen-bot/internal/common/logger"
)

// Facts are the structured requirements extracted from user text. Only
// information the user stated explicitly is filled in; everything else stays
// empty and gets a default at synthesis time.
type Facts struct {
	WebsiteType        string `json:"websiteType,omitempty"`
	ProjectDescription string `json:"projectDescription,omitempty"`
	MainObjective      string `json:"mainObjective,omitempty"`
	TargetAudience     string `json:"targetAudience,omitempty"`
	Features           string `json:"features,omitempty"`
	Style              string `json:"style,omitempty"`
	Colors             string `json:"colors,omitempty"`
	Content            string `json:"content,omitempty"`
	References         string `json:"references,omitempty"`
	Sections           string `json:"sections,omitempty"`
	CallToAction       string `json:"callToAction,omitempty"`
	AdditionalInfo     string `json:"additionalInfo,omitempty"`
}

// IsEmpty reports whether nothing was extracted.
func (f Facts) IsEmpty() bool {
	return f == Facts{}
}

const factsSchema = `{
	"type": "object",
	"properties": {
		"websiteType":        {"type": "string"},
		"projectDescription": {"type": "string"},
		"mainObjective":      {"type": "string"},
		"targetAudience":     {"type": "string"},
		"features":           {"type": "string"},
		"style":              {"type": "string"},
		"colors":             {"type": "string"},
		"content":            {"type": "string"},
		"references":         {"type": "string"},
		"sections":           {"type": "string"},
		"callToAction":       {"type": "string"},
		"additionalInfo":     {"type": "string"}
	},
	"additionalProperties": false
}`

var factsSchemaLoader = gojsonschema.NewStringLoader(factsSchema)

const extractionSystemPrompt = `Analiza la solicitud del usuario para crear una página web y extrae SOLO la información que el usuario menciona explícitamente.
Responde con un objeto JSON con estas claves (omite las que el usuario no mencione):
websiteType, projectDescription, mainObjective, targetAudience, features, style, colors, content, references, sections, callToAction, additionalInfo.
Todos los valores deben ser strings. No inventes información.`

// JSONCompleter is the slice of the AI client the extractor needs.
type JSONCompleter interface {
	CompletionJSON(ctx context.Context, system, user string, temperature float64) (json.RawMessage, error)
}

// ExtractFacts pulls structured requirements out of free text. It never
// fails: malformed or schema-invalid model output degrades to empty facts.
func ExtractFacts(ctx context.Context, completer JSONCompleter, log logger.Logger, text string) Facts {
	raw, err := completer.CompletionJSON(ctx, extractionSystemPrompt, text, 0.3)
	if err != nil {
		log.Warn("fact extraction failed, using empty facts", map[string]interface{}{
			"error": err.Error(),
		})
		return Facts{}
	}

	result, err := gojsonschema.Validate(factsSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil || !result.Valid() {
		log.Warn("fact extraction produced invalid shape, using empty facts", map[string]interface{}{
			"valid": err == nil && result.Valid(),
		})
		return Facts{}
	}

	var facts Facts
	if err := json.Unmarshal(raw, &facts); err != nil {
		log.Warn("fact extraction unmarshal failed, using empty facts", map[string]interface{}{
			"error": err.Error(),
		})
		return Facts{}
	}
	return facts
}
