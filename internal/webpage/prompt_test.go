// internal/webpage/prompt_test.go
package webpage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"webgen-bot/internal/common/logger"
)

type fakeCompleter struct {
	output string
	err    error
	briefs []string
}

func (f *fakeCompleter) Completion(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.briefs = append(f.briefs, user)
	return f.output, f.err
}

func TestSynthesizePrompt_UsesModelOutput(t *testing.T) {
	completer := &fakeCompleter{output: "  Create a modern restaurant landing page...  "}

	prompt := SynthesizePrompt(context.Background(), completer, logger.NewTestLogger(t), Facts{
		WebsiteType: "restaurante",
	})

	assert.Equal(t, "Create a modern restaurant landing page...", prompt)
	// The brief sent to the model carries defaults for unanswered fields.
	assert.Contains(t, completer.briefs[0], "restaurante")
	assert.Contains(t, completer.briefs[0], factDefaults.Style)
}

func TestSynthesizePrompt_FallbackOnError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model unavailable")}

	prompt := SynthesizePrompt(context.Background(), completer, logger.NewTestLogger(t), Facts{
		WebsiteType: "tienda online",
		Style:       "colorido",
	})

	assert.Contains(t, prompt, "Next.js 14")
	assert.Contains(t, prompt, "tienda online")
	assert.Contains(t, prompt, "colorido")
	assert.Contains(t, prompt, factDefaults.Sections)
}

func TestSynthesizePrompt_FallbackOnEmptyOutput(t *testing.T) {
	completer := &fakeCompleter{output: "   \n"}

	prompt := SynthesizePrompt(context.Background(), completer, logger.NewTestLogger(t), Facts{})

	assert.Contains(t, prompt, "Next.js 14")
	assert.Contains(t, prompt, factDefaults.WebsiteType)
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(Facts{WebsiteType: "portafolio", Colors: "  "})

	assert.Equal(t, "portafolio", got.WebsiteType)
	assert.Equal(t, factDefaults.Colors, got.Colors, "blank answers fall back")
	assert.Equal(t, factDefaults.CallToAction, got.CallToAction)
}
