// Package language holds the two model-backed text services: language
// detection and translation. Both are stateless and hold only a model-service
// client and the model identifier.
package language

import (
	"context"
	"strings"

	providertypes "transbot/pkg/provider/types"
)

const (
	detectInstructions    = "You are a language detection assistant."
	translateInstructions = "You are a helpful translation assistant."
)

// Completer is the model-service capability both services need.
type Completer interface {
	Complete(ctx context.Context, request providertypes.Request) (providertypes.Result, error)
}

// Detector asks the model for the two-letter code of a text's language.
type Detector struct {
	client Completer
	model  string
}

func NewDetector(client Completer, model string) *Detector {
	return &Detector{client: client, model: strings.TrimSpace(model)}
}

// Detect returns the model's answer with surrounding whitespace removed.
// The answer is not checked against any code list or length; errors from the
// model service are returned as is.
func (d *Detector) Detect(ctx context.Context, text string) (string, error) {
	result, err := d.client.Complete(ctx, providertypes.Request{
		Model:        d.model,
		Instructions: detectInstructions,
		Input:        detectPrompt(text),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(result.Text), nil
}

// Translator asks the model to translate text into a target language.
type Translator struct {
	client Completer
	model  string
}

func NewTranslator(client Completer, model string) *Translator {
	return &Translator{client: client, model: strings.TrimSpace(model)}
}

// Translate returns the trimmed model output as the translation of text into
// targetLang. targetLang is free-form and embedded verbatim in the prompt.
func (t *Translator) Translate(ctx context.Context, text string, targetLang string) (string, error) {
	result, err := t.client.Complete(ctx, providertypes.Request{
		Model:        t.model,
		Instructions: translateInstructions,
		Input:        translatePrompt(text, targetLang),
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(result.Text), nil
}

func detectPrompt(text string) string {
	return "Detect the language of the following text and respond ONLY with a two-letter code:\n\n" + text
}

func translatePrompt(text string, targetLang string) string {
	return "Translate the following text to " + targetLang + ":\n\n" + text
}
