package captions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mmoto/internal/language"
	"mmoto/internal/logging"
	"mmoto/internal/services"
)

// Completer is the text-completion call the translator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Translator translates caption text through an LLM.
type Translator struct {
	client Completer
	logger *slog.Logger
}

// NewTranslator wraps client. A nil client makes every translation fail soft.
func NewTranslator(client Completer, logger *slog.Logger) *Translator {
	return &Translator{client: client, logger: logging.NewComponentLogger(logger, "translator")}
}

const translationSystemPrompt = "You translate short video narration for on-screen captions. " +
	"Return only the translated text on a single line. Keep the meaning and tone, " +
	"keep roughly one output word per input word, and do not add quotes or commentary."

// Translate returns text in language to. When from and to name the same
// language the text is returned as is. On failure the original text is
// returned together with the error so the caller can record a degradation.
func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(to) == "" || language.Same(from, to) {
		return text, nil
	}
	if t == nil || t.client == nil {
		return text, services.Wrap(services.ErrConfiguration, "captions", "translate", "no translation client configured", nil)
	}
	prompt := fmt.Sprintf("Translate from %s to %s:\n\n%s", language.DisplayName(from), language.DisplayName(to), text)
	translated, err := t.client.Complete(ctx, translationSystemPrompt, prompt)
	if err == nil && strings.TrimSpace(translated) == "" {
		err = services.Wrap(services.ErrValidation, "captions", "translate", "empty translation", nil)
	}
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, t.logger), "caption translation failed; keeping source text", "translation_failed",
			logging.String("from", from),
			logging.String("to", to),
			logging.Error(err),
			logging.String(logging.FieldImpact, "captions shown in narration language"),
			logging.String(logging.FieldErrorHint, "check [llm] api_key and model"),
		)
		return text, err
	}
	translated = strings.Join(strings.Fields(strings.Trim(strings.TrimSpace(translated), `"`)), " ")
	t.logger.Info("captions translated",
		logging.String(logging.FieldEventType, "translation"),
		logging.String("from", language.Normalize(from)),
		logging.String("to", language.Normalize(to)),
		logging.Int("source_words", len(strings.Fields(text))),
		logging.Int("translated_words", len(strings.Fields(translated))),
	)
	return translated, nil
}
