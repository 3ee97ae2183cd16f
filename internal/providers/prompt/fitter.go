package prompt

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Summarizer condenses a prompt to fit under maxChars while keeping its
// visual and timing detail.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxChars int) (string, error)
}

// Fitter guarantees a prompt fits a provider's hard character budget. It
// never fails: when summarization cannot produce a fitting result, the prompt
// is hard-truncated. Losing a few trailing characters beats losing the whole
// upstream composition.
type Fitter struct {
	summarizer Summarizer
	logger     zerolog.Logger
}

func NewFitter(summarizer Summarizer, logger zerolog.Logger) *Fitter {
	return &Fitter{summarizer: summarizer, logger: logger}
}

// Fit returns prompt unchanged when it already fits, a summarized version
// when the summarizer can produce one under the limit, and a hard truncation
// otherwise. Fitting an already-fitting prompt is the identity.
func (f *Fitter) Fit(ctx context.Context, prompt string, max int) string {
	if max < 1 {
		return prompt
	}
	if runeLen(prompt) <= max {
		return prompt
	}

	if f.summarizer != nil {
		out, err := f.summarizer.Summarize(ctx, prompt, max)
		if err == nil {
			out = strings.TrimSpace(out)
			if out != "" && runeLen(out) <= max {
				return out
			}
			f.logger.Warn().
				Int("max", max).
				Int("got", runeLen(out)).
				Msg("fit: summary over budget, truncating")
		} else {
			f.logger.Warn().Err(err).Msg("fit: summarizer failed, truncating")
		}
	}

	return truncateRunes(prompt, max)
}
