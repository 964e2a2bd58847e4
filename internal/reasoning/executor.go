package reasoning

import (
	"errors"
	"strings"

	"ktulhu/internal/chatml"
	"ktulhu/internal/runtime"
	"ktulhu/internal/stream"
)

// ErrCanceled aborts the whole reasoning pipeline; no partial hidden
// block is ever injected.
var ErrCanceled = errors.New("reasoning canceled")

// runHiddenCompletion runs one synchronous generation pass and strips
// the protocol framing from its output.
func (p *Pipeline) runHiddenCompletion(prompt string, cancel *runtime.CancelFlag) (string, error) {
	if cancel.Canceled() {
		return "", ErrCanceled
	}

	p.log.Debug().Int("prompt_len", len(prompt)).Msg("hidden completion starting")

	out, err := p.engine.GenerateCompletion(prompt, cancel)
	if err != nil {
		return "", err
	}
	if cancel.Canceled() {
		return "", ErrCanceled
	}

	// Fold any byte-fallback stand-ins back into text before the
	// framing is stripped.
	cleaned := chatml.StripMarkers(stream.NormalizeFragment(out))
	trimmed := chatml.TrimPartial(cleaned, chatml.StopSequences)
	p.log.Debug().
		Int("output_len", len(trimmed)).
		Bool("stop_applied", len(cleaned) != len(trimmed)).
		Msg("hidden completion done")

	return strings.TrimSpace(trimmed), nil
}
