// Package chatml frames multi-turn conversations with explicit turn
// markers and reverses that framing on model output. The two marker
// literals double as the model's stop sequences, so every consumer of
// generated text goes through StripMarkers/TrimPartial before display.
package chatml

import (
	"strings"

	"ktulhu/pkg/types"
)

// Structural delimiters. MarkerStart consumes through the following
// newline when stripped; MarkerEnd consumes one following newline.
const (
	MarkerStart = "<|im_start|>"
	MarkerEnd   = "<|im_end|>"
)

// StopSequences are the sequences generation must halt on.
var StopSequences = []string{MarkerEnd, MarkerStart}

// Turn is one model-visible conversation entry.
type Turn struct {
	Role        string
	Text        string
	Attachments []string
}

// TurnsFromMessages converts persisted messages to prompt turns,
// dropping roles the model should never see.
func TurnsFromMessages(msgs []types.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem, types.RoleUser, types.RoleAssistant:
		default:
			continue
		}
		turns = append(turns, Turn{Role: m.Role, Text: m.Text, Attachments: m.Attachments})
	}
	return turns
}

// BuildPrompt assembles the full prompt: one system block when present,
// one block per non-empty turn, then an assistant block that is left
// open: the model is expected to emit MarkerEnd itself.
func BuildPrompt(history []Turn, systemPrompt string) string {
	var out strings.Builder
	if systemPrompt != "" {
		writeBlock(&out, types.RoleSystem, Sanitize(systemPrompt))
	}
	for _, turn := range history {
		if turn.Text == "" {
			continue
		}
		text := Sanitize(turn.Text)
		if len(turn.Attachments) > 0 {
			var note strings.Builder
			note.WriteString(text)
			note.WriteString("\n\nAttached:")
			for _, a := range turn.Attachments {
				note.WriteString("\n- ")
				note.WriteString(Sanitize(a))
			}
			text = note.String()
		}
		writeBlock(&out, turn.Role, text)
	}
	out.WriteString(MarkerStart)
	out.WriteString(types.RoleAssistant)
	out.WriteByte('\n')
	return out.String()
}

func writeBlock(out *strings.Builder, role, text string) {
	out.WriteString(MarkerStart)
	out.WriteString(role)
	out.WriteByte('\n')
	out.WriteString(text)
	out.WriteByte('\n')
	out.WriteString(MarkerEnd)
	out.WriteByte('\n')
}

var sanitizer = strings.NewReplacer("<|", "<\\|", "|>", "|\\>")

// Sanitize escapes the structural delimiters inside user-supplied text
// so it cannot forge a turn boundary.
func Sanitize(text string) string { return sanitizer.Replace(text) }

// StripMarkers removes structural markers and their role headers from
// generated text. Idempotent: stripped text strips to itself.
func StripMarkers(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	for i := 0; i < len(text); {
		rest := text[i:]
		if strings.HasPrefix(rest, MarkerStart) {
			i += len(MarkerStart)
			if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
				i += nl + 1
			} else {
				break
			}
			continue
		}
		if strings.HasPrefix(rest, MarkerEnd) {
			i += len(MarkerEnd)
			if i < len(text) && text[i] == '\n' {
				i++
			}
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

// TrimPartial truncates text at the earliest point where any stop
// sequence begins, including a partially-emitted prefix at the very end
// of the string. A caller can therefore display a growing stream without
// ever showing a half-formed stop marker.
func TrimPartial(text string, stops []string) string {
	// Trimming at one stop can expose a partial of another at the new
	// end of the string, so iterate until the text is stable.
	for {
		cut := earliestStop(text, stops)
		if cut == len(text) {
			return text
		}
		text = text[:cut]
	}
}

func earliestStop(text string, stops []string) int {
	cut := len(text)
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if idx := strings.Index(text, stop); idx >= 0 && idx < cut {
			cut = idx
		}
		// A trailing prefix of the stop may still be mid-emission.
		limit := len(stop) - 1
		if limit > len(text) {
			limit = len(text)
		}
		for l := limit; l >= 1; l-- {
			if strings.HasSuffix(text, stop[:l]) && len(text)-l < cut {
				cut = len(text) - l
				break
			}
		}
	}
	// Back off one more character rather than split a delimiter's
	// leading byte at the truncation point.
	for cut > 0 && leadsStop(text[cut-1], stops) {
		cut--
	}
	return cut
}

func leadsStop(b byte, stops []string) bool {
	for _, stop := range stops {
		if stop != "" && stop[0] == b {
			return true
		}
	}
	return false
}
