package router

import "strings"

// splitUtterances breaks text into utterances at sentence-ending
// punctuation ('?' and '!') and at blank-line boundaries. Segments are
// trimmed; empty segments are dropped.
func splitUtterances(text string) []string {
	var segments []string
	var buf strings.Builder
	newlineStreak := 0

	flush := func() {
		trimmed := strings.TrimSpace(buf.String())
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
		buf.Reset()
	}

	for _, ch := range text {
		buf.WriteRune(ch)

		if ch == '\n' {
			newlineStreak++
			if newlineStreak >= 2 {
				flush()
				newlineStreak = 0
			}
			continue
		}
		newlineStreak = 0

		if ch == '?' || ch == '!' {
			flush()
		}
	}
	flush()

	if len(segments) == 0 && strings.TrimSpace(text) != "" {
		segments = append(segments, strings.TrimSpace(text))
	}
	return segments
}

// cleanIntentText strips leading casual markers and emoji so the
// classifier sees the substantive part of the utterance.
func cleanIntentText(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	tokens := strings.Fields(lower)

	for len(tokens) > 0 && isCasualMarker(tokens[0]) {
		tokens = tokens[1:]
	}

	return strings.TrimSpace(stripEmojis(strings.Join(tokens, " ")))
}

func isCasualMarker(token string) bool {
	switch token {
	case "lol", "haha", "lmao", "hey", "hi", "pls", "please", "omg":
		return true
	}
	return false
}

func stripEmojis(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, c := range text {
		if !isEmoji(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func isEmoji(c rune) bool {
	switch {
	case c >= 0x1F300 && c <= 0x1FAFF:
		return true
	case c >= 0x1F1E6 && c <= 0x1F1FF:
		return true
	case c >= 0x2600 && c <= 0x27BF:
		return true
	case c >= 0x1F000 && c <= 0x1F02F:
		return true
	}
	return false
}
