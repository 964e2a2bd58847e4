// Package reasoning runs the hidden pre-generation passes: an analysis
// or decomposition pass whose output is folded into the final prompt as
// a hidden system block, never shown to the user.
package reasoning

import (
	"strings"

	"ktulhu/internal/router"
)

// Mode is the reasoning strategy for one request.
type Mode int

const (
	ModeNone Mode = iota
	ModeAnalyzeThenAnswer
	ModeDecomposeThenAnswer
)

func (m Mode) String() string {
	switch m {
	case ModeAnalyzeThenAnswer:
		return "analyze_then_answer"
	case ModeDecomposeThenAnswer:
		return "decompose_then_answer"
	default:
		return "none"
	}
}

// Stage is the terminal outcome of the pipeline, including the
// validation-failure case that silently falls back to the base prompt.
type Stage int

const (
	StageNone Stage = iota
	StageAnalyzeThenAnswer
	StageDecomposeThenAnswer
	StageValidationFailed
)

func (s Stage) String() string {
	switch s {
	case StageAnalyzeThenAnswer:
		return "analyze_then_answer"
	case StageDecomposeThenAnswer:
		return "decompose_then_answer"
	case StageValidationFailed:
		return "validation_failed"
	default:
		return "none"
	}
}

// SelectMode decides the reasoning strategy from the routing outcome
// and surface features of the text. Greetings, regulated intents, and
// short statements never reason; some profiles always analyze.
func SelectMode(profile router.ReasoningProfile, promptKey string, confidence float32, text string) Mode {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ModeNone
	}

	if promptKey == router.KeyRegulated {
		return ModeNone
	}

	switch strings.ToLower(trimmed) {
	case "hi", "hello", "hey", "yo", "sup":
		return ModeNone
	}

	switch profile {
	case router.ProfileFormalLogic, router.ProfileConstraintPuzzle,
		router.ProfileMathWordProblem, router.ProfileRiddleMetaphor,
		router.ProfileReflectiveAnalysis:
		return ModeAnalyzeThenAnswer
	}

	isReasoningIntent := promptKey == router.KeyReasoning
	charCount := len([]rune(trimmed))

	if charCount < 20 && !isReasoningIntent {
		return ModeNone
	}
	if !strings.Contains(trimmed, "?") && !isReasoningIntent {
		return ModeNone
	}

	mode := ModeNone
	switch {
	case isReasoningIntent:
		mode = ModeAnalyzeThenAnswer
	case promptKey == router.KeyAdvicePractical && charCount > 120:
		mode = ModeAnalyzeThenAnswer
	case promptKey == router.KeyTaskShort && confidence < 0.7:
		mode = ModeDecomposeThenAnswer
	}

	if mode == ModeDecomposeThenAnswer && !allowDecomposition(trimmed) {
		mode = ModeAnalyzeThenAnswer
	}
	if mode == ModeNone && isReasoningCandidate(trimmed) {
		mode = ModeAnalyzeThenAnswer
	}
	return mode
}

// allowDecomposition keeps decomposition for long, genuinely
// multi-question texts; anything else is promoted back to analysis.
func allowDecomposition(text string) bool {
	return len([]rune(text)) > 120 && strings.Count(text, "?") > 1
}

var reasoningCandidateKeywords = []string{
	"should", "why", "how", "option", "choose", "choice", "trade-off",
	"tradeoff", "pros and cons", "probability", "chance", "risk",
	"uncertainty", "factors", "influence",
}

func isReasoningCandidate(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "?") {
		return false
	}
	for _, kw := range reasoningCandidateKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
