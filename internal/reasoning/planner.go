package reasoning

import (
	"fmt"
	"strings"

	"ktulhu/internal/chatml"
	"ktulhu/internal/router"
)

// buildHiddenPrompt frames a hidden pass as a minimal two-turn ChatML
// exchange with an open assistant block.
func buildHiddenPrompt(systemText, userText string) string {
	var b strings.Builder
	b.WriteString(chatml.MarkerStart)
	b.WriteString("system\n")
	b.WriteString(chatml.Sanitize(systemText))
	b.WriteString("\n")
	b.WriteString(chatml.MarkerEnd)
	b.WriteString("\n")
	b.WriteString(chatml.MarkerStart)
	b.WriteString("user\n")
	b.WriteString(chatml.Sanitize(userText))
	b.WriteString("\n")
	b.WriteString(chatml.MarkerEnd)
	b.WriteString("\n")
	b.WriteString(chatml.MarkerStart)
	b.WriteString("assistant\n")
	return b.String()
}

func buildAnalysisPrompt(userText string, profile router.ReasoningProfile) string {
	return buildHiddenPrompt(analysisSystemPrompt(profile), userText)
}

func buildValidationPrompt(userText, analysis string) string {
	userSection := fmt.Sprintf("USER:\n%s\n\nANALYSIS:\n%s",
		strings.TrimSpace(userText), strings.TrimSpace(analysis))
	return buildHiddenPrompt(validationPrompt, userSection)
}

func buildDecompositionPrompt(userText string) string {
	return buildHiddenPrompt(decompositionPrompt, userText)
}

// analysisHiddenInstruction assembles the hidden block injected into
// the final prompt after a successful analysis pass.
func analysisHiddenInstruction(analysis, validationVerdict string, profile router.ReasoningProfile) string {
	trimmed := strings.TrimSpace(analysis)
	if trimmed == "" {
		return ""
	}

	if profile == router.ProfileRiddleMetaphor {
		var b strings.Builder
		b.WriteString("[INTERNAL_REASONING]\n")
		b.WriteString(trimmed)
		b.WriteString("\n\n")
		b.WriteString(finalResponseRules(profile))
		b.WriteString("\n")
		return b.String()
	}

	var b strings.Builder
	b.WriteString("[INTERNAL_ANALYSIS]\n")
	b.WriteString(trimmed)
	b.WriteString("\n\n")

	verdict := strings.ToUpper(strings.TrimSpace(validationVerdict))
	if verdict == "INSUFFICIENT" || verdict == "INCONSISTENT" {
		b.WriteString("[VALIDATION_WARNING]\n")
		b.WriteString("Analysis may be insufficient or inconsistent.\n\n")
	}

	b.WriteString(constraintsStrict)
	b.WriteString("\n")
	b.WriteString(finalResponseRules(profile))
	b.WriteString("\n")
	return b.String()
}

func decompositionHiddenInstruction(subQuestions string, profile router.ReasoningProfile) string {
	return fmt.Sprintf(
		"[INTERNAL_NOTE]\nBreak the problem into sub-steps internally before answering.\n\n%s\n\n%s\n%s\n",
		strings.TrimSpace(subQuestions), constraintsStrict, finalResponseRules(profile))
}

// injectHiddenBlock places the hidden text as a system block directly
// before the final assistant marker; if no assistant marker exists the
// block is appended at the end.
func injectHiddenBlock(basePrompt, hiddenText string) string {
	assistantMarker := chatml.MarkerStart + "assistant\n"
	sanitized := chatml.Sanitize(strings.TrimSpace(hiddenText))

	if idx := strings.LastIndex(basePrompt, assistantMarker); idx >= 0 {
		var b strings.Builder
		b.Grow(len(basePrompt) + len(sanitized) + 32)
		b.WriteString(basePrompt[:idx])
		b.WriteString(chatml.MarkerStart)
		b.WriteString("system\n")
		b.WriteString(sanitized)
		b.WriteString("\n")
		b.WriteString(chatml.MarkerEnd)
		b.WriteString("\n")
		b.WriteString(basePrompt[idx:])
		return b.String()
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n")
	b.WriteString(chatml.MarkerStart)
	b.WriteString("system\n")
	b.WriteString(sanitized)
	b.WriteString("\n")
	b.WriteString(chatml.MarkerEnd)
	b.WriteString("\n")
	return b.String()
}
