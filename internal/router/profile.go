package router

import "strings"

// ReasoningProfile selects which hidden-prompt templates and validation
// rules apply when a request escalates to the reasoning pipeline.
type ReasoningProfile int

const (
	ProfileGeneral ReasoningProfile = iota
	ProfileRegulatedDomain
	ProfileFormalLogic
	ProfileConstraintPuzzle
	ProfileMathWordProblem
	ProfileAlgorithmicCode
	ProfilePlanning
	ProfileArgumentCritique
	ProfileRiddleMetaphor
	ProfileReflectiveAnalysis
)

var profileNames = [...]string{
	"general", "regulated_domain", "formal_logic", "constraint_puzzle",
	"math_word_problem", "algorithmic_code", "planning",
	"argument_critique", "riddle_metaphor", "reflective_analysis",
}

func (p ReasoningProfile) String() string {
	if int(p) < len(profileNames) {
		return profileNames[p]
	}
	return "general"
}

var formalLogicKeywords = []string{
	"prove", "proof", "theorem", "premise", "premises", "syllogism",
	"implies", "if and only if", "contradiction", "valid argument",
	"logically follows", "deduce",
}

var constraintPuzzleKeywords = []string{
	"switch", "switches", "door", "doors", "lamp", "lamps", "room",
	"rooms", "knight", "knave", "exactly one", "each of them",
	"always lies", "always tells the truth", "puzzle",
}

var riddleKeywords = []string{
	"riddle", "metaphor", "what am i", "i have no", "i speak without",
	"the more you take",
}

var mathProblemKeywords = []string{
	"how many", "how much", "per hour", "per day", "percent", "%",
	"total of", "twice as", "half of", "sum of", "average", "km/h",
	"miles per",
}

var algorithmicKeywords = []string{
	"time complexity", "big o", "data structure", "sort", "binary search",
	"dynamic programming", "recursion", "graph traversal",
}

var planningKeywords = []string{
	"plan for", "roadmap", "schedule", "itinerary", "step-by-step plan",
	"milestones",
}

var critiqueKeywords = []string{
	"critique", "counterargument", "counter-argument", "weaknesses in",
	"flaws in", "evaluate this argument", "strawman",
}

// subtypeAcceptThreshold is empirically tuned per language; non-Latin
// and Romance inputs score systematically lower on the English keyword
// tables.
func subtypeAcceptThreshold(language string) float32 {
	lang := language
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	switch strings.ToLower(lang) {
	case "ru":
		return 0.40
	case "es", "pt":
		return 0.45
	default:
		return 0.50
	}
}

// classifyReasoningSubtype picks the closest reasoning subtype for a
// question-like text, or General when nothing clears the acceptance
// threshold.
func classifyReasoningSubtype(text, language string) ReasoningProfile {
	lower := strings.ToLower(text)
	words := len(strings.Fields(lower))
	if words == 0 {
		return ProfileGeneral
	}

	type candidate struct {
		profile  ReasoningProfile
		keywords []string
		weight   float32
	}
	candidates := []candidate{
		{ProfileFormalLogic, formalLogicKeywords, 0.30},
		{ProfileConstraintPuzzle, constraintPuzzleKeywords, 0.25},
		{ProfileRiddleMetaphor, riddleKeywords, 0.35},
		{ProfileMathWordProblem, mathProblemKeywords, 0.30},
		{ProfileAlgorithmicCode, algorithmicKeywords, 0.35},
		{ProfilePlanning, planningKeywords, 0.35},
		{ProfileArgumentCritique, critiqueKeywords, 0.35},
	}

	best := ProfileGeneral
	var bestScore float32
	for _, c := range candidates {
		score := c.weight * float32(countAny(lower, c.keywords))
		if score > 1 {
			score = 1
		}
		if score > bestScore {
			best, bestScore = c.profile, score
		}
	}

	if bestScore < subtypeAcceptThreshold(language) {
		return ProfileGeneral
	}
	return best
}

// selectProfile maps a resolved prompt key to the reasoning profile
// used by the planner. Question-like reasoning requests are refined
// into a subtype; everything else maps directly.
func selectProfile(promptKey, text, language string) ReasoningProfile {
	if promptKey == KeyRegulated {
		return ProfileRegulatedDomain
	}

	trimmed := strings.TrimSpace(text)
	if promptKey == KeyReasoning && len(trimmed) > 25 && strings.Contains(trimmed, "?") {
		return classifyReasoningSubtype(trimmed, language)
	}
	return ProfileGeneral
}
