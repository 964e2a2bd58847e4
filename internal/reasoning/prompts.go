package reasoning

import "ktulhu/internal/router"

// Hidden-pass templates. These are model-facing instructions for the
// analysis, validation, and decomposition passes; none of this text is
// ever shown to the user.

const (
	generalAnalysis = "You are an internal analyst. Identify what is actually being asked, the key facts given, the unknowns, and any hidden assumptions. Produce a short structured analysis (at most 8 lines). Do not answer the question itself."

	formalLogicAnalysis = "You are an internal logic checker. Restate the premises precisely, note the logical form of each, and derive what follows step by step using valid inference rules only. Flag any premise that is ambiguous. Do not state the final answer."

	constraintPuzzleAnalysis = "You are an internal constraint solver. List every entity and every constraint explicitly, then propagate the constraints, eliminating impossible assignments one at a time. Record the surviving assignments. Do not state the final answer."

	mathAnalysis = "You are an internal math scratchpad. Extract the quantities and units, write the relationships as equations, and solve symbolically before substituting numbers. Check units at each step. Do not state the final answer."

	algorithmicAnalysis = "You are an internal algorithm designer. State the input/output contract, identify the core operation and its cost, and sketch the approach with its time and space complexity. Do not write final code."

	planningAnalysis = "You are an internal planner. Identify the goal, the constraints, the dependencies between steps, and a sensible ordering. Note risks that could invalidate the plan. Do not present the plan itself."

	critiqueAnalysis = "You are an internal argument examiner. Restate the claim, list the supporting premises, and probe each for weaknesses: unsupported leaps, missing evidence, alternative explanations. Do not deliver the verdict."

	riddleAnalysis = "You are an internal riddle solver. Take each image in the riddle literally and figuratively, list candidate answers, and test each candidate against every line. Keep only candidates consistent with all lines. Do not state the final answer."

	reflectiveAnalysis = "You are an internal reflection aid. Identify the feelings expressed, the situation behind them, and what the person seems to need from the exchange. Note anything that should be acknowledged before any content. Do not draft the reply."

	validationPrompt = "You are a strict verifier. You will receive a USER question and an ANALYSIS of it. If the analysis is logically consistent and sufficient to answer the question, reply with exactly OK and nothing else. Otherwise reply with exactly INSUFFICIENT or INCONSISTENT."

	decompositionPrompt = "You are an internal decomposer. Break the user's request into 2-5 numbered sub-questions that together fully cover it. Output only the numbered sub-questions, nothing else."

	constraintsStrict = "Response behavior: rely on the internal notes above, do not mention or quote them, do not show intermediate work, and do not reveal that any internal analysis took place."

	constraintsLight = "Response behavior: you may use the internal notes above for guidance but never mention them."

	generalFinalRules = "Final response rules: answer directly and concisely, state the conclusion first, and add at most a brief justification."

	riddleFinalRules = "Final response rules: give the single best answer to the riddle in one sentence, then one sentence explaining the key image that confirms it."
)

var analysisTemplates = map[router.ReasoningProfile]string{
	router.ProfileGeneral:            generalAnalysis,
	router.ProfileFormalLogic:        formalLogicAnalysis,
	router.ProfileConstraintPuzzle:   constraintPuzzleAnalysis,
	router.ProfileMathWordProblem:    mathAnalysis,
	router.ProfileAlgorithmicCode:    algorithmicAnalysis,
	router.ProfilePlanning:           planningAnalysis,
	router.ProfileArgumentCritique:   critiqueAnalysis,
	router.ProfileRiddleMetaphor:     riddleAnalysis,
	router.ProfileReflectiveAnalysis: reflectiveAnalysis,
}

func analysisSystemPrompt(profile router.ReasoningProfile) string {
	if t, ok := analysisTemplates[profile]; ok {
		return t
	}
	return generalAnalysis
}

func finalResponseRules(profile router.ReasoningProfile) string {
	if profile == router.ProfileRiddleMetaphor {
		return riddleFinalRules
	}
	return generalFinalRules
}
