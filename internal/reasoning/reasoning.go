package reasoning

import (
	"strings"

	"github.com/rs/zerolog"

	"ktulhu/internal/router"
	"ktulhu/internal/runtime"
)

// Result carries the final prompt to generate from, plus enough
// trace information to debug why reasoning did or did not engage.
type Result struct {
	FinalPrompt string
	Steps       int
	Stage       Stage
	Debug       Debug
}

// Debug holds the intermediate artifacts of the hidden passes.
type Debug struct {
	AnalysisPrompt    string
	Analysis          string
	HiddenBlock       string
	ValidationPrompt  string
	ValidationVerdict string
}

func fallback(basePrompt string, stage Stage, steps int) Result {
	return Result{FinalPrompt: basePrompt, Stage: stage, Steps: steps}
}

// Pipeline runs hidden generation passes against the shared engine.
type Pipeline struct {
	engine runtime.Engine
	log    zerolog.Logger
}

func NewPipeline(engine runtime.Engine, log zerolog.Logger) *Pipeline {
	return &Pipeline{engine: engine, log: log}
}

// Run executes the selected mode and returns the prompt the final
// generation should use. Cancellation surfaces as ErrCanceled and
// leaves the base prompt untouched.
func (p *Pipeline) Run(mode Mode, userText, basePrompt string, profile router.ReasoningProfile, cancel *runtime.CancelFlag) (Result, error) {
	switch mode {
	case ModeAnalyzeThenAnswer:
		return p.analyzeThenAnswer(userText, basePrompt, profile, cancel)
	case ModeDecomposeThenAnswer:
		return p.decomposeThenAnswer(userText, basePrompt, profile, cancel)
	default:
		return fallback(basePrompt, StageNone, 0), nil
	}
}

func (p *Pipeline) analyzeThenAnswer(userText, basePrompt string, profile router.ReasoningProfile, cancel *runtime.CancelFlag) (Result, error) {
	analysisPrompt := buildAnalysisPrompt(userText, profile)
	analysis, err := p.runHiddenCompletion(analysisPrompt, cancel)
	if err != nil {
		return Result{}, err
	}

	var validationPrompt, verdict string
	validated := false

	if profile == router.ProfileFormalLogic || profile == router.ProfileConstraintPuzzle {
		validationPrompt = buildValidationPrompt(userText, analysis)
		verdict, err = p.runHiddenCompletion(validationPrompt, cancel)
		if err != nil {
			return Result{}, err
		}
		validated = true

		if !strings.EqualFold(strings.TrimSpace(verdict), "OK") {
			p.log.Info().
				Str("profile", profile.String()).
				Str("verdict", strings.TrimSpace(verdict)).
				Msg("validation rejected analysis; using base prompt")
			res := fallback(basePrompt, StageValidationFailed, 2)
			res.Debug = Debug{
				AnalysisPrompt:    analysisPrompt,
				Analysis:          analysis,
				ValidationPrompt:  validationPrompt,
				ValidationVerdict: strings.TrimSpace(verdict),
			}
			return res, nil
		}
	}

	steps := 1
	if validated {
		steps = 2
	}

	hidden := analysisHiddenInstruction(analysis, verdict, profile)
	if hidden == "" {
		return fallback(basePrompt, StageNone, steps), nil
	}

	return Result{
		FinalPrompt: injectHiddenBlock(basePrompt, hidden),
		Steps:       steps,
		Stage:       StageAnalyzeThenAnswer,
		Debug: Debug{
			AnalysisPrompt:    analysisPrompt,
			Analysis:          analysis,
			HiddenBlock:       hidden,
			ValidationPrompt:  validationPrompt,
			ValidationVerdict: strings.TrimSpace(verdict),
		},
	}, nil
}

func (p *Pipeline) decomposeThenAnswer(userText, basePrompt string, profile router.ReasoningProfile, cancel *runtime.CancelFlag) (Result, error) {
	decompositionPrompt := buildDecompositionPrompt(userText)
	subQuestions, err := p.runHiddenCompletion(decompositionPrompt, cancel)
	if err != nil {
		return Result{}, err
	}

	hidden := decompositionHiddenInstruction(subQuestions, profile)
	return Result{
		FinalPrompt: injectHiddenBlock(basePrompt, hidden),
		Steps:       1,
		Stage:       StageDecomposeThenAnswer,
		Debug: Debug{
			AnalysisPrompt: decompositionPrompt,
			Analysis:       subQuestions,
			HiddenBlock:    hidden,
		},
	}, nil
}
