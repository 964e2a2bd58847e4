package router

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RoutingPath says which layer answers the request: the chat layer
// responds directly, the task layer may escalate into the reasoning
// pipeline first.
type RoutingPath int

const (
	ChatLayer RoutingPath = iota
	TaskLayer
)

func (p RoutingPath) String() string {
	if p == TaskLayer {
		return "task_layer"
	}
	return "chat_layer"
}

// IntentKind is the coarse resolved category of a request.
type IntentKind int

const (
	KindChat IntentKind = iota
	KindTask
	KindReasoning
)

func (k IntentKind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindReasoning:
		return "reasoning"
	default:
		return "chat"
	}
}

// Config holds the tuned routing thresholds. The defaults are
// empirical; treat them as configuration, not constants.
type Config struct {
	// SupportThreshold is the support-head probability above which
	// the reflective-support path preempts all other routing.
	SupportThreshold float32
	// ConfidenceThreshold gates how much the head predictions are
	// trusted before a low-confidence note is attached.
	ConfidenceThreshold float32
	// ClarificationThreshold marks predictions weak enough that the
	// caller may want to ask a clarifying question instead.
	ClarificationThreshold float32
	// MultiIntentMinLen is the minimum significant utterance length
	// (in runes) for the multi-intent check.
	MultiIntentMinLen int
}

func (c Config) withDefaults() Config {
	if c.SupportThreshold <= 0 {
		c.SupportThreshold = 0.75
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.65
	}
	if c.ClarificationThreshold <= 0 {
		c.ClarificationThreshold = 0.5
	}
	if c.MultiIntentMinLen <= 0 {
		c.MultiIntentMinLen = 40
	}
	return c
}

// Result is the full routing outcome for one request. Pure value,
// recomputed per request, never persisted.
type Result struct {
	Heads               Heads
	MultiIntent         bool
	ClarificationNeeded bool
	Kind                IntentKind
	PromptKey           string
	Path                RoutingPath
	Profile             ReasoningProfile
	Confidence          float32
	Notes               []string
}

func (r *Result) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Router classifies request text and resolves a prompt key, routing
// path, and reasoning profile for it.
type Router struct {
	model HeadModel
	cfg   Config
	log   zerolog.Logger
}

func New(model HeadModel, cfg Config, log zerolog.Logger) *Router {
	return &Router{model: model, cfg: cfg.withDefaults(), log: log}
}

// Route runs the full pipeline: segmentation, head classification,
// reinterpretation, support override, the ordered routing table, and
// profile selection. It never fails; classifier errors degrade to the
// general reasoning profile.
func (r *Router) Route(text, language string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		res := Result{PromptKey: DefaultPromptKey, Path: ChatLayer, Kind: KindChat, Profile: ProfileGeneral}
		res.note("empty input; default chat behavior")
		return res
	}

	utterances := splitUtterances(trimmed)
	significant := 0
	for _, u := range utterances {
		if len([]rune(u)) >= r.cfg.MultiIntentMinLen {
			significant++
		}
	}

	target := trimmed
	if len(utterances) > 0 {
		target = utterances[0]
	}

	if cleaned := cleanIntentText(target); cleaned != "" {
		target = cleaned
	}

	scores, err := r.model.Classify(target)
	if err != nil {
		r.log.Warn().Err(err).Msg("head classification failed; defaulting to general reasoning")
		res := Result{PromptKey: KeyReasoning, Path: TaskLayer, Kind: KindReasoning, Profile: ProfileGeneral}
		res.note("classifier error; general reasoning fallback")
		return res
	}

	heads := resolveHeads(scores)
	res := Result{Heads: heads, Profile: ProfileGeneral}
	res.Confidence = jointConfidence(heads)

	if significant > 1 {
		res.MultiIntent = true
		res.note("multiple significant utterances detected")
	}

	speech := heads.speech()
	domain := heads.domain()
	expect := heads.expectation()

	// Directing plus an advice expectation in a personal or social
	// context is almost always the user asking, not commanding.
	if speech == SpeechDirecting && expect == ExpectAdvice &&
		(domain == DomainPersonal || domain == DomainSocial) {
		res.note("reinterpreted directing as expressing (advice in %s domain)", domain)
		speech = SpeechExpressing
	}

	if heads.Support >= r.cfg.SupportThreshold {
		res.note("support head fired (%.2f); reflective support path", heads.Support)
		res.PromptKey = KeyReflectiveSupport
		res.Path = ChatLayer
		res.Kind = KindChat
		r.logResult(&res, target)
		return res
	}

	lower := strings.ToLower(trimmed)
	res.PromptKey, res.Path = routeTable(speech, domain, expect, lower, &res)

	if res.Path == TaskLayer {
		res.Profile = selectProfile(res.PromptKey, trimmed, language)
	}

	// Technical requests that want substantive content get the
	// reasoning treatment even when the table chose a softer prompt.
	if domain == DomainTechnical && expect != ExpectNone &&
		res.PromptKey != KeyReasoning && res.PromptKey != KeyAdvicePractical {
		res.note("technical domain forced %s -> %s", res.PromptKey, KeyReasoning)
		res.PromptKey = KeyReasoning
		res.Path = TaskLayer
		res.Profile = selectProfile(res.PromptKey, trimmed, language)
	}

	if res.Confidence < r.cfg.ConfidenceThreshold {
		res.note("confidence %.2f below threshold", res.Confidence)
	}
	res.ClarificationNeeded = res.Confidence < r.cfg.ClarificationThreshold && len(res.Notes) == 0

	res.Kind = kindFor(res.PromptKey, res.Path)
	r.logResult(&res, target)
	return res
}

// routeTable is the ordered rule set; first match wins and earlier
// rules deliberately shadow later ones.
func routeTable(speech SpeechAct, domain Domain, expect Expectation, lower string, res *Result) (string, RoutingPath) {
	prefTopic := isPreferenceTopic(lower)

	switch {
	case speech == SpeechExpressing && domain == DomainPersonal && expect == ExpectAdvice:
		return KeyChatNarrative, ChatLayer

	case speech == SpeechExpressing && domain == DomainPersonal && prefTopic:
		return KeyCasualOpinion, ChatLayer

	case expect == ExpectNone && domain == DomainPersonal &&
		(speech == SpeechDirecting || speech == SpeechExpressing):
		return KeyChatNarrative, ChatLayer

	case speech == SpeechExpressing:
		if domain == DomainTechnical && expect == ExpectNone {
			return KeyOpinionReflective, ChatLayer
		}
		return KeyChatCasual, ChatLayer

	case speech == SpeechDirecting && (expect == ExpectInfo || expect == ExpectAdvice) &&
		(domain == DomainTechnical || domain == DomainLegal):
		res.note("task escalation: directing %s in %s domain", expect, domain)
		if domain == DomainLegal {
			return KeyRegulated, TaskLayer
		}
		return KeyReasoning, TaskLayer

	case speech == SpeechAsking && domain != DomainSocial:
		res.note("task escalation: asking in %s domain", domain)
		switch {
		case domain == DomainLegal:
			return KeyRegulated, TaskLayer
		case domain == DomainTechnical:
			return KeyReasoning, TaskLayer
		case expect == ExpectAdvice:
			return KeyAdvicePractical, TaskLayer
		default:
			return KeyTaskShort, TaskLayer
		}

	case speech == SpeechDirecting && domain == DomainTechnical:
		return KeyReasoning, TaskLayer

	case speech == SpeechCollaborative:
		return KeyRapport, ChatLayer
	}

	return fallbackRoute(domain, lower, res)
}

// fallbackRoute is chat-first: only hard lexical signals or a
// regulated domain escalate past the chat layer.
func fallbackRoute(domain Domain, lower string, res *Result) (string, RoutingPath) {
	switch {
	case startsWithTaskCommand(lower):
		res.note("fallback: task command phrasing")
		return KeyTaskShort, TaskLayer
	case containsCultureKeywords(lower):
		res.note("fallback: culture keywords")
		return KeyCultureContext, ChatLayer
	case containsAdvicePatterns(lower):
		res.note("fallback: advice phrasing")
		return KeyAdvicePractical, ChatLayer
	}

	switch domain {
	case DomainLegal:
		return KeyRegulated, TaskLayer
	case DomainTechnical:
		return KeyTaskShort, TaskLayer
	case DomainProfessional:
		return KeyAdvicePractical, ChatLayer
	default:
		return KeyChatCasual, ChatLayer
	}
}

func kindFor(promptKey string, path RoutingPath) IntentKind {
	switch {
	case promptKey == KeyReasoning || promptKey == KeyRegulated:
		return KindReasoning
	case path == TaskLayer:
		return KindTask
	default:
		return KindChat
	}
}

// jointConfidence is the weakest of the three head confidences; the
// routing rules depend on all of them being right.
func jointConfidence(h Heads) float32 {
	c := h.SpeechAct.Confidence
	if h.Domain.Confidence < c {
		c = h.Domain.Confidence
	}
	if h.Expectation.Confidence < c {
		c = h.Expectation.Confidence
	}
	return c
}

func (r *Router) logResult(res *Result, target string) {
	r.log.Debug().
		Str("speech_act", res.Heads.SpeechAct.Label).
		Str("domain", res.Heads.Domain.Label).
		Str("expectation", res.Heads.Expectation.Label).
		Str("prompt_key", res.PromptKey).
		Str("path", res.Path.String()).
		Str("profile", res.Profile.String()).
		Bool("multi_intent", res.MultiIntent).
		Float32("confidence", res.Confidence).
		Strs("notes", res.Notes).
		Str("target", target).
		Msg("intent routed")
}
