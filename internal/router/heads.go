// Package router classifies incoming text into discrete response
// dimensions and decides how the final answer should be produced:
// straight chat, task escalation, or a reasoning-augmented pass.
package router

import (
	"fmt"
	"math"
)

// SpeechAct is what the utterance is doing, not what it is about.
type SpeechAct int

const (
	SpeechSocial SpeechAct = iota
	SpeechAsking
	SpeechDirecting
	SpeechExpressing
	SpeechSharing
	SpeechCollaborative
)

var speechActNames = [...]string{"social", "asking", "directing", "expressing", "sharing", "collaborative"}

func (s SpeechAct) String() string {
	if int(s) < len(speechActNames) {
		return speechActNames[s]
	}
	return fmt.Sprintf("speech_act(%d)", int(s))
}

// Domain is the topical field of the utterance.
type Domain int

const (
	DomainTechnical Domain = iota
	DomainGeneral
	DomainPersonal
	DomainProfessional
	DomainSocial
	DomainLegal
	DomainOther
)

var domainNames = [...]string{"technical", "general", "personal", "professional", "social", "legal", "other"}

func (d Domain) String() string {
	if int(d) < len(domainNames) {
		return domainNames[d]
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

// Expectation is what kind of response the speaker wants back.
type Expectation int

const (
	ExpectNone Expectation = iota
	ExpectInfo
	ExpectAdvice
	ExpectAction
)

var expectationNames = [...]string{"none", "info", "advice", "action"}

func (e Expectation) String() string {
	if int(e) < len(expectationNames) {
		return expectationNames[e]
	}
	return fmt.Sprintf("expectation(%d)", int(e))
}

// HeadScores are the raw per-head scores from one forward pass.
// Support is optional; a nil slice means the model has no support head.
type HeadScores struct {
	SpeechAct   []float32
	Domain      []float32
	Expectation []float32
	Support     []float32
}

// HeadModel produces raw head scores for a piece of text. The lexical
// model is the default implementation; an embedding-backed one satisfies
// the same interface.
type HeadModel interface {
	Classify(text string) (HeadScores, error)
}

// HeadPrediction is one head's resolved outcome: the winning class, its
// probability, and the full distribution.
type HeadPrediction struct {
	Index      int
	Label      string
	Confidence float32
	Probs      []float32
}

// Heads bundles the four resolved predictions of a request.
type Heads struct {
	SpeechAct   HeadPrediction
	Domain      HeadPrediction
	Expectation HeadPrediction
	// Support is the probability that the reflective-support path
	// should be taken; negative when the head is absent.
	Support float32
}

func (h Heads) speech() SpeechAct        { return SpeechAct(h.SpeechAct.Index) }
func (h Heads) domain() Domain           { return Domain(h.Domain.Index) }
func (h Heads) expectation() Expectation { return Expectation(h.Expectation.Index) }

// softmax converts raw scores to a probability distribution. Max
// subtraction keeps the exponentials finite for any input scale.
func softmax(scores []float32) []float32 {
	if len(scores) == 0 {
		return nil
	}
	maxv := scores[0]
	for _, v := range scores[1:] {
		if v > maxv {
			maxv = v
		}
	}
	probs := make([]float32, len(scores))
	var sum float64
	for i, v := range scores {
		e := math.Exp(float64(v - maxv))
		probs[i] = float32(e)
		sum += e
	}
	for i := range probs {
		probs[i] = float32(float64(probs[i]) / sum)
	}
	return probs
}

func argmax(probs []float32) (int, float32) {
	best, bestVal := 0, float32(-1)
	for i, v := range probs {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}

func predict(scores []float32, names []string) HeadPrediction {
	probs := softmax(scores)
	idx, conf := argmax(probs)
	label := ""
	if idx < len(names) {
		label = names[idx]
	}
	return HeadPrediction{Index: idx, Label: label, Confidence: conf, Probs: probs}
}

// resolveHeads turns raw scores into predictions. An absent support
// head resolves to -1 so thresholds never fire on it.
func resolveHeads(s HeadScores) Heads {
	h := Heads{
		SpeechAct:   predict(s.SpeechAct, speechActNames[:]),
		Domain:      predict(s.Domain, domainNames[:]),
		Expectation: predict(s.Expectation, expectationNames[:]),
		Support:     -1,
	}
	if len(s.Support) == 2 {
		probs := softmax(s.Support)
		h.Support = probs[1]
	}
	return h
}
