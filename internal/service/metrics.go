package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ktulhu/internal/reasoning"
	"ktulhu/internal/router"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ktulhu",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Completed generations by intent kind and prompt key",
		},
		[]string{"kind", "prompt_key"},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ktulhu",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time from enqueue to done event",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	reasoningPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ktulhu",
			Subsystem: "reasoning",
			Name:      "passes_total",
			Help:      "Hidden reasoning passes by mode and resulting stage",
		},
		[]string{"mode", "stage"},
	)

	reasoningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ktulhu",
			Subsystem: "reasoning",
			Name:      "duration_seconds",
			Help:      "Wall time of the hidden reasoning pipeline",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

func init() {
	prometheus.MustRegister(generationsTotal, generationDuration, reasoningPassesTotal, reasoningDuration)
}

func observeGeneration(route router.Result, dur time.Duration) {
	generationsTotal.WithLabelValues(route.Kind.String(), route.PromptKey).Inc()
	generationDuration.WithLabelValues(route.Kind.String()).Observe(dur.Seconds())
}

func observeReasoning(mode reasoning.Mode, stage reasoning.Stage, dur time.Duration) {
	if mode == reasoning.ModeNone {
		return
	}
	reasoningPassesTotal.WithLabelValues(mode.String(), stage.String()).Inc()
	reasoningDuration.Observe(dur.Seconds())
}
