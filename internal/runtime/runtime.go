// Package runtime owns the loaded native model, its execution context
// and sampler chain, and drives token-by-token decoding. The native
// library is not reentrant, so a handle is guarded by one mutex and all
// native calls run on a dedicated goroutine per generation, never on the
// caller's.
package runtime

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ktulhu/internal/stream"
)

// Config holds everything needed to load one model.
// Zero values are replaced by defaults in withDefaults.
type Config struct {
	ModelPath   string
	CtxLength   int
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
	// GPULayers < 0 offloads everything; 0 keeps the model on CPU.
	GPULayers int
	Threads   int
	BatchSize int
	// RepeatGuard aborts a generation after this many identical
	// consecutive tokens. 0 applies the default.
	RepeatGuard int
}

const (
	defaultCtxLength   = 4096
	defaultMaxTokens   = 1024
	defaultBatchSize   = 512
	defaultTopK        = 40
	defaultRepeatGuard = 32
)

func (c Config) withDefaults() Config {
	if c.CtxLength <= 0 {
		c.CtxLength = defaultCtxLength
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	if c.TopP <= 0 {
		c.TopP = 0.9
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.RepeatGuard <= 0 {
		c.RepeatGuard = defaultRepeatGuard
	}
	return c
}

// Engine is the generation surface the rest of the service depends on.
// *Runtime implements it; tests substitute fakes.
type Engine interface {
	// GenerateStream returns a channel of decoded text fragments.
	// A native failure mid-stream is delivered as one final error
	// fragment; the channel always closes when generation ends.
	GenerateStream(prompt string, cancel *CancelFlag) <-chan string
	// GenerateCompletion collects the whole stream into one string.
	GenerateCompletion(prompt string, cancel *CancelFlag) (string, error)
}

// Runtime wraps one loaded model handle. Exactly one generation runs at
// a time; concurrent callers queue on the handle mutex (the worker one
// level up makes that queueing explicit and cancellable).
type Runtime struct {
	mu  sync.Mutex
	h   *handle
	cfg Config
	log zerolog.Logger
}

// Load validates the model file, acquires the shared backend, and
// constructs model, context and sampler chain. Any native failure
// releases everything acquired so far (sampler, then context, then
// model) and the backend refcount exactly once before returning.
func Load(cfg Config, log zerolog.Logger) (*Runtime, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model not found at %s: %w", cfg.ModelPath, err)
	}
	log.Info().
		Str("model", cfg.ModelPath).
		Int("ctx", cfg.CtxLength).
		Int("max_tokens", cfg.MaxTokens).
		Float32("temperature", cfg.Temperature).
		Float32("top_p", cfg.TopP).
		Int("top_k", cfg.TopK).
		Int("gpu_layers", cfg.GPULayers).
		Int("threads", cfg.Threads).
		Msg("loading model")
	h, err := newHandle(cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{h: h, cfg: cfg, log: log}, nil
}

// Close releases the native resources in dependency order and drops the
// backend reference. Safe to call once; subsequent generations fail.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.h == nil {
		return nil
	}
	r.h.close()
	r.h = nil
	return nil
}

// GenerateStream runs one generation on a dedicated goroutine and
// streams decoded text fragments. Cancellation is polled before every
// token; it ends the stream without an error fragment.
func (r *Runtime) GenerateStream(prompt string, cancel *CancelFlag) <-chan string {
	out := make(chan string, 128)
	go func() {
		defer close(out)
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.h == nil {
			out <- "runtime error: model closed"
			return
		}
		var dec stream.Decoder
		err := r.h.run(prompt, cancel, func(piece []byte) bool {
			if text := dec.PushBytes(piece); text != "" {
				out <- text
			}
			return !cancel.Canceled()
		})
		if tail := dec.Flush(); tail != "" {
			out <- tail
		}
		if err != nil {
			r.log.Error().Err(err).Msg("generation failed")
			out <- fmt.Sprintf("runtime error: %v", err)
		}
	}()
	return out
}

// GenerateCompletion drains GenerateStream into one string. Used by
// hidden reasoning passes and the summary side-job.
func (r *Runtime) GenerateCompletion(prompt string, cancel *CancelFlag) (string, error) {
	var sb strings.Builder
	for chunk := range r.GenerateStream(prompt, cancel) {
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}
