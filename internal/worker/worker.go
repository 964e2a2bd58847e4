// Package worker provides single-flight admission control over the one
// available model runtime: a bounded FIFO queue with one consumer, so
// exactly one generation runs at a time and waiting is explicit and
// cancellable rather than hidden behind the runtime mutex.
package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ktulhu/internal/chatml"
	"ktulhu/internal/runtime"
	"ktulhu/internal/store"
	"ktulhu/pkg/types"
)

// ErrQueueFull is returned by Enqueue when the queue is at capacity
// and the caller's deadline expires before space frees up.
var ErrQueueFull = errors.New("generation queue full")

// ErrClosed is returned when enqueueing after Close.
var ErrClosed = errors.New("generation worker closed")

const warmupChatID = "__warmup__"

// Job is one generation request, owned by the worker from enqueue to
// completion.
type Job struct {
	Prompt    string
	ChatID    string
	SessionID string
	// Events receives assistant fragments, the done event, and an
	// optional summary event. The worker never closes it.
	Events chan<- types.StreamEvent
	// Ctx represents the caller's interest in the stream; when it is
	// done, forwarding stops but persistence still happens.
	Ctx    context.Context
	Cancel *runtime.CancelFlag
}

// Worker is the bounded single-consumer job queue.
type Worker struct {
	jobs     chan *Job
	engine   runtime.Engine
	store    store.Store
	log      zerolog.Logger
	inflight atomic.Int32
	closed   atomic.Bool
	quit     chan struct{}
	done     chan struct{}
}

// New starts the consumer goroutine. queueSize bounds how many jobs
// may wait; a zero or negative value gets a small default.
func New(engine runtime.Engine, st store.Store, queueSize int, log zerolog.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 8
	}
	w := &Worker{
		jobs:   make(chan *Job, queueSize),
		engine: engine,
		store:  st,
		log:    log,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

// The jobs channel is never closed: producers only ever race against
// the quit signal, not against close, so a late Enqueue cannot panic.
func (w *Worker) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.quit:
			for {
				select {
				case job := <-w.jobs:
					w.run(job)
				default:
					return
				}
			}
		case job := <-w.jobs:
			w.run(job)
		}
	}
}

func (w *Worker) run(job *Job) {
	w.inflight.Store(1)
	w.processJob(job)
	w.inflight.Store(0)
}

// Close stops accepting jobs and waits for already-queued work to
// drain.
func (w *Worker) Close() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.quit)
	}
	<-w.done
}

// Enqueue blocks until there is queue space, the context expires, or
// the worker is closed. ErrQueueFull means the queue stayed full for
// the caller's whole deadline; a caller that merely went away gets its
// own context error back instead.
func (w *Worker) Enqueue(ctx context.Context, job *Job) error {
	if w.closed.Load() {
		return ErrClosed
	}
	select {
	case w.jobs <- job:
		return nil
	default:
	}
	select {
	case w.jobs <- job:
		return nil
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrQueueFull
		}
		return ctx.Err()
	}
}

// TryEnqueue returns false immediately when the queue is full.
func (w *Worker) TryEnqueue(job *Job) bool {
	if w.closed.Load() {
		return false
	}
	select {
	case w.jobs <- job:
		return true
	default:
		return false
	}
}

// QueueLen is the number of jobs currently waiting.
func (w *Worker) QueueLen() int { return len(w.jobs) }

// Capacity is the configured queue bound.
func (w *Worker) Capacity() int { return cap(w.jobs) }

// Inflight reports whether a job is being processed right now.
func (w *Worker) Inflight() bool { return w.inflight.Load() == 1 }

// WarmupJob exercises the full token path once at startup so the first
// real request does not pay model warm-up latency. Its output is
// discarded and never persisted.
func WarmupJob() *Job {
	events := make(chan types.StreamEvent, 8)
	go func() {
		for range events {
		}
	}()
	return &Job{
		Prompt:    "Hello",
		ChatID:    warmupChatID,
		SessionID: warmupChatID,
		Events:    events,
		Ctx:       context.Background(),
		Cancel:    runtime.NewCancelFlag(),
	}
}

func (w *Worker) processJob(job *Job) {
	if job.Cancel.Canceled() {
		return
	}
	if job.Ctx != nil && job.Ctx.Err() != nil {
		return
	}

	isWarmup := job.ChatID == warmupChatID

	w.log.Info().
		Str("chat_id", job.ChatID).
		Str("session_id", job.SessionID).
		Msg("starting generation stream")

	stream := w.engine.GenerateStream(job.Prompt, job.Cancel)

	var rawReply strings.Builder
	var assistantReply strings.Builder

	for token := range stream {
		if isWarmup {
			break // first token proves the path works
		}
		if job.Cancel.Canceled() {
			break
		}

		rawReply.WriteString(token)
		raw := rawReply.String()
		sawMarker := strings.Contains(raw, "<|im") || strings.Contains(raw, "<im_")

		// Cut at the earliest stop sequence first so text after an
		// end-of-turn marker never reaches the caller, then strip any
		// stray complete markers.
		trimmed := chatml.StripMarkers(chatml.TrimPartial(raw, chatml.StopSequences))

		// Forward only the delta beyond what was already emitted.
		if len(trimmed) <= assistantReply.Len() {
			if sawMarker {
				w.log.Info().Str("chat_id", job.ChatID).Msg("stop sequence detected (no delta)")
				break
			}
			continue
		}
		delta := trimmed[assistantReply.Len():]
		assistantReply.WriteString(delta)

		if !w.forward(job, types.StreamEvent{Type: "assistant", ChatID: job.ChatID, Token: delta}) {
			break
		}
		if sawMarker {
			w.log.Info().Str("chat_id", job.ChatID).Msg("stop sequence detected in stream")
			break
		}
	}

	// Let the runtime terminate cleanly even when we stopped early.
	job.Cancel.Cancel()
	for range stream {
	}

	if isWarmup {
		return
	}

	finalText := chatml.TrimPartial(assistantReply.String(), chatml.StopSequences)
	w.persist(job, finalText)
	w.maybeSummarize(job)

	w.forward(job, types.StreamEvent{Type: "assistant", ChatID: job.ChatID, Done: true})
}

// forward delivers an event unless the caller has gone away. It never
// blocks forever: a disconnected caller stops forwarding, not the job.
func (w *Worker) forward(job *Job, ev types.StreamEvent) bool {
	if job.Ctx == nil {
		select {
		case job.Events <- ev:
			return true
		default:
			return false
		}
	}
	select {
	case job.Events <- ev:
		return true
	case <-job.Ctx.Done():
		return false
	}
}

// persist saves the assistant reply regardless of whether the caller
// is still connected.
func (w *Worker) persist(job *Job, text string) {
	msg := &types.Message{
		ID:        uuid.NewString(),
		ChatID:    job.ChatID,
		SessionID: job.SessionID,
		Role:      types.RoleAssistant,
		Text:      text,
		TS:        time.Now().Unix(),
	}
	ctx := context.Background()
	if err := w.store.SaveMessage(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to save assistant message")
	}
	if err := w.store.TouchChat(ctx, job.ChatID); err != nil {
		w.log.Warn().Err(err).Str("chat_id", job.ChatID).Msg("failed to touch chat")
	}
}
