// Package service wires classification, prompt assembly, reasoning and
// the generation worker behind the HTTP API surface.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ktulhu/internal/chatml"
	"ktulhu/internal/reasoning"
	"ktulhu/internal/router"
	"ktulhu/internal/runtime"
	"ktulhu/internal/store"
	"ktulhu/internal/worker"
	"ktulhu/pkg/types"
)

// Config holds the knobs the orchestrator needs beyond its dependencies.
type Config struct {
	// ModelPath is reported in /status.
	ModelPath string
}

// Service owns one generation pipeline around a single loaded model.
type Service struct {
	engine    runtime.Engine
	worker    *worker.Worker
	store     store.Store
	router    *router.Router
	reasoning *reasoning.Pipeline
	models    []types.Model
	cfg       Config
	log       zerolog.Logger
	start     time.Time

	// cancels maps chat IDs to the flags of their in-flight jobs.
	// Concurrent requests for one chat each register their own flag,
	// so /cancel reaches all of them and a finishing job only removes
	// its own entry.
	cancelsMu sync.Mutex
	cancels   map[string][]*runtime.CancelFlag

	mu      sync.Mutex
	lastErr string
}

func New(engine runtime.Engine, w *worker.Worker, st store.Store, rt *router.Router, rp *reasoning.Pipeline, models []types.Model, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		worker:    w,
		store:     st,
		router:    rt,
		reasoning: rp,
		models:    models,
		cfg:       cfg,
		log:       log,
		start:     time.Now(),
		cancels:   make(map[string][]*runtime.CancelFlag),
	}
}

// Models lists the model files discovered at startup.
func (s *Service) Models() []types.Model { return s.models }

// Ready reports whether the pipeline can accept work.
func (s *Service) Ready() bool { return s.engine != nil && s.worker != nil }

// Status reports queue depth and liveness for GET /status.
func (s *Service) Status() types.StatusResponse {
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()
	state := "ready"
	if !s.Ready() {
		state = "loading"
	}
	inflight := 0
	if s.worker != nil && s.worker.Inflight() {
		inflight = 1
	}
	resp := types.StatusResponse{
		State:          state,
		ModelPath:      s.cfg.ModelPath,
		Inflight:       inflight,
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		LastError:      lastErr,
	}
	if s.worker != nil {
		resp.QueueLen = s.worker.QueueLen()
		resp.MaxQueueDepth = s.worker.Capacity()
	}
	return resp
}

// Cancel flips the cancel flags of the chat's in-flight jobs. Returns
// false when nothing is running for that chat.
func (s *Service) Cancel(chatID string) bool {
	s.cancelsMu.Lock()
	flags := append([]*runtime.CancelFlag(nil), s.cancels[chatID]...)
	s.cancelsMu.Unlock()
	for _, f := range flags {
		f.Cancel()
	}
	return len(flags) > 0
}

func (s *Service) registerCancel(chatID string, flag *runtime.CancelFlag) {
	s.cancelsMu.Lock()
	s.cancels[chatID] = append(s.cancels[chatID], flag)
	s.cancelsMu.Unlock()
}

func (s *Service) unregisterCancel(chatID string, flag *runtime.CancelFlag) {
	s.cancelsMu.Lock()
	defer s.cancelsMu.Unlock()
	flags := s.cancels[chatID]
	for i, f := range flags {
		if f == flag {
			flags = append(flags[:i], flags[i+1:]...)
			break
		}
	}
	if len(flags) == 0 {
		delete(s.cancels, chatID)
		return
	}
	s.cancels[chatID] = flags
}

// Generate runs the full pipeline for one request: persist the user
// turn, classify it, assemble the prompt, run hidden reasoning passes,
// enqueue the job, and relay its events to w.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	chatID := req.ChatID
	if chatID == "" {
		chatID = uuid.NewString()
	}

	userMsg := &types.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SessionID: req.SessionID,
		Role:      types.RoleUser,
		Text:      req.Prompt,
		Language:  req.Language,
		TS:        time.Now().Unix(),
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("persist user message")
	}

	route := s.router.Route(req.Prompt, req.Language)

	history, err := s.store.ListMessagesForChat(ctx, chatID)
	if err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("load history")
		history = []types.Message{*userMsg}
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = router.SystemPromptForKey(route.PromptKey)
	}
	basePrompt := chatml.BuildPrompt(chatml.TurnsFromMessages(history), systemPrompt)

	// Disconnects do not flip this flag: the worker keeps generating and
	// persists the reply even when nobody is listening. Only an explicit
	// /cancel stops the model.
	cancel := runtime.NewCancelFlag()
	s.registerCancel(chatID, cancel)
	defer s.unregisterCancel(chatID, cancel)

	prompt := basePrompt
	mode := reasoning.SelectMode(route.Profile, route.PromptKey, route.Confidence, req.Prompt)
	reasoningStart := time.Now()
	res, err := s.reasoning.Run(mode, req.Prompt, basePrompt, route.Profile, cancel)
	if err == reasoning.ErrCanceled {
		return nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("chat_id", chatID).Msg("reasoning pipeline")
	} else {
		prompt = res.FinalPrompt
		observeReasoning(mode, res.Stage, time.Since(reasoningStart))
	}

	events := make(chan types.StreamEvent, 64)
	job := &worker.Job{
		Prompt:    prompt,
		ChatID:    chatID,
		SessionID: req.SessionID,
		Events:    events,
		Ctx:       ctx,
		Cancel:    cancel,
	}
	genStart := time.Now()
	if err := s.worker.Enqueue(ctx, job); err != nil {
		// A caller that disconnected while queued is not a service
		// fault; keep it out of /status.
		if !errors.Is(err, context.Canceled) {
			s.setLastErr(err)
		}
		return err
	}

	if req.Stream {
		return s.relayStream(ctx, chatID, route, events, w, flush, genStart)
	}
	return s.collectResponse(ctx, chatID, route, prompt, events, w, genStart)
}

// relayStream forwards worker events as NDJSON lines until the done
// event arrives. A summary event only makes the stream when it wins the
// race with done; it is persisted either way.
func (s *Service) relayStream(ctx context.Context, chatID string, route router.Result, events <-chan types.StreamEvent, w io.Writer, flush func(), start time.Time) error {
	enc := json.NewEncoder(w)
	for {
		select {
		case ev := <-events:
			if err := enc.Encode(ev); err != nil {
				return nil // client went away mid-write
			}
			if flush != nil {
				flush()
			}
			if ev.Done {
				observeGeneration(route, time.Since(start))
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// collectResponse buffers the whole stream into one GenerateResponse.
func (s *Service) collectResponse(ctx context.Context, chatID string, route router.Result, prompt string, events <-chan types.StreamEvent, w io.Writer, start time.Time) error {
	var text string
	for {
		select {
		case ev := <-events:
			switch {
			case ev.Done:
				observeGeneration(route, time.Since(start))
				return json.NewEncoder(w).Encode(types.GenerateResponse{
					Text:   text,
					ChatID: chatID,
					Usage: types.Usage{
						PromptChars:     len(prompt),
						CompletionChars: len(text),
					},
				})
			case ev.Type == "assistant":
				text += ev.Token
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Service) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
}
