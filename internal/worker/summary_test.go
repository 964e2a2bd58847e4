package worker

import (
	"context"
	"testing"
	"time"

	"ktulhu/internal/runtime"
	"ktulhu/internal/store"
	"ktulhu/pkg/types"
)

func TestShouldGenerateSummary(t *testing.T) {
	user := types.Message{Role: types.RoleUser}
	assistant := types.Message{Role: types.RoleAssistant}
	summary := types.Message{Role: types.RoleSummary}

	cases := []struct {
		name    string
		history []types.Message
		want    bool
	}{
		{"first user message", []types.Message{user, assistant}, true},
		{"no user messages", []types.Message{assistant}, false},
		{"second user message", []types.Message{user, assistant, user}, false},
		{"summary exists", []types.Message{user, assistant, summary}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		if got := shouldGenerateSummary(tc.history); got != tc.want {
			t.Errorf("%s: shouldGenerateSummary = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExtractSummary(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"summary": "tax question"}`, "tax question"},
		{"Sure! Here you go: {\"summary\": \"Trip Planning\"} hope that helps", "trip planning"},
		{`{"summary": ""}`, fallbackSummary},
		{"just, some! words: here and more", "just some words"},
		{"   ", fallbackSummary},
	}
	for _, tc := range cases {
		if got := extractSummary(tc.raw); got != tc.want {
			t.Errorf("extractSummary(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSummaryEmittedOncePerChat(t *testing.T) {
	engine := &fakeEngine{tokens: []string{`{"summary": "weather chat"}`}}
	st := store.NewMemoryStore()
	w := New(engine, st, 4, testLogger())
	defer w.Close()

	ctx := context.Background()
	if err := st.SaveMessage(ctx, &types.Message{
		ID: "u1", ChatID: "chat-s", Role: types.RoleUser, Text: "what's the weather like?", TS: 1,
	}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}

	events := make(chan types.StreamEvent, 16)
	job := &Job{
		Prompt: "p", ChatID: "chat-s", SessionID: "s",
		Events: events, Ctx: ctx, Cancel: runtime.NewCancelFlag(),
	}
	if err := w.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var summaryEv *types.StreamEvent
	timeout := time.After(5 * time.Second)
	for summaryEv == nil {
		select {
		case ev := <-events:
			if ev.Type == "summary" {
				summaryEv = &ev
			}
		case <-timeout:
			t.Fatal("no summary event received")
		}
	}
	if summaryEv.Text != "weather chat" {
		t.Fatalf("summary text = %q, want %q", summaryEv.Text, "weather chat")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := st.ListMessagesForChat(ctx, "chat-s")
		if err != nil {
			t.Fatalf("ListMessagesForChat: %v", err)
		}
		summaries := 0
		for _, m := range msgs {
			if m.Role == types.RoleSummary {
				summaries++
			}
		}
		if summaries == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected exactly one summary message, history %v", msgs)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second turn in the same chat must not trigger another summary.
	if err := st.SaveMessage(ctx, &types.Message{
		ID: "u2", ChatID: "chat-s", Role: types.RoleUser, Text: "and tomorrow?", TS: 2,
	}); err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	events2 := make(chan types.StreamEvent, 16)
	job2 := &Job{
		Prompt: "p2", ChatID: "chat-s", SessionID: "s",
		Events: events2, Ctx: ctx, Cancel: runtime.NewCancelFlag(),
	}
	if err := w.Enqueue(ctx, job2); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	for ev := range events2 {
		if ev.Type == "summary" {
			t.Fatal("second summary emitted for the same chat")
		}
		if ev.Done {
			break
		}
	}
}
