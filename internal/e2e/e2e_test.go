// Package e2e exercises the assembled service over real HTTP.
package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ktulhu/internal/httpapi"
	"ktulhu/internal/reasoning"
	"ktulhu/internal/router"
	"ktulhu/internal/runtime"
	"ktulhu/internal/service"
	"ktulhu/internal/store"
	"ktulhu/internal/worker"
	"ktulhu/pkg/types"
)

type fixedEngine struct{ tokens []string }

func (f *fixedEngine) GenerateStream(prompt string, cancel *runtime.CancelFlag) <-chan string {
	ch := make(chan string, len(f.tokens))
	for _, t := range f.tokens {
		ch <- t
	}
	close(ch)
	return ch
}

func (f *fixedEngine) GenerateCompletion(prompt string, cancel *runtime.CancelFlag) (string, error) {
	return `{"summary": "small talk"}`, nil
}

func newTestServer(t *testing.T, eng runtime.Engine) *httptest.Server {
	t.Helper()
	log := zerolog.New(io.Discard)
	st := store.NewMemoryStore()
	w := worker.New(eng, st, 8, log)
	t.Cleanup(w.Close)
	rt := router.New(router.NewLexicalModel(), router.Config{}, log)
	svc := service.New(eng, w, st, rt, reasoning.NewPipeline(eng, log), []types.Model{{ID: "tiny.gguf", Path: "/m/tiny.gguf"}}, service.Config{ModelPath: "/m/tiny.gguf"}, log)
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestGenerateStreamOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fixedEngine{tokens: []string{"Hel", "lo ", "there"}})

	resp := postJSON(t, srv.URL+"/generate", `{"prompt":"hello!","chat_id":"e2e-1","stream":true}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var text string
	var done bool
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var ev types.StreamEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		if ev.Type == "assistant" && !ev.Done {
			text += ev.Token
		}
		if ev.Done {
			done = true
		}
	}
	if text != "Hello there" || !done {
		t.Fatalf("stream text=%q done=%v", text, done)
	}
}

func TestGenerateBufferedOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fixedEngine{tokens: []string{"Sure."}})

	resp := postJSON(t, srv.URL+"/generate", `{"prompt":"hello!","chat_id":"e2e-2"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out types.GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Text != "Sure." || out.ChatID != "e2e-2" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestStatusAndModelsOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fixedEngine{})

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != "ready" || st.ModelPath != "/m/tiny.gguf" {
		t.Fatalf("unexpected status: %+v", st)
	}

	resp2, err := http.Get(srv.URL + "/models")
	if err != nil {
		t.Fatalf("get models: %v", err)
	}
	defer resp2.Body.Close()
	raw, _ := io.ReadAll(resp2.Body)
	if !bytes.Contains(raw, []byte("tiny.gguf")) {
		t.Fatalf("models payload: %s", raw)
	}
}

func TestCancelUnknownChatOverHTTP(t *testing.T) {
	srv := newTestServer(t, &fixedEngine{})

	resp := postJSON(t, srv.URL+"/cancel", `{"chat_id":"nobody"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["cancelled"] != false {
		t.Fatalf("expected cancelled=false, got %v", out)
	}
}
