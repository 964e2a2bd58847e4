package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ktulhu/internal/runtime"
	"ktulhu/internal/worker"
	"ktulhu/pkg/types"
)

// fakeService implements Service with canned behavior.
type fakeService struct {
	models    []types.Model
	status    types.StatusResponse
	events    []types.StreamEvent
	err       error
	ready     bool
	cancelled bool
	lastReq   types.GenerateRequest
}

func (f *fakeService) Models() []types.Model { return f.models }

func (f *fakeService) Status() types.StatusResponse { return f.status }

func (f *fakeService) Ready() bool { return f.ready }

func (f *fakeService) Cancel(chatID string) bool { return f.cancelled }

func (f *fakeService) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error {
	f.lastReq = req
	if f.err != nil {
		return f.err
	}
	enc := json.NewEncoder(w)
	for _, ev := range f.events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
	}
	return nil
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestGenerateRejectsWrongContentType(t *testing.T) {
	h := NewMux(&fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestGenerateRejectsInvalidJSON(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/generate", `{"prompt":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/generate", `{"prompt":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var er types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatalf("error payload: %v", err)
	}
	if er.Code != http.StatusBadRequest || er.Error == "" {
		t.Fatalf("unexpected error payload: %+v", er)
	}
}

func TestGenerateMapsQueueFullTo429(t *testing.T) {
	h := NewMux(&fakeService{err: worker.ErrQueueFull})
	rr := postJSON(t, h, "/generate", `{"prompt":"hi"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestGenerateMapsDependencyUnavailableTo503(t *testing.T) {
	h := NewMux(&fakeService{err: runtime.ErrDependencyUnavailable("native runtime not built in")})
	rr := postJSON(t, h, "/generate", `{"prompt":"hi"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestGenerateStreamsNDJSON(t *testing.T) {
	svc := &fakeService{events: []types.StreamEvent{
		{Type: "assistant", Token: "Hel", ChatID: "c1"},
		{Type: "assistant", Token: "lo", ChatID: "c1"},
		{Type: "assistant", Done: true, ChatID: "c1"},
	}}
	h := NewMux(svc)
	rr := postJSON(t, h, "/generate", `{"prompt":"hi","chat_id":"c1","stream":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 NDJSON lines, got %d: %q", len(lines), rr.Body.String())
	}
	var last types.StreamEvent
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("last line: %v", err)
	}
	if !last.Done {
		t.Fatalf("expected final done event, got %+v", last)
	}
	if !svc.lastReq.Stream || svc.lastReq.ChatID != "c1" {
		t.Fatalf("request not passed through: %+v", svc.lastReq)
	}
}

func TestCancelRequiresChatID(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/cancel", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCancelReportsOutcome(t *testing.T) {
	h := NewMux(&fakeService{cancelled: true})
	rr := postJSON(t, h, "/cancel", `{"chat_id":"c9"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cancelled"] != true || body["chat_id"] != "c9" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestModelsAndStatus(t *testing.T) {
	svc := &fakeService{
		models: []types.Model{{ID: "tiny.gguf", Path: "/models/tiny.gguf"}},
		status: types.StatusResponse{State: "ready", QueueLen: 1, MaxQueueDepth: 8},
	}
	h := NewMux(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "tiny.gguf") {
		t.Fatalf("/models: %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	var st types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("status decode: %v", err)
	}
	if st.State != "ready" || st.QueueLen != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz while loading: %d", rr.Code)
	}

	svc.ready = true
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/readyz when ready: %d", rr.Code)
	}
}
