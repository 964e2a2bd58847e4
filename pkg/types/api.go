package types

// GenerateRequest is the inbound payload for POST /generate.
type GenerateRequest struct {
	// Required free-form user text.
	Prompt string `json:"prompt"`
	// Optional system prompt overriding the routed one.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Optional BCP-47 language hint (e.g. "es", "pt-BR").
	Language string `json:"language,omitempty"`
	// Conversation this request belongs to. Empty means a fresh one-shot.
	ChatID string `json:"chat_id,omitempty"`
	// Client session identifier, echoed into persisted messages.
	SessionID string `json:"session_id,omitempty"`
	// Maximum number of new tokens; 0 uses the server default.
	MaxTokens int `json:"max_tokens,omitempty"`
	// If true, stream NDJSON events; otherwise return one JSON object.
	Stream bool `json:"stream,omitempty"`
}

// StreamEvent is one NDJSON line of a streamed generation.
// Token carries a text delta; Done marks the end of the assistant turn.
type StreamEvent struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Done      bool   `json:"done,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	TS        int64  `json:"ts,omitempty"`
}

// GenerateResponse is the buffered (non-streaming) reply.
type GenerateResponse struct {
	Text   string `json:"text"`
	ChatID string `json:"chat_id,omitempty"`
	Usage  Usage  `json:"usage"`
}

// Usage holds token accounting for one generation.
type Usage struct {
	PromptChars     int `json:"prompt_chars"`
	CompletionChars int `json:"completion_chars"`
}

// CancelRequest asks the server to stop the active job of a chat.
type CancelRequest struct {
	ChatID string `json:"chat_id"`
}

// ErrorResponse is the uniform JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Model describes one model file discovered on disk.
type Model struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	SizeMB int64  `json:"size_mb,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	State string `json:"state"`
	// Loaded model file path, empty while loading or on error.
	ModelPath string `json:"model_path,omitempty"`
	QueueLen  int    `json:"queue_len"`
	// Maximum queued jobs before backpressure triggers.
	MaxQueueDepth  int    `json:"max_queue_depth"`
	Inflight       int    `json:"inflight"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ServerTimeUnix int64  `json:"server_time_unix"`
	LastError      string `json:"last_error,omitempty"`
}
