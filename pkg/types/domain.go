package types

// Role names used in conversation turns and persisted messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSummary   = "summary"
)

// Message is one persisted conversation entry.
type Message struct {
	ID          string   `json:"id"`
	ChatID      string   `json:"chat_id"`
	SessionID   string   `json:"session_id,omitempty"`
	Role        string   `json:"role"`
	Text        string   `json:"text"`
	Language    string   `json:"language,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	TS          int64    `json:"ts"`
}

// Chat is the persisted conversation head.
type Chat struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}
