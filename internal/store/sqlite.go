package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"ktulhu/pkg/types"
)

// ErrChatNotFound is returned by LoadChat for unknown chat ids.
var ErrChatNotFound = errors.New("chat not found")

// SQLiteStore implements Store on a single SQLite file. The modernc
// driver serializes writes internally; one connection is enough for the
// worker's traffic.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	chat_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	role        TEXT NOT NULL,
	text        TEXT NOT NULL DEFAULT '',
	language    TEXT NOT NULL DEFAULT '',
	attachments TEXT NOT NULL DEFAULT '',
	ts          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, ts);
`

// OpenSQLite opens (creating if needed) the database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *types.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages
			(id, chat_id, session_id, role, text, language, attachments, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.SessionID, msg.Role, msg.Text, msg.Language,
		joinAttachments(msg.Attachments), msg.TS)
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListMessagesForChat(ctx context.Context, chatID string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, session_id, role, text, language, attachments, ts
		FROM messages WHERE chat_id = ? ORDER BY ts ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var m types.Message
		var attachments string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SessionID, &m.Role, &m.Text,
			&m.Language, &attachments, &m.TS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Attachments = splitAttachments(attachments)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveChat(ctx context.Context, chat *types.Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		chat.ID, chat.Title, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save chat %s: %w", chat.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LoadChat(ctx context.Context, chatID string) (*types.Chat, error) {
	var c types.Chat
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM chats WHERE id = ?`, chatID).
		Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat %s: %w", chatID, err)
	}
	return &c, nil
}

func (s *SQLiteStore) TouchChat(ctx context.Context, chatID string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at)
		VALUES (?, '', ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		chatID, now, now)
	if err != nil {
		return fmt.Errorf("touch chat %s: %w", chatID, err)
	}
	return nil
}

// Attachments are short summaries without newlines; a unit separator
// keeps the column human-readable while staying unambiguous.
const attachmentSep = "\x1f"

func joinAttachments(a []string) string { return strings.Join(a, attachmentSep) }

func splitAttachments(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, attachmentSep)
}
