package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/normanking/glance/internal/data"
	"github.com/normanking/glance/pkg/types"
)

const messageSchema = `
CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// Store is the SQLite-backed conversation store.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the conversation database. An empty path
// selects an in-memory store.
func NewStore(dbPath string) (*Store, error) {
	db, err := data.Open(dbPath, "glance_history")
	if err != nil {
		return nil, fmt.Errorf("open conversation database: %w", err)
	}

	if _, err := db.Exec(messageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize message schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one conversation turn.
func (s *Store) Append(ctx context.Context, sessionID string, msg types.Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		sessionID, string(msg.Role), msg.Content, ts)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Recent returns up to limit messages for a session, oldest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 10
	}

	// Grab the newest N, then reverse into chronological order.
	rows, err := s.db.QueryContext(ctx, `
SELECT role, content, created_at FROM messages
WHERE session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []types.Message
	for rows.Next() {
		var (
			role    string
			content string
			ts      time.Time
		)
		if err := rows.Scan(&role, &content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		newestFirst = append(newestFirst, types.Message{
			Role:      types.Role(role),
			Content:   content,
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	messages := make([]types.Message, len(newestFirst))
	for i, msg := range newestFirst {
		messages[len(newestFirst)-1-i] = msg
	}
	return messages, nil
}
