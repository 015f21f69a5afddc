// Package history keeps the chat transcript of each session.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agentdeck/internal/db"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	conn *sql.DB
	q    *db.Queries
}

func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn(), q: db.New(database.Conn())}
}

// Start records a session and drops any transcript already stored under
// its id, in one transaction. Empty agent or user values keep what is
// already stored.
func (s *Store) Start(ctx context.Context, sessionID, agent, userID, channel string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting session %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	qtx := s.q.WithTx(tx)
	if err := qtx.UpsertSession(ctx, db.UpsertSessionParams{
		ID:      sessionID,
		Agent:   agent,
		UserID:  userID,
		Channel: channel,
	}); err != nil {
		return fmt.Errorf("recording session %s: %w", sessionID, err)
	}
	if err := qtx.DeleteMessagesBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("clearing session %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// SessionAgent returns the deployed agent a session was opened on, or ""
// when the session is unknown.
func (s *Store) SessionAgent(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.q.GetSession(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return sess.Agent, nil
}

func (s *Store) SaveMessage(ctx context.Context, sessionID, role, content string) error {
	if err := s.q.InsertMessage(ctx, db.InsertMessageParams{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
	}); err != nil {
		return fmt.Errorf("saving %s message: %w", role, err)
	}
	return nil
}

func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.q.GetMessagesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt})
	}
	return out, nil
}
