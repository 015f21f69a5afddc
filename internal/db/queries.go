package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Session struct {
	ID        string
	Agent     string
	UserID    string
	Channel   string
	CreatedAt time.Time
}

type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

const upsertSession = `
INSERT INTO sessions (id, agent, user_id, channel) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    agent = CASE WHEN excluded.agent = '' THEN sessions.agent ELSE excluded.agent END,
    user_id = CASE WHEN excluded.user_id = '' THEN sessions.user_id ELSE excluded.user_id END
`

type UpsertSessionParams struct {
	ID      string
	Agent   string
	UserID  string
	Channel string
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession, arg.ID, arg.Agent, arg.UserID, arg.Channel)
	return err
}

const getSession = `SELECT id, agent, user_id, channel, created_at FROM sessions WHERE id = ?`

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var s Session
	err := row.Scan(&s.ID, &s.Agent, &s.UserID, &s.Channel, &s.CreatedAt)
	return s, err
}

const insertMessage = `INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`

type InsertMessageParams struct {
	SessionID string
	Role      string
	Content   string
}

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) error {
	_, err := q.db.ExecContext(ctx, insertMessage, arg.SessionID, arg.Role, arg.Content)
	return err
}

const getMessagesBySession = `
SELECT id, session_id, role, content, created_at FROM messages
WHERE session_id = ?
ORDER BY id
`

func (q *Queries) GetMessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := q.db.QueryContext(ctx, getMessagesBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteMessagesBySession = `DELETE FROM messages WHERE session_id = ?`

func (q *Queries) DeleteMessagesBySession(ctx context.Context, sessionID string) error {
	_, err := q.db.ExecContext(ctx, deleteMessagesBySession, sessionID)
	return err
}
