package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/Tyrowin/chatline/internal/session"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend stores messages in a single table.
type SQLiteBackend struct {
	conn *sql.DB
}

// OpenSQLite opens the database file at path and creates the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %s: %w", path, err)
	}
	b := &SQLiteBackend{conn: conn}
	if err := b.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			author_avatar TEXT NOT NULL DEFAULT '',
			author_role TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			channel TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'text',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at, seq)`,
	}
	for _, query := range queries {
		if _, err := b.conn.Exec(query); err != nil {
			return fmt.Errorf("creating sqlite schema: %w", err)
		}
	}
	return nil
}

// Store inserts msg; a message already stored is ignored.
func (b *SQLiteBackend) Store(ctx context.Context, msg session.Message) error {
	_, err := b.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO messages
			(id, seq, author_id, author_name, author_avatar, author_role, body, channel, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, int64(msg.Seq), string(msg.Author.ID), msg.Author.Name, msg.Author.Avatar, msg.Author.Role,
		msg.Body, msg.Channel, string(msg.Kind), msg.At.UnixNano(),
	)
	return err
}

// Recent returns up to limit messages, oldest first. A non-positive limit
// returns everything.
func (b *SQLiteBackend) Recent(ctx context.Context, limit int) ([]session.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := b.conn.QueryContext(ctx,
		`SELECT id, seq, author_id, author_name, author_avatar, author_role, body, channel, kind, created_at
		FROM messages ORDER BY created_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []session.Message
	for rows.Next() {
		var (
			msg      session.Message
			seq      int64
			authorID string
			kind     string
			at       int64
		)
		if err := rows.Scan(&msg.ID, &seq, &authorID, &msg.Author.Name, &msg.Author.Avatar,
			&msg.Author.Role, &msg.Body, &msg.Channel, &kind, &at); err != nil {
			return nil, err
		}
		msg.Seq = uint64(seq)
		msg.Author.ID = session.IdentityID(authorID)
		msg.Kind = session.MessageKind(kind)
		msg.At = time.Unix(0, at).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// Close closes the database handle.
func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}
