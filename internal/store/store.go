//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mock_store_test.go -package=store

// Package store mirrors the chat history to durable storage. The mirror is
// best effort: the in-memory log stays authoritative and a failing backend
// never blocks or rolls back a message.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/chatline/internal/session"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Backend persists messages and reads back the most recent ones.
type Backend interface {
	Store(ctx context.Context, msg session.Message) error
	// Recent returns up to limit messages, oldest first.
	Recent(ctx context.Context, limit int) ([]session.Message, error)
	Close() error
}

// Open creates the backend named by driver. path is a directory for badger
// and a file for sqlite; the memory driver ignores it and keeps at most
// historySize messages.
func Open(driver, path string, historySize int, log *slog.Logger) (Backend, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryBackend(historySize), nil
	case DriverBadger:
		return OpenBadger(path, log)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
