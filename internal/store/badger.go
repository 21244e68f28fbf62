package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Tyrowin/chatline/internal/session"
	"github.com/dgraph-io/badger/v4"
)

const messagePrefix = "msg:"

// BadgerBackend stores one key per message.
type BadgerBackend struct {
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens (or creates) a badger directory at path.
func OpenBadger(path string, log *slog.Logger) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	return NewBadgerBackend(db, log), nil
}

// NewBadgerBackend wraps an already open database.
func NewBadgerBackend(db *badger.DB, log *slog.Logger) *BadgerBackend {
	return &BadgerBackend{db: db, log: log}
}

// Store writes msg under "msg:{unix_nano_padded}:{id}" so that keys sort by
// time and two messages in the same nanosecond do not collide.
func (b *BadgerBackend) Store(_ context.Context, msg session.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), value)
	})
}

// Recent walks the keyspace backwards from the newest message.
func (b *BadgerBackend) Recent(_ context.Context, limit int) ([]session.Message, error) {
	var messages []session.Message
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append(prefix, []byte("9999999999999999999")...)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var msg session.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	b.log.Debug("Loaded messages from badger", "count", len(messages))
	return messages, nil
}

// Close closes the database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func messageKey(msg session.Message) []byte {
	return fmt.Appendf(nil, "%s%019d:%s", messagePrefix, msg.At.UnixNano(), msg.ID)
}
