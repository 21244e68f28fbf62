package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/chatline/internal/session"
)

const storeTimeout = 5 * time.Second

// Archiver feeds appended messages to a Backend from a single goroutine so
// the engine never waits on storage.
type Archiver struct {
	backend Backend
	queue   chan session.Message
	log     *slog.Logger
}

// NewArchiver queues up to bufferSize messages for backend.
func NewArchiver(backend Backend, bufferSize int, log *slog.Logger) *Archiver {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Archiver{
		backend: backend,
		queue:   make(chan session.Message, bufferSize),
		log:     log,
	}
}

// Archive enqueues msg. A full queue drops the message from the mirror only.
func (a *Archiver) Archive(msg session.Message) {
	select {
	case a.queue <- msg:
	default:
		a.log.Warn("Archive queue full, message not mirrored",
			"id", msg.ID, "err", session.ErrBackendUnavailable)
	}
}

// Run stores queued messages until ctx is done, then flushes what is left.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-a.queue:
			a.store(context.WithoutCancel(ctx), msg)
		case <-ctx.Done():
			a.flush(context.WithoutCancel(ctx))
			a.log.Debug("Archiver stopped")
			return nil
		}
	}
}

// Warm loads the newest limit messages from the backend.
func (a *Archiver) Warm(ctx context.Context, limit int) ([]session.Message, error) {
	msgs, err := a.backend.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %w", session.ErrBackendUnavailable, err)
	}
	return msgs, nil
}

func (a *Archiver) flush(ctx context.Context) {
	for {
		select {
		case msg := <-a.queue:
			a.store(ctx, msg)
		default:
			return
		}
	}
}

func (a *Archiver) store(ctx context.Context, msg session.Message) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := a.backend.Store(ctx, msg); err != nil {
		a.log.Error("Mirroring message failed",
			"id", msg.ID, "err", fmt.Errorf("%w: %w", session.ErrBackendUnavailable, err))
	}
}
