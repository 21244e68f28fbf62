package session

import (
	"time"

	"github.com/google/uuid"
)

// DefaultHistorySize is the in-memory window kept when none is configured.
const DefaultHistorySize = 100

// MessageLog is a fixed-size ring of the most recent messages.
type MessageLog struct {
	buf   []Message
	start int
	size  int
	seq   uint64
}

// NewMessageLog creates a log holding at most capacity messages.
func NewMessageLog(capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &MessageLog{buf: make([]Message, capacity)}
}

// Append stores msg, filling ID, Seq and At when they are unset, and evicts
// the oldest entry once the window is full.
func (l *MessageLog) Append(msg Message) Message {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = KindText
	}
	l.seq++
	msg.Seq = l.seq

	end := (l.start + l.size) % len(l.buf)
	l.buf[end] = msg
	if l.size < len(l.buf) {
		l.size++
	} else {
		l.start = (l.start + 1) % len(l.buf)
	}
	return msg
}

// Recent returns up to limit messages, oldest first. A non-positive limit
// returns none.
func (l *MessageLog) Recent(limit int) []Message {
	limit = min(max(limit, 0), l.size)
	out := make([]Message, 0, limit)
	for i := l.size - limit; i < l.size; i++ {
		out = append(out, l.buf[(l.start+i)%len(l.buf)])
	}
	return out
}

// Restore refills the window from archived messages (oldest first) and
// continues sequence numbering after the newest one.
func (l *MessageLog) Restore(msgs []Message) {
	if len(msgs) > len(l.buf) {
		msgs = msgs[len(msgs)-len(l.buf):]
	}
	l.start, l.size = 0, 0
	for _, m := range msgs {
		l.buf[l.size] = m
		l.size++
		if m.Seq > l.seq {
			l.seq = m.Seq
		}
	}
}

// Len returns the number of messages held.
func (l *MessageLog) Len() int {
	return l.size
}

// Cap returns the configured window size.
func (l *MessageLog) Cap() int {
	return len(l.buf)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
