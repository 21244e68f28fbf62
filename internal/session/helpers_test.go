package session

import (
	"log/slog"
	"time"

	"github.com/mama165/sdk-go/logs"
)

var testLog = logs.GetLoggerFromLevel(slog.LevelDebug)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func identity(id string) Identity {
	return Identity{ID: IdentityID(id), Name: id, Avatar: "🙂"}
}

// deliveries expands envelopes the way the router would, keeping the
// events instead of encoded frames.
func deliveries(e *Engine, envs []Envelope) map[ConnID][]Event {
	r := NewRouter(e, nil, testLog)
	out := make(map[ConnID][]Event)
	for _, env := range envs {
		for _, conn := range r.Resolve(env.To) {
			out[conn] = append(out[conn], env.Event)
		}
	}
	return out
}

func eventsOf[T Event](events []Event) []T {
	var out []T
	for _, evt := range events {
		if t, ok := evt.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
