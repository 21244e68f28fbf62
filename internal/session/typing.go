package session

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// TypingMode selects how typing marks are scoped.
type TypingMode string

const (
	// TypingBroadcast shows every mark to everyone.
	TypingBroadcast TypingMode = "broadcast"
	// TypingDirect shows a mark only to its target.
	TypingDirect TypingMode = "direct"
)

// DefaultTypingTimeout bounds how long a mark lives without a refresh.
const DefaultTypingTimeout = 6 * time.Second

// TypingTracker holds self-expiring typing marks keyed by identity.
type TypingTracker struct {
	marks   map[IdentityID]TypingMark
	order   []IdentityID
	mode    TypingMode
	timeout time.Duration
	now     func() time.Time
}

// NewTypingTracker creates a tracker. A non-positive timeout means
// DefaultTypingTimeout; an unknown mode means TypingBroadcast.
func NewTypingTracker(mode TypingMode, timeout time.Duration, now func() time.Time) *TypingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	if mode != TypingDirect {
		mode = TypingBroadcast
	}
	return &TypingTracker{
		marks:   make(map[IdentityID]TypingMark),
		mode:    mode,
		timeout: timeout,
		now:     now,
	}
}

// Mode returns the scoping mode.
func (t *TypingTracker) Mode() TypingMode {
	return t.mode
}

// Start inserts or refreshes the mark of identity. It returns the mark it
// replaced, if any, so a retargeted mark can be withdrawn from its old target.
func (t *TypingTracker) Start(identity Identity, target IdentityID) (TypingMark, bool) {
	prev, ok := t.marks[identity.ID]
	if !ok {
		t.order = append(t.order, identity.ID)
	}
	t.marks[identity.ID] = TypingMark{Identity: identity, Target: target, At: t.now()}
	return prev, ok
}

// Stop removes the mark of id and reports whether one existed.
func (t *TypingTracker) Stop(id IdentityID) (TypingMark, bool) {
	mark, ok := t.marks[id]
	if !ok {
		return TypingMark{}, false
	}
	delete(t.marks, id)
	if i := slices.Index(t.order, id); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return mark, true
}

// Snapshot returns the live marks. In direct mode only marks aimed at
// target are returned.
func (t *TypingTracker) Snapshot(target IdentityID) []TypingMark {
	cutoff := t.now().Add(-t.timeout)
	live := lo.FilterMap(t.order, func(id IdentityID, _ int) (TypingMark, bool) {
		m := t.marks[id]
		return m, m.At.After(cutoff)
	})
	if t.mode == TypingBroadcast {
		return live
	}
	return lo.Filter(live, func(m TypingMark, _ int) bool {
		return m.Target == target
	})
}

// Sweep drops expired marks and returns them.
func (t *TypingTracker) Sweep() []TypingMark {
	cutoff := t.now().Add(-t.timeout)
	var expired []TypingMark
	for _, id := range slices.Clone(t.order) {
		if m := t.marks[id]; !m.At.After(cutoff) {
			t.Stop(id)
			expired = append(expired, m)
		}
	}
	return expired
}

// Len returns the number of marks held, expired or not.
func (t *TypingTracker) Len() int {
	return len(t.marks)
}
