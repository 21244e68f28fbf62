package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newCallFixture(t *testing.T, names ...string) (*Registry, *CallCoordinator) {
	t.Helper()
	clock := newFakeClock()
	registry := NewRegistry(false)
	for _, n := range names {
		_, err := registry.Bind(ConnID("c-"+n), identity(n), "", clock.Now())
		require.NoError(t, err)
	}
	return registry, NewCallCoordinator(registry, clock.Now)
}

func inCall(t *testing.T, registry *Registry, conn ConnID) bool {
	t.Helper()
	s, err := registry.Lookup(conn)
	require.NoError(t, err)
	return s.InCall
}

func TestCalls_Initiate_Rings_Both_Sides(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")

	rec, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)
	req.Equal(CallRinging, rec.State)
	req.Equal(ConnID("c-alice"), rec.Caller.Conn)
	req.Equal(ConnID("c-bob"), rec.Callee.Conn)
	req.True(inCall(t, registry, "c-alice"))
	req.True(inCall(t, registry, "c-bob"))

	fromCaller, ok := calls.Lookup("c-alice")
	req.True(ok)
	fromCallee, ok := calls.Lookup("c-bob")
	req.True(ok)
	req.Equal(fromCaller, fromCallee)
	req.Equal(1, calls.Len())
}

func TestCalls_Initiate_Failures(t *testing.T) {
	req := require.New(t)
	_, calls := newCallFixture(t, "alice", "bob", "carol")

	_, err := calls.Initiate("c-alice", "zed")
	req.ErrorIs(err, ErrTargetNotFound)

	_, err = calls.Initiate("c-alice", "alice")
	req.ErrorIs(err, ErrSelfCall)

	_, err = calls.Initiate("c-ghost", "bob")
	req.ErrorIs(err, ErrSessionNotFound)

	_, err = calls.Initiate("c-alice", "bob")
	req.NoError(err)

	// Given bob is ringing, carol can not reach him
	_, err = calls.Initiate("c-carol", "bob")
	req.ErrorIs(err, ErrTargetBusy)
	req.ErrorIs(err, ErrConflict)

	// And alice can not start a second call
	_, err = calls.Initiate("c-alice", "carol")
	req.ErrorIs(err, ErrCallerBusy)

	// And bob can not call back while ringing
	_, err = calls.Initiate("c-bob", "alice")
	req.ErrorIs(err, ErrCallerBusy)

	req.Equal(1, calls.Len())
}

func TestCalls_Initiate_Callee_Busy_On_Any_Device(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob", "carol")
	_, err := registry.Bind("c-bob-2", identity("bob"), "", newFakeClock().Now())
	req.NoError(err)

	// Given alice is ringing bob's first device
	rec, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)
	req.Equal(ConnID("c-bob"), rec.Callee.Conn)

	// When carol calls bob while his second device is idle
	_, err = calls.Initiate("c-carol", "bob")

	// Then bob is busy and no second record exists
	req.ErrorIs(err, ErrTargetBusy)
	req.ErrorIs(err, ErrConflict)
	req.Equal(1, calls.Len())
	req.False(inCall(t, registry, "c-bob-2"))
	req.False(inCall(t, registry, "c-carol"))
}

func TestCalls_Accept(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")
	_, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)

	// The caller can not accept its own call
	_, err = calls.Accept("c-alice")
	req.ErrorIs(err, ErrNoRingingCall)

	rec, err := calls.Accept("c-bob")
	req.NoError(err)
	req.Equal(CallActive, rec.State)
	req.False(rec.AnsweredAt.IsZero())
	req.True(inCall(t, registry, "c-alice"))
	req.True(inCall(t, registry, "c-bob"))

	// Accepting twice is invalid
	_, err = calls.Accept("c-bob")
	req.ErrorIs(err, ErrNoRingingCall)
	req.ErrorIs(err, ErrInvalidState)
}

func TestCalls_Reject_Clears_Both_Sides(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")
	_, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)

	_, err = calls.Reject("c-alice")
	req.ErrorIs(err, ErrNoRingingCall)

	rec, err := calls.Reject("c-bob")
	req.NoError(err)
	req.Equal(CallEnded, rec.State)
	req.False(inCall(t, registry, "c-alice"))
	req.False(inCall(t, registry, "c-bob"))
	req.Zero(calls.Len())

	_, ok := calls.Lookup("c-alice")
	req.False(ok)
	_, ok = calls.Lookup("c-bob")
	req.False(ok)
}

func TestCalls_HangUp_From_Either_Side(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")

	// Hang up while ringing
	_, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)
	rec, err := calls.HangUp("c-alice")
	req.NoError(err)
	req.Equal(CallEnded, rec.State)

	// Hang up while active
	_, err = calls.Initiate("c-alice", "bob")
	req.NoError(err)
	_, err = calls.Accept("c-bob")
	req.NoError(err)
	rec, err = calls.HangUp("c-bob")
	req.NoError(err)
	req.Equal(ConnID("c-alice"), rec.Peer("c-bob").Conn)
	req.False(inCall(t, registry, "c-alice"))
	req.False(inCall(t, registry, "c-bob"))

	// The second hang up finds nothing
	_, err = calls.HangUp("c-alice")
	req.ErrorIs(err, ErrNoActiveCall)
}

func TestCalls_Cascade(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")

	_, ok := calls.Cascade("c-alice")
	req.False(ok)

	_, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)

	rec, ok := calls.Cascade("c-alice")
	req.True(ok)
	req.Equal(CallEnded, rec.State)
	req.False(inCall(t, registry, "c-bob"))

	_, err = calls.Accept("c-bob")
	req.ErrorIs(err, ErrNoRingingCall)
}

func TestCalls_Expire(t *testing.T) {
	req := require.New(t)
	registry, calls := newCallFixture(t, "alice", "bob")

	_, err := calls.Expire("nope")
	req.ErrorIs(err, ErrCallNotFound)

	rec, err := calls.Initiate("c-alice", "bob")
	req.NoError(err)
	_, err = calls.Accept("c-bob")
	req.NoError(err)

	// An answered call does not time out
	_, err = calls.Expire(rec.ID)
	req.ErrorIs(err, ErrNoRingingCall)

	_, err = calls.HangUp("c-bob")
	req.NoError(err)

	rec, err = calls.Initiate("c-alice", "bob")
	req.NoError(err)
	ended, err := calls.Expire(rec.ID)
	req.NoError(err)
	req.Equal(CallEnded, ended.State)
	req.False(inCall(t, registry, "c-alice"))
}
