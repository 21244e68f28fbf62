package session

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every specific error wraps one of these four kinds so
// callers can branch with errors.Is without knowing the exact cause.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidState       = errors.New("invalid state")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

var (
	ErrSessionNotFound  = fmt.Errorf("%w: connection is not joined", ErrNotFound)
	ErrTargetNotFound   = fmt.Errorf("%w: target is not online", ErrNotFound)
	ErrCallNotFound     = fmt.Errorf("%w: call does not exist", ErrNotFound)
	ErrDuplicateBinding = fmt.Errorf("%w: connection is already bound", ErrConflict)
	ErrIdentityOnline   = fmt.Errorf("%w: identity already has a session", ErrConflict)
	ErrCallerBusy       = fmt.Errorf("%w: caller is already in a call", ErrConflict)
	ErrTargetBusy       = fmt.Errorf("%w: target is already in a call", ErrConflict)
	ErrNoRingingCall    = fmt.Errorf("%w: no ringing call to answer", ErrInvalidState)
	ErrNoActiveCall     = fmt.Errorf("%w: no call to end", ErrInvalidState)
	ErrSelfCall         = fmt.Errorf("%w: cannot call yourself", ErrInvalidState)
	ErrInvalidCommand   = fmt.Errorf("%w: unsupported command", ErrInvalidState)
)

var codes = []struct {
	err  error
	code string
}{
	{ErrSessionNotFound, "not_joined"},
	{ErrTargetNotFound, "target_not_found"},
	{ErrCallNotFound, "call_not_found"},
	{ErrDuplicateBinding, "already_joined"},
	{ErrIdentityOnline, "identity_online"},
	{ErrCallerBusy, "caller_busy"},
	{ErrTargetBusy, "target_busy"},
	{ErrNoRingingCall, "no_ringing_call"},
	{ErrNoActiveCall, "no_active_call"},
	{ErrSelfCall, "self_call"},
	{ErrInvalidCommand, "invalid_command"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrInvalidState, "invalid_state"},
	{ErrBackendUnavailable, "backend_unavailable"},
}

// Code returns the wire reason code for err. Specific errors are matched
// before their kind, unknown errors map to "internal".
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
