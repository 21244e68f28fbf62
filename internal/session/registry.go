package session

import (
	"slices"
	"time"

	"github.com/samber/lo"
)

// Registry maps connection handles to sessions and is the source of truth
// for who is online. It is not safe for concurrent use on its own; the
// Engine serializes access.
type Registry struct {
	sessions      map[ConnID]*Session
	order         []ConnID
	singleSession bool
}

// NewRegistry creates an empty registry. With singleSession set an identity
// may hold at most one session at a time.
func NewRegistry(singleSession bool) *Registry {
	return &Registry{
		sessions:      make(map[ConnID]*Session),
		singleSession: singleSession,
	}
}

// Bind attaches identity to conn.
func (r *Registry) Bind(conn ConnID, identity Identity, room string, at time.Time) (Session, error) {
	if _, ok := r.sessions[conn]; ok {
		return Session{}, ErrDuplicateBinding
	}
	if r.singleSession && len(r.SessionsFor(identity.ID)) > 0 {
		return Session{}, ErrIdentityOnline
	}

	s := &Session{
		Conn:         conn,
		Identity:     identity,
		Room:         room,
		JoinedAt:     at,
		LastActivity: at,
	}
	r.sessions[conn] = s
	r.order = append(r.order, conn)
	return *s, nil
}

// Unbind removes and returns the session bound to conn.
func (r *Registry) Unbind(conn ConnID) (Session, error) {
	s, ok := r.sessions[conn]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	delete(r.sessions, conn)
	if i := slices.Index(r.order, conn); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return *s, nil
}

// Lookup returns the session bound to conn.
func (r *Registry) Lookup(conn ConnID) (Session, error) {
	s, ok := r.sessions[conn]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// Sessions returns every session in join order.
func (r *Registry) Sessions() []Session {
	return lo.Map(r.order, func(conn ConnID, _ int) Session {
		return *r.sessions[conn]
	})
}

// SessionsFor returns the sessions of one identity in join order.
func (r *Registry) SessionsFor(id IdentityID) []Session {
	return lo.Filter(r.Sessions(), func(s Session, _ int) bool {
		return s.Identity.ID == id
	})
}

// ListOnline returns the distinct online identities in join order.
func (r *Registry) ListOnline() []Identity {
	identities := lo.Map(r.Sessions(), func(s Session, _ int) Identity {
		return s.Identity
	})
	return lo.UniqBy(identities, func(i Identity) IdentityID { return i.ID })
}

// Conns returns every bound connection in join order.
func (r *Registry) Conns() []ConnID {
	return slices.Clone(r.order)
}

// ConnsInRoom returns the connections that joined room tag.
func (r *Registry) ConnsInRoom(tag string) []ConnID {
	return lo.Filter(r.order, func(conn ConnID, _ int) bool {
		return r.sessions[conn].Room == tag
	})
}

// SetInCall flips the in-call flag of a bound session.
func (r *Registry) SetInCall(conn ConnID, inCall bool) {
	if s, ok := r.sessions[conn]; ok {
		s.InCall = inCall
	}
}

// Touch records activity on conn.
func (r *Registry) Touch(conn ConnID, at time.Time) {
	if s, ok := r.sessions[conn]; ok {
		s.LastActivity = at
	}
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Clear drops every session. Used at shutdown.
func (r *Registry) Clear() {
	r.sessions = make(map[ConnID]*Session)
	r.order = nil
}
