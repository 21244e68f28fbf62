package session

import "github.com/samber/lo"

// Directory is the read side of the registry that derived views need.
type Directory interface {
	Sessions() []Session
}

// Presence derives the online list. It holds no state of its own.
type Presence struct {
	dir Directory
}

// NewPresence reads sessions from dir on every snapshot.
func NewPresence(dir Directory) *Presence {
	return &Presence{dir: dir}
}

// Snapshot lists each online identity once, in join order. An identity is
// in a call when any of its sessions is.
func (p *Presence) Snapshot() []PresenceEntry {
	sessions := p.dir.Sessions()
	inCall := make(map[IdentityID]bool, len(sessions))
	for _, s := range sessions {
		inCall[s.Identity.ID] = inCall[s.Identity.ID] || s.InCall
	}
	unique := lo.UniqBy(sessions, func(s Session) IdentityID { return s.Identity.ID })
	return lo.Map(unique, func(s Session, _ int) PresenceEntry {
		return PresenceEntry{Identity: s.Identity, InCall: inCall[s.Identity.ID]}
	})
}
