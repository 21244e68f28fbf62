package session

import (
	"time"

	"github.com/samber/lo"
)

// CallDirectory is the part of the registry the coordinator relies on.
type CallDirectory interface {
	Lookup(conn ConnID) (Session, error)
	SessionsFor(id IdentityID) []Session
	SetInCall(conn ConnID, inCall bool)
}

// CallCoordinator runs the two-party call state machine. Each record is
// stored once and indexed under both participants' connections; teardown
// removes the record and both index entries together.
type CallCoordinator struct {
	dir     CallDirectory
	records map[CallID]*CallRecord
	index   map[ConnID]CallID
	now     func() time.Time
}

// NewCallCoordinator creates a coordinator that tracks busy flags in dir.
func NewCallCoordinator(dir CallDirectory, now func() time.Time) *CallCoordinator {
	return &CallCoordinator{
		dir:     dir,
		records: make(map[CallID]*CallRecord),
		index:   make(map[ConnID]CallID),
		now:     now,
	}
}

// Initiate starts ringing the callee's earliest-joined session. The callee
// is busy while any of its sessions takes part in a call.
func (c *CallCoordinator) Initiate(caller ConnID, callee IdentityID) (CallRecord, error) {
	from, err := c.dir.Lookup(caller)
	if err != nil {
		return CallRecord{}, err
	}
	if from.Identity.ID == callee {
		return CallRecord{}, ErrSelfCall
	}
	if _, busy := c.index[caller]; busy {
		return CallRecord{}, ErrCallerBusy
	}

	targets := c.dir.SessionsFor(callee)
	if len(targets) == 0 {
		return CallRecord{}, ErrTargetNotFound
	}
	if lo.SomeBy(targets, func(s Session) bool {
		_, busy := c.index[s.Conn]
		return busy
	}) {
		return CallRecord{}, ErrTargetBusy
	}
	to := targets[0]

	rec := &CallRecord{
		ID:        CallID(newID()),
		Caller:    Participant{Conn: from.Conn, Identity: from.Identity},
		Callee:    Participant{Conn: to.Conn, Identity: to.Identity},
		State:     CallRinging,
		StartedAt: c.now(),
	}
	c.records[rec.ID] = rec
	c.index[rec.Caller.Conn] = rec.ID
	c.index[rec.Callee.Conn] = rec.ID
	c.dir.SetInCall(rec.Caller.Conn, true)
	c.dir.SetInCall(rec.Callee.Conn, true)
	return *rec, nil
}

// Accept moves the ringing call addressed to conn to active.
func (c *CallCoordinator) Accept(conn ConnID) (CallRecord, error) {
	rec, err := c.ringingFor(conn)
	if err != nil {
		return CallRecord{}, err
	}
	rec.State = CallActive
	rec.AnsweredAt = c.now()
	return *rec, nil
}

// Reject ends the ringing call addressed to conn.
func (c *CallCoordinator) Reject(conn ConnID) (CallRecord, error) {
	rec, err := c.ringingFor(conn)
	if err != nil {
		return CallRecord{}, err
	}
	return c.end(rec), nil
}

// HangUp ends the call conn takes part in, ringing or active.
func (c *CallCoordinator) HangUp(conn ConnID) (CallRecord, error) {
	id, ok := c.index[conn]
	if !ok {
		return CallRecord{}, ErrNoActiveCall
	}
	return c.end(c.records[id]), nil
}

// Cascade force-ends the call of a disconnecting connection, if any. It
// must run before the connection is unbound.
func (c *CallCoordinator) Cascade(conn ConnID) (CallRecord, bool) {
	rec, err := c.HangUp(conn)
	return rec, err == nil
}

// Expire ends call id if it is still ringing. Used for ring timeouts.
func (c *CallCoordinator) Expire(id CallID) (CallRecord, error) {
	rec, ok := c.records[id]
	if !ok {
		return CallRecord{}, ErrCallNotFound
	}
	if rec.State != CallRinging {
		return CallRecord{}, ErrNoRingingCall
	}
	return c.end(rec), nil
}

// Lookup returns the call conn takes part in.
func (c *CallCoordinator) Lookup(conn ConnID) (CallRecord, bool) {
	id, ok := c.index[conn]
	if !ok {
		return CallRecord{}, false
	}
	return *c.records[id], true
}

// Len returns the number of live calls.
func (c *CallCoordinator) Len() int {
	return len(c.records)
}

func (c *CallCoordinator) ringingFor(conn ConnID) (*CallRecord, error) {
	id, ok := c.index[conn]
	if !ok {
		return nil, ErrNoRingingCall
	}
	rec := c.records[id]
	if rec.State != CallRinging || rec.Callee.Conn != conn {
		return nil, ErrNoRingingCall
	}
	return rec, nil
}

func (c *CallCoordinator) end(rec *CallRecord) CallRecord {
	rec.State = CallEnded
	rec.EndedAt = c.now()
	delete(c.records, rec.ID)
	delete(c.index, rec.Caller.Conn)
	delete(c.index, rec.Callee.Conn)
	c.dir.SetInCall(rec.Caller.Conn, false)
	c.dir.SetInCall(rec.Callee.Conn, false)
	return *rec
}
