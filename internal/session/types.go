// Package session is the in-memory coordination engine of the chat server:
// who is online, the recent message window, typing marks, and the two-party
// call state machine. It knows nothing about websockets or storage.
package session

import "time"

// ConnID identifies one transport connection.
type ConnID string

// IdentityID is the stable external user id.
type IdentityID string

// CallID identifies one CallRecord.
type CallID string

// Identity is the already-authenticated user attached to a connection.
type Identity struct {
	ID     IdentityID `json:"id"`
	Name   string     `json:"name"`
	Avatar string     `json:"avatar,omitempty"`
	Role   string     `json:"role,omitempty"`
}

// Session binds one connection to one identity.
type Session struct {
	Conn         ConnID    `json:"conn"`
	Identity     Identity  `json:"identity"`
	Room         string    `json:"room,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActivity time.Time `json:"lastActivity"`
	InCall       bool      `json:"inCall"`
}

// MessageKind tags a chat message.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindSystem    MessageKind = "system"
	KindEmergency MessageKind = "emergency"
)

// Message is an immutable chat entry. Author is a copy taken at send time.
type Message struct {
	ID      string      `json:"id"`
	Seq     uint64      `json:"seq"`
	Author  Identity    `json:"author"`
	Body    string      `json:"body"`
	Channel string      `json:"channel,omitempty"`
	Kind    MessageKind `json:"kind"`
	At      time.Time   `json:"at"`
}

// TypingMark records that an identity is composing, optionally to a target.
type TypingMark struct {
	Identity Identity   `json:"identity"`
	Target   IdentityID `json:"target,omitempty"`
	At       time.Time  `json:"at"`
}

// CallState is the lifecycle state of a CallRecord.
type CallState string

const (
	CallRinging CallState = "ringing"
	CallActive  CallState = "active"
	CallEnded   CallState = "ended"
)

// Participant is one side of a call.
type Participant struct {
	Conn     ConnID   `json:"conn"`
	Identity Identity `json:"identity"`
}

// CallRecord is the shared state of one two-party call.
type CallRecord struct {
	ID         CallID      `json:"id"`
	Caller     Participant `json:"caller"`
	Callee     Participant `json:"callee"`
	State      CallState   `json:"state"`
	StartedAt  time.Time   `json:"startedAt"`
	AnsweredAt time.Time   `json:"answeredAt,omitzero"`
	EndedAt    time.Time   `json:"endedAt,omitzero"`
}

// Peer returns the participant on the other side of conn.
func (c CallRecord) Peer(conn ConnID) Participant {
	if c.Caller.Conn == conn {
		return c.Callee
	}
	return c.Caller
}

// PresenceEntry is one row of the online list.
type PresenceEntry struct {
	Identity Identity `json:"identity"`
	InCall   bool     `json:"inCall"`
}

// End reasons carried by call_ended.
const (
	ReasonPeerEnded        = "peer ended"
	ReasonPeerDisconnected = "peer disconnected"
	ReasonRejected         = "rejected"
	ReasonNoAnswer         = "no answer"
	ReasonEnded            = "ended"
)
