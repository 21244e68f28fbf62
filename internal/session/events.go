package session

import "time"

// Event is an outgoing notification produced by the engine.
type Event interface {
	EventType() string
}

// History carries the recent window to a joining connection.
type History struct {
	Messages []Message `json:"messages"`
}

// PresenceChanged is the full online list after any change.
type PresenceChanged struct {
	Online []PresenceEntry `json:"online"`
}

// UserJoined announces an identity's first session.
type UserJoined struct {
	Identity Identity  `json:"identity"`
	At       time.Time `json:"at"`
}

// UserLeft announces that an identity's last session is gone.
type UserLeft struct {
	Identity Identity  `json:"identity"`
	At       time.Time `json:"at"`
}

// MessageAppended carries a newly logged message.
type MessageAppended struct {
	Message Message `json:"message"`
}

// TypingChanged lists the typing marks visible to the receiver.
type TypingChanged struct {
	Typing []TypingMark `json:"typing"`
}

// CallRingingEvent tells the caller the callee is being rung.
type CallRingingEvent struct {
	Call CallRecord `json:"call"`
}

// CallIncoming tells the callee someone is calling.
type CallIncoming struct {
	Call CallRecord `json:"call"`
}

// CallConnected tells both parties the call was answered.
type CallConnected struct {
	Call CallRecord `json:"call"`
}

// CallEndedEvent reports a finished call and why it ended.
type CallEndedEvent struct {
	Call   CallRecord `json:"call"`
	Reason string     `json:"reason"`
}

// CallFailed answers a call request that could not be carried out.
type CallFailed struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// Failure reports a rejected request to its sender.
type Failure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// EventType names each event on the wire.
func (History) EventType() string          { return "history" }
func (PresenceChanged) EventType() string  { return "presence_changed" }
func (UserJoined) EventType() string       { return "user_joined" }
func (UserLeft) EventType() string         { return "user_left" }
func (MessageAppended) EventType() string  { return "message_appended" }
func (TypingChanged) EventType() string    { return "typing_changed" }
func (CallRingingEvent) EventType() string { return "call_ringing" }
func (CallIncoming) EventType() string     { return "call_incoming" }
func (CallConnected) EventType() string    { return "call_connected" }
func (CallEndedEvent) EventType() string   { return "call_ended" }
func (CallFailed) EventType() string       { return "call_failed" }
func (Failure) EventType() string          { return "error" }

// NewFailure builds the error event for err.
func NewFailure(err error) Failure {
	return Failure{Code: Code(err), Reason: err.Error()}
}
