package session

// Command is one inbound event for the engine.
type Command interface {
	command()
}

// Join binds a connection to an identity, optionally inside a room.
type Join struct {
	Conn     ConnID
	Identity Identity
	Room     string
}

// Leave unbinds a connection while keeping the socket open.
type Leave struct {
	Conn ConnID
}

// SendMessage appends a message authored by the connection's identity.
type SendMessage struct {
	Conn    ConnID
	Body    string
	Channel string
	Kind    MessageKind
}

// StartTyping marks the identity as typing, optionally to one target.
type StartTyping struct {
	Conn   ConnID
	Target IdentityID
}

// StopTyping clears the identity's typing mark.
type StopTyping struct {
	Conn ConnID
}

// InitiateCall rings the target identity.
type InitiateCall struct {
	Conn   ConnID
	Target IdentityID
}

// AcceptCall answers the call ringing on the connection.
type AcceptCall struct {
	Conn ConnID
}

// RejectCall declines the call ringing on the connection.
type RejectCall struct {
	Conn ConnID
}

// HangUpCall ends the connection's ringing or active call.
type HangUpCall struct {
	Conn ConnID
}

// Disconnect is raised by the transport, never by a client.
type Disconnect struct {
	Conn ConnID
}

// ExpireRing is scheduled by the engine when a ring timeout is configured.
type ExpireRing struct {
	Call CallID
}

// SweepTyping drops expired typing marks.
type SweepTyping struct{}

func (Join) command()         {}
func (Leave) command()        {}
func (SendMessage) command()  {}
func (StartTyping) command()  {}
func (StopTyping) command()   {}
func (InitiateCall) command() {}
func (AcceptCall) command()   {}
func (RejectCall) command()   {}
func (HangUpCall) command()   {}
func (Disconnect) command()   {}
func (ExpireRing) command()   {}
func (SweepTyping) command()  {}
