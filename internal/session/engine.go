//go:generate go run go.uber.org/mock/mockgen -source=engine.go -destination=mock_engine_test.go -package=session
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Archiver mirrors appended messages to durable storage. Archive must not
// block; failures are the archiver's to log.
type Archiver interface {
	Archive(msg Message)
}

// Scheduler runs cmd back through the engine's owner after a delay.
type Scheduler interface {
	Schedule(after time.Duration, cmd Command)
}

// Options tunes an Engine.
type Options struct {
	HistorySize   int
	TypingMode    TypingMode
	TypingTimeout time.Duration
	RingTimeout   time.Duration
	SingleSession bool
	Now           func() time.Time
}

// Engine applies commands to the combined session state and returns the
// events to deliver. All state changes happen under one mutex, so two
// concurrent calls to the same callee can never both see it free.
type Engine struct {
	mu          sync.Mutex
	registry    *Registry
	messages    *MessageLog
	presence    *Presence
	typing      *TypingTracker
	calls       *CallCoordinator
	archiver    Archiver
	scheduler   Scheduler
	ringTimeout time.Duration
	historySize int
	now         func() time.Time
	log         *slog.Logger
}

// NewEngine builds an engine. archiver and scheduler may be nil.
func NewEngine(opts Options, archiver Archiver, scheduler Scheduler, log *slog.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	registry := NewRegistry(opts.SingleSession)
	messages := NewMessageLog(opts.HistorySize)
	return &Engine{
		registry:    registry,
		messages:    messages,
		presence:    NewPresence(registry),
		typing:      NewTypingTracker(opts.TypingMode, opts.TypingTimeout, now),
		calls:       NewCallCoordinator(registry, now),
		archiver:    archiver,
		scheduler:   scheduler,
		ringTimeout: opts.RingTimeout,
		historySize: messages.Cap(),
		now:         now,
		log:         log,
	}
}

// Conns lists bound connections in join order.
func (e *Engine) Conns() []ConnID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Conns()
}

// ConnsInRoom lists the connections that joined room tag.
func (e *Engine) ConnsInRoom(tag string) []ConnID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ConnsInRoom(tag)
}

// Handle applies one command and returns the resulting envelopes in the
// order they must be delivered.
func (e *Engine) Handle(cmd Command) []Envelope {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch c := cmd.(type) {
	case Join:
		return e.join(c)
	case Leave:
		return e.leave(c.Conn)
	case Disconnect:
		return e.disconnect(c.Conn)
	case SendMessage:
		return e.send(c)
	case StartTyping:
		return e.startTyping(c)
	case StopTyping:
		return e.stopTyping(c.Conn)
	case InitiateCall:
		return e.initiate(c)
	case AcceptCall:
		return e.accept(c.Conn)
	case RejectCall:
		return e.reject(c.Conn)
	case HangUpCall:
		return e.hangUp(c.Conn)
	case ExpireRing:
		return e.expire(c.Call)
	case SweepTyping:
		return e.sweep()
	default:
		e.log.Warn("Unsupported command", "command", cmd)
		return nil
	}
}

func (e *Engine) join(c Join) []Envelope {
	s, err := e.registry.Bind(c.Conn, c.Identity, c.Room, e.now())
	if err != nil {
		e.log.Info("Join refused", "conn", c.Conn, "identity", c.Identity.ID, "err", err)
		return fail(c.Conn, err)
	}
	e.log.Info("Session joined", "conn", s.Conn, "identity", s.Identity.ID, "online", e.registry.Len())

	return []Envelope{
		{Event: History{Messages: e.messages.Recent(e.historySize)}, To: Single(s.Conn)},
		{Event: UserJoined{Identity: s.Identity, At: s.JoinedAt}, To: Others(s.Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) leave(conn ConnID) []Envelope {
	if _, err := e.registry.Lookup(conn); err != nil {
		return fail(conn, err)
	}
	out := e.disconnect(conn)
	return append(out, Envelope{Event: PresenceChanged{Online: e.presence.Snapshot()}, To: Single(conn)})
}

// disconnect tears a connection down: call first, then typing, then the
// binding itself, and finally presence. Unknown connections are a no-op.
func (e *Engine) disconnect(conn ConnID) []Envelope {
	s, err := e.registry.Lookup(conn)
	if err != nil {
		return nil
	}

	var out []Envelope
	if rec, ok := e.calls.Cascade(conn); ok {
		peer := rec.Peer(conn)
		e.log.Info("Call ended by disconnect", "call", rec.ID, "conn", conn, "peer", peer.Conn)
		out = append(out, Envelope{
			Event: CallEndedEvent{Call: rec, Reason: ReasonPeerDisconnected},
			To:    Single(peer.Conn),
		})
	}

	last := len(e.registry.SessionsFor(s.Identity.ID)) == 1
	var stopped *TypingMark
	if last {
		if mark, ok := e.typing.Stop(s.Identity.ID); ok {
			stopped = &mark
		}
	}

	if _, err = e.registry.Unbind(conn); err != nil {
		e.log.Error("Unbind failed after lookup", "conn", conn, "err", err)
	}
	e.log.Info("Session left", "conn", conn, "identity", s.Identity.ID, "online", e.registry.Len())

	if stopped != nil {
		out = append(out, e.typingEnvelopes(stopped.Target)...)
	}
	if last {
		out = append(out, Envelope{Event: UserLeft{Identity: s.Identity, At: e.now()}, To: Everyone()})
	}
	return append(out, e.presenceEnvelope())
}

func (e *Engine) send(c SendMessage) []Envelope {
	s, err := e.touch(c.Conn)
	if err != nil {
		return fail(c.Conn, err)
	}

	msg := e.messages.Append(Message{
		Author:  s.Identity,
		Body:    c.Body,
		Channel: c.Channel,
		Kind:    c.Kind,
		At:      e.now(),
	})
	if e.archiver != nil {
		e.archiver.Archive(msg)
	}

	to := Everyone()
	if msg.Channel != "" {
		to = Room(msg.Channel)
	}
	out := []Envelope{{Event: MessageAppended{Message: msg}, To: to}}
	if msg.Channel != "" && s.Room != msg.Channel {
		// The author always sees its own message.
		out = append(out, Envelope{Event: MessageAppended{Message: msg}, To: Single(c.Conn)})
	}
	if mark, ok := e.typing.Stop(s.Identity.ID); ok {
		out = append(out, e.typingEnvelopes(mark.Target, c.Conn)...)
	}
	return out
}

func (e *Engine) startTyping(c StartTyping) []Envelope {
	s, err := e.touch(c.Conn)
	if err != nil {
		return fail(c.Conn, err)
	}
	prev, replaced := e.typing.Start(s.Identity, c.Target)
	out := e.typingEnvelopes(c.Target, c.Conn)
	if replaced && prev.Target != c.Target && e.typing.Mode() == TypingDirect {
		out = append(out, e.typingEnvelopes(prev.Target)...)
	}
	return out
}

func (e *Engine) stopTyping(conn ConnID) []Envelope {
	s, err := e.touch(conn)
	if err != nil {
		return fail(conn, err)
	}
	mark, ok := e.typing.Stop(s.Identity.ID)
	if !ok {
		return []Envelope{{Event: TypingChanged{Typing: e.typing.Snapshot(s.Identity.ID)}, To: Single(conn)}}
	}
	return e.typingEnvelopes(mark.Target, conn)
}

// typingEnvelopes announces the typing state relevant to target. In
// broadcast mode everyone gets the full list.
func (e *Engine) typingEnvelopes(target IdentityID, extra ...ConnID) []Envelope {
	if e.typing.Mode() == TypingBroadcast || target == "" {
		return []Envelope{{Event: TypingChanged{Typing: e.typing.Snapshot(target)}, To: Everyone()}}
	}
	conns := lo.Map(e.registry.SessionsFor(target), func(s Session, _ int) ConnID { return s.Conn })
	return []Envelope{{
		Event: TypingChanged{Typing: e.typing.Snapshot(target)},
		To:    Group(append(conns, extra...)...),
	}}
}

func (e *Engine) sweep() []Envelope {
	expired := e.typing.Sweep()
	if len(expired) == 0 {
		return nil
	}
	e.log.Debug("Typing marks expired", "count", len(expired))
	if e.typing.Mode() == TypingBroadcast {
		return e.typingEnvelopes("")
	}
	targets := lo.Uniq(lo.Map(expired, func(m TypingMark, _ int) IdentityID { return m.Target }))
	return lo.FlatMap(targets, func(t IdentityID, _ int) []Envelope {
		return e.typingEnvelopes(t)
	})
}

func (e *Engine) initiate(c InitiateCall) []Envelope {
	if _, err := e.touch(c.Conn); err != nil {
		return callFailed(c.Conn, err)
	}
	rec, err := e.calls.Initiate(c.Conn, c.Target)
	if err != nil {
		e.log.Info("Call refused", "conn", c.Conn, "target", c.Target, "err", err)
		return callFailed(c.Conn, err)
	}
	e.log.Info("Call ringing", "call", rec.ID, "caller", rec.Caller.Conn, "callee", rec.Callee.Conn)

	if e.scheduler != nil && e.ringTimeout > 0 {
		e.scheduler.Schedule(e.ringTimeout, ExpireRing{Call: rec.ID})
	}
	return []Envelope{
		{Event: CallRingingEvent{Call: rec}, To: Single(rec.Caller.Conn)},
		{Event: CallIncoming{Call: rec}, To: Single(rec.Callee.Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) accept(conn ConnID) []Envelope {
	if _, err := e.touch(conn); err != nil {
		return callFailed(conn, err)
	}
	rec, err := e.calls.Accept(conn)
	if err != nil {
		return callFailed(conn, err)
	}
	e.log.Info("Call connected", "call", rec.ID)
	return []Envelope{
		{Event: CallConnected{Call: rec}, To: Pair(rec.Caller.Conn, rec.Callee.Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) reject(conn ConnID) []Envelope {
	if _, err := e.touch(conn); err != nil {
		return callFailed(conn, err)
	}
	rec, err := e.calls.Reject(conn)
	if err != nil {
		return callFailed(conn, err)
	}
	e.log.Info("Call rejected", "call", rec.ID)
	return []Envelope{
		{Event: CallEndedEvent{Call: rec, Reason: ReasonRejected}, To: Pair(rec.Caller.Conn, rec.Callee.Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) hangUp(conn ConnID) []Envelope {
	if _, err := e.touch(conn); err != nil {
		return callFailed(conn, err)
	}
	rec, err := e.calls.HangUp(conn)
	if errors.Is(err, ErrNoActiveCall) {
		// The other side already ended it.
		e.log.Debug("Hang up without a call", "conn", conn)
		return nil
	}
	if err != nil {
		return callFailed(conn, err)
	}
	e.log.Info("Call ended", "call", rec.ID, "by", conn)
	return []Envelope{
		{Event: CallEndedEvent{Call: rec, Reason: ReasonEnded}, To: Single(conn)},
		{Event: CallEndedEvent{Call: rec, Reason: ReasonPeerEnded}, To: Single(rec.Peer(conn).Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) expire(id CallID) []Envelope {
	rec, err := e.calls.Expire(id)
	if err != nil {
		return nil
	}
	e.log.Info("Call not answered", "call", id)
	return []Envelope{
		{Event: CallEndedEvent{Call: rec, Reason: ReasonNoAnswer}, To: Pair(rec.Caller.Conn, rec.Callee.Conn)},
		e.presenceEnvelope(),
	}
}

func (e *Engine) touch(conn ConnID) (Session, error) {
	s, err := e.registry.Lookup(conn)
	if err != nil {
		return Session{}, err
	}
	e.registry.Touch(conn, e.now())
	return s, nil
}

func (e *Engine) presenceEnvelope() Envelope {
	return Envelope{Event: PresenceChanged{Online: e.presence.Snapshot()}, To: Everyone()}
}

func fail(conn ConnID, err error) []Envelope {
	return []Envelope{{Event: NewFailure(err), To: Single(conn)}}
}

func callFailed(conn ConnID, err error) []Envelope {
	return []Envelope{{Event: CallFailed{Reason: Code(err), Detail: err.Error()}, To: Single(conn)}}
}

// Presence returns the current online list.
func (e *Engine) Presence() []PresenceEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.presence.Snapshot()
}

// Recent returns up to limit messages, oldest first.
func (e *Engine) Recent(limit int) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messages.Recent(limit)
}

// HistorySize returns the capacity of the message window.
func (e *Engine) HistorySize() int {
	return e.historySize
}

// Session returns the session bound to conn.
func (e *Engine) Session(conn ConnID) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Lookup(conn)
}

// Call returns the call conn takes part in.
func (e *Engine) Call(conn ConnID) (CallRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls.Lookup(conn)
}

// Typing returns the live typing marks visible to target.
func (e *Engine) Typing(target IdentityID) []TypingMark {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typing.Snapshot(target)
}

// Restore warms the message window, typically from the archive at start-up.
func (e *Engine) Restore(msgs []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages.Restore(msgs)
}

// Reset drops every session and call. Messages are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Clear()
	e.calls = NewCallCoordinator(e.registry, e.now)
	e.typing = NewTypingTracker(e.typing.Mode(), e.typing.timeout, e.now)
}
