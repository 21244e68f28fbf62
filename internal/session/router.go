//go:generate go run go.uber.org/mock/mockgen -source=router.go -destination=mock_router_test.go -package=session
package session

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/samber/lo"
)

// SelectorKind names a delivery policy.
type SelectorKind int

const (
	ToEveryone SelectorKind = iota
	ToRoom
	ToSingle
	ToPair
	ToOthers
	ToGroup
)

// Selector resolves who receives an event.
type Selector struct {
	Kind  SelectorKind
	Room  string
	Conns []ConnID
}

// Everyone selects every bound connection.
func Everyone() Selector { return Selector{Kind: ToEveryone} }

// Room selects the connections joined to tag.
func Room(tag string) Selector { return Selector{Kind: ToRoom, Room: tag} }

// Single selects one connection.
func Single(conn ConnID) Selector { return Selector{Kind: ToSingle, Conns: []ConnID{conn}} }

// Pair selects both parties of a call.
func Pair(a, b ConnID) Selector { return Selector{Kind: ToPair, Conns: []ConnID{a, b}} }

// Others selects every connection except one.
func Others(except ConnID) Selector { return Selector{Kind: ToOthers, Conns: []ConnID{except}} }

// Group selects an explicit set of connections.
func Group(conns ...ConnID) Selector { return Selector{Kind: ToGroup, Conns: conns} }

// Envelope pairs an event with its audience.
type Envelope struct {
	Event Event
	To    Selector
}

// Frame is the wire shape of every outgoing event.
type Frame struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// Transport writes an encoded frame to one connection. Send reports false
// when the connection can not take the frame right now.
type Transport interface {
	Send(conn ConnID, frame []byte) bool
}

// Audience lists the bound connections a selector can expand to.
type Audience interface {
	Conns() []ConnID
	ConnsInRoom(tag string) []ConnID
}

// Router fans envelopes out over a Transport. It keeps no state and does
// not retry.
type Router struct {
	audience  Audience
	transport Transport
	log       *slog.Logger
}

// NewRouter creates a router expanding selectors against audience.
func NewRouter(audience Audience, transport Transport, log *slog.Logger) *Router {
	return &Router{audience: audience, transport: transport, log: log}
}

// Resolve expands a selector into connection handles.
func (r *Router) Resolve(to Selector) []ConnID {
	switch to.Kind {
	case ToEveryone:
		return r.audience.Conns()
	case ToRoom:
		return r.audience.ConnsInRoom(to.Room)
	case ToOthers:
		return lo.Reject(r.audience.Conns(), func(c ConnID, _ int) bool { return slices.Contains(to.Conns, c) })
	default:
		return lo.Uniq(to.Conns)
	}
}

// Deliver sends every envelope in order and returns the connections that
// refused a frame.
func (r *Router) Deliver(envelopes ...Envelope) []ConnID {
	var failed []ConnID
	for _, env := range envelopes {
		frame, err := json.Marshal(Frame{Type: env.Event.EventType(), Payload: env.Event})
		if err != nil {
			r.log.Error("Encoding event failed", "type", env.Event.EventType(), "err", err)
			continue
		}
		for _, conn := range r.Resolve(env.To) {
			if !r.transport.Send(conn, frame) {
				failed = append(failed, conn)
			}
		}
	}
	return lo.Uniq(failed)
}
