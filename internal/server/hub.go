package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatline/internal/session"
)

// Hub manages all WebSocket client connections and feeds their commands to
// the session engine. Run is the only goroutine that calls Engine.Handle or
// delivers frames, so each client sees events in the order it caused them.
type Hub struct {
	engine        *session.Engine
	router        *session.Router
	clients       map[session.ConnID]*Client
	register      chan *Client
	unregister    chan *Client
	inbound       chan request
	sweepInterval time.Duration
	mutex         sync.RWMutex
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	log           *slog.Logger
}

// NewHub creates a hub and the engine it drives. The hub is the engine's
// scheduler and the router's transport.
func NewHub(opts session.Options, archiver session.Archiver, sweepInterval time.Duration, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:       make(map[session.ConnID]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		inbound:       make(chan request, 64),
		sweepInterval: sweepInterval,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		log:           log,
	}
	h.engine = session.NewEngine(opts, archiver, h, log)
	h.router = session.NewRouter(h.engine, h, log)
	return h
}

// request is one unit of work for the run loop: either a command for the
// engine or a ready-made event for a single connection.
type request struct {
	cmd   session.Command
	reply *session.Envelope
}

// Engine returns the engine the hub drives. Read-only accessors on it are
// safe from any goroutine.
func (h *Hub) Engine() *session.Engine {
	return h.engine
}

// Submit queues cmd for the run loop. It reports false once the hub is
// shutting down.
func (h *Hub) Submit(cmd session.Command) bool {
	return h.enqueue(request{cmd: cmd})
}

// reply queues a transport-level failure for one client behind anything it
// submitted earlier.
func (h *Hub) reply(conn session.ConnID, event session.Event) bool {
	return h.enqueue(request{reply: &session.Envelope{Event: event, To: session.Single(conn)}})
}

func (h *Hub) enqueue(req request) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbound <- req:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Schedule posts cmd back to the run loop after the delay.
func (h *Hub) Schedule(after time.Duration, cmd session.Command) {
	time.AfterFunc(after, func() {
		h.Submit(cmd)
	})
}

// Send queues frame on the connection's send buffer without blocking.
func (h *Hub) Send(conn session.ConnID, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in send", "conn", conn, "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel can not be closed underneath.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[conn]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.sweepInterval > 0 {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("Client registered", "conn", client.id, "addr", client.addr, "clients", clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			if h.detach(client.id) {
				h.log.Info("Client unregistered", "conn", client.id, "addr", client.addr)
			}
			// The engine may still hold the session if the client was
			// dropped for a full buffer; Disconnect is idempotent.
			h.dispatch(session.Disconnect{Conn: client.id})

		case req := <-h.inbound:
			if req.reply != nil {
				h.deliver(*req.reply)
				continue
			}
			h.dispatch(req.cmd)

		case <-sweep:
			h.dispatch(session.SweepTyping{})
		}
	}
}

// dispatch runs one command through the engine and delivers its events.
func (h *Hub) dispatch(cmd session.Command) {
	h.deliver(h.engine.Handle(cmd)...)
}

// deliver routes envelopes and drops the clients that could not take them.
func (h *Hub) deliver(envelopes ...session.Envelope) {
	if len(envelopes) == 0 {
		return
	}
	h.removeFailedClients(h.router.Deliver(envelopes...))
}

// detach removes conn from the client map and closes its send channel.
func (h *Hub) detach(conn session.ConnID) bool {
	h.mutex.Lock()
	client, ok := h.clients[conn]
	if !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, conn)
	client.closed = true
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	return true
}

// removeFailedClients drops clients whose send buffer was full and tells the
// engine they are gone.
func (h *Hub) removeFailedClients(conns []session.ConnID) {
	for _, conn := range conns {
		if h.detach(conn) {
			h.log.Warn("Client removed due to full send buffer", "conn", conn)
			h.dispatch(session.Disconnect{Conn: conn})
		}
	}
}

// ClientCount returns the number of attached websocket clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		h.detach(client.id)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("Error closing client connection", "addr", client.addr, "err", err)
			}
		}
	}
	h.engine.Reset()

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
