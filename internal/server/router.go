// Package server routes inbound client events to their targets through a
// single event loop owned by the Router type.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Tyrowin/chitchat/internal/metrics"
	"github.com/Tyrowin/chitchat/internal/registry"
)

// RouterOptions tunes the Router. A zero EvictionInterval disables the
// periodic eviction sweep.
type RouterOptions struct {
	EvictionInterval time.Duration
}

// RouterOptions derives the router settings from the configuration.
func (c *Config) RouterOptions() RouterOptions {
	if !c.evictionEnabled() {
		return RouterOptions{}
	}
	return RouterOptions{EvictionInterval: c.EvictionInterval}
}

type connection struct {
	peer  Peer
	state ConnState
}

// Router is the protocol state machine between the transport and the
// registry. All events are handled one at a time by Run, so the connection
// table is only touched from that goroutine.
type Router struct {
	registry *registry.Registry
	log      *slog.Logger
	validate *validator.Validate
	opts     RouterOptions

	conns map[string]*connection

	connect    chan Peer
	inbound    chan InboundEvent
	disconnect chan Peer

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRouter creates a Router backed by reg. The returned Router does nothing
// until Run is started.
func NewRouter(reg *registry.Registry, log *slog.Logger, opts RouterOptions) *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		registry:   reg,
		log:        log,
		validate:   validator.New(),
		opts:       opts,
		conns:      make(map[string]*connection),
		connect:    make(chan Peer),
		inbound:    make(chan InboundEvent),
		disconnect: make(chan Peer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry exposes the session registry for read-only consumers such as the
// roster endpoint.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Connect hands a freshly accepted peer to the event loop. It returns false
// if the router is shutting down.
func (r *Router) Connect(p Peer) bool {
	select {
	case r.connect <- p:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Dispatch queues an inbound event. It returns false if the router is
// shutting down.
func (r *Router) Dispatch(ev InboundEvent) bool {
	select {
	case r.inbound <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Disconnect reports that a peer's transport has closed.
func (r *Router) Disconnect(p Peer) {
	select {
	case r.disconnect <- p:
	case <-r.ctx.Done():
	}
}

// Run starts the router's event loop. It returns once Shutdown is called.
func (r *Router) Run() {
	defer close(r.done)

	var evict <-chan time.Time
	if r.opts.EvictionInterval > 0 {
		ticker := time.NewTicker(r.opts.EvictionInterval)
		defer ticker.Stop()
		evict = ticker.C
	}

	for {
		select {
		case <-r.ctx.Done():
			r.shutdownPeers()
			return

		case p := <-r.connect:
			r.handleConnect(p)

		case ev := <-r.inbound:
			r.handleEvent(ev)

		case p := <-r.disconnect:
			r.handleDisconnect(p)

		case now := <-evict:
			r.handleEvict(now)
		}
	}
}

func (r *Router) handleConnect(p Peer) {
	if p == nil {
		r.log.Warn("Received nil peer registration; skipping")
		return
	}

	r.conns[p.ID()] = &connection{peer: p, state: StateAnonymous}
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	metrics.TotalConnections.Inc()
	r.log.Info("Client connected", "conn", p.ID(), "addr", p.Addr(), "clients", len(r.conns))

	if c, ok := p.(*Client); ok && c.conn != nil {
		r.startPumps(c)
	}
}

func (r *Router) startPumps(c *Client) {
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		c.writePump()
	}()
	go func() {
		defer r.wg.Done()
		c.readPump()
	}()
}

func (r *Router) handleEvent(ev InboundEvent) {
	if ev.Peer == nil {
		return
	}
	conn, ok := r.conns[ev.Peer.ID()]
	if !ok {
		r.log.Debug("Ignoring event from disconnected client", "conn", ev.Peer.ID(), "event", ev.Envelope.Event)
		return
	}

	next, err := conn.state.Next(ev.Envelope.Event)
	if err == nil && ev.Envelope.Event == eventDisconnect {
		err = ErrIllegalTransition
	}
	if err != nil {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
		r.log.Debug("Dropping event", "conn", ev.Peer.ID(), "err", err)
		return
	}

	switch ev.Envelope.Event {
	case EventLogin:
		r.handleLogin(conn, next, ev.Envelope.Data)
	case EventSendMessage:
		r.handleSendMessage(conn, ev.Envelope.Data)
	case EventTyping:
		r.handleTyping(conn, ev.Envelope.Data)
	}
}

func (r *Router) handleLogin(conn *connection, next ConnState, data json.RawMessage) {
	var username string
	if err := json.Unmarshal(data, &username); err != nil {
		r.dropMalformed(conn, EventLogin, err)
		return
	}
	if err := r.validate.Var(username, "required,max=64"); err != nil {
		r.dropMalformed(conn, EventLogin, err)
		return
	}

	if _, err := r.registry.Register(username, conn.peer.ID()); err != nil {
		if errors.Is(err, registry.ErrUsernameTaken) {
			metrics.EventsDropped.WithLabelValues(metrics.ReasonRejected).Inc()
			r.log.Warn("Login refused", "conn", conn.peer.ID(), "username", username, "err", err)
			return
		}
		r.log.Error("Login failed", "conn", conn.peer.ID(), "username", username, "err", err)
		return
	}

	conn.state = next
	metrics.EventsReceived.WithLabelValues(EventLogin).Inc()
	r.log.Info("User logged in", "conn", conn.peer.ID(), "username", username)
	r.broadcastRoster()
}

func (r *Router) handleSendMessage(conn *connection, data json.RawMessage) {
	var msg MessagePayload
	if err := r.decode(data, &msg); err != nil {
		r.dropMalformed(conn, EventSendMessage, err)
		return
	}
	metrics.EventsReceived.WithLabelValues(EventSendMessage).Inc()
	// The receiver gets the sender's data as written, including fields the
	// relay does not model.
	r.route(msg.Receiver, EventReceiveMessage, data)
}

func (r *Router) handleTyping(conn *connection, data json.RawMessage) {
	var signal TypingPayload
	if err := r.decode(data, &signal); err != nil {
		r.dropMalformed(conn, EventTyping, err)
		return
	}
	metrics.EventsReceived.WithLabelValues(EventTyping).Inc()
	r.route(signal.Receiver, EventTyping, TypingNotice{Sender: signal.Sender, IsTyping: signal.IsTyping})
}

func (r *Router) decode(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return r.validate.Struct(dst)
}

func (r *Router) dropMalformed(conn *connection, event string, err error) {
	metrics.EventsDropped.WithLabelValues(metrics.ReasonMalformed).Inc()
	r.log.Info("Dropping malformed event", "conn", conn.peer.ID(), "event", event, "err", err)
}

// route resolves receiver by username and delivers the event to its
// connection. Unknown or offline receivers are dropped without telling the
// sender.
func (r *Router) route(receiver, event string, data any) {
	session, ok := r.registry.FindByUsername(receiver)
	if !ok || !session.Online {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonUnaddressable).Inc()
		r.log.Debug("Receiver not reachable; dropping", "event", event, "receiver", receiver)
		return
	}

	target, ok := r.conns[session.ConnectionID]
	if !ok {
		metrics.EventsDropped.WithLabelValues(metrics.ReasonUnaddressable).Inc()
		return
	}

	payload, err := encodeEvent(event, data)
	if err != nil {
		r.log.Error("Encoding outbound event failed", "event", event, "err", err)
		return
	}

	if !target.peer.Deliver(payload) {
		r.dropPeers([]*connection{target})
		return
	}
	metrics.EventsDelivered.WithLabelValues(event).Inc()
}

func (r *Router) handleDisconnect(p Peer) {
	if p == nil {
		return
	}
	conn, ok := r.conns[p.ID()]
	if !ok {
		return
	}
	r.dropPeers([]*connection{conn})
}

// dropPeers disconnects the given connections, then rebroadcasts the roster.
// Peers that fail to accept the broadcast are dropped in turn.
func (r *Router) dropPeers(conns []*connection) {
	for len(conns) > 0 {
		for _, conn := range conns {
			r.closeConnection(conn)
		}
		conns = r.broadcastRoster()
	}
}

func (r *Router) closeConnection(conn *connection) {
	id := conn.peer.ID()
	if _, ok := r.conns[id]; !ok {
		return
	}
	delete(r.conns, id)

	next, _ := conn.state.Next(eventDisconnect)
	conn.state = next
	conn.peer.Close()

	changed := r.registry.MarkOffline(id)
	metrics.ActiveConnections.Set(float64(len(r.conns)))
	r.log.Info("Client disconnected", "conn", id, "addr", conn.peer.Addr(), "sessions_offline", changed, "clients", len(r.conns))
}

// broadcastRoster sends the full roster to every connection regardless of
// login state and returns the connections whose queues rejected it.
func (r *Router) broadcastRoster() []*connection {
	sessions := r.registry.Snapshot()
	metrics.ObserveRoster(len(sessions), r.registry.OnlineCount())

	entries := lo.Map(sessions, func(s registry.Session, _ int) UserEntry {
		return UserEntry{
			Username:     s.Username,
			ConnectionID: s.ConnectionID,
			OnlineStatus: s.Online,
		}
	})
	payload, err := encodeEvent(EventUsers, entries)
	if err != nil {
		r.log.Error("Encoding roster failed", "err", err)
		return nil
	}

	r.log.Debug("Broadcasting roster", "sessions", len(entries), "clients", len(r.conns))

	var failed []*connection
	for _, conn := range r.conns {
		if conn.peer.Deliver(payload) {
			metrics.EventsDelivered.WithLabelValues(EventUsers).Inc()
			continue
		}
		metrics.EventsDropped.WithLabelValues(metrics.ReasonClosed).Inc()
		r.log.Warn("Client removed due to full send buffer", "conn", conn.peer.ID(), "addr", conn.peer.Addr())
		failed = append(failed, conn)
	}
	return failed
}

func (r *Router) handleEvict(now time.Time) {
	removed := r.registry.Evict(now)
	if removed == 0 {
		return
	}
	metrics.SessionsEvicted.Add(float64(removed))
	r.log.Info("Evicted offline sessions", "removed", removed, "remaining", r.registry.Len())
	r.dropPeers(r.broadcastRoster())
}

// shutdownPeers closes every remaining connection without broadcasting.
func (r *Router) shutdownPeers() {
	r.log.Info("Shutting down all client connections...")

	count := len(r.conns)
	for id, conn := range r.conns {
		delete(r.conns, id)
		conn.peer.Close()
	}
	metrics.ActiveConnections.Set(0)

	r.log.Info("Closed client connections", "count", count)
}

// Shutdown stops the event loop, closes all connections and waits for the
// client goroutines to finish or for timeout to elapse. Run must have been
// started.
func (r *Router) Shutdown(timeout time.Duration) error {
	r.log.Info("Initiating router shutdown...")

	r.cancel()
	<-r.done

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("Router shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		r.log.Warn("Router shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
