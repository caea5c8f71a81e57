// Package server coordinates client registration, room membership, and
// fan-out for the chat system via the Hub type.
package server

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/logging"
)

// Envelope is one delivery request handed to the hub.
//
// Exactly one scope applies, checked in this order: Target is a unicast to
// that client; Sender delivers to every other member of the sender's room;
// Room delivers to every member of that room; otherwise every connected
// client receives the payload.
type Envelope struct {
	Target  *Client
	Sender  *Client
	Room    string
	Payload []byte
}

// Hub owns the live connection and room-membership maps. Only the Run
// goroutine reads or writes them; everyone else talks to it over channels,
// so membership changes and deliveries are totally ordered without locks.
type Hub struct {
	clients    map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan Envelope
	queries    chan func()
	log        logging.Logger
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub ready to be started with Run.
func NewHub(log logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Envelope),
		queries:    make(chan func()),
		log:        log.With("component", "hub"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register adds c to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Unregister removes c. Calling it more than once, or after c was evicted,
// is a no-op.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

// Broadcast queues env for delivery. It blocks only until the hub accepts
// the envelope, never on any recipient.
func (h *Hub) Broadcast(env Envelope) {
	select {
	case h.broadcast <- env:
	case <-h.ctx.Done():
	}
}

// Members returns the sorted, de-duplicated usernames currently in room.
func (h *Hub) Members(room string) []string {
	var out []string
	h.query(func() { out = h.usernames(room) })
	return out
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	var n int
	h.query(func() { n = len(h.clients) })
	return n
}

// query runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) query(fn func()) bool {
	done := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(done) }:
	case <-h.ctx.Done():
		return false
	}
	<-done
	return true
}

// track runs fn in a goroutine that Shutdown waits for.
func (h *Hub) track(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// Run starts the hub's event loop. It returns after Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			if h.remove(c) {
				h.log.Info(h.ctx, "client unregistered", "conn", c.id, "user", c.username, "room", c.room, "clients", len(h.clients))
				h.announceUsers(c.room)
			}

		case env := <-h.broadcast:
			h.handleBroadcast(env)

		case fn := <-h.queries:
			fn()
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	if c == nil {
		h.log.Warn(h.ctx, "received nil client registration; skipping")
		return
	}
	if _, ok := h.clients[c]; ok {
		return
	}

	h.clients[c] = struct{}{}
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[c.room] = members
	}
	members[c] = struct{}{}

	h.log.Info(h.ctx, "client registered", "conn", c.id, "user", c.username, "room", c.room, "clients", len(h.clients))
	h.announceUsers(c.room)
}

func (h *Hub) handleBroadcast(env Envelope) {
	switch {
	case env.Target != nil:
		if _, ok := h.clients[env.Target]; ok {
			h.deliver([]*Client{env.Target}, env.Payload)
		}
	case env.Sender != nil:
		h.deliver(h.roomMembers(env.Sender.room, env.Sender), env.Payload)
	case env.Room != "":
		h.deliver(h.roomMembers(env.Room, nil), env.Payload)
	default:
		targets := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			targets = append(targets, c)
		}
		h.deliver(targets, env.Payload)
	}
}

// deliver never blocks: a recipient whose queue is full is evicted.
func (h *Hub) deliver(targets []*Client, payload []byte) {
	var slow []*Client
	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.evict(slow)
}

// evict drops slow consumers and refreshes the user list of every room that
// lost a member. The refresh may evict further clients; each round removes at
// least one member, so this terminates.
func (h *Hub) evict(clients []*Client) {
	if len(clients) == 0 {
		return
	}

	affected := make(map[string]struct{})
	for _, c := range clients {
		if h.remove(c) {
			h.log.Warn(h.ctx, "client evicted: send buffer full", "conn", c.id, "user", c.username, "room", c.room)
			affected[c.room] = struct{}{}
		}
	}
	for room := range affected {
		h.announceUsers(room)
	}
}

// remove deletes c from both maps and closes its queue. It reports whether c
// was registered; the queue is therefore closed exactly once.
func (h *Hub) remove(c *Client) bool {
	if c == nil {
		return false
	}
	if _, ok := h.clients[c]; !ok {
		return false
	}

	delete(h.clients, c)
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
	close(c.send)
	return true
}

func (h *Hub) announceUsers(room string) {
	if len(h.rooms[room]) == 0 {
		return
	}

	payload, err := EncodeUsers(room, h.usernames(room))
	if err != nil {
		h.log.Error(h.ctx, "encode user list", "room", room, "error", err)
		return
	}
	h.deliver(h.roomMembers(room, nil), payload)
}

func (h *Hub) roomMembers(room string, except *Client) []*Client {
	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		if c != except {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) usernames(room string) []string {
	members := h.rooms[room]
	names := make([]string, 0, len(members))
	for c := range members {
		names = append(names, c.username)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// shutdownClients closes every queue and socket so both pumps of each
// connection return.
func (h *Hub) shutdownClients() {
	h.log.Info(h.ctx, "shutting down all client connections")

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	for _, c := range clients {
		h.remove(c)
		c.closeConn()
	}

	h.log.Info(h.ctx, "closed client connections", "count", len(clients))
}

// Shutdown stops the event loop and waits for all client goroutines to
// finish, or until timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info(context.Background(), "initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info(context.Background(), "hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn(context.Background(), "hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
