package gateway

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/meetbot/internal/logging"
)

// ErrClientClosed is returned when sending to a closed monitor.
var ErrClientClosed = errors.New("client connection closed")

const (
	writeWait = 5 * time.Second
	// eventQueueSize bounds the events buffered for one monitor. Hook events
	// are raised inside call turns, so a monitor that falls this far behind
	// is dropped instead of slowing calls down.
	eventQueueSize = 64
)

// Client is an authenticated monitor connection. Responses are written
// directly by the read loop; events go through a queue drained by pump.
type Client struct {
	ConnID      string
	Info        ClientInfo
	Socket      *websocket.Conn
	ConnectedAt time.Time

	events map[string]bool // nil receives every event
	queue  chan Frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient creates a Client for a newly authenticated WebSocket connection.
func NewClient(conn *websocket.Conn, info ClientInfo, events []string, log *logging.Logger) *Client {
	c := &Client{
		ConnID:      uuid.New().String(),
		Info:        info,
		Socket:      conn,
		ConnectedAt: time.Now(),
		queue:       make(chan Frame, eventQueueSize),
		done:        make(chan struct{}),
		log:         log,
	}
	if len(events) > 0 {
		c.events = make(map[string]bool, len(events))
		for _, e := range events {
			c.events[e] = true
		}
	}
	return c
}

// Wants reports whether the client subscribed to event.
func (c *Client) Wants(event string) bool {
	return c.events == nil || c.events[event]
}

// Send writes a frame now. A slow reader fails the write after writeWait.
func (c *Client) Send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Socket.WriteJSON(frame)
}

// Enqueue hands an event frame to pump without blocking. It reports false
// when the client is closed or its queue is full.
func (c *Client) Enqueue(frame Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.queue <- frame:
		return true
	default:
		return false
	}
}

// pump writes queued events until the client closes.
func (c *Client) pump() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.queue:
			if err := c.Send(f); err != nil {
				if !errors.Is(err, ErrClientClosed) {
					c.log.Debug().Err(err).Str("connId", c.ConnID).Msg("event write failed")
				}
				c.Close()
				return
			}
		}
	}
}

// Respond sends a success response for the given request ID.
func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

// RespondError sends an error response for the given request ID.
func (c *Client) RespondError(reqID string, errShape ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, errShape))
}

// ReadFrame reads the next frame from the WebSocket.
func (c *Client) ReadFrame() (Frame, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Close stops the pump and closes the socket. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.done != nil {
		close(c.done)
	}
	if c.Socket == nil {
		return nil
	}
	return c.Socket.Close()
}

// ClientRegistry tracks connected monitors.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a client and starts its event pump.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	r.mu.Unlock()
	if c.Socket != nil {
		go c.pump()
	}
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Msg("monitor connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	_, ok := r.clients[connID]
	delete(r.clients, connID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", connID).Msg("monitor disconnected")
	}
}

// Get returns a client by connection ID.
func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast queues an event for every subscribed client and returns the
// number of clients that received it. The frame is encoded once. Clients
// whose queue is full are disconnected.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) int {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.Wants(event) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	frame, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("encoding event")
		return 0
	}

	sent := 0
	for _, c := range targets {
		if c.Enqueue(frame) {
			sent++
			continue
		}
		r.log.Warn().Str("connId", c.ConnID).Str("event", event).Msg("monitor too slow, disconnecting")
		r.Remove(c.ConnID)
		c.Close()
	}
	return sent
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
