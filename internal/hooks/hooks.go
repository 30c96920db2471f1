// Package hooks fans call lifecycle events out to the monitor, the call log
// and the notifiers. Dispatch is synchronous and runs inside the turn that
// raised the event, so handlers must return quickly.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/meetbot/internal/logging"
)

// Event names.
const (
	EventCallStart       = "call_start"
	EventTurn            = "turn"
	EventBooking         = "booking"
	EventBookingConflict = "booking_conflict"
	EventCallback        = "callback"
	EventSendInfo        = "send_info"
	EventCallEnd         = "call_end"
	EventServerStart     = "server_start"
	EventServerStop      = "server_stop"
)

// AllEvents lists every event in emission order of a typical call.
var AllEvents = []string{
	EventCallStart,
	EventTurn,
	EventBooking,
	EventBookingConflict,
	EventCallback,
	EventSendInfo,
	EventCallEnd,
	EventServerStart,
	EventServerStop,
}

// OutcomeEvents are the events that report what a call achieved.
var OutcomeEvents = []string{EventBooking, EventBookingConflict, EventCallback, EventSendInfo}

// Payload carries event data to handlers.
type Payload struct {
	Event string         `json:"event"`
	At    time.Time      `json:"at"`
	Data  map[string]any `json:"data,omitempty"`
}

// String returns a string field, or "" when absent or of another type.
func (p Payload) String(key string) string {
	s, _ := p.Data[key].(string)
	return s
}

// Bool returns a bool field, or false.
func (p Payload) Bool(key string) bool {
	b, _ := p.Data[key].(bool)
	return b
}

// CallID returns the callId field.
func (p Payload) CallID() string { return p.String("callId") }

// Handler handles one event. A returned error is logged and does not stop
// later handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager holds registrations and dispatches events.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for one event. The name shows up in logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// OnEach registers the same handler for several events.
func (m *Manager) OnEach(events []string, name string, handler Handler) {
	for _, ev := range events {
		m.On(ev, name, handler)
	}
}

// Emit calls every handler for event in registration order. Handler errors
// and panics are logged; neither reaches the caller, so a broken notifier
// cannot fail a call turn.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	m.mu.RLock()
	handlers := append([]namedHandler(nil), m.handlers[event]...)
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, At: time.Now().UTC(), Data: data}
	for _, h := range handlers {
		if err := m.call(ctx, h, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Str("callId", payload.CallID()).
				Msg("hook handler failed")
		}
	}
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.handler(ctx, p)
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the sorted events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]string, 0, len(m.handlers))
	for event, handlers := range m.handlers {
		if len(handlers) > 0 {
			events = append(events, event)
		}
	}
	sort.Strings(events)
	return events
}
