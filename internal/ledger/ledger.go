// Package ledger is the durable record of confirmed meetings and the sole
// arbiter of slot conflicts.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/schedule"
)

// Backend persists meeting entries. Implementations need not be safe for
// concurrent mutation; the Ledger serializes writers.
type Backend interface {
	Entries() ([]domain.MeetingEntry, error)
	Append(entry domain.MeetingEntry) (domain.MeetingEntry, error)
	Update(slot, callID string, fields map[string]string) (bool, error)
	Close() error
}

// Ledger serializes check-then-append so that at most one active entry
// exists per slot.
type Ledger struct {
	mu      sync.RWMutex
	backend Backend
	cal     *schedule.Calendar
	log     *logging.Logger
	now     func() time.Time
}

// New creates a Ledger over a backend, validating bookings against cal.
func New(backend Backend, cal *schedule.Calendar, log *logging.Logger) *Ledger {
	return &Ledger{
		backend: backend,
		cal:     cal,
		log:     log.Sub("ledger"),
		now:     time.Now,
	}
}

// Calendar returns the calendar bookings are validated against.
func (l *Ledger) Calendar() *schedule.Calendar { return l.cal }

// Entries returns all recorded meetings in insertion order.
func (l *Ledger) Entries() ([]domain.MeetingEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.backend.Entries()
}

// ListBookedSlots returns the set of slots held by active entries. A backend
// read failure degrades to no bookings.
func (l *Ledger) ListBookedSlots() map[string]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bookedLocked()
}

func (l *Ledger) bookedLocked() map[string]bool {
	entries, err := l.backend.Entries()
	if err != nil {
		l.log.Warn().Err(err).Msg("reading ledger failed, treating as empty")
		return map[string]bool{}
	}
	booked := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Active() {
			booked[e.Slot] = true
		}
	}
	return booked
}

// Available returns the currently bookable slots.
func (l *Ledger) Available(lookaheadDays int) []string {
	return l.cal.GenerateAvailable(l.ListBookedSlots(), lookaheadDays)
}

// IsAvailable checks a slot against the calendar and live bookings.
func (l *Ledger) IsAvailable(slot string) bool {
	return l.cal.IsAvailable(slot, l.ListBookedSlots(), 0)
}

// Append durably adds one entry. It never overwrites and refuses a second
// active entry for the same slot.
func (l *Ledger) Append(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Active() && l.bookedLocked()[entry.Slot] {
		return entry, &domain.SlotConflictError{Slot: entry.Slot}
	}
	return l.appendLocked(entry)
}

func (l *Ledger) appendLocked(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = domain.MeetingActive
	}
	entry.LoggedAt = l.now().UTC()

	saved, err := l.backend.Append(entry)
	if err != nil {
		var conflict *domain.SlotConflictError
		if errors.As(err, &conflict) {
			return entry, err
		}
		var ioErr *domain.LedgerIOError
		if !errors.As(err, &ioErr) {
			err = &domain.LedgerIOError{Op: "append", Err: err}
		}
		l.log.Error().Err(err).Str("slot", entry.Slot).Msg("ledger append failed")
		return entry, err
	}
	l.log.Info().Str("slot", saved.Slot).Str("callId", saved.CallID).Str("source", saved.Source).Msg("meeting recorded")
	return saved, nil
}

// Update merges fields into every entry matching slot, and callID when it is
// non-empty. It reports whether any entry changed.
func (l *Ledger) Update(slot, callID string, fields map[string]string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed, err := l.backend.Update(slot, callID, fields)
	if err != nil {
		return false, err
	}
	if changed {
		l.log.Info().Str("slot", slot).Str("callId", callID).Msg("meeting updated")
	}
	return changed, nil
}

// BookSlot is the only path that creates a confirmed booking. The slot is
// validated against the calendar and live bookings and appended while the
// writer lock is held. A taken slot yields *domain.SlotConflictError and a
// malformed one wraps domain.ErrInvalidSlot.
func (l *Ledger) BookSlot(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	if err := l.cal.Check(entry.Slot); err != nil {
		return entry, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cal.IsAvailable(entry.Slot, l.bookedLocked(), 0) {
		l.log.Info().Str("slot", entry.Slot).Str("callId", entry.CallID).Msg("slot unavailable")
		return entry, &domain.SlotConflictError{Slot: entry.Slot}
	}
	entry.Status = domain.MeetingActive
	return l.appendLocked(entry)
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

// String describes the ledger for logs.
func (l *Ledger) String() string {
	return fmt.Sprintf("ledger(%T)", l.backend)
}
