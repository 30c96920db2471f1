// Package session holds the in-memory conversational and scheduling state of
// live calls.
package session

import (
	"slices"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
)

// CallSession is the mutable state of one call. It is only touched while
// held through Store.Acquire.
type CallSession struct {
	CallID         string
	History        []domain.Turn
	AvailableSlots []string
	ProposedSlots  []string
	SlotIndex      int
	ScheduledSlot  string
	MeetingLogged  bool
	ProspectNumber string
	CallerNumber   string
	Disposition    domain.Disposition
	Turns          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func newCallSession(callID string, now time.Time) *CallSession {
	return &CallSession{CallID: callID, CreatedAt: now, UpdatedAt: now}
}

// SetSystemPrompt installs the system turn. The first system turn is
// immutable; later calls are ignored and report false.
func (s *CallSession) SetSystemPrompt(text string) bool {
	if s.HasSystemPrompt() {
		return false
	}
	s.History = slices.Insert(s.History, 0, domain.Turn{Role: domain.RoleSystem, Text: text, Timestamp: time.Now()})
	return true
}

// HasSystemPrompt reports whether the first turn is a system turn.
func (s *CallSession) HasSystemPrompt() bool {
	return len(s.History) > 0 && s.History[0].Role == domain.RoleSystem
}

// Append adds a turn to the history.
func (s *CallSession) Append(role domain.Role, text string) {
	now := time.Now()
	s.History = append(s.History, domain.Turn{Role: role, Text: text, Timestamp: now})
	s.UpdatedAt = now
}

// CaptureNumbers records the prospect (dialed) and caller numbers the first
// time they are seen.
func (s *CallSession) CaptureNumbers(meta domain.CallMeta) {
	if s.ProspectNumber == "" {
		s.ProspectNumber = meta.To
	}
	if s.CallerNumber == "" {
		s.CallerNumber = meta.From
	}
}

// TrimHistory bounds the history to limit entries, keeping the first entry
// and the most recent limit-1. It reports whether anything was dropped.
func (s *CallSession) TrimHistory(limit int) bool {
	if limit < 2 || len(s.History) <= limit {
		return false
	}
	trimmed := make([]domain.Turn, 0, limit)
	trimmed = append(trimmed, s.History[0])
	trimmed = append(trimmed, s.History[len(s.History)-(limit-1):]...)
	s.History = trimmed
	return true
}

// EnsureProposed returns the current proposals, taking the next batch from
// AvailableSlots when none are outstanding.
func (s *CallSession) EnsureProposed(batch int) []string {
	if len(s.ProposedSlots) > 0 {
		return s.ProposedSlots
	}
	if batch < 1 {
		batch = 1
	}
	if s.SlotIndex >= len(s.AvailableSlots) {
		return nil
	}
	end := min(s.SlotIndex+batch, len(s.AvailableSlots))
	s.ProposedSlots = slices.Clone(s.AvailableSlots[s.SlotIndex:end])
	return s.ProposedSlots
}

// RegisterScheduled records a booked slot for the call.
func (s *CallSession) RegisterScheduled(slot string) {
	s.ScheduledSlot = slot
	s.Disposition = domain.DispositionBooked
	s.AvailableSlots = slices.DeleteFunc(s.AvailableSlots, func(v string) bool { return v == slot })
	s.ProposedSlots = nil
}

// RefreshAvailable replaces the slot universe after bookings changed and
// restarts the proposal window.
func (s *CallSession) RefreshAvailable(slots []string) {
	s.AvailableSlots = slots
	s.SlotIndex = 0
	s.ProposedSlots = nil
}

// Snapshot is a read-only view of a session for monitoring.
type Snapshot struct {
	CallID         string             `json:"callId"`
	Turns          int                `json:"turns"`
	HistoryLen     int                `json:"historyLen"`
	ProposedSlots  []string           `json:"proposedSlots,omitempty"`
	ScheduledSlot  string             `json:"scheduledSlot,omitempty"`
	MeetingLogged  bool               `json:"meetingLogged"`
	Disposition    domain.Disposition `json:"disposition,omitempty"`
	ProspectNumber string             `json:"prospectNumber,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Snapshot copies the monitorable fields.
func (s *CallSession) Snapshot() Snapshot {
	return Snapshot{
		CallID:         s.CallID,
		Turns:          s.Turns,
		HistoryLen:     len(s.History),
		ProposedSlots:  slices.Clone(s.ProposedSlots),
		ScheduledSlot:  s.ScheduledSlot,
		MeetingLogged:  s.MeetingLogged,
		Disposition:    s.Disposition,
		ProspectNumber: s.ProspectNumber,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
