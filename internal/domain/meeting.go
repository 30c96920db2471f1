package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// SlotLayout is the canonical slot format: local date and minute-precision
// time in the calendar's timezone.
const SlotLayout = "2006-01-02 15:04"

// Meeting entry statuses. Only active entries hold their slot.
const (
	MeetingActive    = "active"
	MeetingCancelled = "cancelled"
)

// Booking sources recorded on ledger entries.
const (
	SourceTag      = "tag"
	SourceFallback = "fallback"
	SourceManual   = "manual"
)

// MeetingEntry is one confirmed booking in the ledger.
type MeetingEntry struct {
	ID                    string    `json:"id,omitempty"`
	Slot                  string    `json:"slot"`
	CallID                string    `json:"callId,omitempty"`
	Name                  string    `json:"name,omitempty"`
	Email                 string    `json:"email,omitempty"`
	Phone                 string    `json:"phone,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	Timezone              string    `json:"timezone,omitempty"`
	DurationMin           int       `json:"durationMin,omitempty"`
	Source                string    `json:"source,omitempty"`
	Status                string    `json:"status,omitempty"`
	PendingNameExtraction bool      `json:"pendingNameExtraction,omitempty"`
	LoggedAt              time.Time `json:"loggedAt"`
}

// Active reports whether the entry currently holds its slot. Entries written
// without a status are active.
func (m MeetingEntry) Active() bool {
	return m.Status == "" || m.Status == MeetingActive
}

// UpdatableFields lists the entry fields accepted by ApplyFields.
var UpdatableFields = []string{"name", "email", "phone", "notes", "status", "timezone"}

// ApplyFields merges a partial field set into the entry and reports whether
// any value changed. Unknown keys are rejected without modifying the entry.
func (m *MeetingEntry) ApplyFields(fields map[string]string) (bool, error) {
	for k := range fields {
		if !slices.Contains(UpdatableFields, k) {
			return false, fmt.Errorf("unknown meeting field %q (allowed: %s)", k, strings.Join(UpdatableFields, ", "))
		}
	}
	if s, ok := fields["status"]; ok && s != MeetingActive && s != MeetingCancelled {
		return false, fmt.Errorf("invalid meeting status %q", s)
	}

	changed := false
	set := func(dst *string, key string) {
		if v, ok := fields[key]; ok && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&m.Name, "name")
	set(&m.Email, "email")
	set(&m.Phone, "phone")
	set(&m.Notes, "notes")
	set(&m.Status, "status")
	set(&m.Timezone, "timezone")
	if _, ok := fields["name"]; ok && m.PendingNameExtraction && m.Name != "" {
		m.PendingNameExtraction = false
		changed = true
	}
	return changed, nil
}
