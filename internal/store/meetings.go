package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/meetbot/internal/domain"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrSlotTaken is returned by Insert when another active meeting already
// holds the slot.
var ErrSlotTaken = errors.New("slot already has an active meeting")

// MeetingStore persists ledger entries in the meetings table. The partial
// unique index on active slots makes Insert an atomic append-if-absent.
type MeetingStore struct {
	db *DB
}

// NewMeetingStore creates a meeting store using the given database.
func NewMeetingStore(db *DB) *MeetingStore {
	return &MeetingStore{db: db}
}

const meetingColumns = `id, slot, call_id, name, email, phone, notes, timezone,
	duration_min, source, status, pending_name, logged_at`

// Insert appends an entry. An empty ID is replaced with a new UUID and an
// empty status with active.
func (m *MeetingStore) Insert(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = domain.MeetingActive
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}

	_, err := m.db.sql.Exec(
		`INSERT INTO meetings (`+meetingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Slot, entry.CallID, entry.Name, entry.Email, entry.Phone,
		entry.Notes, entry.Timezone, entry.DurationMin, entry.Source, entry.Status,
		boolToInt(entry.PendingNameExtraction), entry.LoggedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entry, fmt.Errorf("%w: %s", ErrSlotTaken, entry.Slot)
		}
		return entry, err
	}
	return entry, nil
}

// List returns every entry in insertion order.
func (m *MeetingStore) List() ([]domain.MeetingEntry, error) {
	rows, err := m.db.sql.Query(`SELECT ` + meetingColumns + ` FROM meetings ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetings(rows)
}

// BySlot returns entries for a slot, optionally narrowed to one call.
func (m *MeetingStore) BySlot(slot, callID string) ([]domain.MeetingEntry, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE slot = ?`
	args := []any{slot}
	if callID != "" {
		query += ` AND call_id = ?`
		args = append(args, callID)
	}
	rows, err := m.db.sql.Query(query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMeetings(rows)
}

// ActiveSlots returns the set of slots held by active entries.
func (m *MeetingStore) ActiveSlots() (map[string]bool, error) {
	rows, err := m.db.sql.Query(`SELECT slot FROM meetings WHERE status = ?`, domain.MeetingActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[string]bool)
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots[slot] = true
	}
	return slots, rows.Err()
}

// UpdateMatching applies fn to every entry for slot (and callID when set)
// and saves the ones it reports changed, all in one transaction. A failing
// fn or save rolls back every row.
func (m *MeetingStore) UpdateMatching(slot, callID string, fn func(e *domain.MeetingEntry) (bool, error)) (bool, error) {
	changed := false
	err := m.db.InTx(func(tx *sql.Tx) error {
		query := `SELECT ` + meetingColumns + ` FROM meetings WHERE slot = ?`
		args := []any{slot}
		if callID != "" {
			query += ` AND call_id = ?`
			args = append(args, callID)
		}
		rows, err := tx.Query(query+` ORDER BY seq`, args...)
		if err != nil {
			return err
		}
		entries, err := scanMeetings(rows)
		rows.Close()
		if err != nil {
			return err
		}

		for i := range entries {
			c, err := fn(&entries[i])
			if err != nil {
				return err
			}
			if !c {
				continue
			}
			if err := saveMeeting(tx, entries[i]); err != nil {
				return err
			}
			changed = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func saveMeeting(tx *sql.Tx, entry domain.MeetingEntry) error {
	_, err := tx.Exec(
		`UPDATE meetings SET name = ?, email = ?, phone = ?, notes = ?, timezone = ?,
		   status = ?, pending_name = ?
		 WHERE id = ?`,
		entry.Name, entry.Email, entry.Phone, entry.Notes, entry.Timezone,
		entry.Status, boolToInt(entry.PendingNameExtraction), entry.ID,
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrSlotTaken, entry.Slot)
	}
	return err
}

func scanMeetings(rows *sql.Rows) ([]domain.MeetingEntry, error) {
	var entries []domain.MeetingEntry
	for rows.Next() {
		var e domain.MeetingEntry
		var pending int
		var loggedAt string
		if err := rows.Scan(
			&e.ID, &e.Slot, &e.CallID, &e.Name, &e.Email, &e.Phone, &e.Notes, &e.Timezone,
			&e.DurationMin, &e.Source, &e.Status, &pending, &loggedAt,
		); err != nil {
			return nil, err
		}
		e.PendingNameExtraction = pending != 0
		e.LoggedAt, _ = time.Parse(time.RFC3339Nano, loggedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
