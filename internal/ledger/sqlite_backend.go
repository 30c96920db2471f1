package ledger

import (
	"errors"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/store"
)

// SQLiteBackend stores the ledger in the meetings table. The table's partial
// unique index rejects a second active entry for a slot even across
// processes sharing the database file.
type SQLiteBackend struct {
	db       *store.DB
	meetings *store.MeetingStore
	owned    bool
}

// NewSQLiteBackend wraps an open database. When owned is true Close closes
// the database.
func NewSQLiteBackend(db *store.DB, owned bool) *SQLiteBackend {
	return &SQLiteBackend{db: db, meetings: store.NewMeetingStore(db), owned: owned}
}

// Entries returns all rows in insertion order.
func (b *SQLiteBackend) Entries() ([]domain.MeetingEntry, error) {
	entries, err := b.meetings.List()
	if err != nil {
		return nil, &domain.LedgerIOError{Op: "read", Err: err}
	}
	return entries, nil
}

// Append inserts one row.
func (b *SQLiteBackend) Append(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	saved, err := b.meetings.Insert(entry)
	if err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			return entry, &domain.SlotConflictError{Slot: entry.Slot}
		}
		return entry, &domain.LedgerIOError{Op: "append", Err: err}
	}
	return saved, nil
}

// Update merges fields into matching rows in one transaction, so a
// rejected field leaves every row untouched.
func (b *SQLiteBackend) Update(slot, callID string, fields map[string]string) (bool, error) {
	var fieldErr error
	changed, err := b.meetings.UpdateMatching(slot, callID, func(e *domain.MeetingEntry) (bool, error) {
		c, err := e.ApplyFields(fields)
		if err != nil {
			fieldErr = err
		}
		return c, err
	})
	switch {
	case err == nil:
		return changed, nil
	case fieldErr != nil:
		return false, fieldErr
	case errors.Is(err, store.ErrSlotTaken):
		return false, &domain.SlotConflictError{Slot: slot}
	default:
		return false, &domain.LedgerIOError{Op: "update", Err: err}
	}
}

// Close closes the database if the backend owns it.
func (b *SQLiteBackend) Close() error {
	if b.owned {
		return b.db.Close()
	}
	return nil
}
