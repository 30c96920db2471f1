package ledger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/logging"
)

// JSONFileBackend stores the ledger as a UTF-8 JSON array rewritten in full
// on every mutation. Writes go to a temp file that is renamed into place.
type JSONFileBackend struct {
	path string
	log  *logging.Logger
}

// NewJSONFileBackend creates a backend for the file at path. The file need
// not exist yet.
func NewJSONFileBackend(path string, log *logging.Logger) (*JSONFileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &domain.LedgerIOError{Op: "mkdir", Path: path, Err: err}
	}
	return &JSONFileBackend{path: path, log: log.Sub("ledger.json")}, nil
}

// Path returns the ledger file location.
func (b *JSONFileBackend) Path() string { return b.path }

// Entries reads the file. A missing or empty file is an empty ledger and so
// is a corrupt one, which is logged.
func (b *JSONFileBackend) Entries() ([]domain.MeetingEntry, error) {
	entries, _, err := b.load()
	return entries, err
}

// load returns the entries and whether the file on disk was unreadable JSON.
func (b *JSONFileBackend) load() ([]domain.MeetingEntry, bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, &domain.LedgerIOError{Op: "read", Path: b.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	var entries []domain.MeetingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		b.log.Warn().Err(err).Str("path", b.path).Msg("ledger file is corrupt, treating as empty")
		return nil, true, nil
	}
	return entries, false, nil
}

// loadForWrite is load, but moves a corrupt file aside so the next rewrite
// does not destroy it.
func (b *JSONFileBackend) loadForWrite() ([]domain.MeetingEntry, error) {
	entries, corrupt, err := b.load()
	if err != nil {
		return nil, err
	}
	if corrupt {
		backup := b.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405")
		if err := os.Rename(b.path, backup); err != nil {
			return nil, &domain.LedgerIOError{Op: "backup", Path: b.path, Err: err}
		}
		b.log.Warn().Str("backup", backup).Msg("moved corrupt ledger aside")
	}
	return entries, nil
}

// Append adds one entry and rewrites the file.
func (b *JSONFileBackend) Append(entry domain.MeetingEntry) (domain.MeetingEntry, error) {
	entries, err := b.loadForWrite()
	if err != nil {
		return entry, err
	}
	entries = append(entries, entry)
	if err := b.write(entries); err != nil {
		return entry, err
	}
	return entry, nil
}

// Update merges fields into matching entries and rewrites the file if any
// changed.
func (b *JSONFileBackend) Update(slot, callID string, fields map[string]string) (bool, error) {
	entries, err := b.loadForWrite()
	if err != nil {
		return false, err
	}
	changed, err := applyUpdate(entries, slot, callID, fields)
	if err != nil || !changed {
		return false, err
	}
	if err := b.write(entries); err != nil {
		return false, err
	}
	return true, nil
}

func (b *JSONFileBackend) write(entries []domain.MeetingEntry) error {
	if entries == nil {
		entries = []domain.MeetingEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &domain.LedgerIOError{Op: "encode", Path: b.path, Err: err}
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return &domain.LedgerIOError{Op: "write", Path: b.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.LedgerIOError{Op: "write", Path: b.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &domain.LedgerIOError{Op: "sync", Path: b.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &domain.LedgerIOError{Op: "write", Path: b.path, Err: err}
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return &domain.LedgerIOError{Op: "rename", Path: b.path, Err: err}
	}
	return nil
}

// Close is a no-op; the file is not held open.
func (b *JSONFileBackend) Close() error { return nil }

// applyUpdate merges fields into entries matching slot and callID in place.
// Reactivating an entry whose slot is held by another active entry is
// refused.
func applyUpdate(entries []domain.MeetingEntry, slot, callID string, fields map[string]string) (bool, error) {
	changed := false
	for i := range entries {
		e := &entries[i]
		if e.Slot != slot || (callID != "" && e.CallID != callID) {
			continue
		}
		updated := *e
		c, err := updated.ApplyFields(fields)
		if err != nil {
			return false, err
		}
		if !c {
			continue
		}
		if updated.Active() && !e.Active() && activeElsewhere(entries, i) {
			return false, &domain.SlotConflictError{Slot: slot}
		}
		*e = updated
		changed = true
	}
	return changed, nil
}

func activeElsewhere(entries []domain.MeetingEntry, skip int) bool {
	for j, other := range entries {
		if j != skip && other.Slot == entries[skip].Slot && other.Active() {
			return true
		}
	}
	return false
}
