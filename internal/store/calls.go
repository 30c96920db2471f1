package store

import (
	"database/sql"
	"time"

	"github.com/soyeahso/meetbot/internal/domain"
)

// CallRecord is the durable audit row for one call. It is not used to
// resume conversations.
type CallRecord struct {
	CallID      string             `json:"callId"`
	Prospect    string             `json:"prospect,omitempty"`
	Caller      string             `json:"caller,omitempty"`
	Status      string             `json:"status,omitempty"`
	Disposition domain.Disposition `json:"disposition,omitempty"`
	EndReason   string             `json:"endReason,omitempty"`
	Turns       int                `json:"turns"`
	StartedAt   time.Time          `json:"startedAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	EndedAt     *time.Time         `json:"endedAt,omitempty"`
}

// CallLog records call lifecycle events.
type CallLog struct {
	db *DB
}

// NewCallLog creates a call log using the given database.
func NewCallLog(db *DB) *CallLog {
	return &CallLog{db: db}
}

// RecordStart inserts or resets the row for a call.
func (c *CallLog) RecordStart(callID string, meta domain.CallMeta) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.sql.Exec(
		`INSERT INTO calls (call_id, prospect, caller, status, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
		   prospect = excluded.prospect,
		   caller = excluded.caller,
		   status = excluded.status,
		   disposition = '',
		   end_reason = '',
		   turns = 0,
		   started_at = excluded.started_at,
		   updated_at = excluded.updated_at,
		   ended_at = NULL`,
		callID, meta.To, meta.From, meta.CallStatus, now, now,
	)
	if err != nil {
		c.db.log.Error().Err(err).Str("callId", callID).Msg("failed to record call start")
	}
	return err
}

// RecordTurn bumps the turn counter for a call.
func (c *CallLog) RecordTurn(callID string) error {
	_, err := c.db.sql.Exec(
		`UPDATE calls SET turns = turns + 1, updated_at = ? WHERE call_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), callID,
	)
	return err
}

// RecordStatus stores a provider status callback. Unknown calls get a row so
// that dial attempts that never connect are still visible.
func (c *CallLog) RecordStatus(callID string, meta domain.CallMeta) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.sql.Exec(
		`INSERT INTO calls (call_id, prospect, caller, status, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(call_id) DO UPDATE SET
		   status = excluded.status,
		   updated_at = excluded.updated_at`,
		callID, meta.To, meta.From, meta.CallStatus, now, now,
	)
	return err
}

// RecordEnd marks a call finished with its disposition and reason.
func (c *CallLog) RecordEnd(callID string, disposition domain.Disposition, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := c.db.sql.Exec(
		`UPDATE calls SET disposition = ?, end_reason = ?, updated_at = ?, ended_at = ?
		 WHERE call_id = ?`,
		string(disposition), reason, now, now, callID,
	)
	if err != nil {
		c.db.log.Error().Err(err).Str("callId", callID).Msg("failed to record call end")
	}
	return err
}

// Get returns a call record, or nil if not found.
func (c *CallLog) Get(callID string) *CallRecord {
	rows, err := c.db.sql.Query(`SELECT `+callColumns+` FROM calls WHERE call_id = ?`, callID)
	if err != nil {
		return nil
	}
	defer rows.Close()
	recs, err := scanCalls(rows)
	if err != nil || len(recs) == 0 {
		return nil
	}
	return &recs[0]
}

// Recent returns the most recently updated calls. Limit of 0 defaults to 50.
func (c *CallLog) Recent(limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.sql.Query(
		`SELECT `+callColumns+` FROM calls ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCalls(rows)
}

const callColumns = `call_id, prospect, caller, status, disposition, end_reason, turns,
	started_at, updated_at, ended_at`

func scanCalls(rows *sql.Rows) ([]CallRecord, error) {
	var recs []CallRecord
	for rows.Next() {
		var r CallRecord
		var disposition, startedAt, updatedAt string
		var endedAt sql.NullString
		if err := rows.Scan(
			&r.CallID, &r.Prospect, &r.Caller, &r.Status, &disposition, &r.EndReason, &r.Turns,
			&startedAt, &updatedAt, &endedAt,
		); err != nil {
			return nil, err
		}
		r.Disposition = domain.Disposition(disposition)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if endedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, endedAt.String)
			r.EndedAt = &t
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
