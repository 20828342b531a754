// Package queue provides the durable offline action queue.
//
// The queue is a FIFO sequence of action records. Relative insertion order
// is preserved until an item is removed; removal happens only after the
// remote operation for the item succeeded, or through an explicit purge.
package queue

import (
	"database/sql"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/logging"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/uuid"
)

var actionsTable = models.ActionRecord{}.TableName()

// Store is the durable port backing the action queue. The store does not
// arbitrate concurrent writers; run exclusivity is the sync coordinator's
// responsibility.
type Store interface {
	// List returns the queued records in insertion order. It never fails:
	// unreadable storage degrades to an empty queue so the client keeps
	// functioning, at the cost of losing visibility into queued work.
	List() []*models.ActionRecord

	// Append adds a record to the tail of the queue.
	Append(rec *models.ActionRecord) error

	// Remove deletes a record by id.
	Remove(id string) error

	// UpdateStatus sets a record's status and error message.
	UpdateStatus(id string, status models.ActionStatus, errorMessage string) error

	// Clear empties the queue unconditionally, regardless of status.
	Clear() error

	// Stats returns per-status counts for the UI badge.
	Stats() map[string]int
}

// SQLiteStore implements Store on the local SQLite database. Ordering is
// by the monotonic seq rowid, never by capture timestamps, so clock skew
// cannot affect replay order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// List returns all queued records in insertion order.
func (s *SQLiteStore) List() []*models.ActionRecord {
	rows, err := s.db.Query(`
	SELECT id, kind, payload, status, error_message, created_at
	FROM ` + actionsTable + ` ORDER BY seq`)
	if err != nil {
		logging.ErrorWithCode("Offline queue unreadable, degrading to empty queue",
			string(errors.ErrQueueCorrupted), err)
		return nil
	}
	defer rows.Close()

	var records []*models.ActionRecord
	for rows.Next() {
		var rec models.ActionRecord
		var payload string
		err := rows.Scan(&rec.ID, &rec.Kind, &payload, &rec.Status,
			&rec.ErrorMessage, &rec.CreatedAt)
		if err != nil {
			logging.ErrorWithCode("Offline queue row unreadable, degrading to empty queue",
				string(errors.ErrQueueCorrupted), err)
			return nil
		}
		rec.Payload = []byte(payload)
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		logging.ErrorWithCode("Offline queue scan failed, degrading to empty queue",
			string(errors.ErrQueueCorrupted), err)
		return nil
	}

	return records
}

// Append adds a record to the tail of the queue. The id is checked up
// front because it doubles as the idempotency key on remote submission.
func (s *SQLiteStore) Append(rec *models.ActionRecord) error {
	if err := uuid.Validate(rec.ID); err != nil {
		return errors.Wrap(errors.ErrActionInvalid, "action id is not a valid identifier", err)
	}

	_, err := s.db.Exec(`
	INSERT INTO `+actionsTable+` (id, kind, payload, status, error_message, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, string(rec.Payload), rec.Status, rec.ErrorMessage, rec.CreatedAt)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to append action", err)
	}
	return nil
}

// Remove deletes a record by id.
func (s *SQLiteStore) Remove(id string) error {
	res, err := s.db.Exec("DELETE FROM "+actionsTable+" WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to remove action", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrActionNotFound, "action "+id+" not found")
	}
	return nil
}

// UpdateStatus sets a record's status and error message.
func (s *SQLiteStore) UpdateStatus(id string, status models.ActionStatus, errorMessage string) error {
	if !status.Valid() {
		return errors.New(errors.ErrActionInvalid, "unknown status "+string(status))
	}

	res, err := s.db.Exec(
		"UPDATE "+actionsTable+" SET status = ?, error_message = ? WHERE id = ?",
		status, errorMessage, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update action status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrActionNotFound, "action "+id+" not found")
	}
	return nil
}

// Clear empties the queue unconditionally.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM " + actionsTable); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear queue", err)
	}
	return nil
}

// Stats returns per-status counts plus a total.
func (s *SQLiteStore) Stats() map[string]int {
	stats := map[string]int{
		"total":   0,
		"pending": 0,
		"error":   0,
	}

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM " + actionsTable + " GROUP BY status")
	if err != nil {
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		stats["total"] += count
		switch models.ActionStatus(status) {
		case models.StatusPending:
			stats["pending"] = count
		case models.StatusError:
			stats["error"] = count
		}
	}

	return stats
}
