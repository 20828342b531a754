// Package models provides data model definitions for the offline parking client.
package models

import "encoding/json"

// ActionKind identifies which remote operation a queued action maps to.
// New kinds are added by registering a submitter for them; the sync loop
// never switches on the kind itself.
type ActionKind string

const (
	KindEntry ActionKind = "ENTRY"
	KindExit  ActionKind = "EXIT"
)

// ActionStatus represents the sync state of a queued action.
type ActionStatus string

const (
	StatusPending ActionStatus = "PENDING"
	StatusSynced  ActionStatus = "SYNCED"
	StatusError   ActionStatus = "ERROR"
)

// Valid reports whether s is one of the known statuses.
func (s ActionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusError:
		return true
	}
	return false
}

// ActionRecord represents a state-changing operation captured while the
// client was offline. The payload is opaque to the queue and carries the
// tenant and location identifiers the remote side needs so the action is
// routed correctly even if the active session context changes before
// reconnection.
type ActionRecord struct {
	ID           string          `db:"id" json:"id"`
	Kind         ActionKind      `db:"kind" json:"kind"` // ENTRY, EXIT
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       ActionStatus    `db:"status" json:"status"` // PENDING, SYNCED, ERROR
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    int64           `db:"created_at" json:"created_at"` // epoch milliseconds
}

// TableName returns the table name for ActionRecord.
func (ActionRecord) TableName() string {
	return "offline_actions"
}

// EntryPayload is the payload produced when a vehicle enters while offline.
type EntryPayload struct {
	TenantID    string `json:"tenant_id"`
	LocationID  string `json:"location_id"`
	Plate       string `json:"plate"`
	VehicleKind string `json:"vehicle_kind"`
	EntryTime   int64  `json:"entry_time"` // epoch milliseconds
}

// ExitPayload is the payload produced when a parking session is closed
// while offline. Amount is computed by the pricing engine at capture time
// so the remote side does not re-price a stale session.
type ExitPayload struct {
	TenantID   string `json:"tenant_id"`
	LocationID string `json:"location_id"`
	SessionID  string `json:"session_id,omitempty"`
	Plate      string `json:"plate"`
	ExitTime   int64  `json:"exit_time"` // epoch milliseconds
	Amount     int64  `json:"amount"`    // minor currency units
}
