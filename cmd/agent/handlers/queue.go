// Package handlers provides the REST surface the UI uses to drive the
// offline queue.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/state"
)

// QueueHandler exposes the queue state publisher over HTTP.
type QueueHandler struct {
	svc *state.Service
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(svc *state.Service) *QueueHandler {
	return &QueueHandler{svc: svc}
}

// enqueueRequest is the body of POST /api/queue/actions.
type enqueueRequest struct {
	Kind    models.ActionKind `json:"kind"`
	Payload json.RawMessage   `json:"payload"`
}

// GetQueue handles GET /api/queue.
// Returns the current snapshot: flags, counts, and per-item status and
// error message for operator triage.
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.svc.Snapshot())
}

// EnqueueAction handles POST /api/queue/actions.
// Persists the action synchronously; the remote submission happens on a
// later sync run.
func (h *QueueHandler) EnqueueAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrInvalid, "invalid request body"))
		return
	}

	rec, err := h.svc.Enqueue(req.Kind, req.Payload)
	if err != nil {
		if errors.Is(err, errors.ErrValidation) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// SyncNow handles POST /api/sync.
// A trigger while a run is active is suppressed and reported as a conflict.
func (h *QueueHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sum, err := h.svc.SyncNow(r.Context())
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

// PurgeQueue handles DELETE /api/queue.
// Unconditionally empties the queue; the user confirmation gate lives in
// the UI, not here.
func (h *QueueHandler) PurgeQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.svc.PurgeAll(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error envelope with its application code.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"code":    string(errors.CodeOf(err)),
		"message": err.Error(),
	})
}
