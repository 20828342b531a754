package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/logging"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/queue"
)

// Summary reports the outcome of one sync run.
type Summary struct {
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Events receives notifications around a sync run. All methods are called
// from the goroutine executing the run.
type Events interface {
	SyncStarted(pending int)
	SyncCompleted(sum Summary)
}

// Coordinator drains a snapshot of the queue against the remote system.
// At most one run is active at any time; a trigger while a run is in
// flight is suppressed, not queued. Records are submitted strictly in
// insertion order, one at a time.
type Coordinator struct {
	store    queue.Store
	registry *Registry
	events   Events

	running atomic.Bool
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(store queue.Store, registry *Registry) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
	}
}

// SetEvents sets the run event receiver. Must be called before Sync.
func (c *Coordinator) SetEvents(events Events) {
	c.events = events
}

// IsRunning reports whether a run is currently active.
func (c *Coordinator) IsRunning() bool {
	return c.running.Load()
}

// Kinds returns the action kinds the coordinator can submit.
func (c *Coordinator) Kinds() []models.ActionKind {
	return c.registry.Kinds()
}

// Sync executes one run: snapshot the queue, replay it in order, record
// per-item outcomes. Items enqueued during the run are not in the snapshot
// and are picked up by the next run. A failing item does not block the
// rest; the queued actions are independent business transactions.
//
// Returns ErrSyncInProgress when another run is active.
func (c *Coordinator) Sync(ctx context.Context) (*Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrSyncInProgress, "a sync run is already active")
	}
	defer c.running.Store(false)

	sum := &Summary{StartedAt: time.Now()}

	snapshot := c.store.List()
	if len(snapshot) == 0 {
		sum.Duration = time.Since(sum.StartedAt)
		return sum, nil
	}

	if c.events != nil {
		c.events.SyncStarted(len(snapshot))
	}

	logging.Info("Sync run started",
		map[string]interface{}{"pending": len(snapshot)})

	for _, rec := range snapshot {
		if err := c.submitOne(ctx, rec); err != nil {
			sum.Failed++
			continue
		}
		sum.Synced++
	}

	// The duration must be final before the summary leaves the run
	sum.Duration = time.Since(sum.StartedAt)

	logging.Info("Sync run completed",
		map[string]interface{}{
			"synced":      sum.Synced,
			"failed":      sum.Failed,
			"duration_ms": sum.Duration.Milliseconds(),
		})

	if c.events != nil {
		c.events.SyncCompleted(*sum)
	}

	return sum, nil
}

// submitOne replays a single record and records its outcome in the store.
func (c *Coordinator) submitOne(ctx context.Context, rec *models.ActionRecord) error {
	sub, ok := c.registry.Lookup(rec.Kind)
	if !ok {
		err := errors.New(errors.ErrKindUnknown, "no submitter registered for kind "+string(rec.Kind))
		c.markFailed(rec, err)
		return err
	}

	if err := sub.Submit(ctx, rec); err != nil {
		c.markFailed(rec, err)
		return err
	}

	// SYNCED is transient: the record is marked and immediately removed.
	// Removal only ever happens after the remote operation succeeded.
	if err := c.store.UpdateStatus(rec.ID, models.StatusSynced, ""); err != nil {
		logging.Error("Failed to mark action synced", err,
			map[string]interface{}{"action_id": rec.ID})
	}
	if err := c.store.Remove(rec.ID); err != nil {
		logging.Error("Failed to remove synced action", err,
			map[string]interface{}{"action_id": rec.ID})
	}

	return nil
}

// markFailed retains the record with its failure reason; it is retried on
// the next trigger, never dropped automatically.
func (c *Coordinator) markFailed(rec *models.ActionRecord, cause error) {
	logging.ErrorWithCode("Action submission failed", string(errors.CodeOf(cause)), cause,
		map[string]interface{}{
			"action_id": rec.ID,
			"kind":      string(rec.Kind),
		})

	if err := c.store.UpdateStatus(rec.ID, models.StatusError, cause.Error()); err != nil {
		logging.Error("Failed to record action failure", err,
			map[string]interface{}{"action_id": rec.ID})
	}
}
