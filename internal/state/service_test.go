// Package state tests for the queue state publisher.
package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/netmon"
	"github.com/jbetancur12/parking-app-sub001/internal/syncer"
)

// =====================================================
// Test Helpers
// =====================================================

// memStore is an in-memory queue.Store for publisher tests.
type memStore struct {
	mu      sync.Mutex
	records []*models.ActionRecord
}

func (s *memStore) List() []*models.ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ActionRecord, len(s.records))
	for i, rec := range s.records {
		c := *rec
		out[i] = &c
	}
	return out
}

func (s *memStore) Append(rec *models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return errors.New(errors.ErrActionNotFound, "action "+id+" not found")
}

func (s *memStore) UpdateStatus(id string, status models.ActionStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			rec.Status = status
			rec.ErrorMessage = errorMessage
			return nil
		}
	}
	return errors.New(errors.ErrActionNotFound, "action "+id+" not found")
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

func (s *memStore) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]int{"total": len(s.records), "pending": 0, "error": 0}
	for _, rec := range s.records {
		switch rec.Status {
		case models.StatusPending:
			stats["pending"]++
		case models.StatusError:
			stats["error"]++
		}
	}
	return stats
}

// countingSubmitter accepts everything and counts submissions.
type countingSubmitter struct {
	mu   sync.Mutex
	seen int
}

func (c *countingSubmitter) Submit(ctx context.Context, rec *models.ActionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen++
	return nil
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen
}

// newTestService wires a service over an in-memory store and a manual
// monitor (no probe loop).
func newTestService() (*Service, *memStore, *countingSubmitter, *netmon.Monitor) {
	store := &memStore{}
	sub := &countingSubmitter{}

	registry := syncer.NewRegistry()
	registry.Register(models.KindEntry, sub)
	registry.Register(models.KindExit, sub)
	coord := syncer.NewCoordinator(store, registry)

	monitor := netmon.New(nil, &netmon.Config{
		ProbeInterval: time.Hour, // never ticks in tests
		ProbeTimeout:  time.Second,
		Debounce:      0,
	})

	return New(store, coord, monitor), store, sub, monitor
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func entryPayload(plate string) json.RawMessage {
	payload, _ := json.Marshal(models.EntryPayload{
		TenantID:   "tenant-1",
		LocationID: "lot-centro",
		Plate:      plate,
		EntryTime:  time.Now().UnixMilli(),
	})
	return payload
}

// =====================================================
// Enqueue
// =====================================================

// TestEnqueue verifies synchronous persistence and snapshot refresh.
func TestEnqueue(t *testing.T) {
	svc, store, _, _ := newTestService()

	var notified []Snapshot
	svc.Subscribe(func(snap Snapshot) { notified = append(notified, snap) })

	rec, err := svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if rec.ID == "" {
		t.Error("record has no id")
	}
	if rec.Status != models.StatusPending {
		t.Errorf("status = %s, want PENDING", rec.Status)
	}
	if rec.CreatedAt == 0 {
		t.Error("record has no capture timestamp")
	}

	// Persisted before Enqueue returned
	if len(store.List()) != 1 {
		t.Error("record not in store after Enqueue")
	}

	// Listener saw the refreshed snapshot
	if len(notified) != 1 {
		t.Fatalf("listeners notified %d times, want 1", len(notified))
	}
	if notified[0].Pending != 1 {
		t.Errorf("snapshot pending = %d, want 1", notified[0].Pending)
	}
}

// TestEnqueueValidation verifies rejection of malformed actions.
func TestEnqueueValidation(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.Enqueue("", entryPayload("AAA111")); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("empty kind: err = %v, want VALIDATION_ERROR", err)
	}

	if _, err := svc.Enqueue(models.KindEntry, json.RawMessage(`{"broken`)); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("invalid payload: err = %v, want VALIDATION_ERROR", err)
	}

	// A kind no submitter can ever replay is rejected at capture time
	if _, err := svc.Enqueue(models.ActionKind("REFUND"), entryPayload("AAA111")); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("unregistered kind: err = %v, want VALIDATION_ERROR", err)
	}
}

// TestEnqueueIDsDiffer verifies back-to-back enqueues get distinct ids.
func TestEnqueueIDsDiffer(t *testing.T) {
	svc, _, _, _ := newTestService()

	first, err := svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if first.ID == second.ID {
		t.Errorf("back-to-back enqueues share id %s", first.ID)
	}
}

// =====================================================
// Sync triggers
// =====================================================

// TestSyncNow verifies a manual trigger drains the queue.
func TestSyncNow(t *testing.T) {
	svc, store, sub, _ := newTestService()

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	svc.Enqueue(models.KindExit, entryPayload("BBB222"))

	sum, err := svc.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if sum.Synced != 2 {
		t.Errorf("synced = %d, want 2", sum.Synced)
	}
	if sub.count() != 2 {
		t.Errorf("submitter saw %d records, want 2", sub.count())
	}
	if len(store.List()) != 0 {
		t.Error("queue not empty after SyncNow")
	}
}

// TestResumeTriggersSync verifies the monitor's resume signal drives a run.
func TestResumeTriggersSync(t *testing.T) {
	svc, store, _, monitor := newTestService()

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	defer svc.Stop()

	monitor.Report(true)

	waitFor(t, "queue to drain after reconnect", func() bool {
		return len(store.List()) == 0
	})
}

// TestStartupDrainWithQueuedWork verifies a client that starts online with
// queued actions syncs without waiting for a transition.
func TestStartupDrainWithQueuedWork(t *testing.T) {
	svc, store, _, monitor := newTestService()

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))

	// Online before the service starts; the transition signal was already
	// consumed by nobody
	monitor.Report(true)
	<-monitor.Resume()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Start(ctx)
	defer svc.Stop()

	waitFor(t, "startup drain", func() bool {
		return len(store.List()) == 0
	})
}

// TestStartHandler verifies the run-start hook fires with the pending count.
func TestStartHandler(t *testing.T) {
	svc, _, _, _ := newTestService()

	var mu sync.Mutex
	var starts []int
	svc.SetStartHandler(func(pending int) {
		mu.Lock()
		defer mu.Unlock()
		starts = append(starts, pending)
	})

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	svc.Enqueue(models.KindExit, entryPayload("BBB222"))

	if _, err := svc.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 1 || starts[0] != 2 {
		t.Errorf("start notifications = %v, want [2]", starts)
	}
}

// TestSummaryHandler verifies the end-of-run summary reaches the UI hook.
func TestSummaryHandler(t *testing.T) {
	svc, _, _, _ := newTestService()

	var mu sync.Mutex
	var summaries []syncer.Summary
	svc.SetSummaryHandler(func(sum syncer.Summary) {
		mu.Lock()
		defer mu.Unlock()
		summaries = append(summaries, sum)
	})

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))

	if _, err := svc.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(summaries) != 1 || summaries[0].Synced != 1 {
		t.Errorf("summaries = %+v, want one with 1 synced", summaries)
	}
}

// =====================================================
// Purge and snapshot
// =====================================================

// TestPurgeAll verifies purge empties the queue regardless of status.
func TestPurgeAll(t *testing.T) {
	svc, store, _, _ := newTestService()

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	failed, _ := svc.Enqueue(models.KindExit, entryPayload("BBB222"))
	store.UpdateStatus(failed.ID, models.StatusError, "permanently invalid payload")

	if err := svc.PurgeAll(); err != nil {
		t.Fatalf("PurgeAll failed: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap.Queue) != 0 || snap.Pending != 0 || snap.Failed != 0 {
		t.Errorf("snapshot after purge = %+v, want empty", snap)
	}
}

// TestSnapshotCounts verifies per-status counters in the snapshot.
func TestSnapshotCounts(t *testing.T) {
	svc, store, _, monitor := newTestService()

	svc.Enqueue(models.KindEntry, entryPayload("AAA111"))
	svc.Enqueue(models.KindEntry, entryPayload("BBB222"))
	failed, _ := svc.Enqueue(models.KindExit, entryPayload("CCC333"))
	store.UpdateStatus(failed.ID, models.StatusError, "rejected")

	monitor.Report(true)

	snap := svc.Snapshot()
	if !snap.IsOnline {
		t.Error("IsOnline = false after online report")
	}
	if snap.IsSyncing {
		t.Error("IsSyncing = true with no active run")
	}
	if snap.Pending != 2 {
		t.Errorf("Pending = %d, want 2", snap.Pending)
	}
	if snap.Failed != 1 {
		t.Errorf("Failed = %d, want 1", snap.Failed)
	}
	if len(snap.Queue) != 3 {
		t.Errorf("Queue length = %d, want 3", len(snap.Queue))
	}
}
