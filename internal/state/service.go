// Package state exposes the queue surface consumed by the UI layer.
//
// The service owns the wiring between the connectivity monitor and the
// sync coordinator, and publishes a read-only snapshot of the queue after
// every mutation. It is constructed at application start and torn down at
// shutdown; nothing in here is a package-level singleton.
package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/logging"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/netmon"
	"github.com/jbetancur12/parking-app-sub001/internal/queue"
	"github.com/jbetancur12/parking-app-sub001/internal/syncer"
	"github.com/jbetancur12/parking-app-sub001/internal/uuid"
)

// Snapshot is the read-only queue state published to the UI.
type Snapshot struct {
	IsOnline  bool                   `json:"is_online"`
	IsSyncing bool                   `json:"is_syncing"`
	Pending   int                    `json:"pending"`
	Failed    int                    `json:"failed"`
	Queue     []*models.ActionRecord `json:"queue"`
}

// Listener receives a fresh snapshot after every queue mutation.
type Listener func(Snapshot)

// StartHandler receives the pending count when a sync run begins.
type StartHandler func(pending int)

// SummaryHandler receives the end-of-run summary for the UI to render.
type SummaryHandler func(syncer.Summary)

// Service is the queue state publisher.
type Service struct {
	store   queue.Store
	coord   *syncer.Coordinator
	monitor *netmon.Monitor

	mu        sync.RWMutex
	listeners []Listener
	onStarted StartHandler
	onSummary SummaryHandler
	running   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates the service and registers it for coordinator run events.
func New(store queue.Store, coord *syncer.Coordinator, monitor *netmon.Monitor) *Service {
	s := &Service{
		store:   store,
		coord:   coord,
		monitor: monitor,
		stopCh:  make(chan struct{}),
	}
	coord.SetEvents(s)
	return s
}

// Subscribe registers a listener for snapshot changes.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// SetStartHandler sets the run-start receiver.
func (s *Service) SetStartHandler(h StartHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStarted = h
}

// SetSummaryHandler sets the end-of-run summary receiver.
func (s *Service) SetSummaryHandler(h SummaryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSummary = h
}

// Start begins consuming resume signals from the connectivity monitor.
// If the client starts online with work already queued, a run is
// triggered immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.resumeLoop(ctx)

	if s.monitor.IsOnline() && s.store.Stats()["total"] > 0 {
		go s.runSync(ctx)
	}
}

// Stop stops the resume loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

// resumeLoop triggers a sync run for every resume signal.
func (s *Service) resumeLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.monitor.Resume():
			s.runSync(ctx)
		}
	}
}

// runSync executes one run, absorbing the suppressed-trigger case.
func (s *Service) runSync(ctx context.Context) {
	_, err := s.coord.Sync(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrSyncInProgress) {
			logging.Debug("Sync trigger suppressed, run already active")
			return
		}
		logging.ErrorWithCode("Sync run failed", string(errors.ErrSyncFailed), err)
	}
	s.notify()
}

// Enqueue captures a new action. The record is persisted synchronously and
// the published snapshot refreshed before this returns; the remote
// submission itself happens on a later sync run.
func (s *Service) Enqueue(kind models.ActionKind, payload json.RawMessage) (*models.ActionRecord, error) {
	if kind == "" {
		return nil, errors.New(errors.ErrValidation, "action kind is required")
	}
	if !registered(s.coord.Kinds(), kind) {
		return nil, errors.New(errors.ErrValidation, "no submitter registered for kind "+string(kind))
	}
	if !json.Valid(payload) {
		return nil, errors.New(errors.ErrValidation, "action payload is not valid JSON")
	}

	rec := &models.ActionRecord{
		ID:        uuid.New(),
		Kind:      kind,
		Payload:   payload,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UnixMilli(),
	}

	if err := s.store.Append(rec); err != nil {
		return nil, err
	}

	logging.Info("Action queued",
		map[string]interface{}{"action_id": rec.ID, "kind": string(kind)})

	s.notify()
	return rec, nil
}

// SyncNow triggers a run immediately and waits for it. Returns
// ErrSyncInProgress when a run is already active; the caller observes no
// effect beyond the in-flight run eventually completing.
func (s *Service) SyncNow(ctx context.Context) (*syncer.Summary, error) {
	sum, err := s.coord.Sync(ctx)
	if err != nil {
		return nil, err
	}
	s.notify()
	return sum, nil
}

// PurgeAll empties the queue unconditionally, including ERROR items. This
// is the operator's escape hatch for a queue stuck on an item that will
// never succeed; the confirmation gate lives upstream in the UI.
func (s *Service) PurgeAll() error {
	if err := s.store.Clear(); err != nil {
		return err
	}

	logging.Warn("Offline queue purged")

	s.notify()
	return nil
}

// registered reports whether kind is among the submittable kinds.
func registered(kinds []models.ActionKind, kind models.ActionKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Snapshot returns the current published state.
func (s *Service) Snapshot() Snapshot {
	records := s.store.List()

	snap := Snapshot{
		IsOnline:  s.monitor.IsOnline(),
		IsSyncing: s.coord.IsRunning(),
		Queue:     records,
	}
	for _, rec := range records {
		switch rec.Status {
		case models.StatusPending:
			snap.Pending++
		case models.StatusError:
			snap.Failed++
		}
	}
	return snap
}

// notify publishes a fresh snapshot to all listeners.
func (s *Service) notify() {
	snap := s.Snapshot()

	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}

// SyncStarted implements syncer.Events; the snapshot flips to syncing and
// the run-start hook fires with the pending count.
func (s *Service) SyncStarted(pending int) {
	s.notify()

	s.mu.RLock()
	handler := s.onStarted
	s.mu.RUnlock()

	if handler != nil {
		handler(pending)
	}
}

// SyncCompleted implements syncer.Events; forwards the summary to the UI.
func (s *Service) SyncCompleted(sum syncer.Summary) {
	s.mu.RLock()
	handler := s.onSummary
	s.mu.RUnlock()

	if handler != nil {
		handler(sum)
	}
}
