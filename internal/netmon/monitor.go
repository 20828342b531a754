// Package netmon observes network connectivity for the offline queue.
//
// The monitor only detects transitions; whether a sync is warranted for a
// given transition (for example with an empty queue) is the coordinator's
// decision.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/jbetancur12/parking-app-sub001/internal/logging"
)

// Probe reports whether the remote system is currently reachable.
type Probe func(ctx context.Context) bool

// Config holds monitor configuration.
type Config struct {
	ProbeInterval time.Duration // how often to probe (default: 10s)
	ProbeTimeout  time.Duration // per-probe deadline (default: 5s)
	Debounce      time.Duration // settle window after offline→online (default: 3s)
}

// DefaultConfig returns default monitor configuration.
func DefaultConfig() *Config {
	return &Config{
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  5 * time.Second,
		Debounce:      3 * time.Second,
	}
}

// Monitor tracks online/offline state and emits one resume signal per
// offline→online transition. Rapid flapping within the debounce window
// coalesces into a single signal.
type Monitor struct {
	probe         Probe
	probeInterval time.Duration
	probeTimeout  time.Duration
	debounce      time.Duration

	mu          sync.Mutex
	online      bool
	resumeTimer *time.Timer

	resumeCh chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// New creates a new Monitor. The initial state is offline; the first
// successful probe counts as a transition, so a client that starts online
// with queued work still gets a resume signal.
func New(probe Probe, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}

	return &Monitor{
		probe:         probe,
		probeInterval: config.ProbeInterval,
		probeTimeout:  config.ProbeTimeout,
		debounce:      config.Debounce,
		resumeCh:      make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// Resume returns the channel on which resume signals are delivered. The
// channel has a buffer of one; an undelivered signal absorbs later ones.
func (m *Monitor) Resume() <-chan struct{} {
	return m.resumeCh
}

// IsOnline returns the current connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start begins periodic probing. It returns immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(ctx)

	logging.Info("Connectivity monitor started",
		map[string]interface{}{"interval": m.probeInterval.String()})
}

// Stop stops probing and waits for the probe loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
	}
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

// Report feeds an observed connectivity state into the monitor. The probe
// loop calls this; the UI layer may also call it directly when the platform
// surfaces its own connectivity events.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if online == m.online {
		return
	}
	m.online = online

	if !online {
		logging.Warn("Connectivity lost, queueing actions locally")
		return
	}

	logging.Info("Connectivity restored",
		map[string]interface{}{"debounce": m.debounce.String()})

	if m.debounce <= 0 {
		m.signalLocked()
		return
	}

	// Let the connection settle before resuming; a blip that drops again
	// inside the window never signals, and repeated blips collapse into
	// the one timer.
	if m.resumeTimer != nil {
		m.resumeTimer.Stop()
	}
	m.resumeTimer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.online {
			m.signalLocked()
		}
	})
}

// signalLocked delivers a resume signal without blocking. Callers hold mu.
func (m *Monitor) signalLocked() {
	select {
	case m.resumeCh <- struct{}{}:
	default:
	}
}

// probeLoop probes connectivity on a ticker until stopped.
func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()

	// Probe immediately so startup state is known before the first tick
	m.runProbe(ctx)

	ticker := time.NewTicker(m.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runProbe(ctx)
		}
	}
}

// runProbe executes one probe with its own deadline. Without a probe the
// monitor runs in report-only mode and state comes from Report callers.
func (m *Monitor) runProbe(ctx context.Context) {
	if m.probe == nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	m.Report(m.probe(probeCtx))
}
