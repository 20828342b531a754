// Package main provides the local agent the point-of-sale UI talks to.
// The UI communicates via REST/WebSocket on localhost; the agent owns the
// offline action queue and replays it against the parking backend when
// connectivity allows.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jbetancur12/parking-app-sub001/cmd/agent/handlers"
	"github.com/jbetancur12/parking-app-sub001/config"
	"github.com/jbetancur12/parking-app-sub001/internal/db"
	"github.com/jbetancur12/parking-app-sub001/internal/logging"
	"github.com/jbetancur12/parking-app-sub001/internal/netmon"
	"github.com/jbetancur12/parking-app-sub001/internal/queue"
	"github.com/jbetancur12/parking-app-sub001/internal/remote"
	"github.com/jbetancur12/parking-app-sub001/internal/state"
	"github.com/jbetancur12/parking-app-sub001/internal/syncer"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cfg, err := config.New()
	if err != nil {
		logging.Error("Failed to load configuration", err)
		os.Exit(1)
	}

	logging.Init(os.Stdout, logging.ParseLevel(cfg.Log.Level))
	logging.Info("Parking agent starting",
		map[string]interface{}{"version": Version, "port": cfg.HTTP.Port})

	database, err := db.Open(cfg.Storage.DataDir)
	if err != nil {
		logging.Error("Failed to open local database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Apply(); err != nil {
		logging.Error("Failed to apply migrations", err)
		os.Exit(1)
	}

	store := queue.NewSQLiteStore(database.DB)

	client := remote.NewClient(&remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Timeout: cfg.Remote.Timeout,
	})

	registry := syncer.NewRegistry()
	client.Register(registry)

	coord := syncer.NewCoordinator(store, registry)

	monitor := netmon.New(client.Ping, &netmon.Config{
		ProbeInterval: cfg.Monitor.ProbeInterval,
		ProbeTimeout:  cfg.Monitor.ProbeTimeout,
		Debounce:      cfg.Monitor.Debounce,
	})

	svc := state.New(store, coord, monitor)

	hub := NewWSHub()
	svc.Subscribe(hub.BroadcastQueueChanged)
	svc.SetStartHandler(hub.BroadcastSyncStarted)
	svc.SetSummaryHandler(hub.BroadcastSyncCompleted)

	queueHandler := handlers.NewQueueHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"parking-agent"}`))
	})
	mux.HandleFunc("/api/queue", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			queueHandler.PurgeQueue(w, r)
		default:
			queueHandler.GetQueue(w, r)
		}
	})
	mux.HandleFunc("/api/queue/actions", queueHandler.EnqueueAction)
	mux.HandleFunc("/api/sync", queueHandler.SyncNow)
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:    "localhost:" + cfg.HTTP.Port,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor.Start(ctx)
	svc.Start(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		svc.Stop()
		monitor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Error("Agent exited with error", err)
		os.Exit(1)
	}

	logging.Info("Parking agent stopped")
}
