// Command participant runs one participant of a shared assembly session:
// the tick loop, ownership sync over MQTT, and the operator API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/AssemblyEngine/internal/api"
	"github.com/AaronLay10/AssemblyEngine/internal/config"
	"github.com/AaronLay10/AssemblyEngine/internal/events"
	"github.com/AaronLay10/AssemblyEngine/internal/mqtt"
	"github.com/AaronLay10/AssemblyEngine/internal/ownership"
	"github.com/AaronLay10/AssemblyEngine/internal/session"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
	"github.com/AaronLay10/AssemblyEngine/internal/version"
)

const (
	watchInterval = 2 * time.Second
	alertInterval = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config/session.yaml", "path to session.yaml")
	flag.Parse()

	cfg, err := config.LoadSessionConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load session.yaml: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("participant failed: %v", err)
	}
}

func run(ctx context.Context, cfg *config.SessionConfig) error {
	runID := uuid.NewString()
	events.SetRunID(runID)
	defer events.CloseAllSubscribers()

	readiness := api.NewReadiness(false, true)

	var (
		db      *postgres.Client
		layouts session.LayoutStore
		history session.EventStore
	)
	if cfg.Database.Enabled {
		c, err := postgres.New(postgres.Options{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		}, cfg.Session.ID)
		if err != nil {
			log.Printf("postgres unavailable, continuing without persistence: %v", err)
		} else {
			db = c
			defer db.Close()
			layouts, history = db, db
			events.SetSink(db)
			readiness.SetPostgresConnected(true)
		}
	}

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "participant starting", map[string]interface{}{
		"session_id":  cfg.Session.ID,
		"participant": cfg.Participant.ID,
		"authority":   cfg.Participant.Authority,
		"run_id":      runID,
		"version":     version.Version,
		"hostname":    hostname,
		"pid":         os.Getpid(),
	})

	clientID := fmt.Sprintf("assembly-%s-%d-%s", cfg.Session.ID, cfg.Participant.ID, uuid.NewString()[:8])
	client := mqtt.NewClient(cfg.MQTTURL(), clientID)
	outbox := mqtt.NewOutbox(client, mqtt.DefaultOutboxSize)
	tr := mqtt.NewOwnershipTransport(outbox, cfg.Session.ID, cfg.Participant.ID, cfg.Participant.Authority)
	client.OnConnect(func() {
		readiness.SetMQTTConnected(true)
		if err := tr.Resubscribe(); err != nil {
			log.Printf("mqtt: resubscribe failed: %v", err)
		}
	})
	client.ConnectWithRetry()
	defer client.Disconnect()
	if err := client.WaitConnected(ctx); err != nil {
		return fmt.Errorf("broker never connected: %w", err)
	}

	loaded, err := session.Load(session.Sources{
		Scene:  cfg.Paths.Scene,
		Tasks:  cfg.Paths.Tasks,
		Layout: cfg.Paths.Layout,
	}, layouts)
	if err != nil {
		return err
	}

	sess, err := session.New(loaded.Tree, loaded.Tasks, tr, session.Options{
		ID: cfg.Session.ID,
		Participant: ownership.Config{
			ID:               cfg.Participant.ID,
			Authority:        cfg.Participant.Authority,
			SnapshotInterval: cfg.Sync.SnapshotInterval,
			DeltaInterval:    cfg.Sync.DeltaInterval,
			ClaimTimeout:     cfg.Sync.ClaimTimeout,
		},
		Interaction: cfg.Interaction,
	})
	if err != nil {
		return err
	}

	var restored *session.RestoredState
	if cfg.Participant.Authority {
		state, n, err := session.RestoreFromEvents(history, session.DefaultRestoreLimit)
		if err != nil {
			log.Printf("restore failed, starting fresh: %v", err)
		} else if state != nil {
			restored = state
			session.EmitStartupRestore(n, cfg.Session.ID)
		}
	}

	sess.Start()
	sess.ApplyRestoredState(restored)
	if cfg.Participant.Authority && layouts != nil {
		if err := sess.SaveLayout(layouts); err != nil {
			log.Printf("failed to save layout: %v", err)
		}
	}

	runner := session.NewRunner(sess, cfg.TickInterval())
	readiness.SetSessionReady(true)

	auth, err := api.LoadAuth()
	if err != nil {
		return err
	}
	srv := api.New(api.Config{
		Port:      cfg.APIPort(),
		Name:      cfg.Session.ID,
		Operator:  runner,
		History:   history,
		Auth:      auth,
		TLS:       api.TLSFromEnv(),
		Readiness: readiness,
	})
	alerter := api.NewAlerter(api.AlertConfigFromEnv(cfg.Session.ID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return outbox.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return alerter.Run(gctx, readiness, alertInterval) })
	g.Go(func() error {
		watch(gctx, client, db, readiness)
		return nil
	})

	err = g.Wait()
	events.Emit("info", "system.shutdown", "participant stopping", map[string]interface{}{
		"session_id": cfg.Session.ID,
		"run_id":     runID,
	})
	return err
}

// watch keeps the readiness flags in step with the broker and database
// connections until ctx is done.
func watch(ctx context.Context, client *mqtt.Client, db *postgres.Client, r *api.Readiness) {
	t := time.NewTicker(watchInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.SetMQTTConnected(client.IsConnected())
			if db != nil {
				r.SetPostgresConnected(db.Ping() == nil)
			}
		}
	}
}
