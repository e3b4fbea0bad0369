// Command api serves the operator API without running a participant: the
// persisted event log, health and metrics for a session.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AaronLay10/AssemblyEngine/internal/api"
	"github.com/AaronLay10/AssemblyEngine/internal/config"
	"github.com/AaronLay10/AssemblyEngine/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config/session.yaml", "path to session.yaml")
	flag.Parse()

	cfg, err := config.LoadSessionConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load session.yaml: %v", err)
	}

	db, err := postgres.New(postgres.Options{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}, cfg.Session.ID)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	auth, err := api.LoadAuth()
	if err != nil {
		log.Fatalf("failed to load credentials: %v", err)
	}

	readiness := api.NewReadiness(true, false)
	readiness.SetSessionReady(true)
	readiness.SetPostgresConnected(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := api.New(api.Config{
		Port:      cfg.APIPort(),
		Name:      cfg.Session.ID,
		History:   db,
		Auth:      auth,
		TLS:       api.TLSFromEnv(),
		Readiness: readiness,
	})
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}
