// Package app provides shared application initialization used by both the
// server (Docker/CLI) and desktop (Wails) entry points.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/doppelfm/doppel/internal/config"
	"github.com/doppelfm/doppel/internal/db"
	"github.com/doppelfm/doppel/internal/dupes"
	"github.com/doppelfm/doppel/internal/handlers"
	"github.com/doppelfm/doppel/internal/logging"
	"github.com/doppelfm/doppel/internal/scheduler"
	"github.com/doppelfm/doppel/internal/services"
)

// ServerConfig contains options for creating the application server.
type ServerConfig struct {
	// Port to listen on. If 0, uses config default.
	Port int

	// Version string, logged at startup.
	Version string

	// BindAddress is the address to bind to. Defaults to "" (all
	// interfaces); pass "127.0.0.1" to accept local clients only.
	BindAddress string
}

// Server wraps the HTTP server and associated resources.
type Server struct {
	HTTP      *http.Server
	Config    *config.Config
	Log       zerolog.Logger
	Database  *db.DB
	Search    *services.Search
	Scheduler *scheduler.Scheduler
}

// Components holds the core services without an HTTP server. The desktop
// entry point builds these and binds them to the UI directly.
type Components struct {
	Config    *config.Config
	Log       zerolog.Logger
	Database  *db.DB
	Search    *services.Search
	Scheduler *scheduler.Scheduler
}

// Build initializes configuration, storage and services.
// Call Close when done to release resources.
func Build() (*Components, error) {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Retention stored in the DB yields to an explicit env override.
	if !cfg.RetentionDaysFromEnv {
		if val, err := database.GetSetting("retention_days"); err == nil && val != "" {
			if days, err := strconv.Atoi(val); err == nil && days >= 1 && days <= 365 {
				cfg.RetentionDays = days
			}
		}
	}

	logger.Info().
		Str("db", cfg.DBPath).
		Int("hash_workers", cfg.HashWorkers).
		Int("retention_days", cfg.RetentionDays).
		Msg("starting")

	engine := dupes.NewEngine(cfg.HashWorkers, cfg.ProgressInterval)
	search := services.NewSearch(database, engine, logger, cfg.SearchTimeout)

	sched := scheduler.New(database, search, logger)
	sched.Start()

	return &Components{
		Config:    cfg,
		Log:       logger,
		Database:  database,
		Search:    search,
		Scheduler: sched,
	}, nil
}

// Close releases all resources held by the components.
func (c *Components) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.Database != nil {
		c.Database.Close()
	}
}

// CreateServer builds the components and wraps them in an HTTP server.
// Call Server.Cleanup() when done to release resources.
func CreateServer(cfg ServerConfig) (*Server, error) {
	components, err := Build()
	if err != nil {
		return nil, err
	}

	appCfg := components.Config
	if cfg.Port > 0 {
		appCfg.Port = cfg.Port
	}
	if cfg.Version != "" {
		components.Log.Info().Str("version", cfg.Version).Msg("doppel server")
	}

	h := handlers.New(components.Database, appCfg, components.Search, components.Scheduler, components.Log)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, appCfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // No timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTP:      server,
		Config:    appCfg,
		Log:       components.Log,
		Database:  components.Database,
		Search:    components.Search,
		Scheduler: components.Scheduler,
	}, nil
}

// Cleanup releases all resources held by the server.
func (s *Server) Cleanup() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Database != nil {
		s.Database.Close()
	}
}

// StartCleanupLoop starts a background goroutine that periodically removes
// search history past the retention window. Returns a cancel function and
// a done channel.
func (s *Server) StartCleanupLoop() (cancel func(), done <-chan struct{}) {
	cleanupDone := make(chan struct{})
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())

	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				s.Log.Info().Int("retention_days", s.Config.RetentionDays).Msg("running history cleanup")
				if err := s.Database.CleanupOldData(s.Config.RetentionDays); err != nil {
					s.Log.Error().Err(err).Msg("history cleanup failed")
				}
			}
		}
	}()

	return cleanupCancel, cleanupDone
}
