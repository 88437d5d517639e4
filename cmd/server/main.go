package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doppelfm/doppel/internal/app"
)

// Version info - injected at build time via ldflags
var version = "dev"

func main() {
	server, err := app.CreateServer(app.ServerConfig{Version: version})
	if err != nil {
		os.Stderr.WriteString("failed to start: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer server.Cleanup()

	cleanupCancel, cleanupDone := server.StartCleanupLoop()
	defer func() {
		cleanupCancel()
		<-cleanupDone
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		server.Log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.HTTP.Shutdown(ctx); err != nil {
			server.Log.Error().Err(err).Msg("shutdown error")
		}
	}()

	server.Log.Info().Str("addr", server.HTTP.Addr).Msg("server listening")
	if err := server.HTTP.ListenAndServe(); err != http.ErrServerClosed {
		server.Log.Fatal().Err(err).Msg("server error")
	}

	server.Log.Info().Msg("server stopped")
}
