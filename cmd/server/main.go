package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/landrop/landrop/internal/logging"
	"github.com/landrop/landrop/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	ctx := context.Background()

	// Load configuration and scan for a free port from the configured one.
	config := server.NewConfigFromEnv()
	config.Port = server.FindAvailablePort(config.Port, 100)
	server.SetConfig(config)

	app, err := server.NewApp(logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize server", "error", err)
		os.Exit(1)
	}

	mux := app.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	app.StartHub()

	fmt.Println("LanDrop server started")
	fmt.Printf("  local:   http://localhost%s\n", config.Port)
	fmt.Printf("  network: http://%s%s\n", server.LocalIP(), config.Port)
	fmt.Printf("  uploads: %s\n", config.UploadDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "server exited", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info(ctx, "shutdown signal received", "signal", sig.String())

		if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
			logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
		if err := app.Hub().Shutdown(shutdownTimeout); err != nil {
			logger.Warn(ctx, "hub shutdown incomplete", "error", err)
		}
	}

	logger.Info(ctx, "server stopped")
}
