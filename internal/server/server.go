// Package server constructs and starts the LanDrop HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/landrop/landrop/internal/chatlog"
	"github.com/landrop/landrop/internal/filestore"
	"github.com/landrop/landrop/internal/identity"
	"github.com/landrop/landrop/internal/logging"
)

// App bundles the long-lived server state: the hub with its client set and
// history, the file store, and the durable chat log. It is constructed once
// at startup and torn down at shutdown.
type App struct {
	cfg   Config
	hub   *Hub
	files *filestore.Store
	chat  *chatlog.Log
	log   logging.Logger
}

// NewApp wires the application together from the active configuration:
// it creates the upload directory, opens the chat log, reconstructs history
// from the current day's log file, and seeds the identity registry in log
// order so display names survive a restart.
func NewApp(log logging.Logger) (*App, error) {
	cfg := currentConfig()

	files, err := filestore.New(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	names := identity.NewRegistry("User")
	chat := chatlog.New(cfg.ChatDir)
	hub := NewHub(names, chat, log)

	history, err := chat.LoadAll(names.Resolve)
	if err != nil {
		// A corrupt or unreadable log degrades history, never startup.
		log.Warn(context.Background(), "failed to load chat history", "error", err)
	}
	hub.seedHistory(history)
	log.Info(context.Background(), "chat history loaded",
		"messages", len(history), "file", chat.Path())

	return &App{
		cfg:   cfg,
		hub:   hub,
		files: files,
		chat:  chat,
		log:   log,
	}, nil
}

// Hub returns the hub instance for shutdown coordination.
func (a *App) Hub() *Hub {
	return a.hub
}

// StartHub starts the hub event loop in a separate goroutine. This must be
// called before serving WebSocket connections.
func (a *App) StartHub() {
	go a.hub.Run()
	a.log.Info(context.Background(), "hub started and ready to manage WebSocket connections")
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use. Write timeouts stay
// generous because large file downloads stream through ordinary handlers.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return server.Shutdown(ctx)
}

// FindAvailablePort probes TCP ports starting at the port embedded in addr
// (e.g. ":8888") and returns the first address that can be bound, trying up
// to maxAttempts consecutive ports. If none can be bound the original
// address is returned and binding will fail loudly later.
func FindAvailablePort(addr string, maxAttempts int) string {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return addr
	}

	for i := 0; i < maxAttempts; i++ {
		candidate := net.JoinHostPort(host, strconv.Itoa(port+i))
		l, err := net.Listen("tcp", candidate)
		if err != nil {
			continue
		}
		l.Close()
		return candidate
	}
	return addr
}
