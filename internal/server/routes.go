// Package server wires HTTP handlers into a ServeMux for the LanDrop
// application via routing helpers.
package server

import (
	"net/http"
	"os"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the file transfer API, the chat API, the WebSocket endpoint, and
// the web client.
func (a *App) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", a.IndexHandler)
	mux.HandleFunc("GET /healthz", a.HealthHandler)
	mux.HandleFunc("/ws", a.WebSocketHandler)

	mux.HandleFunc("GET /api/room-info", a.RoomInfoHandler)
	mux.HandleFunc("GET /api/files", a.FilesHandler)
	mux.HandleFunc("POST /api/upload", a.UploadHandler)
	mux.HandleFunc("GET /api/download/{id}", a.DownloadHandler)
	mux.HandleFunc("DELETE /api/delete/{id}", a.DeleteHandler)

	mux.HandleFunc("GET /api/chat/history", a.ChatHistoryHandler)
	mux.HandleFunc("POST /api/chat/send", a.ChatSendHandler)

	if info, err := os.Stat(a.cfg.ClientDir); err == nil && info.IsDir() {
		mux.Handle("GET /client/", http.StripPrefix("/client/",
			http.FileServer(http.Dir(a.cfg.ClientDir))))
	}

	return mux
}
