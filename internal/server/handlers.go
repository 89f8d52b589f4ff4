// Package server exposes the HTTP surface: file transfer endpoints, chat
// endpoints, WebSocket upgrades, and the built-in web client.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/landrop/landrop/internal/filestore"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// fileEntry is one element of the /api/files listing.
type fileEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"`
	URL      string  `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// remoteIP extracts the client's network address without the ephemeral
// port, so all connections from one device resolve to one identity.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// WebSocketHandler handles WebSocket upgrade requests and hands the
// connection to the hub, which assigns the identity and sends the welcome
// payload.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, a.hub, remoteIP(r))

	// Register the client with the hub; the hub will launch the pump goroutines.
	a.hub.register <- client
}

// FilesHandler lists the stored files with their download URLs.
func (a *App) FilesHandler(w http.ResponseWriter, r *http.Request) {
	files, err := a.files.List()
	if err != nil {
		a.log.Error(r.Context(), "failed to list files", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list files")
		return
	}

	entries := make([]fileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, fileEntry{
			ID:       f.Name,
			Name:     f.Name,
			Size:     f.Size,
			Modified: unixSeconds(f.Modified),
			URL:      "/api/download/" + f.Name,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": entries})
}

// UploadHandler consumes a streaming multipart body and stores the first
// file part under its declared (sanitized) filename, overwriting any
// previous file of that name.
func (a *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}

	part, name := findFilePart(reader)
	if part == nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer part.Close()

	name, err = filestore.CleanName(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	size, err := a.files.Save(name, part)
	if err != nil {
		a.log.Error(r.Context(), "upload failed", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	a.log.Info(r.Context(), "file uploaded", "file", name, "size", size)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"filename": name,
		"size":     size,
		"url":      "/api/download/" + name,
	})
}

// findFilePart walks the multipart body and returns the first part that
// carries a filename, or nil if the body has no file part.
func findFilePart(reader *multipart.Reader) (*multipart.Part, string) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return nil, ""
		}
		if part.FileName() != "" {
			return part, part.FileName()
		}
		part.Close()
	}
}

// DownloadHandler streams a stored file, honoring single-range requests for
// resumable downloads.
func (a *App) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	f, size, err := a.files.Open(id)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrInvalidName) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		a.log.Error(r.Context(), "failed to open file", "file", id, "error", err)
		http.Error(w, "download failed", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(f.Name())+`"`)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		a.sendWholeFile(w, r, f, size)
		return
	}

	br, ok := filestore.ParseRange(rangeHeader, size)
	if !ok {
		// Malformed or multi-range headers fall back to whole-file delivery.
		a.sendWholeFile(w, r, f, size)
		return
	}
	if !br.Satisfiable() {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", br.ContentRange())
	w.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(http.StatusPartialContent)

	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		a.log.Error(r.Context(), "seek failed", "file", id, "error", err)
		return
	}
	// Bounded chunked copy; a short read is tolerated if the file shrank
	// mid-transfer.
	if _, err := io.CopyBuffer(w, io.LimitReader(f, br.Length()), make([]byte, filestore.ChunkSize)); err != nil {
		a.log.Warn(r.Context(), "range copy interrupted", "file", id, "error", err)
	}
}

func (a *App) sendWholeFile(w http.ResponseWriter, r *http.Request, f io.Reader, size int64) {
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Accept-Ranges", "bytes")
	if _, err := io.CopyBuffer(w, f, make([]byte, filestore.ChunkSize)); err != nil {
		a.log.Warn(r.Context(), "download interrupted", "error", err)
	}
}

// DeleteHandler removes a stored file, answering 404 when it is absent.
func (a *App) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := a.files.Delete(id); err != nil {
		if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		a.log.Error(r.Context(), "delete failed", "file", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	a.log.Info(r.Context(), "file deleted", "file", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ChatHistoryHandler returns the most recent in-memory messages.
func (a *App) ChatHistoryHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": a.hub.Recent(recentHistory)})
}

// ChatSendHandler accepts a chat message over plain HTTP, stores and
// broadcasts it, and echoes the stored message back to the submitter.
func (a *App) ChatSendHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := a.hub.Submit(remoteIP(r), body.Message)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "message must not be empty")
			return
		}
		a.log.Error(r.Context(), "chat submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": msg,
	})
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (a *App) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("LanDrop server is running!"))
}

// IndexHandler serves the web client's entry page from the client
// directory, falling back to a minimal inline page when the assets are not
// shipped next to the binary.
func (a *App) IndexHandler(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(a.cfg.ClientDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(fallbackIndexHTML))
}

const fallbackIndexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>LanDrop</title>
    <style>
        body { font-family: 'Segoe UI', sans-serif; margin: 0; padding: 40px; background: #f4f6fb; color: #333; }
        .card { max-width: 640px; margin: 0 auto; background: #fff; border-radius: 10px; padding: 30px; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
        h1 { margin-top: 0; }
        code { background: #eef1f7; padding: 2px 6px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="card">
        <h1>LanDrop is running</h1>
        <p>The bundled web client was not found next to the server binary.</p>
        <p>The API is available anyway: list files at <code>/api/files</code>,
        upload with <code>POST /api/upload</code>, chat over <code>/ws</code>.</p>
    </div>
</body>
</html>
`

