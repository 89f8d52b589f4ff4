// Package server builds the room-info payload: the URL other devices on
// the network should open, rendered both as text and as a QR code.
package server

import (
	"encoding/base64"
	"net"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

const qrCodeSize = 256

// RoomInfoHandler reports the room URL, a QR code for it, and the current
// counts of files, connected clients, and chat messages.
func (a *App) RoomInfoHandler(w http.ResponseWriter, r *http.Request) {
	roomURL := "http://" + net.JoinHostPort(LocalIP(), portOf(a.cfg.Port))

	qr, err := qrDataURL(roomURL)
	if err != nil {
		a.log.Error(r.Context(), "failed to render QR code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build room info")
		return
	}

	files, err := a.files.List()
	if err != nil {
		a.log.Error(r.Context(), "failed to list files", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build room info")
		return
	}

	type roomFile struct {
		Name     string  `json:"name"`
		Size     int64   `json:"size"`
		Modified float64 `json:"modified"`
	}
	entries := make([]roomFile, 0, len(files))
	for _, f := range files {
		entries = append(entries, roomFile{
			Name:     f.Name,
			Size:     f.Size,
			Modified: unixSeconds(f.Modified),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"room_url":      roomURL,
		"qr_code":       qr,
		"total_files":   len(entries),
		"total_clients": a.hub.ClientCount(),
		"chat_messages": a.hub.HistoryLen(),
		"files":         entries,
	})
}

func qrDataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrCodeSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// LocalIP returns the address of the interface that would route to the
// internet, which on a LAN host is the address other devices can reach.
// No packets are sent; the dial only selects a source address.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "8888"
	}
	return port
}
