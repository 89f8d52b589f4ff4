// Package server defines the wire event types exchanged over the real-time
// channel and utility helpers reused across client and hub logic.
package server

import (
	"strings"

	"github.com/landrop/landrop/internal/chatlog"
)

// Event kinds carried in the "type" field of real-time payloads.
const (
	EventWelcome     = "welcome"
	EventChatMessage = "chat_message"
)

// ClientEvent is the JSON envelope a client sends over the WebSocket.
type ClientEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WelcomeEvent is sent once per connection, carrying the assigned identity
// and the most recent slice of history.
type WelcomeEvent struct {
	Type        string            `json:"type"`
	ClientID    string            `json:"client_id"`
	ClientName  string            `json:"client_name"`
	ChatHistory []chatlog.Message `json:"chat_history"`
}

// ChatEvent wraps one broadcast chat message.
type ChatEvent struct {
	Type    string          `json:"type"`
	Message chatlog.Message `json:"message"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
