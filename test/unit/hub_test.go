// Package unit contains unit tests for individual components of the
// LanDrop server.
//
// These tests focus on testing specific functions and methods in isolation,
// using temporary directories instead of real deployment state. Unit tests
// ensure that each component behaves correctly under various conditions.
package unit

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/landrop/landrop/internal/chatlog"
	"github.com/landrop/landrop/internal/identity"
	"github.com/landrop/landrop/internal/logging"
	"github.com/landrop/landrop/internal/server"
)

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub := server.NewHub(identity.NewRegistry("User"), chatlog.New(t.TempDir()), logger)

	go hub.Run()
	t.Cleanup(func() {
		if err := hub.Shutdown(2 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
	})
	return hub
}

// TestHubChannels tests that all hub channels are properly initialized.
func TestHubChannels(t *testing.T) {
	hub := newTestHub(t)

	if hub.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if hub.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
	if hub.GetBroadcastChan() == nil {
		t.Error("Broadcast channel is nil")
	}
}

// TestHubBroadcastChannel verifies that raw payloads can be sent to the
// broadcast channel without blocking while the hub is running.
func TestHubBroadcastChannel(t *testing.T) {
	hub := newTestHub(t)

	select {
	case hub.GetBroadcastChan() <- []byte(`{"type":"chat_message"}`):
	case <-time.After(100 * time.Millisecond):
		t.Error("Failed to send message to broadcast channel")
	}
}

// TestSubmitRejectsBlankText verifies that whitespace-only submissions are
// rejected and leave no trace in history.
func TestSubmitRejectsBlankText(t *testing.T) {
	hub := newTestHub(t)

	for _, text := range []string{"", "   ", "\t\n "} {
		_, err := hub.Submit("192.168.1.5", text)
		if err != server.ErrEmptyMessage {
			t.Errorf("Submit(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}

	if got := hub.HistoryLen(); got != 0 {
		t.Errorf("History length = %d after rejected submissions, want 0", got)
	}
}

// TestSubmitStoresMessage verifies that a valid submission is trimmed,
// stored in history, and stamped with the sender's identity.
func TestSubmitStoresMessage(t *testing.T) {
	hub := newTestHub(t)

	msg, err := hub.Submit("192.168.1.5", "  hello hub  ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if msg.Text != "hello hub" {
		t.Errorf("Text = %q, want trimmed %q", msg.Text, "hello hub")
	}
	if msg.SenderName != "User1" {
		t.Errorf("SenderName = %q, want User1", msg.SenderName)
	}
	if msg.SenderAddr != "192.168.1.5" {
		t.Errorf("SenderAddr = %q, want 192.168.1.5", msg.SenderAddr)
	}
	if msg.ID == "" || msg.TimeString == "" || msg.Timestamp == 0 {
		t.Errorf("Message missing generated fields: %+v", msg)
	}

	if got := hub.HistoryLen(); got != 1 {
		t.Errorf("History length = %d, want 1", got)
	}
}

// TestSubmitAssignsIdentitiesInOrder verifies first-appearance name
// assignment across senders: A, B, A must yield User1, User2, User1.
func TestSubmitAssignsIdentitiesInOrder(t *testing.T) {
	hub := newTestHub(t)

	first, err := hub.Submit("10.0.0.1", "from A")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	second, err := hub.Submit("10.0.0.2", "from B")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	third, err := hub.Submit("10.0.0.1", "from A again")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if first.SenderName != "User1" || second.SenderName != "User2" || third.SenderName != "User1" {
		t.Errorf("Names = %q, %q, %q; want User1, User2, User1",
			first.SenderName, second.SenderName, third.SenderName)
	}
}

// TestRecentReturnsTail verifies that Recent returns only the most recent
// messages, oldest first.
func TestRecentReturnsTail(t *testing.T) {
	hub := newTestHub(t)

	for i := 0; i < 60; i++ {
		if _, err := hub.Submit("10.0.0.3", "message"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	recent := hub.Recent(50)
	if len(recent) != 50 {
		t.Fatalf("Recent(50) returned %d messages, want 50", len(recent))
	}

	all := hub.Recent(1000)
	if len(all) != 60 {
		t.Fatalf("Recent(1000) returned %d messages, want 60", len(all))
	}
	if recent[len(recent)-1].ID != all[len(all)-1].ID {
		t.Error("Recent tail does not end with the newest message")
	}
}

// TestConcurrentSubmits verifies that concurrent submissions neither race
// nor drop messages.
func TestConcurrentSubmits(t *testing.T) {
	hub := newTestHub(t)

	const senders = 10
	done := make(chan error, senders)
	for i := 0; i < senders; i++ {
		go func() {
			_, err := hub.Submit("10.0.0.9", "concurrent message")
			done <- err
		}()
	}

	for i := 0; i < senders; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Submit failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Concurrent submissions timed out")
		}
	}

	if got := hub.HistoryLen(); got != senders {
		t.Errorf("History length = %d, want %d", got, senders)
	}
}
