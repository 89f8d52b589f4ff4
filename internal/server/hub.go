// Package server coordinates client registration, message broadcast, and
// connection cleanup for the LanDrop real-time channel via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/landrop/landrop/internal/chatlog"
	"github.com/landrop/landrop/internal/identity"
	"github.com/landrop/landrop/internal/logging"
)

// History tail sizes: the welcome payload carries the last welcomeHistory
// messages, the pull endpoint the last recentHistory.
const (
	welcomeHistory = 20
	recentHistory  = 50
)

// ErrEmptyMessage reports a chat submission whose text is blank or
// whitespace-only.
var ErrEmptyMessage = errors.New("message is empty")

// Hub owns the set of connected real-time clients, the in-memory chat
// history, and the identity registry, and fans submitted messages out to
// every connected client. Registration, unregistration, and broadcast all
// flow through channels serviced by Run; the client set itself is mutex
// protected so broadcast can snapshot it safely.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	names *identity.Registry
	chat  *chatlog.Log
	log   logging.Logger

	historyMu sync.RWMutex
	history   []chatlog.Message
}

// NewHub creates a Hub backed by the given identity registry and durable
// chat log. The returned Hub is ready to manage connections once Run is
// started.
func NewHub(names *identity.Registry, chat *chatlog.Log, log logging.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		names:      names,
		chat:       chat,
		log:        log,
	}
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetBroadcastChan returns the channel used for broadcasting raw payloads to
// all clients. This channel is write-only from the caller's perspective.
func (h *Hub) GetBroadcastChan() chan<- []byte {
	return h.broadcast
}

// Names returns the identity registry shared with the HTTP handlers.
func (h *Hub) Names() *identity.Registry {
	return h.names
}

// seedHistory installs history reconstructed from the durable log at
// startup, before any client can connect.
func (h *Hub) seedHistory(msgs []chatlog.Message) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = append(h.history, msgs...)
}

func (h *Hub) appendHistory(m chatlog.Message) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = append(h.history, m)
}

// Recent returns a copy of the last n in-memory messages, oldest first.
func (h *Hub) Recent(n int) []chatlog.Message {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()

	start := len(h.history) - n
	if start < 0 {
		start = 0
	}
	tail := make([]chatlog.Message, len(h.history)-start)
	copy(tail, h.history[start:])
	return tail
}

// HistoryLen reports the total number of in-memory messages.
func (h *Hub) HistoryLen() int {
	h.historyMu.RLock()
	defer h.historyMu.RUnlock()
	return len(h.history)
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Submit validates and stores a chat message from addr, broadcasts it to
// every connected client, and returns the stored message. Blank or
// whitespace-only text is rejected with ErrEmptyMessage and leaves no
// trace in history or the log.
func (h *Hub) Submit(addr, text string) (chatlog.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatlog.Message{}, ErrEmptyMessage
	}

	name := h.names.Resolve(addr)
	msg := chatlog.NewMessage(text, addr, name)

	h.appendHistory(msg)
	if err := h.chat.Append(msg); err != nil {
		// Durability degrades but the message still reaches live clients.
		h.log.Error(h.ctx, "failed to append message to chat log", "error", err)
	}

	payload, err := json.Marshal(ChatEvent{Type: EventChatMessage, Message: msg})
	if err != nil {
		return msg, fmt.Errorf("encode chat event: %w", err)
	}

	select {
	case h.broadcast <- payload:
	case <-h.ctx.Done():
	}
	return msg, nil
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error(h.ctx, "recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and message broadcasting. This method should be called in
// a separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn(h.ctx, "received nil client registration; skipping")
				continue
			}
			h.registerClient(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.log.Info(h.ctx, "client unregistered", "addr", client.addr, "total", clientCount)
			} else {
				h.mutex.Unlock()
			}

		case payload := <-h.broadcast:
			h.handleBroadcast(payload)
		}
	}
}

// registerClient assigns the client its identity, adds it to the live set,
// starts its pumps, and queues the one-time welcome payload.
func (h *Hub) registerClient(client *Client) {
	client.name = h.names.Resolve(client.addr)
	client.id = newClientID()
	client.connectedAt = time.Now()

	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info(h.ctx, "client registered",
		"addr", client.addr, "name", client.name, "total", clientCount)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	welcome, err := json.Marshal(WelcomeEvent{
		Type:        EventWelcome,
		ClientID:    client.id,
		ClientName:  client.name,
		ChatHistory: h.Recent(welcomeHistory),
	})
	if err != nil {
		h.log.Error(h.ctx, "failed to encode welcome payload", "error", err)
		return
	}
	if !h.safeSend(client, welcome) {
		h.log.Warn(h.ctx, "failed to queue welcome payload", "addr", client.addr)
	}
}

func newClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// handleBroadcast delivers a payload to every connected client. A failed
// send evicts only that client; delivery to the others proceeds.
func (h *Hub) handleBroadcast(payload []byte) {
	clients := h.getClientSnapshot()
	h.log.Debug(h.ctx, "broadcasting message", "targets", len(clients))

	var clientsToRemove []*Client
	for _, client := range clients {
		if !h.safeSend(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn(h.ctx, "client removed due to full send buffer", "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients evicts every live client. Closing the send channel makes
// the write pump drain and exit; closing the connection unblocks the read
// pump. Both must happen or Shutdown waits out its full timeout.
func (h *Hub) shutdownClients() {
	h.log.Info(h.ctx, "shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		client.closed = true
		delete(h.clients, client)
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					h.log.Error(h.ctx, "error closing client connection",
						"addr", client.addr, "error", err)
				}
			}
		}
	}

	h.log.Info(h.ctx, "closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info(h.ctx, "initiating hub shutdown")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info(h.ctx, "hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn(h.ctx, "hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
