package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/landrop/landrop/test/testhelpers"
)

const eventTimeout = 3 * time.Second

// TestWelcomePayload verifies that a fresh connection receives exactly one
// welcome event carrying its assigned identity and recent history.
func TestWelcomePayload(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)

	conn := testhelpers.ConnectWebSocket(t, ta.WebSocketURL(t))
	welcome := testhelpers.ReceiveEvent(t, conn, eventTimeout)

	if welcome["type"] != "welcome" {
		t.Fatalf("First event type = %v, want welcome", welcome["type"])
	}
	name, _ := welcome["client_name"].(string)
	if !strings.HasPrefix(name, "User") {
		t.Errorf("client_name = %q, want User<N>", name)
	}
	id, _ := welcome["client_id"].(string)
	if !strings.HasPrefix(id, "client_") {
		t.Errorf("client_id = %q, want client_ prefix", id)
	}
	if _, ok := welcome["chat_history"].([]any); !ok {
		t.Errorf("chat_history missing or not an array: %v", welcome["chat_history"])
	}
}

// TestWelcomeCarriesRecentHistory verifies that messages sent before a
// connection appear in its welcome payload, capped at the last 20.
func TestWelcomeCarriesRecentHistory(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)

	for i := 0; i < 25; i++ {
		resp := testhelpers.SendJSON(t, ta.Server.URL+"/api/chat/send",
			map[string]string{"message": "backlog"})
		testhelpers.AssertStatusCode(t, resp, http.StatusOK)
		_ = resp.Body.Close()
	}

	conn := testhelpers.ConnectWebSocket(t, ta.WebSocketURL(t))
	welcome := testhelpers.ReceiveEvent(t, conn, eventTimeout)

	history, ok := welcome["chat_history"].([]any)
	if !ok {
		t.Fatalf("chat_history missing: %v", welcome)
	}
	if len(history) != 20 {
		t.Errorf("Welcome history length = %d, want 20", len(history))
	}
}

// TestBroadcastReachesAllClients verifies fan-out: one submission yields
// exactly one structurally identical copy per connected client, including
// the sender's own connection.
func TestBroadcastReachesAllClients(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)
	wsURL := ta.WebSocketURL(t)

	conns := make([]*connReader, 3)
	for i := range conns {
		conn := testhelpers.ConnectWebSocket(t, wsURL)
		testhelpers.ReceiveEvent(t, conn, eventTimeout) // drain welcome
		conns[i] = &connReader{t: t, conn: conn}
	}

	if err := testhelpers.SendChatEvent(conns[0].conn, "hello everyone"); err != nil {
		t.Fatalf("Failed to send chat event: %v", err)
	}

	var firstID string
	for i, cr := range conns {
		event := cr.nextOfType("chat_message")
		msg, ok := event["message"].(map[string]any)
		if !ok {
			t.Fatalf("Connection %d: chat event has no message object: %v", i, event)
		}
		if msg["message"] != "hello everyone" {
			t.Errorf("Connection %d: text = %v", i, msg["message"])
		}
		if msg["client_name"] != "User1" {
			t.Errorf("Connection %d: client_name = %v, want User1", i, msg["client_name"])
		}
		id, _ := msg["id"].(string)
		if firstID == "" {
			firstID = id
		} else if id != firstID {
			t.Errorf("Connection %d received different message id %q", i, id)
		}
	}
}

// TestDisconnectedClientReceivesNothing verifies that a closed connection
// is removed from the live set and later broadcasts still reach the rest.
func TestDisconnectedClientReceivesNothing(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)
	wsURL := ta.WebSocketURL(t)

	leaving := testhelpers.ConnectWebSocket(t, wsURL)
	testhelpers.ReceiveEvent(t, leaving, eventTimeout)
	staying := testhelpers.ConnectWebSocket(t, wsURL)
	testhelpers.ReceiveEvent(t, staying, eventTimeout)

	if err := testhelpers.CloseWebSocket(leaving); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}
	waitForClientCount(t, ta, 1)

	resp := testhelpers.SendJSON(t, ta.Server.URL+"/api/chat/send",
		map[string]string{"message": "after departure"})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	_ = resp.Body.Close()

	event := (&connReader{t: t, conn: staying}).nextOfType("chat_message")
	msg := event["message"].(map[string]any)
	if msg["message"] != "after departure" {
		t.Errorf("Remaining client got %v", msg["message"])
	}
}

// TestHTTPSendVisibleOverWebSocketAndHistory verifies that the two chat
// transports share one history and one broadcast stream.
func TestHTTPSendVisibleOverWebSocketAndHistory(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)

	conn := testhelpers.ConnectWebSocket(t, ta.WebSocketURL(t))
	testhelpers.ReceiveEvent(t, conn, eventTimeout)

	resp := testhelpers.SendJSON(t, ta.Server.URL+"/api/chat/send",
		map[string]string{"message": "cross transport"})
	testhelpers.AssertStatusCode(t, resp, http.StatusOK)
	sent := testhelpers.DecodeJSONBody(t, resp)
	sentMsg, ok := sent["message"].(map[string]any)
	if !ok || sentMsg["message"] != "cross transport" {
		t.Fatalf("Unexpected send response: %v", sent)
	}

	event := (&connReader{t: t, conn: conn}).nextOfType("chat_message")
	got := event["message"].(map[string]any)
	if got["id"] != sentMsg["id"] {
		t.Errorf("Broadcast id %v differs from stored id %v", got["id"], sentMsg["id"])
	}

	histResp := testhelpers.MakeRequest(t, http.MethodGet, ta.Server.URL+"/api/chat/history", nil)
	hist := testhelpers.DecodeJSONBody(t, histResp)
	msgs, ok := hist["messages"].([]any)
	if !ok || len(msgs) != 1 {
		t.Fatalf("Expected one history message, got %v", hist["messages"])
	}
	last := msgs[0].(map[string]any)
	if last["id"] != sentMsg["id"] {
		t.Errorf("History id %v differs from stored id %v", last["id"], sentMsg["id"])
	}
}

// TestBlankWebSocketMessageIsDropped verifies that whitespace-only chat
// events are discarded without reaching history or other clients.
func TestBlankWebSocketMessageIsDropped(t *testing.T) {
	ta := testhelpers.StartTestApp(t, nil)

	conn := testhelpers.ConnectWebSocket(t, ta.WebSocketURL(t))
	testhelpers.ReceiveEvent(t, conn, eventTimeout)

	if err := testhelpers.SendChatEvent(conn, "   "); err != nil {
		t.Fatalf("Failed to send chat event: %v", err)
	}

	// Give the server time to process, then confirm nothing was stored.
	time.Sleep(200 * time.Millisecond)
	resp := testhelpers.MakeRequest(t, http.MethodGet, ta.Server.URL+"/api/chat/history", nil)
	hist := testhelpers.DecodeJSONBody(t, resp)
	if msgs, ok := hist["messages"].([]any); !ok || len(msgs) != 0 {
		t.Errorf("Expected empty history, got %v", hist["messages"])
	}
}

// connReader reads events from one connection, skipping unrelated kinds.
type connReader struct {
	t    *testing.T
	conn *websocket.Conn
}

func (cr *connReader) nextOfType(wanted string) map[string]any {
	cr.t.Helper()

	deadline := time.Now().Add(eventTimeout)
	for time.Now().Before(deadline) {
		if err := cr.conn.SetReadDeadline(deadline); err != nil {
			cr.t.Fatalf("Failed to set read deadline: %v", err)
		}
		var event map[string]any
		if err := cr.conn.ReadJSON(&event); err != nil {
			cr.t.Fatalf("Failed to read event: %v", err)
		}
		if event["type"] == wanted {
			return event
		}
	}
	cr.t.Fatalf("No %q event received", wanted)
	return nil
}

func waitForClientCount(t *testing.T, ta *testhelpers.TestApp, want int) {
	t.Helper()

	deadline := time.Now().Add(eventTimeout)
	for time.Now().Before(deadline) {
		if ta.App.Hub().ClientCount() == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Client count never reached %d (now %d)", want, ta.App.Hub().ClientCount())
}
