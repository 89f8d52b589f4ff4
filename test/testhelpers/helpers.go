// Package testhelpers provides common utilities and helper functions for
// testing the LanDrop server.
//
// This package contains reusable test utilities that are shared across unit
// and integration tests: spinning up a fully wired application over
// temporary directories, making HTTP requests, and exchanging WebSocket
// events.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/landrop/landrop/internal/logging"
	"github.com/landrop/landrop/internal/server"
)

// TestApp bundles a running application instance with its HTTP test server.
type TestApp struct {
	App    *server.App
	Server *httptest.Server
}

// StartTestApp configures the server over temporary directories, wires the
// application, starts the hub, and serves the routes from an
// httptest.Server. Everything is torn down via t.Cleanup.
func StartTestApp(t *testing.T, customize func(cfg *server.Config)) *TestApp {
	t.Helper()

	cfg := server.NewConfig()
	cfg.UploadDir = t.TempDir()
	cfg.ChatDir = t.TempDir()
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	app, err := server.NewApp(logger)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	app.StartHub()
	t.Cleanup(func() {
		if err := app.Hub().Shutdown(2 * time.Second); err != nil {
			t.Logf("hub shutdown: %v", err)
		}
	})

	ts := httptest.NewServer(app.SetupRoutes())
	t.Cleanup(ts.Close)

	return &TestApp{App: app, Server: ts}
}

// WebSocketURL converts the test server's base URL into the ws:// endpoint.
func (ta *TestApp) WebSocketURL(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(ta.Server.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
func ConnectWebSocket(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendChatEvent sends a chat_message event with the given text.
func SendChatEvent(conn *websocket.Conn, text string) error {
	return conn.WriteJSON(map[string]string{"type": "chat_message", "message": text})
}

// ReceiveEvent reads the next JSON event from the connection, failing the
// test if nothing arrives before the timeout.
func ReceiveEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	return event
}

// ReceiveEventOfType reads events until one of the wanted type arrives.
func ReceiveEventOfType(t *testing.T, conn *websocket.Conn, wanted string, timeout time.Duration) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		event := ReceiveEvent(t, conn, time.Until(deadline))
		if event["type"] == wanted {
			return event
		}
	}
	t.Fatalf("No %q event received within %s", wanted, timeout)
	return nil
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	return resp
}

// UploadFile posts content as a multipart file upload under the given name.
func UploadFile(t *testing.T, baseURL, name string, content []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to finish multipart body: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/upload", &buf)
	if err != nil {
		t.Fatalf("Failed to create upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to upload file: %v", err)
	}
	return resp
}

// DecodeJSONBody decodes the response body into a generic map and closes it.
func DecodeJSONBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return decoded
}

// ReadBody reads and returns the whole response body.
func ReadBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return data
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertHeader checks a single response header value.
func AssertHeader(t *testing.T, resp *http.Response, key, expected string) {
	t.Helper()
	if got := resp.Header.Get(key); got != expected {
		t.Errorf("Expected header %s=%q, got %q", key, expected, got)
	}
}

// SendJSON posts a JSON payload to the given URL.
func SendJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return MakeRequest(t, http.MethodPost, url, strings.NewReader(string(data)))
}
