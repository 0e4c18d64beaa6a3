// Package testutil provides shared helpers for gateway tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// StubEngine stands in for both the workflow engine and the capability
// host. It records the last body posted to each path and serves canned
// JSON responses so tests can assert exactly what the gateway forwarded.
type StubEngine struct {
	mu     sync.Mutex
	bodies map[string][]byte
	server *httptest.Server
}

// NewStubEngine starts the stub. Callers own Close.
func NewStubEngine() *StubEngine {
	e := &StubEngine{bodies: make(map[string][]byte)}
	e.server = httptest.NewServer(http.HandlerFunc(e.handle))
	return e
}

func (e *StubEngine) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	e.mu.Lock()
	e.bodies[r.URL.Path] = body
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/call" {
		w.Write([]byte(`{"ok":true,"host":"stub"}`))
		return
	}
	w.Write([]byte(`{"status":"queued","run_id":"run-1"}`))
}

// URL returns the stub's base URL.
func (e *StubEngine) URL() string {
	return e.server.URL
}

// Body returns the last body posted to path, or nil if the path was
// never hit.
func (e *StubEngine) Body(path string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bodies[path]
}

// Close shuts the stub down.
func (e *StubEngine) Close() {
	e.server.Close()
}

// Dial connects a socket client to wsURL and consumes the welcome
// frame. The connection is closed when the test finishes.
func Dial(t *testing.T, wsURL string) (*websocket.Conn, map[string]interface{}) {
	t.Helper()

	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial gateway: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	welcome := ReadFrame(t, client)
	if welcome["kind"] != "connected" {
		t.Fatalf("Expected welcome frame, got %v", welcome["kind"])
	}
	return client, welcome
}

// ReadFrame reads one JSON frame with a deadline so a missing reply
// fails the test instead of hanging it.
func ReadFrame(t *testing.T, client *websocket.Conn) map[string]interface{} {
	t.Helper()

	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame map[string]interface{}
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	return frame
}

// DecodeBody decodes a JSON response body into a map.
func DecodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}

	decoded := make(map[string]interface{})
	if err := sonic.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	return decoded
}
