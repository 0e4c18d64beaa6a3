//go:build integration
// +build integration

package integration

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/server"
	"github.com/junctionhq/junction/gateway/tests/helpers/testutil"
)

// TestGatewayEndToEnd tests the complete flow:
// Browser client -> Gateway -> Workflow Engine / Capability Host
// plus webhook fanout back to connected clients.
//
// The gateway registers its metrics exactly once per process, so every
// scenario runs as a subtest against one shared server.
func TestGatewayEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	engine := testutil.NewStubEngine()
	defer engine.Close()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Upstream.WorkflowURL = engine.URL()
	cfg.Upstream.CapabilityURL = engine.URL()
	cfg.Upstream.CallTimeout = 3 * time.Second
	cfg.Gateway.DrainTimeout = 2 * time.Second
	cfg.RateLimit.Enabled = false
	cfg.Logging.Level = "error"

	srv, err := server.NewServer(cfg)
	require.NoError(t, err, "Failed to create gateway")
	require.NoError(t, srv.Start(), "Failed to start gateway")
	defer srv.Stop()

	baseURL := "http://" + srv.Addr()
	wsURL := "ws://" + srv.Addr() + "/stream"

	t.Run("Welcome On Connect", func(t *testing.T) {
		_, welcome := testutil.Dial(t, wsURL)
		assert.NotEmpty(t, welcome["message"], "Welcome should carry a message")
		assert.NotNil(t, welcome["timestamp"], "Welcome should carry a timestamp")
	})

	t.Run("Ping Pong", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind": "ping",
			"id":   "ping-1",
		}))

		pong := testutil.ReadFrame(t, client)
		assert.Equal(t, "pong", pong["kind"])
		assert.Equal(t, "ping-1", pong["id"], "Pong should echo the request id")
	})

	t.Run("Workflow Trigger", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind":     "workflow_trigger",
			"id":       "wf-1",
			"workflow": "deploy",
			"payload":  map[string]interface{}{"env": "prod"},
		}))

		reply := testutil.ReadFrame(t, client)
		require.Equal(t, "workflow_trigger_result", reply["kind"])
		assert.Equal(t, "wf-1", reply["id"])

		result, ok := reply["result"].(map[string]interface{})
		require.True(t, ok, "Result should be the engine response object")
		assert.Equal(t, "queued", result["status"])

		forwarded := engine.Body("/webhook/deploy")
		require.NotNil(t, forwarded, "Engine should receive the trigger")
		assert.JSONEq(t, `{"env":"prod"}`, string(forwarded))
	})

	t.Run("Capability Call Local", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind":    "capability_call",
			"id":      "cap-1",
			"service": "gateway",
			"method":  "stats",
		}))

		reply := testutil.ReadFrame(t, client)
		require.Equal(t, "capability_call_result", reply["kind"])
		assert.Equal(t, "cap-1", reply["id"])

		result, ok := reply["result"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, result["processed"])

		data, ok := result["data"].(map[string]interface{})
		require.True(t, ok, "Local provider data should be an object")
		assert.Contains(t, data, "active_connections")
	})

	t.Run("Capability Call Remote", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind":    "capability_call",
			"id":      "cap-2",
			"service": "vector",
			"method":  "search",
			"params":  map[string]interface{}{"query": "junction"},
		}))

		reply := testutil.ReadFrame(t, client)
		require.Equal(t, "capability_call_result", reply["kind"])

		result, ok := reply["result"].(map[string]interface{})
		require.True(t, ok)
		data, ok := result["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "stub", data["host"], "Unknown services should reach the capability host")

		forwarded := engine.Body("/call")
		require.NotNil(t, forwarded)
		assert.JSONEq(t, `{"service":"vector","method":"search","params":{"query":"junction"}}`, string(forwarded))
	})

	t.Run("Broadcast Fanout", func(t *testing.T) {
		sender, _ := testutil.Dial(t, wsURL)
		peerA, _ := testutil.Dial(t, wsURL)
		peerB, _ := testutil.Dial(t, wsURL)

		require.NoError(t, sender.WriteJSON(map[string]interface{}{
			"kind":    "broadcast",
			"id":      "b-1",
			"from":    "alice",
			"payload": map[string]interface{}{"note": "hi"},
		}))

		for _, peer := range []*websocket.Conn{peerA, peerB} {
			got := testutil.ReadFrame(t, peer)
			assert.Equal(t, "broadcast", got["kind"])
			assert.Equal(t, "alice", got["from"])
			payload, ok := got["payload"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "hi", payload["note"])
		}

		// The sender must not hear its own broadcast.
		sender.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		var echo map[string]interface{}
		err := sender.ReadJSON(&echo)
		assert.Error(t, err, "Sender should not receive its own broadcast")
	})

	t.Run("Webhook Relay", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		resp, err := http.Post(baseURL+"/webhooks/github", "application/json",
			strings.NewReader(`{"action":"push"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		ack := testutil.DecodeBody(t, resp.Body)
		assert.Equal(t, "github", ack["source"])
		assert.NotEmpty(t, ack["event_id"])
		assert.GreaterOrEqual(t, ack["delivered"], float64(1))

		event := testutil.ReadFrame(t, client)
		assert.Equal(t, "broadcast", event["kind"])
		assert.Equal(t, "webhook/github", event["from"])
		assert.Equal(t, ack["event_id"], event["id"], "Event id should match the webhook ack")
		payload, ok := event["payload"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "push", payload["action"])
	})

	t.Run("HTTP Trigger", func(t *testing.T) {
		resp, err := http.Post(baseURL+"/n8n/trigger/release", "application/json",
			strings.NewReader(`{"version":2}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		ack := testutil.DecodeBody(t, resp.Body)
		assert.Equal(t, "release", ack["workflow"])

		result, ok := ack["result"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "queued", result["status"])

		forwarded := engine.Body("/webhook/release")
		require.NotNil(t, forwarded)
		assert.JSONEq(t, `{"version":2}`, string(forwarded))
	})

	t.Run("Protocol Errors", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("{not json")))
		errFrame := testutil.ReadFrame(t, client)
		assert.Equal(t, "error", errFrame["kind"])
		assert.Equal(t, "malformed_message", errFrame["code"])

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind": "mystery",
			"id":   "m-1",
		}))
		errFrame = testutil.ReadFrame(t, client)
		assert.Equal(t, "error", errFrame["kind"])
		assert.Equal(t, "unknown_kind", errFrame["code"])

		require.NoError(t, client.WriteJSON(map[string]interface{}{
			"kind":    "capability_call",
			"id":      "cap-3",
			"service": "gateway",
			"method":  "does_not_exist",
		}))
		errFrame = testutil.ReadFrame(t, client)
		assert.Equal(t, "capability_call_error", errFrame["kind"])
		assert.NotEmpty(t, errFrame["error"], "Error reply should carry the failure message")
		assert.Equal(t, "cap-3", errFrame["id"], "Error reply should echo the request id")
	})

	t.Run("Health And Stats", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		health := testutil.DecodeBody(t, resp.Body)
		assert.Equal(t, "healthy", health["status"])
		assert.Equal(t, true, health["accepting"])

		resp, err = http.Get(baseURL + "/stats")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		stats := testutil.DecodeBody(t, resp.Body)
		summary, ok := stats["summary"].(map[string]interface{})
		require.True(t, ok)
		assert.Greater(t, summary["total_requests"], float64(0), "Earlier subtests should have counted")
	})

	t.Run("Concurrent Clients", func(t *testing.T) {
		const clients = 8

		results := make(chan error, clients)
		for i := 0; i < clients; i++ {
			go func() {
				results <- pingOnce(wsURL)
			}()
		}

		succeeded := 0
		for i := 0; i < clients; i++ {
			if err := <-results; err == nil {
				succeeded++
			} else {
				t.Logf("Client failed: %v", err)
			}
		}

		assert.Equal(t, clients, succeeded, "All concurrent clients should complete a ping round trip")
		t.Logf("Concurrent clients: %d/%d completed ping round trips", succeeded, clients)
	})

	t.Run("Graceful Drain", func(t *testing.T) {
		client, _ := testutil.Dial(t, wsURL)

		require.NoError(t, srv.Stop())

		notice := testutil.ReadFrame(t, client)
		assert.Equal(t, "shutdown", notice["kind"])
		assert.NotEmpty(t, notice["message"], "Shutdown notice should explain the drain")

		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		var after map[string]interface{}
		err := client.ReadJSON(&after)
		assert.Error(t, err, "Connection should be closed after drain")
	})
}

// pingOnce runs a full connect, welcome, ping, pong exchange. Errors
// are returned rather than asserted so callers can run it from
// goroutines.
func pingOnce(wsURL string) error {
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer client.Close()
	client.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome map[string]interface{}
	if err := client.ReadJSON(&welcome); err != nil {
		return err
	}

	if err := client.WriteJSON(map[string]interface{}{"kind": "ping", "id": "ping-c"}); err != nil {
		return err
	}

	var pong map[string]interface{}
	return client.ReadJSON(&pong)
}
