package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
)

type gatewayFixture struct {
	server   *httptest.Server
	registry *conn.Registry
	url      string
}

func newGatewayFixture(t *testing.T, cfg config.GatewayConfig, accepting func() bool) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	metrics := monitoring.NewWith(prometheus.NewRegistry())
	registry := conn.NewRegistry(logger, time.Second)

	dispatcher, err := dispatch.New(registry, logger, metrics, nil, []dispatch.Registration{
		{Handler: &dispatch.PingHandler{}, Mode: dispatch.Sync},
	})
	require.NoError(t, err)

	handler := NewHandler(registry, dispatcher, cfg, logger, metrics, accepting)

	router := gin.New()
	router.GET("/stream", handler.HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &gatewayFixture{
		server:   server,
		registry: registry,
		url:      "ws" + strings.TrimPrefix(server.URL, "http") + "/stream",
	}
}

func defaultGatewayConfig() config.GatewayConfig {
	return config.Default().Gateway
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func readEnvelope(t *testing.T, client *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, client.ReadJSON(&msg))
	return msg
}

func TestConnectReceivesWelcome(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), nil)
	client := dial(t, fx.url)

	welcome := readEnvelope(t, client)
	assert.Equal(t, "connected", welcome["kind"])
	assert.NotEmpty(t, welcome["message"])
	assert.NotZero(t, welcome["timestamp"])
}

func TestPingPong(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), nil)
	client := dial(t, fx.url)
	readEnvelope(t, client) // welcome

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"kind":"ping","id":"req_1"}`)))

	pong := readEnvelope(t, client)
	assert.Equal(t, "pong", pong["kind"])
	assert.Equal(t, "req_1", pong["id"])
	assert.NotZero(t, pong["timestamp"])
}

func TestMalformedMessageGetsProtocolError(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), nil)
	client := dial(t, fx.url)
	readEnvelope(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`this is not json`)))

	reply := readEnvelope(t, client)
	assert.Equal(t, "error", reply["kind"])
	assert.Equal(t, "malformed_message", reply["code"])

	// The connection survives a malformed frame.
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"kind":"ping"}`)))
	assert.Equal(t, "pong", readEnvelope(t, client)["kind"])
}

func TestUnknownKindGetsProtocolError(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), nil)
	client := dial(t, fx.url)
	readEnvelope(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"kind":"mystery","id":"req_2"}`)))

	reply := readEnvelope(t, client)
	assert.Equal(t, "error", reply["kind"])
	assert.Equal(t, "unknown_kind", reply["code"])
	assert.Equal(t, "req_2", reply["id"])
}

func TestUpgradeRejectedWhileDraining(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), func() bool { return false })

	_, resp, err := websocket.DefaultDialer.Dial(fx.url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOversizedMessageClosesConnection(t *testing.T) {
	cfg := defaultGatewayConfig()
	cfg.MaxMessageBytes = 64

	fx := newGatewayFixture(t, cfg, nil)
	client := dial(t, fx.url)
	readEnvelope(t, client)

	big := `{"kind":"ping","payload":"` + strings.Repeat("x", 256) + `"}`
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(big)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "expected close 1009, got %v", err)

	require.Eventually(t, func() bool {
		return fx.registry.Count() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestMessageRateLimit(t *testing.T) {
	cfg := defaultGatewayConfig()
	cfg.MessagesPerSecond = 1
	cfg.MessageBurst = 1

	fx := newGatewayFixture(t, cfg, nil)
	client := dial(t, fx.url)
	readEnvelope(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"kind":"ping"}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"kind":"ping"}`)))

	first := readEnvelope(t, client)
	assert.Equal(t, "pong", first["kind"])

	second := readEnvelope(t, client)
	assert.Equal(t, "error", second["kind"])
	assert.Equal(t, "rate_limited", second["code"])
}

func TestDisconnectUnregisters(t *testing.T) {
	fx := newGatewayFixture(t, defaultGatewayConfig(), nil)
	client := dial(t, fx.url)
	readEnvelope(t, client)

	require.Eventually(t, func() bool {
		return fx.registry.Count() == 1
	}, 3*time.Second, 10*time.Millisecond)

	client.Close()

	require.Eventually(t, func() bool {
		return fx.registry.Count() == 0
	}, 3*time.Second, 10*time.Millisecond)
}
