package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/gateway/internal/domain/catalog"
	"github.com/junctionhq/junction/gateway/internal/domain/conn"
	"github.com/junctionhq/junction/gateway/internal/domain/dispatch"
	"github.com/junctionhq/junction/gateway/internal/domain/schedule"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/service"
	"github.com/junctionhq/junction/gateway/internal/shared/types"
	"github.com/junctionhq/junction/gateway/internal/upstream"
)

type nullSocket struct{}

func (nullSocket) WriteMessage(messageType int, data []byte) error { return nil }
func (nullSocket) SetWriteDeadline(t time.Time) error              { return nil }
func (nullSocket) Close() error                                    { return nil }

type statsProvider struct{}

func (statsProvider) Definition() types.Service {
	return types.Service{
		ID:       "gateway",
		Name:     "Gateway",
		Category: types.CategoryIntrospection,
		Methods:  []types.Method{{ID: "gateway.stats", Name: "Stats", Returns: "object"}},
	}
}

func (statsProvider) Execute(ctx context.Context, methodID string, params map[string]interface{}, call *types.CallContext) (*types.Result, error) {
	return types.Success(map[string]interface{}{"ok": true}), nil
}

type apiFixture struct {
	router   *gin.Engine
	conns    *conn.Registry
	handlers *Handlers
}

func newAPIFixture(t *testing.T, workflowURL string, accepting func() bool) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logging.NewNop()
	metrics := monitoring.NewWith(prometheus.NewRegistry())
	conns := conn.NewRegistry(logger, time.Second)

	services := service.NewRegistry()
	require.NoError(t, services.Register(statsProvider{}))

	client := upstream.NewClient(config.UpstreamConfig{
		WorkflowURL:   workflowURL,
		CapabilityURL: workflowURL,
		CallTimeout:   time.Second,
	}, logger, metrics)

	cat := catalog.Empty()
	workflow := upstream.NewWorkflowHandler(client, cat)
	fanout := dispatch.NewFanout(conns, logger, metrics)

	scheduler, err := schedule.New(cat, workflow, logger, metrics)
	require.NoError(t, err)

	handlers := NewHandlers(conns, services, client, workflow, fanout, cat, scheduler, metrics, logger, accepting)

	router := gin.New()
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/api/services", handlers.ListServices)
	router.POST("/n8n/trigger/:workflow", handlers.TriggerWorkflow)
	router.POST("/webhooks/:source", handlers.ReceiveWebhook)

	return &apiFixture{router: router, conns: conns, handlers: handlers}
}

func (fx *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRoot(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "junction-gateway", body["service"])
}

func TestHealthWhileAccepting(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", func() bool { return true })

	w := fx.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["accepting"])
}

func TestHealthWhileDraining(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", func() bool { return false })

	w := fx.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "draining", body["status"])
	assert.Equal(t, false, body["accepting"])
}

func TestStats(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)
	fx.conns.Register(nullSocket{}, "10.0.0.1", nil)

	w := fx.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Summary.ActiveConnections)
	assert.NotNil(t, stats.Services)
	assert.Contains(t, stats.Workflows, "catalog_entries")
}

func TestListServices(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	services := body["services"].([]interface{})
	require.Len(t, services, 1)
	first := services[0].(map[string]interface{})
	assert.Equal(t, "gateway", first["id"])
}

func TestListServicesFiltersByCategory(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodGet, "/api/services?category=web", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Empty(t, body["services"])

	w = fx.do(http.MethodGet, "/api/services?category=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerWorkflowOverHTTP(t *testing.T) {
	var gotPath string
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true}`))
	}))
	defer engine.Close()

	fx := newAPIFixture(t, engine.URL, nil)

	w := fx.do(http.MethodPost, "/n8n/trigger/deploy", `{"env":"prod"}`)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "/webhook/deploy", gotPath)
	body := decodeBody(t, w)
	assert.Equal(t, "deploy", body["workflow"])
	assert.Equal(t, map[string]interface{}{"ok": true}, body["result"])
}

func TestTriggerWorkflowUpstreamFailure(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodPost, "/n8n/trigger/deploy", `{}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "upstream_error", body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestTriggerWorkflowRejectsInvalidJSON(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodPost, "/n8n/trigger/deploy", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
