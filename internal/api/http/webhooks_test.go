package http

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
)

type captureSocket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *captureSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.frames = append(s.frames, buf)
	return nil
}

func (s *captureSocket) SetWriteDeadline(t time.Time) error { return nil }
func (s *captureSocket) Close() error                       { return nil }

func (s *captureSocket) envelopes(t *testing.T) []*protocol.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	envs := make([]*protocol.Envelope, 0, len(s.frames))
	for _, frame := range s.frames {
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		envs = append(envs, env)
	}
	return envs
}

func TestReceiveWebhookFansOutToAllConnections(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	a := &captureSocket{}
	b := &captureSocket{}
	fx.conns.Register(a, "10.0.0.1", nil)
	fx.conns.Register(b, "10.0.0.2", nil)

	w := fx.do(http.MethodPost, "/webhooks/github", `{"action":"push","repo":"junction"}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "github", body["source"])
	assert.Equal(t, float64(2), body["delivered"])
	assert.True(t, strings.HasPrefix(body["event_id"].(string), "evt_"))

	for _, sock := range []*captureSocket{a, b} {
		envs := sock.envelopes(t)
		require.Len(t, envs, 1)
		assert.Equal(t, protocol.KindBroadcast, envs[0].Kind)
		assert.Equal(t, "webhook/github", envs[0].From)
		assert.Equal(t, body["event_id"], envs[0].ID)
		assert.JSONEq(t, `{"action":"push","repo":"junction"}`, string(envs[0].Payload))
	}
}

func TestReceiveWebhookWithNoConnections(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodPost, "/webhooks/github", `{"x":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["delivered"])
}

func TestReceiveWebhookEmptyBodyBecomesEmptyObject(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	sock := &captureSocket{}
	fx.conns.Register(sock, "10.0.0.1", nil)

	w := fx.do(http.MethodPost, "/webhooks/cron", "")
	require.Equal(t, http.StatusOK, w.Code)

	envs := sock.envelopes(t)
	require.Len(t, envs, 1)
	assert.JSONEq(t, `{}`, string(envs[0].Payload))
}

func TestReceiveWebhookRejectsInvalidJSON(t *testing.T) {
	fx := newAPIFixture(t, "http://localhost:1", nil)

	w := fx.do(http.MethodPost, "/webhooks/github", `not json at all`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
