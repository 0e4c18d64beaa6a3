package conn

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeSocket struct {
	mu        sync.Mutex
	frames    [][]byte
	failWrite bool
	closed    bool
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrite {
		return errors.New("broken pipe")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.frames = append(s.frames, buf)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(t time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *fakeSocket) lastFrame() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNop(), time.Second)
}

func TestRegisterAssignsUniqueIdentity(t *testing.T) {
	reg := newTestRegistry()

	a := reg.Register(&fakeSocket{}, "10.0.0.1:1111", nil)
	b := reg.Register(&fakeSocket{}, "10.0.0.2:2222", nil)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "10.0.0.1:1111", a.Remote())
	assert.Equal(t, 2, reg.Count())
	assert.False(t, a.Created().IsZero())
}

func TestSendDeliversEncodedEnvelope(t *testing.T) {
	reg := newTestRegistry()
	sock := &fakeSocket{}
	c := reg.Register(sock, "10.0.0.1:1111", nil)

	err := reg.Send(c.ID(), protocol.NewPong())
	require.NoError(t, err)

	env, err := protocol.Decode(sock.lastFrame())
	require.NoError(t, err)
	assert.Equal(t, protocol.KindPong, env.Kind)
}

func TestSendToMissingConnection(t *testing.T) {
	reg := newTestRegistry()

	err := reg.Send(id.NewConnID(), protocol.NewPong())

	var sendFailed *protocol.SendFailedError
	require.ErrorAs(t, err, &sendFailed)
}

func TestSendAfterCloseFails(t *testing.T) {
	reg := newTestRegistry()
	c := reg.Register(&fakeSocket{}, "10.0.0.1:1111", nil)

	require.NoError(t, c.Close())

	err := c.Send(protocol.NewPong())
	var sendFailed *protocol.SendFailedError
	require.ErrorAs(t, err, &sendFailed)
	assert.Equal(t, c.ID(), sendFailed.ConnID)
}

func TestSendTransportFailure(t *testing.T) {
	reg := newTestRegistry()
	sock := &fakeSocket{failWrite: true}
	c := reg.Register(sock, "10.0.0.1:1111", nil)

	err := reg.Send(c.ID(), protocol.NewPong())

	var sendFailed *protocol.SendFailedError
	require.ErrorAs(t, err, &sendFailed)
	assert.ErrorContains(t, sendFailed.Cause, "broken pipe")
}

func TestUnregisterClosesSocket(t *testing.T) {
	reg := newTestRegistry()
	sock := &fakeSocket{}
	c := reg.Register(sock, "10.0.0.1:1111", nil)

	reg.Unregister(c.ID())

	assert.True(t, sock.isClosed())
	assert.Equal(t, 0, reg.Count())

	// Racing close paths make double unregister a harmless no-op.
	reg.Unregister(c.ID())
	assert.Equal(t, 0, reg.Count())
}

func TestSnapshotExceptExcludesSender(t *testing.T) {
	reg := newTestRegistry()
	a := reg.Register(&fakeSocket{}, "a:1", nil)
	b := reg.Register(&fakeSocket{}, "b:2", nil)
	c := reg.Register(&fakeSocket{}, "c:3", nil)

	peers := reg.SnapshotExcept(a.ID())
	require.Len(t, peers, 2)

	ids := []id.ConnID{peers[0].ID(), peers[1].ID()}
	assert.ElementsMatch(t, []id.ConnID{b.ID(), c.ID()}, ids)
}

func TestSnapshotSurvivesConcurrentUnregister(t *testing.T) {
	reg := newTestRegistry()
	a := reg.Register(&fakeSocket{}, "a:1", nil)
	b := reg.Register(&fakeSocket{}, "b:2", nil)
	reg.Register(&fakeSocket{}, "c:3", nil)

	peers := reg.SnapshotExcept(a.ID())
	require.Len(t, peers, 2)

	// b goes away after the snapshot was taken. Delivery to b fails,
	// delivery to c still succeeds.
	reg.Unregister(b.ID())

	var delivered, failed int
	for _, peer := range peers {
		if err := peer.Send(protocol.NewPong()); err != nil {
			failed++
		} else {
			delivered++
		}
	}

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, failed)
}

func TestCloseAll(t *testing.T) {
	reg := newTestRegistry()
	socks := []*fakeSocket{{}, {}, {}}
	for _, s := range socks {
		reg.Register(s, "x:1", nil)
	}

	n := reg.CloseAll()

	assert.Equal(t, 3, n)
	assert.Equal(t, 0, reg.Count())
	for _, s := range socks {
		assert.True(t, s.isClosed())
	}
}

func TestAllowRateLimit(t *testing.T) {
	reg := newTestRegistry()
	limiter := rate.NewLimiter(rate.Limit(1), 2)
	c := reg.Register(&fakeSocket{}, "a:1", limiter)

	assert.True(t, c.Allow())
	assert.True(t, c.Allow())
	assert.False(t, c.Allow(), "burst exhausted")

	unlimited := reg.Register(&fakeSocket{}, "b:2", nil)
	for i := 0; i < 100; i++ {
		assert.True(t, unlimited.Allow())
	}
}

func TestConcurrentRegistrationAndFanout(t *testing.T) {
	reg := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := reg.Register(&fakeSocket{}, "x:1", nil)
			for _, peer := range reg.SnapshotExcept(c.ID()) {
				_ = peer.Send(protocol.NewPong())
			}
			reg.Unregister(c.ID())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Count())
}
