package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
)

type mockConn struct {
	id     presence.Identity
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (m *mockConn) Identity() presence.Identity { return m.id }

func (m *mockConn) Enqueue(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return fmt.Errorf("queue full")
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockConn) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.frames...)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(metrics.NewCollector(prometheus.NewRegistry()))
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := newTestHub(t)

	a := &mockConn{id: "conn-a"}
	b := &mockConn{id: "conn-b"}

	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Len())

	hub.Unregister(a.id)
	assert.Equal(t, 1, hub.Len())

	// Unregistering twice, or an unknown identity, is harmless.
	hub.Unregister(a.id)
	hub.Unregister("never-registered")
	assert.Equal(t, 1, hub.Len())
}

func TestHub_BroadcastReachesEveryConnection(t *testing.T) {
	hub := newTestHub(t)

	conns := []*mockConn{
		{id: "conn-a"},
		{id: "conn-b"},
		{id: "conn-c"},
	}
	for _, c := range conns {
		hub.Register(c)
	}

	hub.Broadcast(presence.EventUserUpdate, []presence.UserRecord{{ID: "u1", Name: "Alice"}})

	for _, c := range conns {
		frames := c.received()
		require.Len(t, frames, 1)

		var env presence.Envelope
		require.NoError(t, json.Unmarshal(frames[0], &env))
		assert.Equal(t, presence.EventUserUpdate, env.Event)

		var records []presence.UserRecord
		require.NoError(t, json.Unmarshal(env.Data, &records))
		require.Len(t, records, 1)
		assert.Equal(t, "Alice", records[0].Name)
	}
}

func TestHub_BroadcastSkipsFailingConnection(t *testing.T) {
	hub := newTestHub(t)

	healthy := &mockConn{id: "conn-a"}
	stuck := &mockConn{id: "conn-b", fail: true}

	hub.Register(healthy)
	hub.Register(stuck)

	hub.Broadcast(presence.EventUserUpdate, []presence.UserRecord{})

	assert.Len(t, healthy.received(), 1, "a stuck connection must not block delivery to others")
	assert.Empty(t, stuck.received())
}

func TestHub_BroadcastToUnjoinedConnections(t *testing.T) {
	// Connections that never joined still receive snapshots; the frame is the
	// same for every connection.
	hub := newTestHub(t)

	joined := &mockConn{id: "conn-a"}
	lurker := &mockConn{id: "conn-b"}
	hub.Register(joined)
	hub.Register(lurker)

	hub.Broadcast(presence.EventUserUpdate, []presence.UserRecord{{ID: "conn-a", Name: "Alice"}})

	require.Len(t, lurker.received(), 1)
	assert.Equal(t, joined.received()[0], lurker.received()[0])
}
