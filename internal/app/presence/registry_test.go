package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cucfkpoesie/CrystalMed/internal/pkg/errs"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/randx"
)

// broadcastCall records one Notifier.Broadcast invocation.
type broadcastCall struct {
	event    string
	snapshot []UserRecord
}

// stubNotifier captures broadcasts instead of fanning them out.
type stubNotifier struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (n *stubNotifier) Broadcast(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()

	call := broadcastCall{event: event}
	if snap, ok := payload.([]UserRecord); ok {
		call.snapshot = append([]UserRecord(nil), snap...)
	}
	n.calls = append(n.calls, call)
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *stubNotifier) last() broadcastCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[len(n.calls)-1]
}

// sentEvent records one Peer.Send invocation.
type sentEvent struct {
	event   string
	payload any
}

// stubPeer is a transport connection that records targeted deliveries.
type stubPeer struct {
	id      Identity
	mu      sync.Mutex
	events  []sentEvent
	sendErr error
}

func (p *stubPeer) Identity() Identity { return p.id }

func (p *stubPeer) Send(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sendErr != nil {
		return p.sendErr
	}
	p.events = append(p.events, sentEvent{event: event, payload: payload})
	return nil
}

func (p *stubPeer) received() []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentEvent(nil), p.events...)
}

func newTestRegistry(t *testing.T) (*Registry, *stubNotifier) {
	t.Helper()

	notifier := &stubNotifier{}
	stats := metrics.NewCollector(prometheus.NewRegistry())
	return NewRegistry(notifier, stats), notifier
}

func joinPayload(name string, role Role) JoinPayload {
	return JoinPayload{
		Role:      role,
		Name:      name,
		Latitude:  1,
		Longitude: 2,
	}
}

func mustJoin(t *testing.T, r *Registry, name string) *stubPeer {
	t.Helper()

	peer := &stubPeer{id: r.AssignIdentity()}
	require.Nil(t, r.Join(peer, joinPayload(name, RoleBuyer)))
	return peer
}

func TestRegistry_AssignIdentity(t *testing.T) {
	r, _ := newTestRegistry(t)

	seen := make(map[Identity]struct{})
	for i := 0; i < 100; i++ {
		id := r.AssignIdentity()
		assert.True(t, randx.IsValidIdentity(string(id)))

		_, dup := seen[id]
		assert.False(t, dup, "identity reused")
		seen[id] = struct{}{}
	}

	// Assigning identities never creates records.
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_JoinInsertsAndBroadcasts(t *testing.T) {
	r, notifier := newTestRegistry(t)

	delivers := true
	price := 5.0
	peer := &stubPeer{id: r.AssignIdentity()}

	err := r.Join(peer, JoinPayload{
		Role:      RoleSeller,
		Name:      "Alice",
		Latitude:  1,
		Longitude: 1,
		Delivers:  &delivers,
		Price:     &price,
		Avatar:    "https://example.com/a.png",
	})
	require.Nil(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, peer.id, snap[0].ID)
	assert.Equal(t, RoleSeller, snap[0].Role)
	assert.Equal(t, "Alice", snap[0].Name)
	assert.Equal(t, 1.0, snap[0].Latitude)
	require.NotNil(t, snap[0].Price)
	assert.Equal(t, 5.0, *snap[0].Price)

	require.Equal(t, 1, notifier.count())
	call := notifier.last()
	assert.Equal(t, EventUserUpdate, call.event)
	require.Len(t, call.snapshot, 1)
	assert.Equal(t, "Alice", call.snapshot[0].Name)
}

func TestRegistry_JoinRejectsTakenName(t *testing.T) {
	r, notifier := newTestRegistry(t)

	mustJoin(t, r, "Alice")
	require.Equal(t, 1, notifier.count())

	intruder := &stubPeer{id: r.AssignIdentity()}
	err := r.Join(intruder, joinPayload("Alice", RoleSeller))
	require.NotNil(t, err)
	assert.Equal(t, errs.ErrNameTaken, err.Code)

	// A rejected join mutates nothing and broadcasts nothing.
	assert.Len(t, r.Snapshot(), 1)
	assert.Equal(t, 1, notifier.count())

	// The same peer can retry with a free name.
	require.Nil(t, r.Join(intruder, joinPayload("Bob", RoleSeller)))
	assert.Len(t, r.Snapshot(), 2)
}

func TestRegistry_NameCheckIsCaseSensitive(t *testing.T) {
	r, _ := newTestRegistry(t)

	mustJoin(t, r, "Alice")
	mustJoin(t, r, "alice")

	assert.Len(t, r.Snapshot(), 2)
}

func TestRegistry_SizeTracksJoinsMinusRemovals(t *testing.T) {
	r, _ := newTestRegistry(t)

	peers := make([]*stubPeer, 0, 10)
	for i := 0; i < 10; i++ {
		peers = append(peers, mustJoin(t, r, fmt.Sprintf("user-%d", i)))
	}
	assert.Len(t, r.Snapshot(), 10)

	for _, p := range peers[:4] {
		r.Remove(p.id)
	}
	assert.Len(t, r.Snapshot(), 6)

	// No two co-resident records share a name.
	names := make(map[string]struct{})
	for _, rec := range r.Snapshot() {
		_, dup := names[rec.Name]
		assert.False(t, dup)
		names[rec.Name] = struct{}{}
	}
}

func TestRegistry_UpdateLocationMergesPartially(t *testing.T) {
	r, notifier := newTestRegistry(t)

	peer := mustJoin(t, r, "Alice")
	before := notifier.count()

	lat := 42.5
	r.UpdateLocation(peer.id, LocationPayload{Latitude: &lat})

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 42.5, snap[0].Latitude)
	assert.Equal(t, 2.0, snap[0].Longitude, "unset coordinate must survive a partial update")
	assert.Equal(t, "Alice", snap[0].Name, "other fields must be untouched")

	require.Equal(t, before+1, notifier.count())
	assert.Equal(t, 42.5, notifier.last().snapshot[0].Latitude)
}

func TestRegistry_UpdateLocationUnknownIdentityIsNoop(t *testing.T) {
	r, notifier := newTestRegistry(t)

	mustJoin(t, r, "Alice")
	before := notifier.count()

	lat := 9.0
	r.UpdateLocation(Identity(randx.Identity()), LocationPayload{Latitude: &lat})

	assert.Len(t, r.Snapshot(), 1)
	assert.Equal(t, before, notifier.count(), "a stale update must not broadcast")
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r, notifier := newTestRegistry(t)

	peer := mustJoin(t, r, "Alice")

	r.Remove(peer.id)
	assert.Empty(t, r.Snapshot())
	firstContent := notifier.last().snapshot

	r.Remove(peer.id)
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, firstContent, notifier.last().snapshot, "repeat removal must not change the observed state")

	// Removing an identity that never joined does not panic or error.
	r.Remove(Identity(randx.Identity()))
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_EveryMutationBroadcastsCurrentSet(t *testing.T) {
	r, notifier := newTestRegistry(t)

	alice := mustJoin(t, r, "Alice")
	require.Equal(t, 1, notifier.count())
	assert.Len(t, notifier.last().snapshot, 1)

	mustJoin(t, r, "Bob")
	require.Equal(t, 2, notifier.count())
	assert.Len(t, notifier.last().snapshot, 2)

	lng := -3.0
	r.UpdateLocation(alice.id, LocationPayload{Longitude: &lng})
	require.Equal(t, 3, notifier.count())
	assert.Len(t, notifier.last().snapshot, 2)

	r.Remove(alice.id)
	require.Equal(t, 4, notifier.count())
	require.Len(t, notifier.last().snapshot, 1)
	assert.Equal(t, "Bob", notifier.last().snapshot[0].Name)
}

func TestRegistry_SnapshotOrderedByJoinTime(t *testing.T) {
	r, _ := newTestRegistry(t)

	mustJoin(t, r, "Carol")
	alice := mustJoin(t, r, "Alice")
	mustJoin(t, r, "Bob")

	names := func() []string {
		snap := r.Snapshot()
		out := make([]string, 0, len(snap))
		for _, rec := range snap {
			out = append(out, rec.Name)
		}
		return out
	}

	assert.Equal(t, []string{"Carol", "Alice", "Bob"}, names())

	r.Remove(alice.id)
	mustJoin(t, r, "Dave")
	assert.Equal(t, []string{"Carol", "Bob", "Dave"}, names())
}

func TestRegistry_LookupPeer(t *testing.T) {
	r, _ := newTestRegistry(t)

	peer := mustJoin(t, r, "Alice")

	got, ok := r.LookupPeer(peer.id)
	require.True(t, ok)
	assert.Equal(t, peer.id, got.Identity())

	r.Remove(peer.id)
	_, ok = r.LookupPeer(peer.id)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentJoinsKeepNamesUnique(t *testing.T) {
	r, _ := newTestRegistry(t)

	const contenders = 32

	var wg sync.WaitGroup
	var successes, conflicts int64
	var mu sync.Mutex

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			peer := &stubPeer{id: r.AssignIdentity()}
			err := r.Join(peer, joinPayload("Highlander", RoleBuyer))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes, "exactly one contender may hold the name")
	assert.Equal(t, int64(contenders-1), conflicts)
	assert.Len(t, r.Snapshot(), 1)
}
