/*
Package presence contains the core logic for the real-time presence registry and the
point-to-point signaling relay.

This file defines the Registry struct, the authoritative in-memory mapping of Identity
to UserRecord. It assigns identities, enforces display-name uniqueness at join time,
and pushes a full snapshot of active records to every connection after each mutation.
*/
package presence

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cucfkpoesie/CrystalMed/internal/pkg/errs"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/randx"
)

// Peer is the registry's view of one transport connection. Send must be
// non-blocking: delivery is best-effort and an undeliverable frame is dropped,
// never awaited.
type Peer interface {
	Identity() Identity
	Send(event string, payload any) error
}

// Notifier is the broadcast capability the registry invokes after every mutation.
// Implementations fan the event out to every open connection, joined or not, and
// must not block the caller.
type Notifier interface {
	Broadcast(event string, payload any)
}

// Registry owns the authoritative Identity to UserRecord mapping.
// All mutations and snapshot reads are funneled through one mutex over the whole
// map, so the join-time uniqueness check always observes a consistent view.
type Registry struct {
	// mu guards records and nextSeq.
	mu sync.RWMutex

	// records holds at most one UserRecord per Identity and per distinct name.
	records map[Identity]*UserRecord

	// nextSeq assigns the join order used for stable snapshot sorting.
	nextSeq uint64

	// notifier receives the full-snapshot broadcast after each mutation.
	notifier Notifier

	stats *metrics.Collector

	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry wired to the given broadcast capability.
func NewRegistry(notifier Notifier, stats *metrics.Collector) *Registry {
	return &Registry{
		records:  make(map[Identity]*UserRecord),
		notifier: notifier,
		stats:    stats,
		logger:   logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// AssignIdentity generates a fresh Identity for a new connection. It has no side
// effect on the registry; the record only comes to exist on a validated join.
func (r *Registry) AssignIdentity() Identity {
	return Identity(randx.Identity())
}

// Join validates the payload's name against every active record (case-sensitive
// exact match) and, if it is free, inserts a new UserRecord for the peer's identity
// and broadcasts the updated snapshot to all connections. On conflict it returns
// ErrNameTaken without mutating anything and without broadcasting; the caller is
// expected to report the conflict to the joining connection only.
func (r *Registry) Join(peer Peer, payload JoinPayload) *errs.CustomError {
	identity := peer.Identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		if rec.Name == payload.Name {
			r.logger.Info().
				Str("identity", string(identity)).
				Str("name", payload.Name).
				Msg("Join rejected, name already in use.")

			r.stats.RecordNameConflict()
			return errs.NewError(errs.ErrNameTaken)
		}
	}

	r.nextSeq++
	r.records[identity] = &UserRecord{
		ID:        identity,
		Role:      payload.Role,
		Name:      payload.Name,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Delivers:  payload.Delivers,
		Price:     payload.Price,
		Avatar:    payload.Avatar,
		peer:      peer,
		seq:       r.nextSeq,
	}

	r.logger.Info().
		Str("identity", string(identity)).
		Str("name", payload.Name).
		Str("role", string(payload.Role)).
		Int("active_users", len(r.records)).
		Msg("User joined.")

	r.stats.RecordJoin()
	r.broadcastLocked()

	return nil
}

// UpdateLocation merges the given coordinates into the identity's record and
// broadcasts the updated snapshot. A stale update for an identity with no record
// (already left, or never joined) is silently dropped.
func (r *Registry) UpdateLocation(identity Identity, location LocationPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[identity]
	if !ok {
		r.logger.Debug().
			Str("identity", string(identity)).
			Msg("Dropping location update for unknown identity.")
		return
	}

	if location.Latitude != nil {
		rec.Latitude = *location.Latitude
	}
	if location.Longitude != nil {
		rec.Longitude = *location.Longitude
	}

	r.broadcastLocked()
}

// Remove deletes the identity's record if present and broadcasts the resulting
// snapshot. It is idempotent: removing an absent identity is not an error. Both
// voluntary logout and transport-level disconnect converge here.
func (r *Registry) Remove(identity Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[identity]; ok {
		delete(r.records, identity)

		r.logger.Info().
			Str("identity", string(identity)).
			Str("name", rec.Name).
			Int("active_users", len(r.records)).
			Msg("User removed.")

		r.stats.RecordRemoval()
	}

	r.broadcastLocked()
}

// Snapshot returns a copy of every active record, ordered by join time so clients
// rendering the list see a stable ordering across broadcasts.
func (r *Registry) Snapshot() []UserRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// snapshotLocked builds the ordered snapshot. Callers must hold mu.
func (r *Registry) snapshotLocked() []UserRecord {
	snap := make([]UserRecord, 0, len(r.records))
	for _, rec := range r.records {
		snap = append(snap, *rec)
	}

	sort.Slice(snap, func(i, j int) bool {
		return snap[i].seq < snap[j].seq
	})

	return snap
}

// broadcastLocked pushes the current snapshot to every connection. Callers must
// hold mu; the notifier only enqueues frames, so holding the lock keeps the
// broadcast content and order consistent with the mutation that caused it.
func (r *Registry) broadcastLocked() {
	r.notifier.Broadcast(EventUserUpdate, r.snapshotLocked())
	r.stats.RecordBroadcast()
}

// LookupPeer resolves an identity to its transport connection, for targeted
// delivery by the relay.
func (r *Registry) LookupPeer(identity Identity) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[identity]
	if !ok {
		return nil, false
	}
	return rec.peer, true
}
