package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Verse-Network/mutation_layer/ledger"
	"github.com/Verse-Network/mutation_layer/ops"
	"github.com/Verse-Network/mutation_layer/pkg/logger"
)

// PatchFunc derives a new cached value for one key from the old value and the
// mutation payload, without a refetch. old is nil when the key is absent;
// returning ok=false falls back to invalidation for that key.
type PatchFunc func(key string, old []byte, payload ops.Payload) (patched []byte, ok bool, err error)

// CoherenceError reports a cache update that failed after the ledger state
// already changed. The mutation is still a success; the error exists so
// monitoring can detect cache drift.
type CoherenceError struct {
	Key string
	Err error
}

func (e *CoherenceError) Error() string {
	return fmt.Sprintf("cache coherence failed for %s: %v", e.Key, e.Err)
}

func (e *CoherenceError) Unwrap() error { return e.Err }

// snapshot captures a key's state immediately before one mutation's
// optimistic patch, plus the write sequence assigned to that patch.
type snapshot struct {
	value   []byte
	existed bool
	stale   bool
	seq     uint64
}

// Reservation holds the per-key snapshots of one optimistic pre-patch. It is
// settled exactly once, through Adapter.OnSettled.
type Reservation struct {
	payload   ops.Payload
	snapshots map[string]snapshot
	order     []string
}

// Adapter applies cache invalidations and optimistic patches after mutations
// settle. Writes to a given key are serialized through a per-key lock;
// last-writer-wins is decided by a per-key write sequence so a rollback never
// clobbers a later unrelated write.
type Adapter struct {
	store Store
	log   *logger.Logger
	ttl   time.Duration

	mu        sync.Mutex
	keyLocks  map[string]*sync.Mutex
	lastWrite map[string]uint64
	seq       uint64

	patchMu sync.RWMutex
	patches map[ops.Kind]PatchFunc
}

// AdapterConfig holds coherence adapter configuration.
type AdapterConfig struct {
	Store      Store
	Logger     *logger.Logger
	DefaultTTL time.Duration
}

// NewAdapter creates a coherence adapter with the default patch set.
func NewAdapter(cfg AdapterConfig) *Adapter {
	log := cfg.Logger
	if log == nil {
		log = logger.Default("cache-coherence")
	}
	a := &Adapter{
		store:     cfg.Store,
		log:       log,
		ttl:       cfg.DefaultTTL,
		keyLocks:  make(map[string]*sync.Mutex),
		lastWrite: make(map[string]uint64),
		patches:   make(map[ops.Kind]PatchFunc),
	}
	registerDefaultPatches(a)
	return a
}

// RegisterPatch installs the optimistic patch for a mutation kind, replacing
// any previous one.
func (a *Adapter) RegisterPatch(kind ops.Kind, fn PatchFunc) {
	a.patchMu.Lock()
	defer a.patchMu.Unlock()
	a.patches[kind] = fn
}

func (a *Adapter) patchFor(kind ops.Kind) (PatchFunc, bool) {
	a.patchMu.RLock()
	defer a.patchMu.RUnlock()
	fn, ok := a.patches[kind]
	return fn, ok
}

// keyLock returns the mutex serializing writers for one key.
func (a *Adapter) keyLock(key string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		a.keyLocks[key] = l
	}
	return l
}

// nextSeq assigns a write sequence and records it for the key. Callers must
// hold the key lock.
func (a *Adapter) nextSeq(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.lastWrite[key] = a.seq
	return a.seq
}

// lastSeq returns the sequence of the key's most recent write.
func (a *Adapter) lastSeq(key string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastWrite[key]
}

// ApplyOptimistic patches the payload's cache keys before broadcast,
// capturing per-key snapshots for the compensating rollback. Keys without a
// registered patch are left untouched; they are invalidated at settlement
// instead.
func (a *Adapter) ApplyOptimistic(ctx context.Context, payload ops.Payload) (*Reservation, error) {
	fn, ok := a.patchFor(payload.Kind())
	if !ok {
		return nil, nil
	}

	res := &Reservation{
		payload:   payload,
		snapshots: make(map[string]snapshot),
	}

	for _, key := range ops.InvalidationSet(payload) {
		if err := a.optimisticKey(ctx, key, payload, fn, res); err != nil {
			// Undo the keys already patched so a failed pre-patch never
			// leaves a half-applied reservation.
			a.rollback(ctx, res)
			return nil, err
		}
	}

	if len(res.order) == 0 {
		return nil, nil
	}
	return res, nil
}

func (a *Adapter) optimisticKey(ctx context.Context, key string, payload ops.Payload, fn PatchFunc, res *Reservation) error {
	lock := a.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	entry, err := a.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	var old []byte
	if entry != nil {
		old = entry.Value
	}

	patched, ok, err := fn(key, old, payload)
	if err != nil {
		return fmt.Errorf("patch %s: %w", key, err)
	}
	if !ok {
		return nil
	}

	if err := a.store.Set(ctx, key, patched, a.ttl); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	snap := snapshot{existed: entry != nil, seq: a.nextSeq(key)}
	if entry != nil {
		snap.value = entry.Value
		snap.stale = entry.Stale
	}
	res.snapshots[key] = snap
	res.order = append(res.order, key)
	return nil
}

// OnSettled applies the fixed coherence rule for a settled mutation. On
// success each key in the invalidation set is patched (when a patch exists)
// or marked stale, except keys the optimistic reservation pre-patched, which
// keep their value; on failure the reservation is rolled back. The
// returned error is always a *CoherenceError and never negates the broadcast
// outcome.
func (a *Adapter) OnSettled(ctx context.Context, payload ops.Payload, outcome ledger.BroadcastOutcome, res *Reservation) error {
	if !outcome.Succeeded() {
		if res != nil {
			a.rollback(ctx, res)
		}
		return nil
	}

	fn, hasPatch := a.patchFor(payload.Kind())

	var firstErr error
	for _, key := range ops.InvalidationSet(payload) {
		if res != nil {
			if _, patched := res.snapshots[key]; patched {
				// The optimistic pre-patch already holds this mutation's
				// change; running the patch again would apply it twice.
				continue
			}
		}
		if err := a.settleKey(ctx, key, payload, fn, hasPatch); err != nil {
			ledger.CoherenceFailures.Inc()
			a.log.WithContext(ctx).WithError(err).WithFields(logger.Fields{
				"key":  key,
				"kind": string(payload.Kind()),
			}).Error("cache coherence failure")
			if firstErr == nil {
				firstErr = &CoherenceError{Key: key, Err: err}
			}
		}
	}
	return firstErr
}

// settleKey applies the settlement write for one key under its lock.
// Settlement order decides visibility: the write sequence taken here makes
// the last settled mutation the winner for the key.
func (a *Adapter) settleKey(ctx context.Context, key string, payload ops.Payload, fn PatchFunc, hasPatch bool) error {
	lock := a.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if hasPatch {
		entry, err := a.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		var old []byte
		if entry != nil {
			old = entry.Value
		}
		patched, ok, err := fn(key, old, payload)
		if err != nil {
			return fmt.Errorf("patch %s: %w", key, err)
		}
		if ok {
			if err := a.store.Set(ctx, key, patched, a.ttl); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
			a.nextSeq(key)
			return nil
		}
	}

	if err := a.store.Invalidate(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	a.nextSeq(key)
	return nil
}

// rollback restores each reserved key to its pre-patch snapshot, unless a
// later mutation has written the key since — then the later write stands.
func (a *Adapter) rollback(ctx context.Context, res *Reservation) {
	for _, key := range res.order {
		snap := res.snapshots[key]

		lock := a.keyLock(key)
		lock.Lock()

		if a.lastSeq(key) != snap.seq {
			// Someone settled after our patch; their value wins.
			lock.Unlock()
			continue
		}

		var err error
		if snap.existed {
			err = a.store.Set(ctx, key, snap.value, a.ttl)
			if err == nil && snap.stale {
				err = a.store.Invalidate(ctx, key)
			}
		} else {
			err = a.store.Delete(ctx, key)
		}
		if err == nil {
			a.nextSeq(key)
		}
		lock.Unlock()

		if err != nil {
			ledger.CoherenceFailures.Inc()
			a.log.WithContext(ctx).WithError(err).WithFields(logger.Fields{
				"key": key,
			}).Error("optimistic rollback failed")
		}
	}
}
