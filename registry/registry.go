// Package registry tracks live script-side objects behind opaque handles.
//
// A Store exclusively owns each registered object; hosts hold only the
// handle. Ids are allocated monotonically and never reused for the life of
// the Store. The Store has its own locking and is safe for concurrent use
// independently of any script executor.
package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("scriptbridge.registry")

// entry is one registered object.
type entry struct {
	id       uint64
	obj      any
	typeName string
	owner    string
	created  time.Time
	lastUsed atomic.Int64 // unix nanos
}

// Info describes a live handle for inspection.
type Info struct {
	Handle   value.Handle
	Owner    string
	Created  time.Time
	LastUsed time.Time
}

// Store maps handle ids to objects.
type Store struct {
	mu      sync.RWMutex
	entries map[uint64]*entry
	nextID  atomic.Uint64

	onRelease func(h value.Handle, obj any)
}

// Option configures a Store.
type Option func(*Store)

// WithReleaseHook registers fn to run, outside the store lock, for every
// object removed from the store by any path.
func WithReleaseHook(fn func(h value.Handle, obj any)) Option {
	return func(s *Store) { s.onRelease = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[uint64]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register takes ownership of obj and returns its handle. owner scopes the
// handle to a client session; it may be empty.
func (s *Store) Register(obj any, typeName, owner string) value.Handle {
	id := s.nextID.Add(1)
	now := time.Now()
	e := &entry{id: id, obj: obj, typeName: typeName, owner: owner, created: now}
	e.lastUsed.Store(now.UnixNano())

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()

	return value.Handle{ID: id, Type: typeName}
}

// Lookup returns the object behind h. A handle that was never registered,
// has been released or names a different type than the one registered
// under its id is UnknownHandle.
func (s *Store) Lookup(h value.Handle) (any, error) {
	s.mu.RLock()
	e, ok := s.entries[h.ID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.UnknownHandle, "lookup", "no live object for %s", h)
	}
	if e.typeName != h.Type {
		return nil, errs.New(errs.UnknownHandle, "lookup", "%s is a %s, not a %s", h, e.typeName, h.Type)
	}
	e.lastUsed.Store(time.Now().UnixNano())
	return e.obj, nil
}

// Release drops h. Releasing an unknown or already released handle, or
// one whose type does not match, is a no-op.
func (s *Store) Release(h value.Handle) {
	s.mu.Lock()
	e, ok := s.entries[h.ID]
	ok = ok && e.typeName == h.Type
	if ok {
		delete(s.entries, h.ID)
	}
	s.mu.Unlock()

	if ok {
		s.released([]*entry{e})
	}
}

// ReleaseOwner releases every handle registered under owner and returns
// how many were dropped.
func (s *Store) ReleaseOwner(owner string) int {
	return s.removeIf(func(e *entry) bool { return e.owner == owner })
}

// Drain releases everything. It is used at session teardown.
func (s *Store) Drain() int {
	return s.removeIf(func(*entry) bool { return true })
}

// Sweep removes handles that haven't been looked up within ttl.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl).UnixNano()
	n := s.removeIf(func(e *entry) bool { return e.lastUsed.Load() < cutoff })
	if n > 0 {
		log.Warningf("swept %d idle handles (ttl %s)", n, ttl)
	}
	return n
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *Store) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List describes live handles in id order. An empty owner lists all.
func (s *Store) List(owner string) []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		if owner != "" && e.owner != owner {
			continue
		}
		out = append(out, Info{
			Handle:   value.Handle{ID: e.id, Type: e.typeName},
			Owner:    e.owner,
			Created:  e.created,
			LastUsed: time.Unix(0, e.lastUsed.Load()),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Handle.ID < out[j].Handle.ID })
	return out
}

func (s *Store) removeIf(pred func(*entry) bool) int {
	var removed []*entry
	s.mu.Lock()
	for id, e := range s.entries {
		if pred(e) {
			delete(s.entries, id)
			removed = append(removed, e)
		}
	}
	s.mu.Unlock()

	s.released(removed)
	return len(removed)
}

func (s *Store) released(es []*entry) {
	if s.onRelease == nil {
		return
	}
	for _, e := range es {
		s.onRelease(value.Handle{ID: e.id, Type: e.typeName}, e.obj)
	}
}
