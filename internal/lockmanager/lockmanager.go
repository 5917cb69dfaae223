package lockmanager

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrTimeout = errors.New("lock acquisition timed out")

// Manager hands out exclusive per-account locks. Every Acquire sorts
// the requested set into the canonical order (byte order of the raw
// UUID) before taking any lock, so two callers whose sets overlap can
// never hold conflicting prefixes: circular wait is impossible.
//
// Locks are channel-based so acquisition can be bounded by a timeout
// or abandoned on context cancellation with all partial holds undone.
type Manager struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]chan struct{}
	timeout time.Duration
}

// New returns a Manager. A zero timeout means block indefinitely.
func New(timeout time.Duration) *Manager {
	return &Manager{
		locks:   make(map[uuid.UUID]chan struct{}),
		timeout: timeout,
	}
}

func (m *Manager) lockFor(id uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		m.locks[id] = l
	}
	return l
}

// canonical sorts and deduplicates the requested set.
func canonical(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Acquire locks every account in ids, blocking as needed, and returns
// a release function. The release runs in reverse acquisition order
// and is safe to call more than once; only the first call releases.
//
// On timeout or context cancellation every lock already taken by this
// call is released before the error is returned: there is no partial
// hold to clean up.
func (m *Manager) Acquire(ctx context.Context, ids ...uuid.UUID) (release func(), err error) {
	ordered := canonical(ids)

	var deadline <-chan time.Time
	if m.timeout > 0 {
		t := time.NewTimer(m.timeout)
		defer t.Stop()
		deadline = t.C
	}

	held := make([]chan struct{}, 0, len(ordered))
	undo := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ordered {
		l := m.lockFor(id)
		select {
		case l <- struct{}{}:
			held = append(held, l)
		case <-deadline:
			undo()
			return nil, ErrTimeout
		case <-ctx.Done():
			undo()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(undo) }, nil
}
