// Package session keeps the conversation state of logged-in sessions.
//
// Sessions live in an arena of slots addressed by (index, generation)
// handles; an index maps session IDs to handles. Each slot carries a
// one-token semaphore so requests for one session run one at a time while
// different sessions proceed in parallel. A freed slot is reused with a
// bumped generation, which invalidates every handle to its previous tenant.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/insureai/internal/model"
)

// ErrNotFound is returned for unknown, invalidated or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Info describes a live session.
type Info struct {
	ID        string
	Principal model.Principal
	CreatedAt time.Time
	LastSeen  time.Time
}

type handle struct {
	index int
	gen   uint64
}

type slot struct {
	gen   uint64
	live  bool
	sem   chan struct{}
	info  Info
	state *model.ConversationState
}

// Repository is the arena plus index. The zero value is not usable; use New.
type Repository struct {
	mu    sync.Mutex
	slots []*slot
	free  []int
	index map[string]handle

	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a repository. With a positive ttl a background sweeper evicts
// sessions idle for longer than ttl; call Close to stop it.
func New(ttl time.Duration, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		index:  make(map[string]handle),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	if ttl > 0 {
		go r.sweepLoop(sweepInterval(ttl))
	}
	return r
}

func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}

// Close stops the sweeper. Sessions stay readable.
func (r *Repository) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Create allocates a session for principal with an empty conversation.
func (r *Repository) Create(principal model.Principal) string {
	id := uuid.NewString()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var idx int
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = len(r.slots)
		r.slots = append(r.slots, &slot{sem: make(chan struct{}, 1)})
	}
	s := r.slots[idx]
	// A request from the previous tenant may still hold the old semaphore.
	s.sem = make(chan struct{}, 1)
	s.gen++
	s.live = true
	s.info = Info{ID: id, Principal: principal, CreatedAt: now, LastSeen: now}
	s.state = model.NewConversationState(principal)
	r.index[id] = handle{index: idx, gen: s.gen}
	return id
}

// Get returns the session's metadata without taking its lock.
func (r *Repository) Get(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.resolve(id)
	if !ok {
		return Info{}, ErrNotFound
	}
	return s.info, nil
}

// resolve maps id to its live slot. Must be called with mu held.
func (r *Repository) resolve(id string) (*slot, bool) {
	h, ok := r.index[id]
	if !ok {
		return nil, false
	}
	s := r.slots[h.index]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	return s, true
}

// lease is exclusive access to one tenant of a slot.
type lease struct {
	slot      *slot
	gen       uint64
	principal model.Principal
	sem       chan struct{}
}

func (l lease) release() { <-l.sem }

// current reports whether the slot still belongs to the leased tenant.
// Must be called with mu held.
func (l lease) current() bool {
	return l.slot.live && l.slot.gen == l.gen
}

// acquire takes the session's semaphore, honoring ctx. On success the
// caller must release the lease.
func (r *Repository) acquire(ctx context.Context, id string) (lease, error) {
	r.mu.Lock()
	h, ok := r.index[id]
	var l lease
	if ok {
		l = lease{slot: r.slots[h.index], gen: h.gen, sem: r.slots[h.index].sem}
	}
	r.mu.Unlock()
	if !ok {
		return lease{}, ErrNotFound
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return lease{}, fmt.Errorf("session: wait for %s: %w", id, ctx.Err())
	}

	// The slot may have been invalidated or reused while we waited.
	r.mu.Lock()
	valid := l.current()
	if valid {
		l.principal = l.slot.info.Principal
	}
	r.mu.Unlock()
	if !valid {
		l.release()
		return lease{}, ErrNotFound
	}
	return l, nil
}

// With runs fn with exclusive access to the session's conversation state.
func (r *Repository) With(ctx context.Context, id string, fn func(*model.ConversationState) error) error {
	l, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer l.release()

	r.mu.Lock()
	if !l.current() {
		r.mu.Unlock()
		return ErrNotFound
	}
	state := l.slot.state
	l.slot.info.LastSeen = r.now()
	r.mu.Unlock()
	return fn(state)
}

// Reset replaces the session's conversation with a fresh one prepared by
// fn. The old conversation is kept if fn fails. If the session ends while
// fn runs, the fresh conversation is discarded and ErrNotFound returned.
func (r *Repository) Reset(ctx context.Context, id string, fn func(*model.ConversationState) error) error {
	l, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer l.release()

	fresh := model.NewConversationState(l.principal)
	if fn != nil {
		if err := fn(fresh); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !l.current() {
		return ErrNotFound
	}
	l.slot.state = fresh
	l.slot.info.LastSeen = r.now()
	return nil
}

// Invalidate removes the session. It reports whether the session existed.
// A request holding the session finishes against the detached state.
func (r *Repository) Invalidate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.resolve(id)
	if !ok {
		return false
	}
	r.release(id, s)
	return true
}

// release frees a live slot. Must be called with mu held.
func (r *Repository) release(id string, s *slot) {
	h := r.index[id]
	delete(r.index, id)
	s.live = false
	s.state = nil
	s.info = Info{}
	r.free = append(r.free, h.index)
}

// Len returns the number of live sessions.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Sweep evicts sessions idle since before now minus the TTL. Sessions busy
// with a request are skipped. It returns the number evicted.
func (r *Repository) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, h := range r.index {
		s := r.slots[h.index]
		if !s.info.LastSeen.Before(cutoff) {
			continue
		}
		select {
		case s.sem <- struct{}{}:
		default:
			continue
		}
		r.release(id, s)
		<-s.sem
		evicted++
	}
	return evicted
}

func (r *Repository) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if n := r.Sweep(r.now()); n > 0 {
				r.logger.Info("session: evicted idle sessions", "count", n)
			}
		}
	}
}
