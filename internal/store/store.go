package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"electoral-service/internal/store/policy"
)

// Key identifies a cached call: an operation name plus its ordered
// parameters. Build it with NewKey so distinct calls never collide.
type Key string

// NewKey length-prefixes every part, so ("a-b") and ("a", "b") differ.
func NewKey(op string, params ...string) Key {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range params {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return Key(b.String())
}

// Entry is a stored value and the time it was fetched.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

type options struct {
	capacity   int
	policy     policy.EvictionPolicy[Key]
	policyName string
}

// Option configures a Store.
type Option func(*options)

// WithCapacity bounds the number of entries. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithPolicy sets the eviction policy used once capacity is reached.
func WithPolicy(p policy.EvictionPolicy[Key]) Option {
	return func(o *options) { o.policy = p }
}

// WithPolicyName selects the eviction policy by name ("lru" or "fifo"). Unlike
// WithPolicy it is safe to share between stores: each gets its own instance.
func WithPolicyName(name string) Option {
	return func(o *options) { o.policyName = name }
}

// Store is a thread-safe map of timestamped entries. It never hides expired
// entries: freshness is the caller's decision, so stale values stay
// available as a fallback.
type Store[V any] struct {
	mu       sync.RWMutex
	items    map[Key]Entry[V]
	capacity int
	policy   policy.EvictionPolicy[Key]
}

// New creates a Store.
func New[V any](opts ...Option) *Store[V] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity > 0 && o.policy == nil {
		p, ok := policy.ByName[Key](o.policyName)
		if !ok {
			p = policy.NewLRU[Key]()
		}
		o.policy = p
	}
	return &Store[V]{
		items:    make(map[Key]Entry[V]),
		capacity: o.capacity,
		policy:   o.policy,
	}
}

// Get returns the entry for key, fresh or not.
func (s *Store[V]) Get(key Key) (Entry[V], bool) {
	s.mu.RLock()
	ent, found := s.items[key]
	s.mu.RUnlock()
	if found && s.policy != nil {
		s.policy.Touch(key)
	}
	return ent, found
}

// Set stores value under key, replacing any previous entry.
func (s *Store[V]) Set(key Key, value V, storedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && s.capacity > 0 {
		for len(s.items) >= s.capacity {
			victim, ok := s.policy.Victim()
			if !ok {
				break
			}
			delete(s.items, victim)
			s.policy.Forget(victim)
		}
	}

	s.items[key] = Entry[V]{Value: value, StoredAt: storedAt}
	if s.policy != nil {
		s.policy.Admit(key)
	}
}

// Delete removes a key.
func (s *Store[V]) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	if s.policy != nil {
		s.policy.Forget(key)
	}
}

// Clear removes every entry.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy != nil {
		for k := range s.items {
			s.policy.Forget(k)
		}
	}
	s.items = make(map[Key]Entry[V])
}

// Len returns the number of entries.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// DeleteOlderThan drops entries stored before cutoff and returns how many
// were removed.
func (s *Store[V]) DeleteOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, v := range s.items {
		if v.StoredAt.Before(cutoff) {
			delete(s.items, k)
			if s.policy != nil {
				s.policy.Forget(k)
			}
			n++
		}
	}
	return n
}

// StartCleanup drops entries older than maxAge every interval until ctx is
// done. now supplies the current time.
func (s *Store[V]) StartCleanup(ctx context.Context, interval, maxAge time.Duration, now func() time.Time) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.DeleteOlderThan(now().Add(-maxAge))
			}
		}
	}()
}
