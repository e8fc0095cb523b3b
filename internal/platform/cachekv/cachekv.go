// Package cachekv is an in-memory TTL cache keyed by (resource type, id).
//
// Each resource type gets its own LRU bucket so a burst of one type cannot
// evict another type's entries. Expiry is per entry: writers pass a TTL and
// reads treat a past deadline as a miss. Expired entries are removed lazily
// on read and in bulk by Sweep.
package cachekv

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultBucketSize caps each per-type bucket when no size is given
const DefaultBucketSize = 65536

// Record is a cached resource snapshot
type Record struct {
	Type       string
	ID         string
	Payload    []byte
	CapturedAt time.Time
}

type entry struct {
	payload    []byte
	capturedAt time.Time
	deadline   time.Time
}

// Store holds per-type LRU buckets with per-entry deadlines.
// The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	buckets map[string]*lru.Cache[string, entry]
	size    int
	now     func() time.Time
}

// Option mutates a Store during New
type Option func(*Store)

// WithClock overrides the time source (tests)
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New builds a Store whose buckets hold up to size entries each
// size <= 0 falls back to DefaultBucketSize
func New(size int, opts ...Option) *Store {
	if size <= 0 {
		size = DefaultBucketSize
	}
	s := &Store{
		buckets: make(map[string]*lru.Cache[string, entry]),
		size:    size,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// bucket returns the cache for typ, creating it on first use
func (s *Store) bucket(typ string) *lru.Cache[string, entry] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[typ]; ok {
		return b
	}
	b, _ := lru.New[string, entry](s.size) // size validated in New
	s.buckets[typ] = b
	return b
}

// Put stores payload under (typ, id) for ttl.
// A repeat Put for the same key overwrites the payload and restarts the clock.
func (s *Store) Put(typ, id string, payload []byte, ttl time.Duration) {
	at := s.now()
	s.bucket(typ).Add(id, entry{
		payload:    payload,
		capturedAt: at,
		deadline:   at.Add(ttl),
	})
}

// Get returns the live record under (typ, id).
// An expired entry is removed and reported as a miss.
func (s *Store) Get(typ, id string) (Record, bool) {
	b := s.bucket(typ)
	e, ok := b.Get(id)
	if !ok {
		return Record{}, false
	}
	if !s.now().Before(e.deadline) {
		b.Remove(id)
		return Record{}, false
	}
	return Record{Type: typ, ID: id, Payload: e.payload, CapturedAt: e.capturedAt}, true
}

// Scan returns all live records of typ captured at or after since,
// ordered oldest first
func (s *Store) Scan(typ string, since time.Time) []Record {
	b := s.bucket(typ)
	now := s.now()

	var out []Record
	for _, id := range b.Keys() {
		e, ok := b.Peek(id)
		if !ok {
			continue
		}
		if !now.Before(e.deadline) {
			b.Remove(id)
			continue
		}
		if e.capturedAt.Before(since) {
			continue
		}
		out = append(out, Record{Type: typ, ID: id, Payload: e.payload, CapturedAt: e.capturedAt})
	}
	// Keys() walks oldest to newest, the stable sort keeps that order
	// for records captured in the same instant
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out
}

// Delete drops (typ, id) if present
func (s *Store) Delete(typ, id string) {
	s.bucket(typ).Remove(id)
}

// Flush drops every entry of typ
func (s *Store) Flush(typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[typ]; ok {
		b.Purge()
	}
}

// FlushAll drops everything
func (s *Store) FlushAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.buckets {
		b.Purge()
	}
}

// Sweep removes every expired entry and returns how many were dropped
func (s *Store) Sweep() int {
	s.mu.Lock()
	bs := make([]*lru.Cache[string, entry], 0, len(s.buckets))
	for _, b := range s.buckets {
		bs = append(bs, b)
	}
	s.mu.Unlock()

	now := s.now()
	dropped := 0
	for _, b := range bs {
		for _, id := range b.Keys() {
			if e, ok := b.Peek(id); ok && !now.Before(e.deadline) {
				b.Remove(id)
				dropped++
			}
		}
	}
	return dropped
}

// Len counts live and not-yet-swept entries across all buckets
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.buckets {
		n += b.Len()
	}
	return n
}
