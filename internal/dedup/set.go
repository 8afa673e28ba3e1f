// Package dedup provides the bounded identity cache used to avoid reprocessing mints.
package dedup

import (
	"container/list"
	"sync"

	"github.com/axiomhq/hyperloglog"
)

// DefaultCapacity is the number of identities retained before eviction.
const DefaultCapacity = 2000

// Set is a bounded, insertion-ordered set of identifiers.
// Once Len exceeds the capacity the single oldest entry is evicted.
// It also keeps a HyperLogLog sketch of every identifier ever marked,
// so the distinct count survives evictions.
type Set struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
	sketch   *hyperloglog.Sketch
}

// New creates a Set with the given capacity. Non-positive capacity uses DefaultCapacity.
func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Set{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity+1),
		sketch:   hyperloglog.New14(),
	}
}

// IsNew reports whether id is not currently in the set.
func (s *Set) IsNew(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return !ok
}

// Has reports whether id is currently in the set.
func (s *Set) Has(id string) bool {
	return !s.IsNew(id)
}

// MarkSeen inserts id. Returns the evicted identifier, if any.
// Marking an id already present does not refresh its position.
func (s *Set) MarkSeen(id string) (evicted string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markLocked(id)
}

// CheckAndMark atomically tests and inserts id. Returns true when id was new.
func (s *Set) CheckAndMark(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[id]; exists {
		return false
	}
	s.markLocked(id)
	return true
}

func (s *Set) markLocked(id string) (string, bool) {
	if _, exists := s.index[id]; exists {
		return "", false
	}
	s.index[id] = s.order.PushBack(id)
	s.sketch.Insert([]byte(id))

	if s.order.Len() <= s.capacity {
		return "", false
	}
	oldest := s.order.Front()
	s.order.Remove(oldest)
	evicted := oldest.Value.(string)
	delete(s.index, evicted)
	return evicted, true
}

// Len returns the number of identifiers currently retained.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Keys returns retained identifiers, oldest first.
func (s *Set) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(string))
	}
	return keys
}

// Distinct estimates how many distinct identifiers have ever been marked.
func (s *Set) Distinct() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sketch.Estimate()
}
