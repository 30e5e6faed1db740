// Package buffer provides the per-node message store the routing engine
// routes from: byte-bounded admission, a TTL-ordered expiry index and
// make-room eviction. The engine itself never removes expired messages; the
// host sweeps the store each tick and the engine just observes absence.
package buffer

import (
	"errors"
	"sort"
	"sync"

	"github.com/tidwall/btree"

	"github.com/oppnet/driftroute/pkg/routing"
)

var (
	// ErrDuplicate means the store already holds the message id.
	ErrDuplicate = errors.New("buffer: duplicate message id")
	// ErrTooLarge means the message exceeds the store's total capacity and
	// can never be admitted.
	ErrTooLarge = errors.New("buffer: message larger than capacity")
)

// expiryItem orders held messages by absolute TTL expiry so sweeps and
// make-room eviction walk the soonest-to-die entries first.
type expiryItem struct {
	expiresAt float64
	id        string
}

func expiryLess(a, b expiryItem) bool {
	if a.expiresAt != b.expiresAt {
		return a.expiresAt < b.expiresAt
	}
	return a.id < b.id
}

// Store is a byte-bounded message buffer with a B-Tree expiry index.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int // bytes; <= 0 means unbounded
	used     int
	byID     map[string]*routing.Message
	expiry   *btree.BTreeG[expiryItem]
}

// New creates a store with the given capacity in bytes. A non-positive
// capacity means unbounded.
func New(capacity int) *Store {
	return &Store{
		capacity: capacity,
		byID:     make(map[string]*routing.Message),
		expiry:   btree.NewBTreeG[expiryItem](expiryLess),
	}
}

// Admit stores a message, first dropping expired entries and then, if still
// needed, evicting the soonest-expiring messages until the new one fits.
// Admission of an id already present fails with ErrDuplicate; a message that
// cannot fit even in an empty store fails with ErrTooLarge.
func (s *Store) Admit(m *routing.Message, now float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[m.ID]; ok {
		return ErrDuplicate
	}
	if s.capacity > 0 && m.Size > s.capacity {
		return ErrTooLarge
	}
	s.expireLocked(now)
	if s.capacity > 0 {
		for s.used+m.Size > s.capacity {
			victim, ok := s.expiry.Min()
			if !ok {
				break
			}
			s.removeLocked(victim.id)
		}
	}
	s.byID[m.ID] = m
	s.expiry.Set(expiryItem{expiresAt: m.ExpiresAt(), id: m.ID})
	s.used += m.Size
	return nil
}

// Get returns the held message with the given id.
func (s *Store) Get(id string) (*routing.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	return m, ok
}

// Has reports whether the store holds the id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Remove drops the message with the given id, reporting whether it was held.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) bool {
	m, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.expiry.Delete(expiryItem{expiresAt: m.ExpiresAt(), id: id})
	s.used -= m.Size
	return true
}

// ExpireUpTo removes every message whose TTL has elapsed at now and returns
// them, soonest-expired first.
func (s *Store) ExpireUpTo(now float64) []*routing.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireLocked(now)
}

func (s *Store) expireLocked(now float64) []*routing.Message {
	var out []*routing.Message
	for {
		item, ok := s.expiry.Min()
		if !ok || item.expiresAt > now {
			return out
		}
		out = append(out, s.byID[item.id])
		s.removeLocked(item.id)
	}
}

// Messages returns the held messages ordered by creation time, oldest first.
func (s *Store) Messages() []*routing.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*routing.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len reports the number of held messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Free returns the unused capacity in bytes. Unbounded stores report 0,
// matching Total, so occupancy readers see 0/0 rather than a made-up ratio.
func (s *Store) Free() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.capacity <= 0 {
		return 0
	}
	return s.capacity - s.used
}

// Total returns the configured capacity in bytes (0 when unbounded).
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.capacity <= 0 {
		return 0
	}
	return s.capacity
}

// Used returns the occupied bytes.
func (s *Store) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
