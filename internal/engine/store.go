package engine

import "sync"

// Mode describes the engine's atomicity guarantee. In degraded mode the
// in-memory book stays consistent but nothing is journaled durably; the
// mode is surfaced through metrics and health rather than inferred from
// logs.
type Mode string

const (
	ModeAtomic   Mode = "atomic"
	ModeDegraded Mode = "degraded"
)

// AtomicBookStore owns all resting order state. Update runs a compound
// book mutation as one indivisible step: two concurrent updates for the
// same pair never interleave, and a returned error means no mutation was
// committed. View runs a read-only function against a pair's book; reads
// are not linearized with in-flight updates and may observe a slightly
// stale book, which is acceptable for display paths only.
type AtomicBookStore interface {
	Update(pair string, fn func(*Book) error) error
	View(pair string, fn func(*Book))
	Mode() Mode
	Pairs() []string
}

// MemoryStore is the production AtomicBookStore: one book per pair, each
// behind its own mutex. The per-pair mutex is the sole serialization
// point for matching decisions and commits.
type MemoryStore struct {
	mode Mode

	mu    sync.RWMutex
	books map[string]*bookSlot
}

type bookSlot struct {
	mu   sync.Mutex
	book *Book
}

func NewMemoryStore(mode Mode) *MemoryStore {
	return &MemoryStore{
		mode:  mode,
		books: make(map[string]*bookSlot),
	}
}

func (s *MemoryStore) slot(pair string) *bookSlot {
	s.mu.RLock()
	slot, ok := s.books[pair]
	s.mu.RUnlock()
	if ok {
		return slot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok = s.books[pair]; ok {
		return slot
	}
	slot = &bookSlot{book: NewBook(pair)}
	s.books[pair] = slot
	return slot
}

// Update executes fn while holding the pair's lock. Errors roll nothing
// back: fn is responsible for validating before mutating, which the
// matching applier does.
func (s *MemoryStore) Update(pair string, fn func(*Book) error) error {
	slot := s.slot(pair)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return fn(slot.book)
}

func (s *MemoryStore) View(pair string, fn func(*Book)) {
	slot := s.slot(pair)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	fn(slot.book)
}

func (s *MemoryStore) Mode() Mode { return s.mode }

func (s *MemoryStore) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := make([]string, 0, len(s.books))
	for pair := range s.books {
		pairs = append(pairs, pair)
	}
	return pairs
}
