package astrologer

// Store exposes astrologer retrieval for HTTP handlers.
type Store interface {
	List() []Astrologer
	FindByID(id string) (Astrologer, bool)
}

// MemoryStore implements Store with an in-memory slice, suitable for the seeded catalog.
type MemoryStore struct {
	items []Astrologer
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied astrologers.
func NewMemoryStore(items []Astrologer) *MemoryStore {
	return &MemoryStore{items: append([]Astrologer(nil), items...)}
}

// List returns the astrologer catalog.
func (s *MemoryStore) List() []Astrologer {
	return append([]Astrologer(nil), s.items...)
}

// FindByID looks up an astrologer by identifier.
func (s *MemoryStore) FindByID(id string) (Astrologer, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Astrologer{}, false
}
