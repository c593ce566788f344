package scraper

import "sync"

// CodeSet is a concurrency-safe set of listing codes, shared by the
// discovery workers.
type CodeSet struct {
	mu   sync.Mutex
	seen map[int64]struct{}
}

func NewCodeSet() *CodeSet {
	return &CodeSet{seen: make(map[int64]struct{})}
}

// Add returns true if the code was newly added.
func (s *CodeSet) Add(code int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[code]; exists {
		return false
	}
	s.seen[code] = struct{}{}
	return true
}

func (s *CodeSet) Contains(code int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.seen[code]
	return exists
}

func (s *CodeSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Values returns a snapshot of the set.
func (s *CodeSet) Values() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.seen))
	for code := range s.seen {
		out = append(out, code)
	}
	return out
}
