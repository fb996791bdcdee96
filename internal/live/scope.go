package live

import "sync"

// Scope owns the cancel handles acquired while some state is current.
// Close invokes all of them, newest first. Handles added after Close are
// cancelled immediately.
type Scope struct {
	mu      sync.Mutex
	cancels []Cancel
	closed  bool
}

func NewScope() *Scope { return &Scope{} }

func (s *Scope) Add(c Cancel) {
	if c == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c()
		return
	}
	s.cancels = append(s.cancels, c)
	s.mu.Unlock()
}

func (s *Scope) Close() {
	s.mu.Lock()
	cs := s.cancels
	s.cancels = nil
	s.closed = true
	s.mu.Unlock()
	for i := len(cs) - 1; i >= 0; i-- {
		cs[i]()
	}
}

// Len reports how many handles the scope currently holds.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancels)
}

func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
