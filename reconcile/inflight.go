package reconcile

import "sync"

// inflight tracks record keys with an unresolved mutation. A key stays held
// until its mutation returns, even past the controller timeout, so a store
// that ignores cancellation still gets one mutation per record at a time.
type inflight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{keys: make(map[string]struct{})}
}

// acquire registers key and reports false if it is already held.
func (s *inflight) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.keys[key]; held {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *inflight) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

func (s *inflight) held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}
