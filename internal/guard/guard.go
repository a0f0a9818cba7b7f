// Package guard ensures the log listener is started at most once per
// process.
package guard

import "sync"

// Guard owns the started flag. The process root creates one and hands the
// same pointer to every code path that may try to start the listener.
type Guard struct {
	mu      sync.Mutex
	started bool
}

func New() *Guard {
	return &Guard{}
}

// TryStart reports whether the caller won the right to start. The first
// call returns true and every later one false; the flag is never reset.
func (g *Guard) TryStart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return false
	}
	g.started = true
	return true
}

func (g *Guard) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}
