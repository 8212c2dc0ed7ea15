package guard

import (
	"sync"

	"golang.org/x/xerrors"
)

// ErrReentrantCall is returned when a guarded scope is entered again before
// the first entry released it.
var ErrReentrantCall = xerrors.New("reentrant call")

// Guard rejects nested entry into a logical resource. Scopes are keyed so
// unrelated resources are not serialized against each other. Operations that
// move funds or assets take a scope before touching state and release it on
// every exit path.
type Guard struct {
	mu     sync.Mutex
	locked map[string]bool
}

func New() *Guard {
	return &Guard{locked: map[string]bool{}}
}

// Enter acquires the scope for key. It returns a release func on success and
// ErrReentrantCall if the scope is already held.
func (g *Guard) Enter(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.locked[key] {
		return nil, ErrReentrantCall
	}
	g.locked[key] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.locked, key)
	}, nil
}
