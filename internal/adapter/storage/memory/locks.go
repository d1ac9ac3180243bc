package memory

import (
	"context"
	"sync"
)

// lockTable is a set of named exclusive locks whose waiters honour context
// cancellation.
type lockTable struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[string]chan struct{})}
}

func (l *lockTable) acquire(ctx context.Context, name string) error {
	for {
		l.mu.Lock()
		released, busy := l.held[name]
		if !busy {
			l.held[name] = make(chan struct{})
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *lockTable) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.held[name]; ok {
		close(ch)
		delete(l.held, name)
	}
}
