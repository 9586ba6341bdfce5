package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// KeyLocker is an in-process ledger.Locker. Lock blocks until the key is free
// or ctx is done, so same-key callers queue up instead of failing.
type KeyLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewKeyLocker creates a KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{slots: make(map[string]chan struct{})}
}

// Lock implements ledger.Locker.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	for {
		l.mu.Lock()
		held, busy := l.slots[key]
		if !busy {
			done := make(chan struct{})
			l.slots[key] = done
			l.mu.Unlock()
			return l.releaser(key, done), nil
		}
		l.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, shared.WrapError("memory", "Lock", shared.ErrKeyLocked, "gave up waiting for "+key, ctx.Err())
		}
	}
}

func (l *KeyLocker) releaser(key string, done chan struct{}) func(context.Context) error {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			if l.slots[key] == done {
				delete(l.slots, key)
			}
			l.mu.Unlock()
			close(done)
		})
		return nil
	}
}

var _ ledger.Locker = (*KeyLocker)(nil)
