package idempotency

import (
	"context"
	"sync"
)

// KeyLocks serializes critical sections by name within the process. Each
// name owns a one-slot channel; waiters queue on it in FIFO-ish order and
// entries are dropped once unused.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyLocks creates an empty lock table.
func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[string]*keyLock)}
}

// WithLock runs fn while holding the named lock. Acquisition honors ctx
// cancellation; fn always runs with the lock held.
func (k *KeyLocks) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	k.mu.Lock()
	l, ok := k.locks[name]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[name] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(name, l)
		return ctx.Err()
	}

	defer func() {
		<-l.ch
		k.release(name, l)
	}()
	return fn(ctx)
}

func (k *KeyLocks) release(name string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, name)
	}
	k.mu.Unlock()
}
