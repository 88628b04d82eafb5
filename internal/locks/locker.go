// Package locks serialises work that must not run on two gateway instances at
// once, such as the deferred webhook registration retry.
//
// Two implementations share the Locker interface: RedsyncLocker coordinates
// through Redis with the Redlock algorithm, LocalLocker only within the
// current process and is used when no Redis is configured.
package locks

import (
	"context"
	"sync"
	"time"

	"paypal-gateway/internal/common/errors"
)

// Lock is a held lock. Release is safe to call more than once.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
	IsHeld() bool
}

// Locker hands out exclusive locks by key
type Locker interface {
	// AcquireLock blocks until the lock is held, ctx is done or the
	// implementation gives up.
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
	Close() error
}

// WithLock runs fn while holding key
func WithLock(ctx context.Context, locker Locker, key string, expiration time.Duration, fn func(ctx context.Context) error) error {
	lock, err := locker.AcquireLock(ctx, key, expiration)
	if err != nil {
		return err
	}
	defer lock.Release(context.Background())
	return fn(ctx)
}

// LocalLocker implements Locker with in-process semaphores
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// AcquireLock waits for key to become free. expiration is ignored: a local
// lock lives until it is released.
func (l *LocalLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &localLock{key: key, slot: ch}, nil
	case <-ctx.Done():
		return nil, errors.InternalError("failed to acquire lock", ctx.Err()).WithContext("key", key)
	}
}

func (l *LocalLocker) Close() error {
	return nil
}

type localLock struct {
	key  string
	slot chan struct{}
	once     sync.Once
	mu       sync.Mutex
	released bool
}

func (l *localLock) Key() string {
	return l.key
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		l.mu.Lock()
		l.released = true
		l.mu.Unlock()
		<-l.slot
	})
	return nil
}

// IsHeld reports whether Release has not been called yet
func (l *localLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.released
}
