// Package lock provides keyed locking for balance updates and table access.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex wraps a mutex with the number of holders and waiters.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyedLock provides one mutex per key. Entries are removed once nobody
// holds or waits for them, so the map does not grow with every user seen.
type KeyedLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// New creates a new KeyedLock instance.
func New[K comparable]() *KeyedLock[K] {
	return &KeyedLock[K]{locks: make(map[K]*keyMutex)}
}

// acquire returns the mutex for key and registers the caller on it.
func (kl *KeyedLock[K]) acquire(key K) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &keyMutex{}
		kl.locks[key] = m
	}
	m.refs++
	return m
}

// release unregisters the caller and drops the entry when unused.
func (kl *KeyedLock[K]) release(key K, m *keyMutex) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(kl.locks, key)
	}
}

// Lock acquires the lock for key.
func (kl *KeyedLock[K]) Lock(key K) {
	kl.acquire(key).mu.Lock()
}

// Unlock releases the lock for key. Unlocking a key that is not locked panics
// like sync.Mutex does.
func (kl *KeyedLock[K]) Unlock(key K) {
	kl.mu.Lock()
	m, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		panic("lock: unlock of unlocked key")
	}
	m.mu.Unlock()
	kl.release(key, m)
}

// TryLock attempts to acquire the lock without blocking.
func (kl *KeyedLock[K]) TryLock(key K) bool {
	m := kl.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	kl.release(key, m)
	return false
}

// LockContext acquires the lock for key, giving up when ctx is done or the
// timeout elapses. A zero timeout waits for ctx only.
func (kl *KeyedLock[K]) LockContext(ctx context.Context, key K, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	m := kl.acquire(key)
	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The waiter still gets the mutex eventually; hand it straight back.
		go func() {
			<-done
			m.mu.Unlock()
			kl.release(key, m)
		}()
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// WithLock executes fn while holding the lock for key.
func (kl *KeyedLock[K]) WithLock(key K, fn func() error) error {
	kl.Lock(key)
	defer kl.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the lock for key, with context
// support for cancellation while waiting.
func (kl *KeyedLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if err := kl.LockContext(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Unlock(key)
	return fn()
}

// Len reports how many keys currently have holders or waiters.
func (kl *KeyedLock[K]) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}
