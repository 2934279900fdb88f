package service

import "sync"

// keyedMutex hands out one mutex per key so writes for the same user or
// session serialize while unrelated keys never block each other. Entries are
// reference-counted and dropped once the last holder releases, keeping the
// map bounded by in-flight operations rather than by every key ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	key  string
	refs int
	mu   sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// lock blocks until the mutex for key is held and returns the handle to pass
// to unlock.
func (k *keyedMutex) lock(key string) *keyedLock {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{key: key}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return l
}

func (k *keyedMutex) unlock(l *keyedLock) {
	l.mu.Unlock()

	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, l.key)
	}
	k.mu.Unlock()
}
