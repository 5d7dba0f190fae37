package sync

import (
	"sync"
)

// KeyedMutex serializes transfers per (library, path) key so the worker, the
// reconciler, and the conflict resolver never touch the same file
// concurrently, while transfers for different files proceed in parallel.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the key is free and returns the matching unlock. Lock
// entries are reference counted and dropped once the last holder releases,
// so the map never grows with the file count.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// TransferKey is the lock key for one synchronized file.
func TransferKey(libraryID, relPath string) string {
	return libraryID + ":" + relPath
}
