package resolver

import "sync"

// LockTable hands out one mutex per key. Creating a key's mutex is an atomic
// get-or-insert, so locking one key never waits on another key.
type LockTable struct {
	locks sync.Map // key -> *sync.Mutex
}

// Lock acquires the mutex of key and returns its unlock function.
func (t *LockTable) Lock(key string) (unlock func()) {
	v, _ := t.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Len returns the number of keys that have been locked at least once.
func (t *LockTable) Len() int {
	n := 0
	t.locks.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
