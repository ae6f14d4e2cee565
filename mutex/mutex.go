package mutex

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex serializuje operacje per klucz. Wpisy są usuwane, gdy nikt
// ich nie trzyma ani na nie nie czeka, więc mapa nie rośnie bez końca.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	table map[K]*entry
}

// LockContext waits for key until it is free or ctx is done. On ctx
// cancellation the key is not held and ctx.Err() is returned.
func (m *KeyedMutex[K]) LockContext(ctx context.Context, key K) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.table == nil {
		m.table = make(map[K]*entry)
	}
	e, ok := m.table[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.table[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.release(key, e)
		return ctx.Err()
	}
}

// Unlock panics when key is not locked.
func (m *KeyedMutex[K]) Unlock(key K) {
	m.mu.Lock()
	e, ok := m.table[key]
	if !ok {
		m.mu.Unlock()
		panic("mutex: unlock of unlocked key")
	}
	select {
	case <-e.sem:
	default:
		m.mu.Unlock()
		panic("mutex: unlock of unlocked key")
	}
	m.mu.Unlock()

	m.release(key, e)
}

func (m *KeyedMutex[K]) release(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.table, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *KeyedMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}
