package keyedmutex

import "sync"

// Registry — ленивый реестр мьютексов по ключу. Мьютекс создаётся при первом
// обращении и живёт, пока живёт реестр; критические секции разных ключей не
// блокируют друг друга.
type Registry[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*sync.Mutex
}

func New[K comparable]() *Registry[K] {
	return &Registry[K]{locks: make(map[K]*sync.Mutex)}
}

func (r *Registry[K]) get(key K) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	return m
}

func (r *Registry[K]) Lock(key K) {
	r.get(key).Lock()
}

func (r *Registry[K]) Unlock(key K) {
	r.get(key).Unlock()
}
