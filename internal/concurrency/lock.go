package concurrency

import "sync"

// ConversationLockManager serializes work per conversation key. Batch
// flushes and direct handling for the same conversation must never
// interleave, work on different conversations runs freely in parallel.
type ConversationLockManager struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func NewConversationLockManager() *ConversationLockManager {
	return &ConversationLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *ConversationLockManager) Lock(key string) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()
	lock.Lock()
}

func (m *ConversationLockManager) Unlock(key string) {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if ok {
		lock.Unlock()
	}
	m.mu.Unlock()
}
