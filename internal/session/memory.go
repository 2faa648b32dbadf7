package session

import (
	"context"
	"sync"
)

// MemoryStore хранит сессии в памяти процесса. Перезапуск теряет незавершённые диалоги.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get возвращает копию сессии.
func (m *MemoryStore) Get(_ context.Context, chatID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// Set сохраняет копию сессии.
func (m *MemoryStore) Set(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ChatID] = *s
	return nil
}

// Delete удаляет сессию, отсутствие сессии не ошибка.
func (m *MemoryStore) Delete(_ context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

// Len количество сессий.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
