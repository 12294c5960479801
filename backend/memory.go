package backend

import (
	"context"
	"sync"

	"github.com/nexlate/tracker/models"
)

// MemoryStore keeps entries in process memory, in insertion order.
type MemoryStore struct {
	mu      sync.Mutex
	entries []models.LateEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) All(ctx context.Context, limit int, newestFirst bool) (models.EntryList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make(models.EntryList, 0, len(m.entries))
	for i := range m.entries {
		entry := m.entries[i]
		if newestFirst {
			entry = m.entries[len(m.entries)-1-i]
		}
		list = append(list, entry)
	}

	if limit >= 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryStore) Get(ctx context.Context, date string) (*models.LateEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(date)
	if i < 0 {
		return nil, ErrNotFound
	}
	entry := m.entries[i]
	return &entry, nil
}

func (m *MemoryStore) Create(ctx context.Context, entry models.LateEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index(entry.Date) >= 0 {
		return ErrExists
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, date string, minutesLate *int, excuse *string) (*models.LateEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(date)
	if i < 0 {
		return nil, ErrNotFound
	}

	entry := m.entries[i]
	if minutesLate != nil {
		entry.MinutesLate = *minutesLate
	}
	if excuse != nil {
		entry.Excuse = excuse
	}

	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	m.entries = append(m.entries, entry)
	return &entry, nil
}

func (m *MemoryStore) Delete(ctx context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.index(date)
	if i < 0 {
		return ErrNotFound
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

func (m *MemoryStore) index(date string) int {
	for i, entry := range m.entries {
		if entry.Date == date {
			return i
		}
	}
	return -1
}
