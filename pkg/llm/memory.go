package llm

import "sync"

// MemoryKey names a memory slot entry.
type MemoryKey string

const (
	MemoryLastAddedProduct   MemoryKey = "last_added_product"
	MemoryLastDeletedProduct MemoryKey = "last_deleted_product"
)

// MemorySlot remembers the latest successful payload of selected tool
// calls. Entries are overwritten, never cleared.
type MemorySlot struct {
	mu     sync.RWMutex
	values map[MemoryKey]any
}

// NewMemorySlot creates an empty memory.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[MemoryKey]any)}
}

// Read returns the stored value for key.
func (m *MemorySlot) Read(key MemoryKey) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Write stores value under key, replacing any previous value.
func (m *MemorySlot) Write(key MemoryKey, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}
