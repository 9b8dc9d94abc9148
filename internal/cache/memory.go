package cache

import "sync"

// memoryTier is the session map of resolved documents. Last writer wins.
type memoryTier struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func newMemoryTier() *memoryTier {
	return &memoryTier{docs: make(map[string]*Document)}
}

func (m *memoryTier) get(name string) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	return doc, ok
}

func (m *memoryTier) put(name string, doc *Document) {
	m.mu.Lock()
	m.docs[name] = doc
	m.mu.Unlock()
}

func (m *memoryTier) clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.docs)
	m.docs = make(map[string]*Document)
	return n
}

func (m *memoryTier) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
