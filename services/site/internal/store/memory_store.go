package store

import (
	"sync"

	"clinicsite/pkg/domain"
)

// MemoryStore keeps both collections in-process with no persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	faqs    []domain.FAQ
	gallery []domain.GalleryEntry
}

// NewMemoryStore seeds a store with the given FAQs.
func NewMemoryStore(faqs ...domain.FAQ) *MemoryStore {
	return &MemoryStore{
		faqs:    append([]domain.FAQ{}, faqs...),
		gallery: []domain.GalleryEntry{},
	}
}

// ListFAQs returns FAQs in insertion order.
func (m *MemoryStore) ListFAQs() []domain.FAQ {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.FAQ{}, m.faqs...)
}

// AppendFAQ records an FAQ.
func (m *MemoryStore) AppendFAQ(f domain.FAQ) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faqs = append(m.faqs, f)
	return nil
}

// ListGallery returns gallery entries in insertion order.
func (m *MemoryStore) ListGallery() []domain.GalleryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.GalleryEntry{}, m.gallery...)
}

// AppendGallery records a gallery entry.
func (m *MemoryStore) AppendGallery(e domain.GalleryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gallery = append(m.gallery, e)
	return nil
}
