package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clinicsite/pkg/domain"
)

const (
	faqsFile    = "faqs.json"
	galleryFile = "gallery.json"
)

// JSONStore keeps both collections in memory and mirrors each one to a
// pretty-printed JSON document that is rewritten in full on every append.
type JSONStore struct {
	faqs    *document[domain.FAQ]
	gallery *document[domain.GalleryEntry]
}

// NewJSONStore loads faqs.json and gallery.json from dir. A document that is
// missing or unparsable starts empty; the failure is logged, never returned.
func NewJSONStore(dir string) (*JSONStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("create data dir", "dir", dir, "err", err)
	}
	return &JSONStore{
		faqs:    loadDocument[domain.FAQ](filepath.Join(dir, faqsFile)),
		gallery: loadDocument[domain.GalleryEntry](filepath.Join(dir, galleryFile)),
	}, nil
}

// ListFAQs returns the FAQs in insertion order.
func (s *JSONStore) ListFAQs() []domain.FAQ {
	return s.faqs.list()
}

// AppendFAQ appends and flushes faqs.json. The in-memory append stands even
// when the flush fails.
func (s *JSONStore) AppendFAQ(f domain.FAQ) error {
	return s.faqs.append(f)
}

// ListGallery returns the gallery entries in insertion order.
func (s *JSONStore) ListGallery() []domain.GalleryEntry {
	return s.gallery.list()
}

// AppendGallery appends and flushes gallery.json, with the same failure
// semantics as AppendFAQ.
func (s *JSONStore) AppendGallery(e domain.GalleryEntry) error {
	return s.gallery.append(e)
}

// document is one JSON array on disk plus its in-memory copy. writeMu
// serializes append+flush so the file always holds the newest snapshot;
// mu only guards items, so readers never wait on disk I/O.
type document[T any] struct {
	path    string
	writeMu sync.Mutex
	mu      sync.RWMutex
	items   []T
}

func loadDocument[T any](path string) *document[T] {
	d := &document[T]{path: path, items: []T{}}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("load document, starting empty", "path", path, "err", err)
		return d
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("parse document, starting empty", "path", path, "err", err)
		return d
	}
	if items != nil {
		d.items = items
	}
	slog.Info("document loaded", "path", path, "count", len(d.items))
	return d
}

func (d *document[T]) list() []T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]T, len(d.items))
	copy(out, d.items)
	return out
}

func (d *document[T]) append(item T) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	d.items = append(d.items, item)
	snapshot := make([]T, len(d.items))
	copy(snapshot, d.items)
	d.mu.Unlock()

	return d.flush(snapshot)
}

func (d *document[T]) flush(items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(d.path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(d.path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(d.path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(d.path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", filepath.Base(d.path), err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", filepath.Base(d.path), err)
	}
	return nil
}
