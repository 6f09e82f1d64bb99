package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"clinicsite/pkg/domain"
)

// DefaultFallbackLang is used when a requested language cannot be loaded.
const DefaultFallbackLang = "en"

var langPattern = regexp.MustCompile(`^[A-Za-z]{2,3}([-_][A-Za-z0-9]{2,8})?$`)

// LocaleStore lazily reads <dir>/<lang>.json and caches each document for
// the life of the process once it has loaded successfully. Failed loads are
// not cached, so they are retried on the next request.
type LocaleStore struct {
	dir      string
	fallback string

	mu    sync.RWMutex
	cache map[string]domain.Locale
	group singleflight.Group
}

// NewLocaleStore builds a store reading from dir. An empty fallback selects
// DefaultFallbackLang.
func NewLocaleStore(dir, fallback string) *LocaleStore {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallbackLang
	}
	return &LocaleStore{
		dir:      dir,
		fallback: fallback,
		cache:    make(map[string]domain.Locale),
	}
}

// Fallback returns the fallback language code.
func (s *LocaleStore) Fallback() string {
	return s.fallback
}

// Get returns the document for lang, else the fallback language's document,
// else an empty locale. The returned map is shared and must not be mutated.
func (s *LocaleStore) Get(lang string) domain.Locale {
	loc, err := s.load(lang)
	if err == nil {
		return loc
	}
	if lang == s.fallback {
		slog.Warn("fallback locale unavailable", "lang", lang, "err", err)
		return domain.Locale{}
	}
	slog.Debug("locale unavailable, using fallback", "lang", lang, "fallback", s.fallback, "err", err)
	loc, err = s.load(s.fallback)
	if err != nil {
		slog.Warn("fallback locale unavailable", "lang", s.fallback, "err", err)
		return domain.Locale{}
	}
	return loc
}

func (s *LocaleStore) load(lang string) (domain.Locale, error) {
	s.mu.RLock()
	loc, ok := s.cache[lang]
	s.mu.RUnlock()
	if ok {
		return loc, nil
	}
	if !langPattern.MatchString(lang) {
		return nil, fmt.Errorf("invalid language code %q", lang)
	}
	v, err, _ := s.group.Do(lang, func() (any, error) {
		s.mu.RLock()
		loc, ok := s.cache[lang]
		s.mu.RUnlock()
		if ok {
			return loc, nil
		}
		data, err := os.ReadFile(filepath.Join(s.dir, lang+".json"))
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", lang, err)
		}
		var parsed domain.Locale
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", lang, err)
		}
		if parsed == nil {
			parsed = domain.Locale{}
		}
		s.mu.Lock()
		s.cache[lang] = parsed
		s.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domain.Locale), nil
}
