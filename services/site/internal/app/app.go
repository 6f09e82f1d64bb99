package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"clinicsite/internal/obs"
	"clinicsite/internal/util"
	"clinicsite/pkg/domain"
	"clinicsite/services/site/internal/store"
)

const (
	// DefaultAdminUsername and DefaultAdminPassword are the built-in admin
	// credentials used when config supplies none.
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "clinic-admin"

	// DefaultNoAnswer is returned when no FAQ matches and no locale carries
	// a chat_no_answer string.
	DefaultNoAnswer = "Sorry, I don't know the answer."

	noAnswerKey    = "chat_no_answer"
	maxSuggestions = 5
)

// ImageStore persists uploaded image bytes under a storage key.
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Config holds runtime dependencies for the core application.
type Config struct {
	Store         store.Store
	Sessions      store.SessionStore
	Locales       store.Locales
	Images        ImageStore
	Metrics       *obs.Metrics
	AdminUsername string
	AdminPassword string
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store    store.Store
	sessions store.SessionStore
	locales  store.Locales
	images   ImageStore
	metrics  *obs.Metrics

	adminUser string
	adminPass string

	clock func() time.Time
}

// New constructs the application from already-built stores.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.New("content store required")
	case cfg.Sessions == nil:
		return nil, errors.New("session store required")
	case cfg.Locales == nil:
		return nil, errors.New("locale store required")
	case cfg.Images == nil:
		return nil, errors.New("image store required")
	}
	user := cfg.AdminUsername
	if user == "" {
		user = DefaultAdminUsername
	}
	pass := cfg.AdminPassword
	if pass == "" {
		pass = DefaultAdminPassword
	}
	return &App{
		store:     cfg.Store,
		sessions:  cfg.Sessions,
		locales:   cfg.Locales,
		images:    cfg.Images,
		metrics:   cfg.Metrics,
		adminUser: user,
		adminPass: pass,
	}, nil
}

// Login checks the admin credential pair and issues a session token.
func (a *App) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.adminUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.adminPass)) == 1
	if !userOK || !passOK {
		a.metrics.LoginAttempted(false)
		return "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession()
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	a.metrics.LoginAttempted(true)
	return token, nil
}

// Authenticate reports whether token belongs to a live admin session.
func (a *App) Authenticate(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return a.sessions.Authenticate(token)
}

// ListFAQs returns all FAQs in insertion order.
func (a *App) ListFAQs() []domain.FAQ {
	return a.store.ListFAQs()
}

// ListGallery returns all gallery entries in insertion order.
func (a *App) ListGallery() []domain.GalleryEntry {
	return a.store.ListGallery()
}

// Locale returns the translation document for lang, with fallback.
func (a *App) Locale(lang string) domain.Locale {
	return a.locales.Get(lang)
}

// AddFAQ appends a trimmed question/answer pair. A failed flush to disk is
// logged but not returned: the entry is already live in memory.
func (a *App) AddFAQ(ctx context.Context, question, answer string) error {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return ErrMissingFields
	}
	err := a.store.AppendFAQ(domain.FAQ{Question: question, Answer: answer})
	a.metrics.FAQAppended(err == nil)
	if err != nil {
		util.LoggerFromContext(ctx).Error("persist faqs failed", "err", err)
	}
	return nil
}

// Suggestions samples up to five distinct FAQ questions without replacement,
// in draw order.
func (a *App) Suggestions() []string {
	faqs := a.store.ListFAQs()
	n := min(maxSuggestions, len(faqs))
	out := make([]string, 0, n)
	for _, idx := range rand.Perm(len(faqs))[:n] {
		out = append(out, faqs[idx].Question)
	}
	return out
}

// Answer resolves a chat question to an FAQ answer, else the localized
// no-answer string, else DefaultNoAnswer.
func (a *App) Answer(question, lang string) string {
	if f, ok := MatchFAQ(a.store.ListFAQs(), question); ok {
		a.metrics.ChatAnswered(true)
		return f.Answer
	}
	a.metrics.ChatAnswered(false)
	if msg, ok := a.locales.Get(lang).Lookup(noAnswerKey); ok && msg != "" {
		return msg
	}
	return DefaultNoAnswer
}

// UploadPair stores a before/after image pair and appends a gallery entry.
// Both images are decoded before either is written. A write failure leaves
// any already-written file in place.
func (a *App) UploadPair(ctx context.Context, before, after, title, description string) (domain.GalleryEntry, error) {
	if before == "" || after == "" {
		a.metrics.GalleryUploaded("invalid_image")
		return domain.GalleryEntry{}, ErrMissingFields
	}
	beforeImg, err := decodeImage(before)
	if err != nil {
		a.metrics.GalleryUploaded("invalid_image")
		return domain.GalleryEntry{}, fmt.Errorf("before image: %w", err)
	}
	afterImg, err := decodeImage(after)
	if err != nil {
		a.metrics.GalleryUploaded("invalid_image")
		return domain.GalleryEntry{}, fmt.Errorf("after image: %w", err)
	}

	beforePath, err := a.storeImage(ctx, beforeImg, "before")
	if err != nil {
		a.metrics.GalleryUploaded("error")
		return domain.GalleryEntry{}, err
	}
	afterPath, err := a.storeImage(ctx, afterImg, "after")
	if err != nil {
		a.metrics.GalleryUploaded("error")
		return domain.GalleryEntry{}, err
	}

	entry := domain.GalleryEntry{
		Before:      beforePath,
		After:       afterPath,
		Title:       title,
		Description: description,
	}
	if err := a.store.AppendGallery(entry); err != nil {
		a.metrics.GalleryUploaded("unpersisted")
		util.LoggerFromContext(ctx).Error("persist gallery failed", "err", err)
		return entry, nil
	}
	a.metrics.GalleryUploaded("success")
	return entry, nil
}
