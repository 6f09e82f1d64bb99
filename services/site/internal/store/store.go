package store

import "clinicsite/pkg/domain"

// Store is the single writer of the FAQ and gallery collections.
type Store interface {
	// faqs
	ListFAQs() []domain.FAQ
	AppendFAQ(domain.FAQ) error

	// gallery
	ListGallery() []domain.GalleryEntry
	AppendGallery(domain.GalleryEntry) error
}

// SessionStore issues opaque admin tokens with sliding expiry.
type SessionStore interface {
	NewSession() (string, error)
	// Authenticate reports whether token is live and, if so, restarts its
	// expiry clock. Expired tokens are removed as a side effect.
	Authenticate(token string) (bool, error)
}

// Locales resolves translation documents by language code.
type Locales interface {
	Get(lang string) domain.Locale
}
