package domain

// FAQ is a stored question/answer pair.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GalleryEntry is a before/after image pair. Before and After are paths
// relative to the static root.
type GalleryEntry struct {
	Before      string `json:"before"`
	After       string `json:"after"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Locale maps translation keys to translated strings for one language.
type Locale map[string]string

// Lookup returns the translation for key and whether it was present.
func (l Locale) Lookup(key string) (string, bool) {
	v, ok := l[key]
	return v, ok
}
