package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"clinicsite/pkg/domain"
	"clinicsite/services/site/internal/store"
)

type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  int
	puts    int
}

func (m *memImages) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failOn > 0 && m.puts == m.failOn {
		return errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return nil
}

type staticLocales map[string]domain.Locale

func (s staticLocales) Get(lang string) domain.Locale {
	if loc, ok := s[lang]; ok {
		return loc
	}
	if loc, ok := s["en"]; ok {
		return loc
	}
	return domain.Locale{}
}

type failingStore struct{ *store.MemoryStore }

func (f failingStore) AppendFAQ(faq domain.FAQ) error {
	_ = f.MemoryStore.AppendFAQ(faq)
	return errors.New("write faqs.json: read-only file system")
}

func (f failingStore) AppendGallery(e domain.GalleryEntry) error {
	_ = f.MemoryStore.AppendGallery(e)
	return errors.New("write gallery.json: read-only file system")
}

func newTestApp(t *testing.T, st store.Store, locales store.Locales, images ImageStore) *App {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	if locales == nil {
		locales = staticLocales{}
	}
	if images == nil {
		images = &memImages{}
	}
	a, err := New(Config{
		Store:    st,
		Sessions: store.NewMemorySessions(24 * time.Hour),
		Locales:  locales,
		Images:   images,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func pngURI(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}

func TestLoginIssuesSessionOnlyForValidCredentials(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)

	if _, err := a.Login(DefaultAdminUsername, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Login("", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for blanks, got %v", err)
	}
	token, err := a.Login(DefaultAdminUsername, DefaultAdminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if ok, err := a.Authenticate(token); err != nil || !ok {
		t.Fatalf("expected issued token to authenticate: ok=%v err=%v", ok, err)
	}
	if ok, _ := a.Authenticate("not-issued"); ok {
		t.Fatalf("expected unknown token rejected")
	}
	if ok, _ := a.Authenticate(""); ok {
		t.Fatalf("expected empty token rejected")
	}
}

func TestLoginUsesConfiguredCredentials(t *testing.T) {
	a, err := New(Config{
		Store:         store.NewMemoryStore(),
		Sessions:      store.NewMemorySessions(time.Hour),
		Locales:       staticLocales{},
		Images:        &memImages{},
		AdminUsername: "owner",
		AdminPassword: "s3cret",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, err := a.Login(DefaultAdminUsername, DefaultAdminPassword); err == nil {
		t.Fatalf("expected default credentials rejected once overridden")
	}
	if _, err := a.Login("owner", "s3cret"); err != nil {
		t.Fatalf("login with configured credentials: %v", err)
	}
}

func TestAddFAQValidatesAndTrims(t *testing.T) {
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil, nil)
	ctx := context.Background()

	for _, tc := range [][2]string{{"", "a"}, {"q", "  "}, {" ", ""}} {
		if err := a.AddFAQ(ctx, tc[0], tc[1]); !errors.Is(err, ErrMissingFields) {
			t.Fatalf("AddFAQ(%q,%q): expected ErrMissingFields, got %v", tc[0], tc[1], err)
		}
	}
	if err := a.AddFAQ(ctx, "  Do you take walk-ins? ", " Yes "); err != nil {
		t.Fatalf("add faq: %v", err)
	}
	got := a.ListFAQs()
	if len(got) != 1 || got[0].Question != "Do you take walk-ins?" || got[0].Answer != "Yes" {
		t.Fatalf("unexpected faqs: %+v", got)
	}
}

func TestAddFAQFlushFailureStillSucceeds(t *testing.T) {
	a := newTestApp(t, failingStore{store.NewMemoryStore()}, nil, nil)
	if err := a.AddFAQ(context.Background(), "q", "a"); err != nil {
		t.Fatalf("expected flush failure to be swallowed, got %v", err)
	}
	if got := a.ListFAQs(); len(got) != 1 {
		t.Fatalf("expected in-memory append to stand, got %+v", got)
	}
}

func TestSuggestionsAreDistinct(t *testing.T) {
	faqs := []domain.FAQ{{Question: "a"}, {Question: "b"}, {Question: "c"}}
	a := newTestApp(t, store.NewMemoryStore(faqs...), nil, nil)
	for i := 0; i < 20; i++ {
		got := a.Suggestions()
		if len(got) != 3 {
			t.Fatalf("expected 3 suggestions, got %v", got)
		}
		seen := map[string]bool{}
		for _, q := range got {
			if q != "a" && q != "b" && q != "c" {
				t.Fatalf("suggestion %q not from the set", q)
			}
			if seen[q] {
				t.Fatalf("duplicate suggestion in %v", got)
			}
			seen[q] = true
		}
	}

	var many []domain.FAQ
	for _, q := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		many = append(many, domain.FAQ{Question: q})
	}
	a = newTestApp(t, store.NewMemoryStore(many...), nil, nil)
	if got := a.Suggestions(); len(got) != maxSuggestions {
		t.Fatalf("expected %d suggestions, got %v", maxSuggestions, got)
	}
	a = newTestApp(t, nil, nil, nil)
	if got := a.Suggestions(); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil suggestions, got %#v", got)
	}
}

func TestAnswerFallbacks(t *testing.T) {
	faqs := []domain.FAQ{{Question: "what are your hours", Answer: "We are open 9-5"}}

	a := newTestApp(t, store.NewMemoryStore(faqs...), staticLocales{"en": {}}, nil)
	if got := a.Answer("Can you tell me what are your hours today?", "en"); got != "We are open 9-5" {
		t.Fatalf("unexpected matched answer %q", got)
	}
	if got := a.Answer("parking?", "en"); got != DefaultNoAnswer {
		t.Fatalf("expected default no-answer, got %q", got)
	}

	locales := staticLocales{
		"en": {"chat_no_answer": "No idea, sorry."},
		"fr": {"chat_no_answer": "Aucune idée."},
	}
	a = newTestApp(t, store.NewMemoryStore(faqs...), locales, nil)
	if got := a.Answer("parking?", "fr"); got != "Aucune idée." {
		t.Fatalf("expected fr no-answer, got %q", got)
	}
	if got := a.Answer("parking?", "de"); got != "No idea, sorry." {
		t.Fatalf("expected en fallback no-answer, got %q", got)
	}
}

func TestUploadPairStoresBothImages(t *testing.T) {
	images := &memImages{}
	st := store.NewMemoryStore()
	a := newTestApp(t, st, nil, images)
	a.clock = func() time.Time { return time.UnixMilli(1700000000000) }

	entry, err := a.UploadPair(context.Background(), pngURI([]byte("before")),
		"data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("after")), "Whitening", "")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	beforeRe := regexp.MustCompile(`^images/gallery/before-1700000000000-[0-9a-f]{8}\.png$`)
	afterRe := regexp.MustCompile(`^images/gallery/after-1700000000000-[0-9a-f]{8}\.jpg$`)
	if !beforeRe.MatchString(entry.Before) || !afterRe.MatchString(entry.After) {
		t.Fatalf("unexpected paths %q %q", entry.Before, entry.After)
	}
	if !bytes.Equal(images.objects[entry.Before], []byte("before")) {
		t.Fatalf("before image not stored")
	}
	if entry.Title != "Whitening" || entry.Description != "" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := st.ListGallery(); len(got) != 1 || got[0] != entry {
		t.Fatalf("expected entry appended, got %+v", got)
	}
}

func TestUploadPairRejectsBeforeWriting(t *testing.T) {
	images := &memImages{}
	a := newTestApp(t, nil, nil, images)
	ctx := context.Background()

	if _, err := a.UploadPair(ctx, "", pngURI([]byte("x")), "", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	gif := "data:image/gif;base64," + base64.StdEncoding.EncodeToString([]byte("gif"))
	if _, err := a.UploadPair(ctx, pngURI([]byte("x")), gif, "", ""); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if images.puts != 0 {
		t.Fatalf("expected no writes when an image is invalid, got %d", images.puts)
	}
	if len(a.ListGallery()) != 0 {
		t.Fatalf("expected no gallery entry")
	}
}

func TestUploadPairWriteFailureKeepsFirstImage(t *testing.T) {
	images := &memImages{failOn: 2}
	a := newTestApp(t, nil, nil, images)
	_, err := a.UploadPair(context.Background(), pngURI([]byte("a")), pngURI([]byte("b")), "", "")
	if err == nil || errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(images.objects) != 1 {
		t.Fatalf("expected the first image to remain, got %d objects", len(images.objects))
	}
	if len(a.ListGallery()) != 0 {
		t.Fatalf("expected no gallery entry after write failure")
	}
}

func TestUploadPairFlushFailureStillReturnsEntry(t *testing.T) {
	a := newTestApp(t, failingStore{store.NewMemoryStore()}, nil, nil)
	entry, err := a.UploadPair(context.Background(), pngURI([]byte("a")), pngURI([]byte("b")), "", "")
	if err != nil {
		t.Fatalf("expected flush failure to be swallowed, got %v", err)
	}
	if entry.Before == "" || len(a.ListGallery()) != 1 {
		t.Fatalf("expected entry live in memory")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without stores")
	}
}
