package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"clinicsite/internal/obs"
	"clinicsite/internal/util"
	"clinicsite/pkg/domain"
	"clinicsite/services/site/internal/app"
)

const (
	defaultMaxBodyBytes = 20 << 20
	indexDocument       = "index.html"
	presignExpiry       = 15 * time.Minute
)

//go:embed assets/admin.html
var adminPage []byte

// Presigner issues temporary GET URLs for images kept in object storage.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Metrics        *obs.Metrics
	StaticDir      string
	MaxBodyBytes   int64
	TrustedProxies *util.TrustedProxies
	// Presigner, when set, serves upload-prefix misses as redirects.
	Presigner Presigner
}

// Server exposes HTTP endpoints for the site.
type Server struct {
	app          *app.App
	metrics      *obs.Metrics
	static       *os.Root
	maxBodyBytes int64
	trusted      *util.TrustedProxies
	presigner    Presigner
	routes       []route
}

// route is one entry of the dispatch table. Either path matches exactly or
// prefix matches and the remainder (a single non-empty segment) is passed
// to the handler as param.
type route struct {
	name   string
	method string
	path   string
	prefix string
	handle func(w http.ResponseWriter, r *http.Request, param string)
}

func (rt route) match(r *http.Request) (string, bool) {
	if r.Method != rt.method {
		return "", false
	}
	if rt.prefix == "" {
		return "", r.URL.Path == rt.path
	}
	rest, ok := strings.CutPrefix(r.URL.Path, rt.prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if strings.TrimSpace(cfg.StaticDir) == "" {
		return nil, errors.New("static dir is required")
	}
	if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
		return nil, fmt.Errorf("create static dir: %w", err)
	}
	root, err := os.OpenRoot(cfg.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("open static dir: %w", err)
	}
	s := &Server{
		app:          cfg.App,
		metrics:      cfg.Metrics,
		static:       root,
		maxBodyBytes: normalizeMaxBytes(cfg.MaxBodyBytes),
		trusted:      cfg.TrustedProxies,
		presigner:    cfg.Presigner,
	}
	s.routes = s.routeTable()
	return s, nil
}

// Close releases the static root handle.
func (s *Server) Close() error {
	return s.static.Close()
}

// Router returns the configured handler. Preflight OPTIONS requests are
// answered by the CORS layer before dispatch.
func (s *Server) Router() http.Handler {
	var h http.Handler = http.HandlerFunc(s.dispatch)
	h = s.metrics.Instrument(s.routeName, h)
	h = util.WithCORS(h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRecover(h)
	h = util.WithRequestLog("site", h)
	return util.WithRequestID(h)
}

func (s *Server) routeTable() []route {
	routes := []route{
		{name: "healthz", method: http.MethodGet, path: "/healthz", handle: s.handleHealth},
	}
	if s.metrics != nil {
		routes = append(routes, route{name: "metrics", method: http.MethodGet, path: "/metrics", handle: s.handleMetrics})
	}
	return append(routes,
		// public api
		route{name: "locales", method: http.MethodGet, prefix: "/api/locales/", handle: s.handleLocale},
		route{name: "faqs", method: http.MethodGet, path: "/api/faqs", handle: s.handleFAQs},
		route{name: "gallery", method: http.MethodGet, path: "/api/gallery", handle: s.handleGallery},
		route{name: "faqs-suggestions", method: http.MethodGet, path: "/api/faqs-suggestions", handle: s.handleSuggestions},
		route{name: "chat", method: http.MethodPost, path: "/api/chat", handle: s.handleChat},

		// admin
		route{name: "admin-login", method: http.MethodPost, path: "/api/admin/login", handle: s.handleLogin},
		route{name: "admin-add-faq", method: http.MethodPost, path: "/api/admin/add-faq", handle: s.adminOnly(s.handleAddFAQ)},
		route{name: "admin-upload-image", method: http.MethodPost, path: "/api/admin/upload-image", handle: s.adminOnly(s.handleUploadImage)},
		route{name: "admin-page", method: http.MethodGet, path: "/admin", handle: s.handleAdminPage},
	)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	for _, rt := range s.routes {
		if param, ok := rt.match(r); ok {
			rt.handle(w, r, param)
			return
		}
	}
	s.serveStatic(w, r)
}

func (s *Server) routeName(r *http.Request) string {
	for _, rt := range s.routes {
		if _, ok := rt.match(r); ok {
			return rt.name
		}
	}
	return "static"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ string) {
	s.metrics.Handler().ServeHTTP(w, r)
}

func (s *Server) handleLocale(w http.ResponseWriter, _ *http.Request, lang string) {
	writeJSON(w, http.StatusOK, s.app.Locale(lang))
}

func (s *Server) handleFAQs(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, s.app.ListFAQs())
}

func (s *Server) handleGallery(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, s.app.ListGallery())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request, _ string) {
	writeJSON(w, http.StatusOK, s.app.Suggestions())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ string) {
	var req chatRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		if isTooLarge(err) {
			writeTooLarge(w)
			return
		}
		// A malformed chat body is treated as an empty question.
		req = chatRequest{}
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: s.app.Answer(req.Question, req.Lang)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ string) {
	var req loginRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.audit(r, "site.admin.login", "fail", "reason", "invalid_json")
		writeDecodeError(w, err)
		return
	}
	token, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		s.audit(r, "site.admin.login", "fail", "reason", err.Error())
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.internalError(w, r, err)
		return
	}
	s.audit(r, "site.admin.login", "success")
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// auth wrapper
func (s *Server) adminOnly(next func(http.ResponseWriter, *http.Request, string)) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, param string) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "site.admin.authorize", "fail", "reason", "missing_token")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		valid, err := s.app.Authenticate(token)
		if err != nil {
			s.audit(r, "site.admin.authorize", "fail", "reason", "session_store_error")
			s.internalError(w, r, err)
			return
		}
		if !valid {
			s.audit(r, "site.admin.authorize", "fail", "reason", "invalid_or_expired")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "site.admin.authorize", "success")
		next(w, r, param)
	}
}

func (s *Server) handleAddFAQ(w http.ResponseWriter, r *http.Request, _ string) {
	var req addFAQRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.app.AddFAQ(r.Context(), req.Question, req.Answer); err != nil {
		if errors.Is(err, app.ErrMissingFields) {
			writeError(w, http.StatusBadRequest, "question and answer are required")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request, _ string) {
	var req uploadRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	entry, err := s.app.UploadPair(r.Context(), req.Before, req.After, req.Title, req.Description)
	switch {
	case err == nil:
	case errors.Is(err, app.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "before and after images are required")
		return
	case errors.Is(err, app.ErrInvalidImage):
		writeError(w, http.StatusBadRequest, "images must be PNG or JPEG data URIs")
		return
	default:
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Entry: entry})
}

func (s *Server) handleAdminPage(w http.ResponseWriter, _ *http.Request, _ string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(adminPage)
}

// serveStatic resolves the request path inside the static root. Any path
// with a parent segment is refused before touching the filesystem, and the
// root handle refuses escapes through symlinks.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		notFound(w)
		return
	}
	name, ok := staticName(r.URL.Path)
	if !ok {
		notFound(w)
		return
	}
	f, info, err := s.openStatic(name)
	if err != nil {
		if s.presigner != nil && strings.HasPrefix(name, app.UploadPrefix+"/") {
			s.redirectPresigned(w, r, name)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			util.LoggerFromContext(r.Context()).Warn("static open failed", "path", name, "err", err)
		}
		notFound(w)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) openStatic(name string) (*os.File, os.FileInfo, error) {
	f, err := s.static.Open(name)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.IsDir() {
		return f, info, nil
	}
	f.Close()
	if path.Base(name) == indexDocument {
		return nil, nil, fs.ErrNotExist
	}
	return s.openStatic(path.Join(name, indexDocument))
}

func (s *Server) redirectPresigned(w http.ResponseWriter, r *http.Request, key string) {
	url, err := s.presigner.PresignGet(r.Context(), key, presignExpiry)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("presign image failed", "key", key, "err", err)
		notFound(w)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// staticName maps a URL path onto a slash-separated name relative to the
// static root; "." is the root itself.
func staticName(urlPath string) (string, bool) {
	if strings.ContainsRune(urlPath, 0) || strings.Contains(urlPath, "\\") {
		return "", false
	}
	for _, seg := range strings.Split(urlPath, "/") {
		if seg == ".." {
			return "", false
		}
	}
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		name = "."
	}
	return name, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("Internal Server Error"))
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

type chatRequest struct {
	Question string `json:"question"`
	Lang     string `json:"lang"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type addFAQRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type uploadRequest struct {
	Before      string `json:"before"`
	After       string `json:"after"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type uploadResponse struct {
	Success bool                `json:"success"`
	Entry   domain.GalleryEntry `json:"entry"`
}

// bearerToken accepts exactly "Bearer <token>" with a single-token value.
func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		slog.Debug("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		slog.Debug("malformed bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isTooLarge(err) {
		writeTooLarge(w)
		return
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeTooLarge(w http.ResponseWriter) {
	w.Header().Set("Connection", "close")
	http.Error(w, "Payload Too Large", http.StatusRequestEntityTooLarge)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func notFound(w http.ResponseWriter) {
	http.Error(w, "Not Found", http.StatusNotFound)
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return defaultMaxBodyBytes
	}
	return value
}
