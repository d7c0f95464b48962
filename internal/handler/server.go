package handler

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/library"
	"github.com/ivanov-nikolay/notes_storage/internal/viewer"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"rawURL":     viewer.RawURL,
	"pathEscape": url.PathEscape,
	"formatTime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
}

// Server HTTP-интерфейс приложения
type Server struct {
	lib           *library.Library
	renderer      *viewer.Renderer
	auth          *auth.Auth
	limiter       *IPLimiter
	uploads       *semaphore.Weighted
	maxUploadSize int64
	cookieSecure  bool
	templates     *template.Template
}

// NewServer создает сервер
func NewServer(cfg *config.Config, lib *library.Library, renderer *viewer.Renderer, authHandler *auth.Auth, limiter *IPLimiter) *Server {
	maxUploads := cfg.Storage.MaxConcurrentUploads
	if maxUploads <= 0 {
		maxUploads = config.DefaultMaxConcurrentUploads
	}

	return &Server{
		lib:           lib,
		renderer:      renderer,
		auth:          authHandler,
		limiter:       limiter,
		uploads:       semaphore.NewWeighted(maxUploads),
		maxUploadSize: cfg.Storage.MaxUploadSize,
		cookieSecure:  cfg.Auth.CookieSecure,
		templates:     template.Must(template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")),
	}
}

// Handler возвращает корневой обработчик со всеми маршрутами
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
	mux.HandleFunc("POST /upload", s.requireAuth(s.limiter.UploadQuota(s.handleUpload)))
	mux.HandleFunc("POST /create_folder", s.requireAuth(s.handleCreateFolder))
	mux.HandleFunc("POST /delete_file/{folder}/{filename}", s.requireAuth(s.limiter.DeleteQuota(s.handleDeleteFile)))
	mux.HandleFunc("POST /delete_folder/{folder}", s.requireAuth(s.limiter.DeleteQuota(s.handleDeleteFolder)))
	mux.HandleFunc("GET /folder/{folder_name}", s.requireAuth(s.handleViewFolder))
	mux.HandleFunc("GET /read/{folder}/{filename}", s.requireAuth(s.handleRead))
	mux.HandleFunc("GET /static_view/{folder}/{filename}", s.requireAuth(s.limiter.DownloadQuota(s.handleStaticView)))

	// для внешних просмотрщиков без cookie сессии
	mux.HandleFunc("GET /shared_view/{folder}/{filename}", s.requireShareToken(s.limiter.DownloadQuota(s.handleStaticView)))

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(h)
	}
	return requestLogger(h)
}

// NewHTTPServer оборачивает обработчик в http.Server с таймаутами
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
