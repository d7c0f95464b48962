package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/config"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/metrics"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

// sessionCookie имя cookie с токеном сессии
const sessionCookie = "notes_session"

// IPStats структура для трекинга лимитов
type IPStats struct {
	Connections   int64         // Одновременные соединения
	UploadBytes   int64         // Байты загруженных данных за текущие сутки
	DownloadBytes int64         // Байты отданных данных за текущие сутки
	Deletes       int64         // Удаления за текущие сутки
	RateLimiter   *rate.Limiter // Лимит запросов (RPS)
	mu            sync.Mutex
}

// IPLimiter ограничивает запросы по IP-адресу клиента
type IPLimiter struct {
	stats            sync.Map
	rps              rate.Limit
	burst            int
	maxConns         int64
	maxUploadBytes   int64
	maxDownloadBytes int64
	maxDeletes       int64
}

// NewIPLimiter создает ограничитель; нулевые значения отключают соответствующий лимит
func NewIPLimiter(cfg config.LimitsConfig) *IPLimiter {
	l := &IPLimiter{
		rps:              rate.Inf,
		maxConns:         cfg.MaxConnectionsPerIP,
		maxUploadBytes:   cfg.MaxUploadBytesPerIP,
		maxDownloadBytes: cfg.MaxDownloadBytesPerIP,
		maxDeletes:       cfg.MaxDeletesPerIP,
	}
	if cfg.RequestsPerSecond > 0 {
		l.rps = rate.Limit(cfg.RequestsPerSecond)
		l.burst = int(cfg.RequestsPerSecond)
		if l.burst < 1 {
			l.burst = 1
		}
	}
	return l
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *IPLimiter) statsFor(ip string) *IPStats {
	stats, _ := l.stats.LoadOrStore(ip, &IPStats{
		RateLimiter: rate.NewLimiter(l.rps, l.burst),
	})
	return stats.(*IPStats)
}

// Middleware применяет лимиты RPS и одновременных соединений ко всем запросам.
// Суточные квоты применяются отдельно к конкретным маршрутам после проверки доступа.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ipStat := l.statsFor(clientIP(r))

		// Ограничение RPS
		if !ipStat.RateLimiter.Allow() {
			metrics.RecordRateLimited("rps")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		// Ограничение одновременных соединений
		ipStat.mu.Lock()
		if l.maxConns > 0 && ipStat.Connections >= l.maxConns {
			ipStat.mu.Unlock()
			metrics.RecordRateLimited("connections")
			http.Error(w, "too many connections from this IP", http.StatusTooManyRequests)
			return
		}
		ipStat.Connections++
		ipStat.mu.Unlock()

		// Снимаем соединение после завершения обработки
		defer func() {
			ipStat.mu.Lock()
			ipStat.Connections--
			ipStat.mu.Unlock()
		}()

		next.ServeHTTP(w, r)
	})
}

// UploadQuota списывает размер тела запроса с суточной квоты загрузок
func (l *IPLimiter) UploadQuota(next http.HandlerFunc) http.HandlerFunc {
	if l == nil || l.maxUploadBytes <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ipStat := l.statsFor(clientIP(r))

		ipStat.mu.Lock()
		if r.ContentLength > 0 {
			if ipStat.UploadBytes+r.ContentLength > l.maxUploadBytes {
				ipStat.mu.Unlock()
				metrics.RecordRateLimited("upload_bytes")
				http.Error(w, "upload limit exceeded", http.StatusForbidden)
				return
			}
			ipStat.UploadBytes += r.ContentLength
		}
		ipStat.mu.Unlock()

		next(w, r)
	}
}

// DownloadQuota отказывает, если суточная квота скачивания исчерпана,
// и списывает фактически отданные байты
func (l *IPLimiter) DownloadQuota(next http.HandlerFunc) http.HandlerFunc {
	if l == nil || l.maxDownloadBytes <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ipStat := l.statsFor(clientIP(r))

		ipStat.mu.Lock()
		exhausted := ipStat.DownloadBytes >= l.maxDownloadBytes
		ipStat.mu.Unlock()
		if exhausted {
			metrics.RecordRateLimited("download_bytes")
			http.Error(w, "download limit exceeded", http.StatusForbidden)
			return
		}

		cw := &countingWriter{ResponseWriter: w}
		next(cw, r)

		ipStat.mu.Lock()
		ipStat.DownloadBytes += cw.n
		ipStat.mu.Unlock()
	}
}

// DeleteQuota ограничивает число удалений за сутки
func (l *IPLimiter) DeleteQuota(next http.HandlerFunc) http.HandlerFunc {
	if l == nil || l.maxDeletes <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ipStat := l.statsFor(clientIP(r))

		ipStat.mu.Lock()
		if ipStat.Deletes >= l.maxDeletes {
			ipStat.mu.Unlock()
			metrics.RecordRateLimited("deletes")
			http.Error(w, "delete limit exceeded", http.StatusForbidden)
			return
		}
		ipStat.Deletes++
		ipStat.mu.Unlock()

		next(w, r)
	}
}

// Reset сбрасывает суточную статистику
func (l *IPLimiter) Reset() {
	l.stats.Range(func(key, value interface{}) bool {
		stats := value.(*IPStats)
		stats.mu.Lock()
		stats.UploadBytes = 0
		stats.DownloadBytes = 0
		stats.Deletes = 0
		stats.mu.Unlock()
		return true
	})
}

// ResetIPStats сбрасывает статистику каждые interval до отмены ctx
func (l *IPLimiter) ResetIPStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Reset()
			logging.Debug("per-IP quotas reset")
		}
	}
}

type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *countingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogger пишет в журнал и метрики каждый завершенный запрос
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.RecordRequest(r.Method, route, rec.status, elapsed)
		logging.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.String("remote", clientIP(r)))
	})
}

// requireAuth пропускает запрос только с действующей сессией, иначе
// перенаправляет на страницу входа
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		claims, err := s.auth.Authenticate(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, models.ErrSessionNotFound) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			logging.Error("session check failed", zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	}
}

// requireShareToken пропускает запрос без сессии, если параметр token
// подписан для запрошенного файла
func (s *Server) requireShareToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.auth.VerifyShareToken(r.URL.Query().Get("token"), r.PathValue("folder"), r.PathValue("filename"))
		if err != nil {
			if errors.Is(err, models.ErrShareTokenInvalid) {
				logging.Warn("shared view rejected", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			writeError(w, err)
			return
		}
		next(w, r)
	}
}
