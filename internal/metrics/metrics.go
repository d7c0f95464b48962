// Package metrics метрики Prometheus сервера заметок.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_http_requests_total",
			Help: "Количество HTTP-запросов",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notes_http_request_duration_seconds",
			Help:    "Длительность HTTP-запроса в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	uploadedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_uploaded_files_total",
			Help: "Файлы, полученные при загрузке",
		},
		[]string{"result"}, // saved, skipped
	)

	uploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notes_uploaded_bytes_total",
			Help: "Байты, записанные при загрузке",
		},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_deletes_total",
			Help: "Операции удаления",
		},
		[]string{"kind", "result"}, // file|folder, ok|not_found|error
	)

	renderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_render_total",
			Help: "Просмотры файлов по способу показа",
		},
		[]string{"kind"},
	)

	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_auth_attempts_total",
			Help: "Попытки входа",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notes_rate_limited_total",
			Help: "Запросы, отклоненные лимитами по IP",
		},
		[]string{"reason"},
	)
)

// RecordRequest учитывает завершенный HTTP-запрос
func RecordRequest(method, route string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordUpload учитывает результат одного запроса на загрузку
func RecordUpload(saved, skipped int, bytes int64) {
	uploadedFilesTotal.WithLabelValues("saved").Add(float64(saved))
	uploadedFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	uploadedBytesTotal.Add(float64(bytes))
}

func RecordDelete(kind, result string) {
	deletesTotal.WithLabelValues(kind, result).Inc()
}

func RecordRender(kind string) {
	renderTotal.WithLabelValues(kind).Inc()
}

func RecordAuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

func RecordRateLimited(reason string) {
	rateLimitedTotal.WithLabelValues(reason).Inc()
}

// Handler обработчик /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
