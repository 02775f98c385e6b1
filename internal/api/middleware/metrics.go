// metrics.go — Prometheus HTTP метрики Game Vault.
// Регистрирует метрики: gv_http_requests_total, gv_http_request_duration_seconds.
// Бизнес-метрики (gv_archives_total, gv_loads_total, sweep и LRU)
// регистрируются в соответствующих пакетах и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gv_http_requests_total",
			Help: "Общее количество HTTP-запросов к Game Vault",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Game Vault в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// ArchivesTotal — текущее количество архивов в хранилище (gauge).
	ArchivesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gv_archives_total",
			Help: "Текущее количество архивов в cache store",
		},
	)

	// ServeRequestsTotal — количество запросов serving-слоя /game.
	ServeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gv_serve_requests_total",
			Help: "Общее количество запросов файлов из архивов",
		},
		[]string{"result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (идентификаторы архивов и пути файлов схлопываются,
			// иначе кардинальность растёт с каждым архивом)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath схлопывает переменные сегменты пути для лейблов метрик.
// /game/{любой id}/{любой путь} → /game/{id}/*
// /api/v1/archives/{любой id} → /api/v1/archives/{id}
func normalizePath(path string) string {
	switch {
	case path == "/health/live", path == "/health/ready", path == "/metrics":
		return path
	case path == "/api/v1/archives", path == "/api/v1/archives/load":
		return path
	case path == "/api/v1/maintenance/sweep":
		return path
	case strings.HasPrefix(path, "/game/"):
		return "/game/{id}/*"
	case strings.HasPrefix(path, "/api/v1/archives/"):
		return "/api/v1/archives/{id}"
	}
	return path
}
