// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/gamevault/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// StorePinger — интерфейс для проверки доступности cache store.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	store   StorePinger
}

// NewHealthHandler создаёт обработчик health endpoints.
// store может быть nil (базовая проверка без зависимостей).
func NewHealthHandler(store StorePinger) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		store:   store,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "gamevault",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность cache store: без него serving-слой отдаёт 404
// на все архивы, инстанс не готов принимать трафик.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	storeCheck := h.checkStore(r.Context())
	if storeCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "gamevault",
		"checks": map[string]any{
			"cache_store": storeCheck,
		},
	})
}

// checkStore проверяет доступность cache store.
func (h *HealthHandler) checkStore(ctx context.Context) map[string]any {
	if h.store == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	if err := h.store.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Cache store недоступен: " + err.Error(),
		}
	}

	return map[string]any{
		"status": "ok",
	}
}
