// maintenance.go — обработчик POST /api/v1/maintenance/sweep.
// Синхронный запуск retention sweep в обход фонового тикера.
package handlers

import (
	"context"
	"net/http"

	"github.com/bigkaa/gamevault/internal/service"
)

// SweepRunner — интерфейс для запуска sweep.
// Позволяет тестировать handler без полного SweepService.
type SweepRunner interface {
	// RunOnce выполняет один цикл sweep.
	RunOnce(ctx context.Context) *service.SweepResult
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	sweeper SweepRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(sweeper SweepRunner) *MaintenanceHandler {
	return &MaintenanceHandler{sweeper: sweeper}
}

// Sweep обрабатывает POST /api/v1/maintenance/sweep.
// Запускает синхронный цикл очистки и возвращает идентификаторы
// удалённых архивов.
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result := h.sweeper.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, result)
}
