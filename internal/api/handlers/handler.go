// handler.go — APIHandler собирает доменные handlers в один объект,
// который server монтирует на chi-роутер.
package handlers

import (
	"net/http"
)

// APIHandler — единый обработчик всех endpoints Game Vault.
type APIHandler struct {
	games       *GamesHandler
	archives    *ArchivesHandler
	maintenance *MaintenanceHandler
	health      *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	games *GamesHandler,
	archives *ArchivesHandler,
	maintenance *MaintenanceHandler,
	health *HealthHandler,
) *APIHandler {
	return &APIHandler{
		games:       games,
		archives:    archives,
		maintenance: maintenance,
		health:      health,
	}
}

// --- Serving ---

func (h *APIHandler) ServeGameFile(w http.ResponseWriter, r *http.Request) {
	h.games.ServeGameFile(w, r)
}

// --- Archives ---

func (h *APIHandler) LoadArchive(w http.ResponseWriter, r *http.Request) {
	h.archives.LoadArchive(w, r)
}

func (h *APIHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	h.archives.ListArchives(w, r)
}

func (h *APIHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	h.archives.GetArchive(w, r)
}

func (h *APIHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	h.archives.DeleteArchive(w, r)
}

// --- Maintenance ---

func (h *APIHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	h.maintenance.Sweep(w, r)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}
