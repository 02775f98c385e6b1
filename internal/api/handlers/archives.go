// archives.go — HTTP handlers управления архивами.
// Load, List, Get metadata, Delete.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gamevault/internal/api/errors"
	"github.com/bigkaa/gamevault/internal/api/middleware"
	"github.com/bigkaa/gamevault/internal/service"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

// maxLoadParts — максимальное количество ZIP-частей в одном запросе load.
const maxLoadParts = 16

// ArchivesHandler — обработчик endpoints управления архивами.
type ArchivesHandler struct {
	loader *service.LoaderService
	store  *cachestore.Store
	cache  *service.RecordCache
	logger *slog.Logger
}

// NewArchivesHandler создаёт обработчик endpoints управления архивами.
func NewArchivesHandler(
	loader *service.LoaderService,
	store *cachestore.Store,
	cache *service.RecordCache,
	logger *slog.Logger,
) *ArchivesHandler {
	return &ArchivesHandler{
		loader: loader,
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "archives_handler")),
	}
}

// loadRequest — тело запроса POST /api/v1/archives/load.
type loadRequest struct {
	// Sources — упорядоченный список URL ZIP-частей архива.
	// Идентификатор архива берётся из имени первой части.
	Sources []string `json:"sources"`
}

// archiveSummary — метаданные архива в API-ответах (без содержимого файлов).
type archiveSummary struct {
	ArchiveID  string `json:"archive_id"`
	FileCount  int    `json:"file_count"`
	UploadDate string `json:"upload_date"`
	LastPlayed string `json:"last_played,omitempty"`
}

// LoadArchive обрабатывает POST /api/v1/archives/load.
// Синхронно обеспечивает наличие архива в cache store.
// 200 — архив выдан из кэша, 201 — архив скачан и сохранён.
func (h *ArchivesHandler) LoadArchive(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный JSON: %s", err.Error()))
		return
	}
	if len(req.Sources) == 0 {
		apierrors.ValidationError(w, "Поле 'sources' обязательно и не может быть пустым")
		return
	}
	if len(req.Sources) > maxLoadParts {
		apierrors.ValidationError(w, fmt.Sprintf("Слишком много частей архива: максимум %d", maxLoadParts))
		return
	}

	// Прогресс скачивания виден только в логах: HTTP-вызов синхронный
	progress := func(downloading bool) {
		h.logger.Debug("Статус скачивания изменён",
			slog.Bool("downloading", downloading),
		)
	}

	result, loadErr := h.loader.Load(r.Context(), req.Sources, progress)
	if loadErr != nil {
		apierrors.WriteError(w, loadErr.StatusCode, loadErr.Code, loadErr.Message)
		return
	}

	status := http.StatusCreated
	if result.Cached {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// ListArchives обрабатывает GET /api/v1/archives.
// Возвращает метаданные всех архивов без содержимого файлов.
func (h *ArchivesHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.GetAll(r.Context())
	if err != nil {
		h.logger.Error("Ошибка чтения списка архивов", slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeStoreError,
			"Ошибка чтения cache store")
		return
	}

	items := make([]archiveSummary, 0, len(records))
	for _, rec := range records {
		items = append(items, archiveSummary{
			ArchiveID:  rec.ID,
			FileCount:  len(rec.Files),
			UploadDate: rec.UploadDate,
			LastPlayed: rec.LastPlayed,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": len(items),
	})
}

// GetArchive обрабатывает GET /api/v1/archives/{archive_id}.
func (h *ArchivesHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := chi.URLParam(r, "archive_id")

	rec, err := h.store.Get(r.Context(), archiveID)
	if err != nil {
		h.logger.Error("Ошибка чтения архива",
			slog.String("archive_id", archiveID),
			slog.String("error", err.Error()),
		)
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeStoreError,
			"Ошибка чтения cache store")
		return
	}
	if rec == nil {
		apierrors.NotFound(w, fmt.Sprintf("Архив %s не найден", archiveID))
		return
	}

	writeJSON(w, http.StatusOK, archiveSummary{
		ArchiveID:  rec.ID,
		FileCount:  len(rec.Files),
		UploadDate: rec.UploadDate,
		LastPlayed: rec.LastPlayed,
	})
}

// DeleteArchive обрабатывает DELETE /api/v1/archives/{archive_id}.
// Явное удаление архива из cache store (в обход sweep).
func (h *ArchivesHandler) DeleteArchive(w http.ResponseWriter, r *http.Request) {
	archiveID := chi.URLParam(r, "archive_id")

	deleted, err := h.store.Delete(r.Context(), archiveID)
	if err != nil {
		h.logger.Error("Ошибка удаления архива",
			slog.String("archive_id", archiveID),
			slog.String("error", err.Error()),
		)
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeStoreError,
			"Ошибка удаления из cache store")
		return
	}
	if !deleted {
		apierrors.NotFound(w, fmt.Sprintf("Архив %s не найден", archiveID))
		return
	}

	h.cache.Invalidate(archiveID)
	middleware.ArchivesTotal.Dec()

	h.logger.Info("Архив удалён",
		slog.String("archive_id", archiveID),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON — вспомогательная функция для записи JSON-ответа.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
