// games.go — serving-слой виртуальной файловой системы архивов.
//
// Обрабатывает GET /game/{archive_id}/{путь} и отвечает содержимым файла
// из cache store без сетевых запросов. Контракт оригинального интерцептора:
// тела ошибок — plain text, любое исключение при синтезе ответа
// превращается в 500 и никогда не покидает handler.
package handlers

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gamevault/internal/api/middleware"
	"github.com/bigkaa/gamevault/internal/domain/model"
	"github.com/bigkaa/gamevault/internal/service"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

// GamesHandler — обработчик serving-запросов /game/{archive_id}/*.
type GamesHandler struct {
	store  *cachestore.Store
	cache  *service.RecordCache
	logger *slog.Logger
}

// NewGamesHandler создаёт serving-обработчик.
func NewGamesHandler(store *cachestore.Store, cache *service.RecordCache, logger *slog.Logger) *GamesHandler {
	return &GamesHandler{
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "games_handler")),
	}
}

// ServeGameFile обрабатывает GET /game/{archive_id}/*.
// Разрешает запрошенный путь против отображения файлов архива и
// синтезирует HTTP-ответ с корректными заголовками.
func (h *GamesHandler) ServeGameFile(w http.ResponseWriter, r *http.Request) {
	// Ошибки синтеза ответа не должны уходить в HTTP-пайплайн
	// необработанными: паника → 500 plain text
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Паника при выдаче файла архива",
				slog.String("path", r.URL.Path),
				slog.Any("panic", rec),
			)
			middleware.ServeRequestsTotal.WithLabelValues("error").Inc()
			writePlainText(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	archiveID := chi.URLParam(r, "archive_id")
	requested := chi.URLParam(r, "*")

	record, err := h.getRecord(r, archiveID)
	if err != nil {
		h.logger.Error("Ошибка чтения архива из store",
			slog.String("archive_id", archiveID),
			slog.String("error", err.Error()),
		)
		middleware.ServeRequestsTotal.WithLabelValues("error").Inc()
		writePlainText(w, http.StatusInternalServerError, "internal error: "+err.Error())
		return
	}

	if record == nil || len(record.Files) == 0 {
		middleware.ServeRequestsTotal.WithLabelValues("not_found").Inc()
		writePlainText(w, http.StatusNotFound, fmt.Sprintf("archive %q not found", archiveID))
		return
	}

	file, ok := resolveFile(record.Files, requested)
	if !ok {
		middleware.ServeRequestsTotal.WithLabelValues("not_found").Inc()
		writePlainText(w, http.StatusNotFound,
			fmt.Sprintf("file %q not found in archive %q", requested, archiveID))
		return
	}

	body, err := fileBody(file)
	if err != nil {
		h.logger.Error("Ошибка декодирования файла архива",
			slog.String("archive_id", archiveID),
			slog.String("file", requested),
			slog.String("error", err.Error()),
		)
		middleware.ServeRequestsTotal.WithLabelValues("error").Inc()
		writePlainText(w, http.StatusInternalServerError, "internal error: "+err.Error())
		return
	}

	contentType := file.MimeType
	if !file.Binary {
		contentType += "; charset=utf-8"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)

	middleware.ServeRequestsTotal.WithLabelValues("ok").Inc()
}

// getRecord возвращает запись архива: сначала LRU-кэш, затем store.
func (h *GamesHandler) getRecord(r *http.Request, archiveID string) (*model.ArchiveRecord, error) {
	if rec, ok := h.cache.Get(archiveID); ok {
		return rec, nil
	}

	rec, err := h.store.Get(r.Context(), archiveID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		h.cache.Set(archiveID, rec)
	}
	return rec, nil
}

// resolveFile разрешает запрошенный путь против отображения файлов архива.
// Порядок, первый успех побеждает:
//  1. Точное совпадение ключа
//  2. Совпадение после удаления ведущих слэшей с обеих сторон
//  3. Суффиксное совпадение: ключ (с префиксом "/") оканчивается на
//     "/"+путь — для архивов с точкой входа во вложенной директории
func resolveFile(files map[string]model.FileRecord, requested string) (model.FileRecord, bool) {
	if rec, ok := files[requested]; ok {
		return rec, true
	}

	stripped := strings.TrimLeft(requested, "/")
	for key, rec := range files {
		if strings.TrimLeft(key, "/") == stripped {
			return rec, true
		}
	}

	suffix := "/" + stripped
	for key, rec := range files {
		k := "/" + strings.TrimLeft(key, "/")
		if strings.HasSuffix(k, suffix) {
			return rec, true
		}
	}

	return model.FileRecord{}, false
}

// fileBody возвращает байты тела ответа для FileRecord.
// Бинарное содержимое декодируется из base64, текстовое — как есть.
func fileBody(file model.FileRecord) ([]byte, error) {
	if !file.Binary {
		return []byte(file.Content), nil
	}
	body, err := base64.StdEncoding.DecodeString(file.Content)
	if err != nil {
		return nil, fmt.Errorf("декодирование base64: %w", err)
	}
	return body, nil
}

// writePlainText записывает plain text ответ serving-слоя.
func writePlainText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}
