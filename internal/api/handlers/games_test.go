package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/gamevault/internal/domain/model"
	"github.com/bigkaa/gamevault/internal/service"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

// newGamesTestRouter создаёт store, кэш и роутер с serving-маршрутом.
func newGamesTestRouter(t *testing.T) (*cachestore.Store, *service.RecordCache, *chi.Mux) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := cachestore.Open(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("Ошибка открытия store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cache := service.NewRecordCache(8, time.Minute)
	handler := NewGamesHandler(store, cache, logger)

	router := chi.NewRouter()
	router.Get("/game/{archive_id}/*", handler.ServeGameFile)
	return store, cache, router
}

// putTestArchive сохраняет запись архива с указанными файлами.
func putTestArchive(t *testing.T, store *cachestore.Store, id string, files map[string]model.FileRecord) {
	t.Helper()

	rec := &model.ArchiveRecord{
		ID:         id,
		Files:      files,
		UploadDate: time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.Put(context.Background(), rec); err != nil {
		t.Fatalf("Put %s: неожиданная ошибка: %v", id, err)
	}
}

// serveGet выполняет GET-запрос через роутер и возвращает recorder.
func serveGet(router *chi.Mux, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServeGameFile_TextFile(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	putTestArchive(t, store, "tetris", map[string]model.FileRecord{
		"index.html": {Content: "<html>tetris</html>", MimeType: "text/html"},
	})

	rec := serveGet(router, "/game/tetris/index.html")

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d (тело: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "<html>tetris</html>" {
		t.Errorf("тело: хотели HTML, получили %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type: хотели text/html; charset=utf-8, получили %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: хотели *, получили %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Errorf("Cache-Control: хотели агрессивное кэширование, получили %q", got)
	}
}

func TestServeGameFile_BinaryFile(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0xff}
	putTestArchive(t, store, "tetris", map[string]model.FileRecord{
		"img/logo.png": {
			Content:  base64.StdEncoding.EncodeToString(raw),
			MimeType: "image/png",
			Binary:   true,
		},
	})

	rec := serveGet(router, "/game/tetris/img/logo.png")

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}
	if got := rec.Body.Bytes(); string(got) != string(raw) {
		t.Errorf("тело: хотели исходные байты %v, получили %v", raw, got)
	}
	// Бинарные файлы отдаются без charset
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type: хотели image/png, получили %q", got)
	}
}

func TestServeGameFile_LeadingSlashKey(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	// ZIP-записи могут иметь ведущий слэш в имени
	putTestArchive(t, store, "pong", map[string]model.FileRecord{
		"/index.html": {Content: "pong", MimeType: "text/html"},
	})

	rec := serveGet(router, "/game/pong/index.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d (тело: %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "pong" {
		t.Errorf("тело: хотели pong, получили %q", rec.Body.String())
	}
}

func TestServeGameFile_SuffixMatch(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	// Точка входа во вложенной директории: запрос index.html
	// должен разрешиться суффиксным совпадением
	putTestArchive(t, store, "quest", map[string]model.FileRecord{
		"dist/index.html": {Content: "quest", MimeType: "text/html"},
	})

	rec := serveGet(router, "/game/quest/index.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d (тело: %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "quest" {
		t.Errorf("тело: хотели quest, получили %q", rec.Body.String())
	}
}

func TestResolveFile_ExactBeatsSuffix(t *testing.T) {
	files := map[string]model.FileRecord{
		"index.html":     {Content: "root"},
		"sub/index.html": {Content: "nested"},
	}

	rec, ok := resolveFile(files, "index.html")
	if !ok {
		t.Fatal("resolveFile: хотели совпадение, получили miss")
	}
	if rec.Content != "root" {
		t.Errorf("точное совпадение должно побеждать суффиксное: хотели root, получили %q", rec.Content)
	}
}

func TestServeGameFile_ArchiveNotFound(t *testing.T) {
	_, _, router := newGamesTestRouter(t)

	rec := serveGet(router, "/game/ghost/index.html")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус: хотели 404, получили %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "not found") || !strings.Contains(body, "ghost") {
		t.Errorf("тело 404 должно называть архив и 'not found', получили %q", body)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Content-Type ошибки: хотели text/plain, получили %q", got)
	}
}

func TestServeGameFile_FileNotFound(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	putTestArchive(t, store, "tetris", map[string]model.FileRecord{
		"index.html": {Content: "x", MimeType: "text/html"},
	})

	rec := serveGet(router, "/game/tetris/missing.js")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус: хотели 404, получили %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "not found") || !strings.Contains(body, "missing.js") {
		t.Errorf("тело 404 должно называть файл и 'not found', получили %q", body)
	}
}

func TestServeGameFile_BrokenBase64(t *testing.T) {
	store, _, router := newGamesTestRouter(t)

	putTestArchive(t, store, "broken", map[string]model.FileRecord{
		"data.bin": {Content: "не base64 вообще!!!", MimeType: "application/octet-stream", Binary: true},
	})

	rec := serveGet(router, "/game/broken/data.bin")

	// Ошибка синтеза ответа превращается в 500 и не покидает handler
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("статус: хотели 500, получили %d", rec.Code)
	}
}

func TestServeGameFile_ServedFromLRU(t *testing.T) {
	store, cache, router := newGamesTestRouter(t)

	putTestArchive(t, store, "cached", map[string]model.FileRecord{
		"index.html": {Content: "v1", MimeType: "text/html"},
	})

	// Первый запрос прогревает LRU
	if rec := serveGet(router, "/game/cached/index.html"); rec.Code != http.StatusOK {
		t.Fatalf("статус: хотели 200, получили %d", rec.Code)
	}
	if _, ok := cache.Get("cached"); !ok {
		t.Fatal("после первого запроса запись должна лежать в LRU")
	}

	// Удаляем из store: до инвалидации LRU serving продолжает отдавать файл
	if _, err := store.Delete(context.Background(), "cached"); err != nil {
		t.Fatalf("Delete: неожиданная ошибка: %v", err)
	}
	if rec := serveGet(router, "/game/cached/index.html"); rec.Code != http.StatusOK {
		t.Errorf("статус из LRU после удаления из store: хотели 200, получили %d", rec.Code)
	}
}
