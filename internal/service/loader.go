// loader.go — сервис загрузки архивов.
//
// Поток Load:
//  1. Проверка готовности serving-слоя (ping cache store) — best effort
//  2. Вычисление идентификатора архива из имени первого источника
//  3. Поиск в cache store: hit → обновить last_played, вернуть URL
//  4. Miss → скачать и декодировать все части, слить, сохранить
//
// Конкурентные Load с одним идентификатором схлопываются в один
// полёт через singleflight: скачивание и запись выполняются один раз.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	apierrors "github.com/bigkaa/gamevault/internal/api/errors"
	"github.com/bigkaa/gamevault/internal/api/middleware"
	"github.com/bigkaa/gamevault/internal/archive"
	"github.com/bigkaa/gamevault/internal/domain/model"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

// Prometheus-метрики загрузки.
var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gv_loads_total",
		Help: "Общее количество запросов загрузки архивов.",
	}, []string{"result"})

	loadDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gv_load_duration_seconds",
		Help:    "Длительность загрузки архива (cache miss) в секундах.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})
)

// LoadResult — результат загрузки архива.
type LoadResult struct {
	// ArchiveID — идентификатор архива в cache store
	ArchiveID string `json:"archive_id"`
	// URL — локальный URL точки входа: /game/{id}/index.html
	URL string `json:"url"`
	// Cached — true, если архив выдан из кэша без сетевых запросов
	Cached bool `json:"cached"`
}

// LoadError — ошибка загрузки с HTTP-кодом.
type LoadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ProgressFunc — сигнал «идёт скачивание» для вызывающего слоя.
// Вызывается с true перед сетевыми запросами и с false после
// завершения персиста. Может быть nil.
type ProgressFunc func(downloading bool)

// LoaderService — сервис загрузки архивов.
type LoaderService struct {
	store          *cachestore.Store
	cache          *RecordCache
	client         *http.Client
	maxArchiveSize int64
	logger         *slog.Logger

	// flights — дедупликация конкурентных Load по archive_id
	flights singleflight.Group
}

// NewLoaderService создаёт сервис загрузки архивов.
// fetchTimeout ограничивает один HTTP GET части архива,
// maxArchiveSize — размер одной части в байтах.
func NewLoaderService(
	store *cachestore.Store,
	cache *RecordCache,
	fetchTimeout time.Duration,
	maxArchiveSize int64,
	logger *slog.Logger,
) *LoaderService {
	return &LoaderService{
		store:          store,
		cache:          cache,
		client:         &http.Client{Timeout: fetchTimeout},
		maxArchiveSize: maxArchiveSize,
		logger:         logger.With(slog.String("component", "loader")),
	}
}

// ArchiveIDFromSource вычисляет идентификатор архива из URL источника:
// имя файла без пути, query-параметров и суффикса ".zip".
// Пустой результат — идентификатор синтезируется из текущего времени.
func ArchiveIDFromSource(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		name = u.Path
	}
	name = path.Base(name)
	name = strings.TrimSuffix(name, ".zip")

	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("archive-%d", time.Now().UnixMilli())
	}
	return name
}

// Load обеспечивает наличие архива в cache store и возвращает локальный
// URL его точки входа. sources — упорядоченный список URL ZIP-частей;
// идентификатор берётся из первой. Cache hit не выполняет ни одного
// сетевого запроса независимо от количества частей.
func (s *LoaderService) Load(ctx context.Context, sources []string, progress ProgressFunc) (*LoadResult, *LoadError) {
	if len(sources) == 0 {
		return nil, &LoadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Список источников архива пуст",
		}
	}

	archiveID := ArchiveIDFromSource(sources[0])

	// Готовность serving-слоя: store должен отвечать, иначе выданный URL
	// вернёт 404 на уровне serving. Деградация допустима, загрузку не валим.
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Serving-слой недоступен, загрузка продолжается best-effort",
			slog.String("archive_id", archiveID),
			slog.String("error", err.Error()),
		)
	}

	v, err, shared := s.flights.Do(archiveID, func() (any, error) {
		return s.load(ctx, archiveID, sources, progress)
	})
	if err != nil {
		loadErr, ok := err.(*LoadError)
		if !ok {
			loadErr = &LoadError{
				StatusCode: 500,
				Code:       apierrors.CodeInternalError,
				Message:    err.Error(),
			}
		}
		loadsTotal.WithLabelValues("error").Inc()
		return nil, loadErr
	}

	result := v.(*LoadResult)
	if shared {
		s.logger.Debug("Load схлопнут с конкурентным вызовом",
			slog.String("archive_id", archiveID),
		)
	}
	return result, nil
}

// load — один полёт загрузки (под singleflight).
func (s *LoaderService) load(ctx context.Context, archiveID string, sources []string, progress ProgressFunc) (*LoadResult, error) {
	loadID := uuid.New().String()
	logger := s.logger.With(
		slog.String("load_id", loadID),
		slog.String("archive_id", archiveID),
	)

	// Поиск в cache store — до любых сетевых запросов
	existing, err := s.store.Get(ctx, archiveID)
	if err != nil {
		return nil, &LoadError{
			StatusCode: 500,
			Code:       apierrors.CodeStoreError,
			Message:    fmt.Sprintf("Ошибка чтения cache store: %s", err.Error()),
		}
	}

	if existing != nil {
		now := time.Now().UTC()
		if err := s.store.Touch(ctx, archiveID, now); err != nil {
			return nil, &LoadError{
				StatusCode: 500,
				Code:       apierrors.CodeStoreError,
				Message:    fmt.Sprintf("Ошибка обновления last_played: %s", err.Error()),
			}
		}
		existing.LastPlayed = now.Format(time.RFC3339)
		s.cache.Set(archiveID, existing)

		loadsTotal.WithLabelValues("hit").Inc()
		logger.Info("Архив выдан из кэша",
			slog.Int("files", len(existing.Files)),
		)

		return &LoadResult{
			ArchiveID: archiveID,
			URL:       entryURL(archiveID),
			Cached:    true,
		}, nil
	}

	// Cache miss: скачиваем и декодируем все части
	start := time.Now()
	if progress != nil {
		progress(true)
	}

	merged := make(map[string]model.FileRecord)
	for _, source := range sources {
		data, fetchErr := s.fetchPart(ctx, source)
		if fetchErr != nil {
			if progress != nil {
				progress(false)
			}
			return nil, fetchErr
		}

		files, decErr := archive.Decode(data)
		if decErr != nil {
			if progress != nil {
				progress(false)
			}
			logger.Error("Повреждённый архив",
				slog.String("source", source),
				slog.String("error", decErr.Error()),
			)
			return nil, &LoadError{
				StatusCode: 422,
				Code:       apierrors.CodeCodecError,
				Message:    fmt.Sprintf("Повреждённый архив %s: %s", source, decErr.Error()),
			}
		}

		// Слияние частей: последующие части перезаписывают совпадающие пути
		for p, rec := range files {
			merged[p] = rec
		}
	}

	record := &model.ArchiveRecord{
		ID:         archiveID,
		Files:      merged,
		UploadDate: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.store.Put(ctx, record); err != nil {
		if progress != nil {
			progress(false)
		}
		return nil, &LoadError{
			StatusCode: 500,
			Code:       apierrors.CodeStoreError,
			Message:    fmt.Sprintf("Ошибка сохранения архива: %s", err.Error()),
		}
	}

	if progress != nil {
		progress(false)
	}

	s.cache.Set(archiveID, record)

	loadsTotal.WithLabelValues("miss").Inc()
	loadDurationSeconds.Observe(time.Since(start).Seconds())
	middleware.ArchivesTotal.Inc()

	logger.Info("Архив загружен",
		slog.Int("parts", len(sources)),
		slog.Int("files", len(merged)),
		slog.Duration("duration", time.Since(start)),
	)

	return &LoadResult{
		ArchiveID: archiveID,
		URL:       entryURL(archiveID),
		Cached:    false,
	}, nil
}

// fetchPart скачивает одну ZIP-часть архива.
func (s *LoaderService) fetchPart(ctx context.Context, source string) ([]byte, *LoadError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &LoadError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Некорректный URL источника %s: %s", source, err.Error()),
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &LoadError{
			StatusCode: 502,
			Code:       apierrors.CodeFetchError,
			Message:    fmt.Sprintf("Ошибка скачивания %s: %s", source, err.Error()),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{
			StatusCode: 502,
			Code:       apierrors.CodeFetchError,
			Message:    fmt.Sprintf("Источник %s вернул статус %d", source, resp.StatusCode),
		}
	}

	// Лимит размера части: maxArchiveSize + 1 байт — детектор превышения
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxArchiveSize+1))
	if err != nil {
		return nil, &LoadError{
			StatusCode: 502,
			Code:       apierrors.CodeFetchError,
			Message:    fmt.Sprintf("Ошибка чтения %s: %s", source, err.Error()),
		}
	}
	if int64(len(data)) > s.maxArchiveSize {
		return nil, &LoadError{
			StatusCode: 413,
			Code:       apierrors.CodeArchiveTooLarge,
			Message:    fmt.Sprintf("Часть архива %s превышает максимум %d байт", source, s.maxArchiveSize),
		}
	}

	return data, nil
}

// entryURL возвращает локальный URL точки входа архива.
func entryURL(archiveID string) string {
	return "/game/" + archiveID + "/" + model.EntryFile
}
