// sweep.go — сервис фоновой очистки устаревших архивов.
//
// Sweep удаляет из cache store записи, к которым не обращались дольше
// окна хранения (GV_RETENTION, по умолчанию 72 часа). Эффективное время
// последнего обращения — last_played, при его отсутствии upload_date;
// непарсируемые метки времени считаются истёкшими.
//
// Запускается как горутина с периодическим тикером (GV_SWEEP_INTERVAL)
// и синхронно через POST /api/v1/maintenance/sweep.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gamevault/internal/api/middleware"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

// Prometheus метрики sweep
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gv_sweep_runs_total",
		Help: "Общее количество запусков sweep",
	})

	sweepArchivesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gv_sweep_archives_deleted_total",
		Help: "Общее количество архивов, удалённых sweep",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gv_sweep_duration_seconds",
		Help:    "Длительность выполнения sweep в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// SweepResult — результат одного запуска sweep.
type SweepResult struct {
	// Deleted — идентификаторы удалённых архивов
	Deleted []string `json:"deleted"`
	// Duration — длительность выполнения
	Duration time.Duration `json:"-"`
}

// SweepService — сервис очистки устаревших архивов.
type SweepService struct {
	store     *cachestore.Store
	cache     *RecordCache
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewSweepService создаёт сервис sweep.
func NewSweepService(
	store *cachestore.Store,
	cache *RecordCache,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *SweepService {
	return &SweepService{
		store:     store,
		cache:     cache,
		retention: retention,
		interval:  interval,
		logger:    logger.With(slog.String("component", "sweep")),
	}
}

// Start запускает фоновую горутину sweep с периодическим тикером.
// Вызывается один раз при старте приложения.
func (sw *SweepService) Start(ctx context.Context) {
	swCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel

	go sw.run(swCtx)

	sw.logger.Info("Sweep запущен",
		slog.String("retention", sw.retention.String()),
		slog.String("interval", sw.interval.String()),
	)
}

// Stop останавливает фоновый процесс sweep.
func (sw *SweepService) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	sw.logger.Info("Sweep остановлен")
}

// run — основной цикл фоновой горутины.
func (sw *SweepService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	sw.RunOnce(ctx)

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл sweep.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (sw *SweepService) RunOnce(ctx context.Context) *SweepResult {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	start := time.Now()
	result := &SweepResult{Deleted: []string{}}

	deleted, err := sw.store.Sweep(ctx, sw.retention)
	if err != nil {
		sw.logger.Error("Sweep: ошибка сканирования хранилища",
			slog.String("error", err.Error()),
		)
		return result
	}

	for _, id := range deleted {
		sw.cache.Invalidate(id)
	}
	result.Deleted = append(result.Deleted, deleted...)
	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	sweepRunsTotal.Inc()
	sweepArchivesDeletedTotal.Add(float64(len(deleted)))
	sweepDurationSeconds.Observe(result.Duration.Seconds())
	middleware.ArchivesTotal.Sub(float64(len(deleted)))

	sw.logger.Info("Sweep завершён",
		slog.Int("deleted", len(deleted)),
		slog.Duration("duration", result.Duration),
	)

	return result
}
