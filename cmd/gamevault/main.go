// Точка входа Game Vault — сервиса кэширования и раздачи игровых архивов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/gamevault/internal/api/handlers"
	"github.com/bigkaa/gamevault/internal/api/middleware"
	"github.com/bigkaa/gamevault/internal/config"
	"github.com/bigkaa/gamevault/internal/server"
	"github.com/bigkaa/gamevault/internal/service"
	"github.com/bigkaa/gamevault/internal/storage/cachestore"
)

const (
	// Интервал фонового обновления JWKS-ключей.
	jwksRefreshInterval = time.Hour
	// Допустимое отклонение времени при проверке exp/nbf JWT.
	jwtLeeway = 30 * time.Second
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Game Vault запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("retention", cfg.Retention.String()),
	)

	// --- Инициализация компонентов ---

	// 1. Персистентное хранилище архивов
	store, err := cachestore.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	// Начальное значение gauge числа архивов
	count, err := store.Count(ctx)
	if err != nil {
		logger.Error("Ошибка чтения хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ArchivesTotal.Set(float64(count))
	logger.Info("Хранилище открыто", slog.Int("archives", count))

	// 2. In-memory кэш записей
	cache := service.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)

	// 3. Сервисы
	loaderSvc := service.NewLoaderService(store, cache, cfg.FetchTimeout, cfg.MaxArchiveSize, logger)

	// 4. Фоновые процессы

	// 4.1 Sweep — фоновая очистка просроченных архивов
	sweepSvc := service.NewSweepService(store, cache, cfg.Retention, cfg.SweepInterval, logger)
	sweepSvc.Start(ctx)

	// 4.2 topologymetrics — мониторинг каталога архивов (опционально)
	var dephealthSvc *service.DephealthService
	if cfg.CatalogURL != "" {
		dephealthSvc, err = service.NewDephealthService(
			cfg.DephealthName,
			cfg.CatalogURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
		} else {
			if startErr := dephealthSvc.Start(ctx); startErr != nil {
				logger.Warn("Ошибка запуска topologymetrics",
					slog.String("error", startErr.Error()),
				)
			} else {
				logger.Info("topologymetrics запущен",
					slog.String("catalog_url", cfg.CatalogURL),
					slog.String("check_interval", cfg.DephealthCheckInterval.String()),
				)
			}
		}
	}

	// 5. Handlers
	gamesHandler := handlers.NewGamesHandler(store, cache, logger)
	archivesHandler := handlers.NewArchivesHandler(loaderSvc, store, cache, logger)
	maintenanceHandler := handlers.NewMaintenanceHandler(sweepSvc)
	healthHandler := handlers.NewHealthHandler(store)

	apiHandler := handlers.NewAPIHandler(
		gamesHandler,
		archivesHandler,
		maintenanceHandler,
		healthHandler,
	)

	// 6. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWKSUrl != "" {
		jwtAuth, err = middleware.NewJWTAuth(cfg.JWKSUrl, jwksRefreshInterval, jwtLeeway, logger)
		if err != nil {
			// JWT недоступен — запускаем без аутентификации (для разработки)
			logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", err.Error()),
			)
			jwtAuth = nil
		} else {
			logger.Info("JWT аутентификация настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	}

	// 7. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	sweepSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Game Vault остановлен")
}
