// Пакет config — загрузка и валидация конфигурации Game Vault
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Game Vault.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории хранения (файл SQLite)
	DataDir string
	// Срок хранения архива с момента последнего обращения
	Retention time.Duration
	// Интервал запуска фоновой очистки
	SweepInterval time.Duration
	// Максимальный размер одной части архива в байтах
	MaxArchiveSize int64
	// Таймаут HTTP-загрузки одной части архива
	FetchTimeout time.Duration
	// Ёмкость in-memory кэша записей (количество архивов)
	CacheSize int
	// TTL записи в in-memory кэше
	CacheTTL time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// URL JWKS endpoint для проверки JWT (опционально; пусто = auth отключён)
	JWKSUrl string
	// URL каталога архивов для мониторинга доступности (опционально)
	CatalogURL string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера.
	// Должен быть меньше K8s terminationGracePeriodSeconds (по умолчанию 30s).
	ShutdownTimeout time.Duration
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// GV_PORT — порт HTTP-сервера (по умолчанию 8020)
	port, err := getEnvInt("GV_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("GV_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("GV_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// GV_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("GV_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// GV_RETENTION — срок хранения (по умолчанию 72h)
	cfg.Retention, err = getEnvDuration("GV_RETENTION", 72*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GV_RETENTION: %w", err)
	}
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("GV_RETENTION: значение должно быть положительным")
	}

	// GV_SWEEP_INTERVAL — интервал очистки (по умолчанию 6h)
	cfg.SweepInterval, err = getEnvDuration("GV_SWEEP_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("GV_SWEEP_INTERVAL: %w", err)
	}

	// GV_MAX_ARCHIVE_SIZE — максимальный размер части архива (по умолчанию 512 MiB)
	maxArchiveSize, err := getEnvInt64("GV_MAX_ARCHIVE_SIZE", 536870912)
	if err != nil {
		return nil, fmt.Errorf("GV_MAX_ARCHIVE_SIZE: %w", err)
	}
	if maxArchiveSize <= 0 {
		return nil, fmt.Errorf("GV_MAX_ARCHIVE_SIZE: значение должно быть положительным")
	}
	cfg.MaxArchiveSize = maxArchiveSize

	// GV_FETCH_TIMEOUT — таймаут загрузки одной части (по умолчанию 2m)
	cfg.FetchTimeout, err = getEnvDuration("GV_FETCH_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GV_FETCH_TIMEOUT: %w", err)
	}

	// GV_CACHE_SIZE — ёмкость in-memory кэша (по умолчанию 32)
	cacheSize, err := getEnvInt("GV_CACHE_SIZE", 32)
	if err != nil {
		return nil, fmt.Errorf("GV_CACHE_SIZE: %w", err)
	}
	if cacheSize <= 0 {
		return nil, fmt.Errorf("GV_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.CacheSize = cacheSize

	// GV_CACHE_TTL — TTL записи в in-memory кэше (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("GV_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("GV_CACHE_TTL: %w", err)
	}

	// GV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("GV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("GV_LOG_LEVEL: %w", err)
	}

	// GV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("GV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("GV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// GV_JWKS_URL — JWKS endpoint (опционально; пусто = mutating endpoints без auth)
	cfg.JWKSUrl = getEnvDefault("GV_JWKS_URL", "")

	// GV_CATALOG_URL — URL каталога архивов для dephealth (опционально)
	cfg.CatalogURL = getEnvDefault("GV_CATALOG_URL", "")

	// GV_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("GV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// GV_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("GV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GV_SHUTDOWN_TIMEOUT: %w", err)
	}

	// GV_HTTP_READ_TIMEOUT / GV_HTTP_WRITE_TIMEOUT / GV_HTTP_IDLE_TIMEOUT
	cfg.HTTPReadTimeout, err = getEnvDuration("GV_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GV_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("GV_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GV_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("GV_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("GV_HTTP_IDLE_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
