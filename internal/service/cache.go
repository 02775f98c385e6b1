// Пакет service — бизнес-логика Game Vault.
// cache.go — LRU-кэш записей архивов с TTL перед cache store.
// Обёртка над hashicorp/golang-lru/v2/expirable: serving-слой не ходит
// в SQLite на каждый запрос файла из архива.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gamevault/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gv_record_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей архивов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gv_record_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей архивов.",
	})
)

// RecordCache — LRU-кэш записей архивов с автоматическим TTL.
// Инвалидируется при Delete/Sweep/Touch, чтобы serving-слой не
// отдавал файлы удалённого архива дольше одного TTL.
type RecordCache struct {
	cache *expirable.LRU[string, *model.ArchiveRecord]
}

// NewRecordCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	cache := expirable.NewLRU[string, *model.ArchiveRecord](maxSize, nil, ttl)
	return &RecordCache{cache: cache}
}

// Get возвращает запись архива из кэша по идентификатору.
// Возвращает (запись, true) при hit или (nil, false) при miss.
func (c *RecordCache) Get(archiveID string) (*model.ArchiveRecord, bool) {
	val, ok := c.cache.Get(archiveID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *RecordCache) Set(archiveID string, rec *model.ArchiveRecord) {
	c.cache.Add(archiveID, rec)
}

// Invalidate удаляет запись из кэша.
func (c *RecordCache) Invalidate(archiveID string) {
	c.cache.Remove(archiveID)
}
