// Пакет model — доменные модели Game Vault.
// ArchiveRecord — единая структура записи архива, используется
// как in-memory представление и как JSON-формат в cache store.
package model

import (
	"time"
)

// EntryFile — конвенциональная точка входа архива. Добавляется к URL
// при выдаче архива; реальное разрешение пути выполняет serving-слой.
const EntryFile = "index.html"

// FileRecord — один файл внутри архива.
// Вариант (текст/бинарный) фиксируется один раз при ингестии
// по расширению файла и больше никогда не переопределяется.
type FileRecord struct {
	// Content — содержимое файла. Для текстовых файлов — UTF-8 строка,
	// для бинарных — base64-кодированные байты (store хранит только JSON).
	Content string `json:"content"`

	// MimeType — MIME-тип, определённый по расширению при ингестии
	MimeType string `json:"mime_type"`

	// Binary — true, если расширение не входит в текстовый allow-list
	Binary bool `json:"binary"`
}

// ArchiveRecord — запись архива в cache store.
// После создания неизменяема, за исключением поля LastPlayed.
type ArchiveRecord struct {
	// ID — идентификатор архива: имя первого ZIP-файла источника
	// без суффикса ".zip". Единственный внешний ключ записи.
	ID string `json:"id"`

	// Files — отображение "путь внутри архива → файл".
	// Ключи — имена ZIP-записей как есть (могут содержать ведущие слэши).
	Files map[string]FileRecord `json:"files"`

	// UploadDate — время создания записи (RFC3339), устанавливается один раз
	UploadDate string `json:"upload_date"`

	// LastPlayed — время последней выдачи из кэша (RFC3339).
	// Обновляется при каждом cache hit в Loader.
	LastPlayed string `json:"last_played,omitempty"`
}

// LastAccess возвращает эффективное время последнего обращения:
// LastPlayed, при его отсутствии или непарсируемости — UploadDate.
// Ошибка парсинга обеих меток трактуется вызывающим как "запись истекла".
func (r *ArchiveRecord) LastAccess() (time.Time, error) {
	if r.LastPlayed != "" {
		if t, err := time.Parse(time.RFC3339, r.LastPlayed); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, r.UploadDate)
}

// IsStale проверяет, старше ли запись окна хранения retention
// относительно момента now. Непарсируемые метки времени считаются
// истёкшими (запись подлежит удалению sweep-ом).
func (r *ArchiveRecord) IsStale(now time.Time, retention time.Duration) bool {
	last, err := r.LastAccess()
	if err != nil {
		return true
	}
	return now.Sub(last) > retention
}
