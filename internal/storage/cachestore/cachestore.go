// Пакет cachestore — персистентное хранилище записей архивов.
//
// Хранилище переживает рестарт процесса: записи лежат в SQLite
// (modernc.org/sqlite, pure Go, без CGO) в директории GV_DATA_DIR.
// Отображение файлов архива сериализуется в JSON-колонку, метки времени
// хранятся текстом в RFC3339 — sweep обязан трактовать непарсируемую
// метку как истёкшую, поэтому формат хранения не должен её «чинить».
//
// Один дескриптор БД открывается при старте и переиспользуется
// до конца жизни процесса.
package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bigkaa/gamevault/internal/domain/model"
)

// dbFileName — имя файла БД внутри GV_DATA_DIR.
const dbFileName = "gamevault.db"

// schema — единственная таблица хранилища.
// archive_id — внешний идентификатор архива (имя первого ZIP без ".zip").
const schema = `
CREATE TABLE IF NOT EXISTS archives (
	archive_id  TEXT PRIMARY KEY,
	files       TEXT NOT NULL,
	upload_date TEXT NOT NULL,
	last_played TEXT NOT NULL DEFAULT ''
);
`

// Store — персистентное хранилище записей архивов поверх SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open открывает (или создаёт) БД хранилища в указанной директории.
// SQLite настраивается в WAL-режиме; одно соединение — SQLite не
// поддерживает несколько конкурентных writer-ов.
func Open(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("открытие БД %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("включение WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("инициализация схемы: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "cachestore")),
	}

	s.logger.Info("Cache store открыт", slog.String("db_path", dbPath))
	return s, nil
}

// Close закрывает соединение с БД.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping проверяет доступность БД (для readiness probe).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get возвращает запись архива по идентификатору.
// Возвращает (nil, nil), если запись отсутствует.
func (s *Store) Get(ctx context.Context, id string) (*model.ArchiveRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT archive_id, files, upload_date, last_played FROM archives WHERE archive_id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение записи %s: %w", id, err)
	}
	return rec, nil
}

// Put сохраняет запись архива (upsert по archive_id).
// Ошибка записи возвращается вызывающему: неудачный Put
// никогда не выглядит как успех.
func (s *Store) Put(ctx context.Context, rec *model.ArchiveRecord) error {
	filesJSON, err := json.Marshal(rec.Files)
	if err != nil {
		return fmt.Errorf("сериализация файлов архива %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO archives (archive_id, files, upload_date, last_played)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(archive_id) DO UPDATE SET
			files = excluded.files,
			upload_date = excluded.upload_date,
			last_played = excluded.last_played`,
		rec.ID, string(filesJSON), rec.UploadDate, rec.LastPlayed)
	if err != nil {
		return fmt.Errorf("запись архива %s: %w", rec.ID, err)
	}
	return nil
}

// Touch обновляет last_played записи на указанный момент времени.
// Единственная мутация записи после создания.
func (s *Store) Touch(ctx context.Context, id string, when time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE archives SET last_played = ? WHERE archive_id = ?`,
		when.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("обновление last_played архива %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("обновление last_played архива %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("архив %s не найден в хранилище", id)
	}
	return nil
}

// GetAll возвращает все записи хранилища (порядок не определён).
func (s *Store) GetAll(ctx context.Context) ([]*model.ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT archive_id, files, upload_date, last_played FROM archives`)
	if err != nil {
		return nil, fmt.Errorf("чтение записей: %w", err)
	}
	defer rows.Close()

	var records []*model.ArchiveRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("чтение записей: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("чтение записей: %w", err)
	}
	return records, nil
}

// Delete удаляет запись по идентификатору.
// Возвращает true, если запись существовала.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM archives WHERE archive_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("удаление архива %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("удаление архива %s: %w", id, err)
	}
	return n > 0, nil
}

// Count возвращает количество записей в хранилище.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archives`).Scan(&n); err != nil {
		return 0, fmt.Errorf("подсчёт записей: %w", err)
	}
	return n, nil
}

// Sweep удаляет записи, чьё эффективное время последнего обращения
// (last_played, при отсутствии — upload_date) старше now − retention.
// Записи с непарсируемыми метками времени удаляются.
// Возвращает идентификаторы удалённых архивов.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT archive_id, upload_date, last_played FROM archives`)
	if err != nil {
		return nil, fmt.Errorf("сканирование записей: %w", err)
	}

	now := time.Now().UTC()
	var stale []string
	for rows.Next() {
		var id, uploadDate, lastPlayed string
		if err := rows.Scan(&id, &uploadDate, &lastPlayed); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("сканирование записей: %w", err)
		}
		rec := &model.ArchiveRecord{ID: id, UploadDate: uploadDate, LastPlayed: lastPlayed}
		if rec.IsStale(now, retention) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("сканирование записей: %w", err)
	}
	_ = rows.Close()

	var deleted []string
	for _, id := range stale {
		ok, err := s.Delete(ctx, id)
		if err != nil {
			s.logger.Error("Sweep: ошибка удаления архива",
				slog.String("archive_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			deleted = append(deleted, id)
		}
	}

	return deleted, nil
}

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord читает одну строку таблицы archives в ArchiveRecord.
func scanRecord(row rowScanner) (*model.ArchiveRecord, error) {
	var rec model.ArchiveRecord
	var filesJSON string
	if err := row.Scan(&rec.ID, &filesJSON, &rec.UploadDate, &rec.LastPlayed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(filesJSON), &rec.Files); err != nil {
		return nil, fmt.Errorf("десериализация файлов архива %s: %w", rec.ID, err)
	}
	return &rec, nil
}
