// Пакет archive — кодек ZIP-архивов Game Vault.
// Decode разворачивает байты ZIP в отображение "путь → FileRecord".
// Кодек чистый и не имеет состояния: вся персистентность — в cache store.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/bigkaa/gamevault/internal/domain/model"
)

// Decode разбирает ZIP-архив и возвращает отображение
// "имя записи → FileRecord". Записи-директории пропускаются.
//
// Текстовые файлы (по allow-list расширений) декодируются как UTF-8 строки,
// бинарные — кодируются в base64, поскольку store хранит только
// сериализуемый JSON. Повреждённый архив — ошибка всей ингестии,
// частичный результат не возвращается.
func Decode(data []byte) (map[string]model.FileRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("чтение ZIP: %w", err)
	}

	files := make(map[string]model.FileRecord, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("открытие записи %q: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("чтение записи %q: %w", f.Name, err)
		}

		rec := model.FileRecord{
			MimeType: MimeTypeFor(f.Name),
			Binary:   !IsTextFile(f.Name),
		}
		if rec.Binary {
			rec.Content = base64.StdEncoding.EncodeToString(content)
		} else {
			rec.Content = string(content)
		}

		// Имя записи используется как ключ как есть; при коллизии
		// внутри одного архива побеждает последняя запись.
		files[f.Name] = rec
	}

	return files, nil
}
