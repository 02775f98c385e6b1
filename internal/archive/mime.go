// mime.go — классификация файлов архива по расширению.
// Таблицы фиксированы: тип определяется один раз при ингестии
// и никогда не пересматривается по содержимому файла.
package archive

import (
	"path"
	"strings"
)

// mimeByExt — MIME-типы по расширению файла.
// Неизвестные расширения → application/octet-stream.
var mimeByExt = map[string]string{
	"html":  "text/html",
	"htm":   "text/html",
	"css":   "text/css",
	"js":    "application/javascript",
	"mjs":   "application/javascript",
	"json":  "application/json",
	"xml":   "application/xml",
	"txt":   "text/plain",
	"md":    "text/markdown",
	"csv":   "text/csv",
	"svg":   "image/svg+xml",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"webp":  "image/webp",
	"ico":   "image/x-icon",
	"bmp":   "image/bmp",
	"mp3":   "audio/mpeg",
	"ogg":   "audio/ogg",
	"wav":   "audio/wav",
	"m4a":   "audio/mp4",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"wasm":  "application/wasm",
	"zip":   "application/zip",
	"pdf":   "application/pdf",
	"bin":   "application/octet-stream",
}

// textExts — allow-list текстовых расширений. Всё остальное — бинарное.
var textExts = map[string]bool{
	"html": true,
	"htm":  true,
	"css":  true,
	"js":   true,
	"mjs":  true,
	"json": true,
	"xml":  true,
	"txt":  true,
	"md":   true,
	"csv":  true,
	"svg":  true,
}

// extOf возвращает расширение имени файла в нижнем регистре без точки.
func extOf(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeTypeFor возвращает MIME-тип для имени файла по таблице расширений.
func MimeTypeFor(name string) string {
	if mt, ok := mimeByExt[extOf(name)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// IsTextFile возвращает true, если расширение входит в текстовый allow-list.
// Классификация только по расширению: .js с «бинарным» содержимым — текст.
func IsTextFile(name string) bool {
	return textExts[extOf(name)]
}
