package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"testing"
)

// makeZip собирает ZIP-архив из отображения "имя записи → содержимое".
func makeZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Ошибка создания записи %q: %v", name, err)
		}
		if _, err := w.Write(content); err != nil {
			t.Fatalf("Ошибка записи %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Ошибка закрытия ZIP: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_TextFile(t *testing.T) {
	data := makeZip(t, map[string][]byte{
		"index.html": []byte("<html><body>game</body></html>"),
	})

	files, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: неожиданная ошибка: %v", err)
	}

	rec, ok := files["index.html"]
	if !ok {
		t.Fatal("запись index.html не найдена в результате")
	}
	if rec.Binary {
		t.Error("Binary: хотели false, получили true")
	}
	if rec.Content != "<html><body>game</body></html>" {
		t.Errorf("Content: хотели исходный HTML, получили %q", rec.Content)
	}
	if rec.MimeType != "text/html" {
		t.Errorf("MimeType: хотели text/html, получили %q", rec.MimeType)
	}
}

func TestDecode_BinaryFileBase64(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x01, 0x02}
	data := makeZip(t, map[string][]byte{
		"img/logo.png": raw,
	})

	files, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: неожиданная ошибка: %v", err)
	}

	rec, ok := files["img/logo.png"]
	if !ok {
		t.Fatal("запись img/logo.png не найдена в результате")
	}
	if !rec.Binary {
		t.Error("Binary: хотели true, получили false")
	}
	if rec.MimeType != "image/png" {
		t.Errorf("MimeType: хотели image/png, получили %q", rec.MimeType)
	}

	decoded, err := base64.StdEncoding.DecodeString(rec.Content)
	if err != nil {
		t.Fatalf("Content не является валидным base64: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Errorf("содержимое после base64 round-trip: хотели %v, получили %v", raw, decoded)
	}
}

func TestDecode_SkipsDirectories(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("assets/"); err != nil {
		t.Fatalf("Ошибка создания директории: %v", err)
	}
	w, err := zw.Create("assets/app.js")
	if err != nil {
		t.Fatalf("Ошибка создания записи: %v", err)
	}
	if _, err := w.Write([]byte("console.log(1)")); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Ошибка закрытия ZIP: %v", err)
	}

	files, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode: неожиданная ошибка: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("количество файлов: хотели 1, получили %d", len(files))
	}
	if _, ok := files["assets/"]; ok {
		t.Error("директория assets/ не должна попадать в результат")
	}
}

func TestDecode_CorruptArchive(t *testing.T) {
	_, err := Decode([]byte("это точно не ZIP"))
	if err == nil {
		t.Fatal("Decode повреждённого архива: хотели ошибку, получили nil")
	}
}

func TestDecode_EmptyArchive(t *testing.T) {
	data := makeZip(t, map[string][]byte{})

	files, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: неожиданная ошибка: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("количество файлов: хотели 0, получили %d", len(files))
	}
}

func TestMimeTypeFor(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"index.html", "text/html"},
		{"style.CSS", "text/css"},
		{"app.js", "application/javascript"},
		{"module.mjs", "application/javascript"},
		{"data.json", "application/json"},
		{"pic.svg", "image/svg+xml"},
		{"sound.mp3", "audio/mpeg"},
		{"video.webm", "video/webm"},
		{"font.woff2", "font/woff2"},
		{"engine.wasm", "application/wasm"},
		{"noext", "application/octet-stream"},
		{"strange.xyz", "application/octet-stream"},
	}

	for _, c := range cases {
		if got := MimeTypeFor(c.name); got != c.want {
			t.Errorf("MimeTypeFor(%q): хотели %q, получили %q", c.name, c.want, got)
		}
	}
}

func TestIsTextFile(t *testing.T) {
	textNames := []string{"a.html", "b.htm", "c.css", "d.js", "e.json", "f.svg", "g.md", "dir/h.TXT"}
	for _, name := range textNames {
		if !IsTextFile(name) {
			t.Errorf("IsTextFile(%q): хотели true, получили false", name)
		}
	}

	binaryNames := []string{"a.png", "b.wasm", "c.mp3", "d", "e.woff2", "f.unknown"}
	for _, name := range binaryNames {
		if IsTextFile(name) {
			t.Errorf("IsTextFile(%q): хотели false, получили true", name)
		}
	}
}
