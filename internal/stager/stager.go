// Package stager переносит загруженные файлы во временную директорию запроса.
//
// Имя каждого файла очищается до безопасного набора символов и получает
// префикс "_", поэтому оно никогда не бывает пустым и не совпадает с
// output.xlsx, который агрегатор пишет рядом.
package stager

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/params"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/scratch"
)

var (
	// ErrNoFiles — в запросе нет ни одного файла.
	ErrNoFiles = errors.New("no files uploaded")
	// ErrUpload — тело запроса или один из файлов не удалось прочитать.
	ErrUpload = errors.New("upload failed")
)

// StagedPrefix — префикс имени перенесённого файла.
const StagedPrefix = "_"

// allowed — байты, которые остаются в имени файла.
var allowed = func() (table [256]bool) {
	const extra = " !#$%&'()+,-.;=@[]^_{}~"
	for _, c := range []byte(extra) {
		table[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		table[c] = true
	}
	for c := 'A'; c <= 'Z'; c++ {
		table[c] = true
		table[c+'a'-'A'] = true
	}
	return table
}()

// File — файл, перенесённый во временную директорию.
type File struct {
	OriginalName string // Имя, которое прислал клиент
	Path         string // Абсолютный путь внутри директории запроса
}

// Name возвращает имя перенесённого файла.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// Sanitize возвращает имя для диска: последний компонент пути клиента,
// из которого удалены все байты вне белого списка, с префиксом "_".
func Sanitize(name string) string {
	name = strings.TrimRight(name, `/\`)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name) + 1)
	b.WriteString(StagedPrefix)
	for i := 0; i < len(name); i++ {
		if allowed[name[i]] {
			b.WriteByte(name[i])
		}
	}
	return b.String()
}

// ParseRequest ограничивает тело запроса maxBytes и разбирает multipart‑форму.
// Запрос без multipart‑тела ошибкой не считается: файлов в нём просто нет.
func ParseRequest(w http.ResponseWriter, r *http.Request, maxBytes, maxMemory int64) error {
	const op = "stager.ParseRequest"

	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	err := r.ParseMultipartForm(maxMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpload, err)
}

// Headers возвращает файлы из поля sources[] в порядке загрузки.
func Headers(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[params.FieldSources]
}

// Stage копирует файлы в dir и возвращает их в исходном порядке.
// Первая же ошибка прерывает перенос; уже скопированные файлы остаются
// в dir и удаляются вместе с ней.
func Stage(dir *scratch.Dir, headers []*multipart.FileHeader) ([]File, error) {
	const op = "stager.Stage"

	if len(headers) == 0 {
		return nil, ErrNoFiles
	}

	used := make(map[string]struct{}, len(headers))
	files := make([]File, 0, len(headers))
	for _, fh := range headers {
		name := unique(Sanitize(fh.Filename), used)
		used[name] = struct{}{}

		path := dir.Join(name)
		if err := copyPart(fh, path); err != nil {
			return nil, fmt.Errorf("%s: %q: %w: %w", op, fh.Filename, ErrUpload, err)
		}
		files = append(files, File{OriginalName: fh.Filename, Path: path})
	}
	return files, nil
}

// unique добавляет к имени суффикс " (n)" перед расширением, если оно уже занято.
func unique(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}
	ext := filepath.Ext(name)
	if ext == name[len(StagedPrefix):] {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := base + " (" + strconv.Itoa(n) + ")" + ext
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

func copyPart(fh *multipart.FileHeader, path string) (err error) {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(dst, src)
	return err
}
