package response

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/models"
)

const (
	fileNamePrefix  = "budget-aggregator"
	timestampLayout = "2006-01-02_15-04-05"
)

// FileName возвращает имя выгружаемого документа. Для одного загруженного
// файла имя строится из него, для нескольких из времени ответа.
// stagedNames — имена перенесённых файлов с префиксом "_".
func FileName(stagedNames []string, format models.Format, now time.Time) string {
	if len(stagedNames) == 1 {
		base := strings.TrimPrefix(stagedNames[0], "_")
		if i := strings.LastIndexByte(base, '.'); i >= 0 {
			base = base[:i]
		}
		return fmt.Sprintf("%s-%s.%s", fileNamePrefix, base, format)
	}
	return fmt.Sprintf("%s-%s.%s", now.Format(timestampLayout), fileNamePrefix, format)
}

// Attachment отправляет body как вложение со статусом 200.
// size < 0 означает, что длина неизвестна.
func Attachment(w http.ResponseWriter, format models.Format, name string, body io.Reader, size int64) error {
	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	h.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	_, err := io.Copy(w, body)
	return err
}

// AttachmentFile открывает файл и отправляет его как вложение. Если файл
// не открылся, заголовки ещё не отправлены и ошибку можно показать пользователю.
func AttachmentFile(w http.ResponseWriter, format models.Format, name, path string) (committed bool, err error) {
	const op = "response.AttachmentFile"

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := Attachment(w, format, name, f, info.Size()); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// PlainText пишет текст с типом text/plain; charset=UTF-8.
func PlainText(w http.ResponseWriter, status int, text string) error {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.WriteHeader(status)
	_, err := io.WriteString(w, text)
	return err
}
