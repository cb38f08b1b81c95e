// Package form отрисовывает страницу с формой агрегатора.
//
// Страница — документ XHTML 1.0. Тип содержимого выбирается по заголовку
// Accept: application/xhtml+xml для клиентов, которые его понимают,
// иначе text/html.
package form

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/models"
)

const (
	// ContentTypeXHTML — тип для клиентов, принимающих XHTML.
	ContentTypeXHTML = "application/xhtml+xml; charset=UTF-8"
	// ContentTypeHTML — тип для остальных клиентов.
	ContentTypeHTML = "text/html; charset=UTF-8"

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" ?>` + "\n"
)

//go:embed templates/form.xhtml
var templates embed.FS

// Page — данные для шаблона страницы.
type Page struct {
	Params       models.Parameters // Текущие значения полей
	Message      string            // Сообщение об ошибке, пустое если ошибки нет
	CanonicalURL string
	YearsExample string
}

// Renderer отрисовывает форму.
type Renderer struct {
	tmpl         *template.Template
	canonicalURL string
	now          func() time.Time
}

// New разбирает встроенный шаблон. canonicalURL может быть пустым,
// тогда ссылка rel="canonical" не выводится.
func New(canonicalURL string) (*Renderer, error) {
	const op = "form.New"

	tmpl, err := template.ParseFS(templates, "templates/form.xhtml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Renderer{
		tmpl:         tmpl,
		canonicalURL: canonicalURL,
		now:          time.Now,
	}, nil
}

// ContentType выбирает тип содержимого по заголовку Accept.
func ContentType(accept string) string {
	if strings.Contains(strings.ToLower(accept), "application/xhtml+xml") {
		return ContentTypeXHTML
	}
	return ContentTypeHTML
}

// Render пишет страницу со статусом status. Документ сначала собирается
// в буфер, поэтому ошибка шаблона не оставляет наполовину отправленный ответ.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, status int, params models.Parameters, message string) error {
	const op = "form.Render"

	var buf bytes.Buffer
	if err := r.Execute(&buf, params, message); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w.Header().Set("Content-Type", ContentType(req.Header.Get("Accept")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Execute пишет документ вместе с XML‑декларацией в out.
func (r *Renderer) Execute(out io.Writer, params models.Parameters, message string) error {
	year := r.now().Year()
	page := Page{
		Params:       params,
		Message:      message,
		CanonicalURL: r.canonicalURL,
		YearsExample: fmt.Sprintf("%d, %d", year-1, year),
	}

	if _, err := io.WriteString(out, xmlDeclaration); err != nil {
		return err
	}
	return r.tmpl.ExecuteTemplate(out, "form.xhtml", page)
}
