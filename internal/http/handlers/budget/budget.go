// Package budget реализует единственную страницу веб‑интерфейса агрегатора.
//
// GET отрисовывает форму с параметрами из строки запроса. POST переносит
// загруженные файлы во временную директорию запроса, запускает агрегатор
// и отдаёт результат как вложение либо снова показывает форму с сообщением.
// Временная директория удаляется при любом исходе.
package budget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/aggregator"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/http/response"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/lib/sl"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/metrics"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/models"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/params"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/scratch"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/stager"
)

// Сообщения пользователю.
const (
	MsgUploadFailed     = "Beim Hochladen ist ein Fehler aufgetreten. Versuchen Sie es erneut."
	MsgNoFiles          = "Sie müssen mindestens eine Datei zum Hochladen auswählen."
	MsgGenerationFailed = "Das Erzeugen des Dokuments ist unerwartet fehlgeschlagen."
)

// OutputName — имя файла XLSX, который агрегатор пишет во временную директорию.
const OutputName = "output.xlsx"

// maxMemory — сколько байт multipart‑формы держать в памяти, остальное уходит во временные файлы.
const maxMemory = 8 << 20

// Aggregator запускает внешний агрегатор.
type Aggregator interface {
	Run(ctx context.Context, inv aggregator.Invocation) (*aggregator.Result, error)
}

// Renderer отрисовывает форму.
type Renderer interface {
	Render(w http.ResponseWriter, req *http.Request, status int, params models.Parameters, message string) error
}

// Config — настройки обработчика.
type Config struct {
	Debug         bool   // Отдавать внутренние ошибки текстом вместо формы
	TempRoot      string // Где создавать временные директории
	MaxUploadSize int64  // Ограничение тела POST в байтах, 0 — без ограничения
}

// Handler обрабатывает GET и POST на корне сайта.
type Handler struct {
	log        *slog.Logger
	cfg        Config
	form       Renderer
	aggregator Aggregator
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New создает новый Handler.
func New(log *slog.Logger, cfg Config, form Renderer, agg Aggregator, m *metrics.Metrics) *Handler {
	return &Handler{
		log:        log,
		cfg:        cfg,
		form:       form,
		aggregator: agg,
		metrics:    m,
		now:        time.Now,
	}
}

// userError — ошибка во входных данных, показывается пользователю со статусом 400.
type userError struct {
	message string
	err     error
}

func (e *userError) Error() string {
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *userError) Unwrap() error {
	return e.err
}

// Form отрисовывает форму с параметрами из строки запроса.
func (h *Handler) Form(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.budget.Form"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := r.ParseForm(); err != nil {
		log.Debug("malformed query, falling back to defaults", sl.Err(err))
	}
	h.render(w, r, log, http.StatusOK, params.FromRequest(r), "")
	h.metrics.Requests.WithLabelValues(r.Method, metrics.OutcomeForm).Inc()
}

// Process принимает файлы, запускает агрегатор и отдаёт документ.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.budget.Process"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := stager.ParseRequest(w, r, h.cfg.MaxUploadSize, maxMemory); err != nil {
		h.fail(w, r, log, params.FromRequest(r), &userError{message: MsgUploadFailed, err: err})
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				log.Error("failed to remove multipart temp files", sl.Err(err))
			}
		}()
	}

	p := params.FromRequest(r)
	log.Debug("parameters parsed", slog.Any("params", p))

	if err := h.process(w, r, log, p); err != nil {
		h.fail(w, r, log, p, err)
		return
	}
	h.metrics.Requests.WithLabelValues(r.Method, metrics.OutcomeDownload).Inc()
}

// process возвращает ошибку, только если ответ ещё не начат.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, log *slog.Logger, p models.Parameters) error {
	const op = "handlers.budget.process"

	dir, err := scratch.Acquire(h.cfg.TempRoot)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := dir.Release(); err != nil {
			log.Error("failed to remove scratch directory", slog.String("dir", dir.Path()), sl.Err(err))
		}
	}()

	headers := stager.Headers(r)
	files, err := stager.Stage(dir, headers)
	switch {
	case errors.Is(err, stager.ErrNoFiles):
		return &userError{message: MsgNoFiles, err: err}
	case err != nil:
		return &userError{message: MsgUploadFailed, err: err}
	}

	sources := make([]string, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		sources[i] = f.Path
		names[i] = f.Name()
	}
	h.metrics.UploadedFiles.Add(float64(len(files)))
	for _, fh := range headers {
		h.metrics.UploadedBytes.Add(float64(fh.Size))
	}

	inv := aggregator.Invocation{
		Parameters: p,
		Sources:    sources,
		Dir:        dir.Path(),
	}
	if p.Format == models.FormatXLSX {
		inv.Output = dir.Join(OutputName)
	}

	res, err := h.aggregator.Run(r.Context(), inv)
	if res != nil {
		h.metrics.AggregatorDuration.WithLabelValues(string(p.Format)).Observe(res.Duration.Seconds())
	}
	if err != nil {
		h.metrics.AggregatorRuns.WithLabelValues(string(p.Format), metrics.ResultFailure).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	h.metrics.AggregatorRuns.WithLabelValues(string(p.Format), metrics.ResultSuccess).Inc()

	name := response.FileName(names, p.Format, h.now())
	log = log.With(slog.String("file_name", name))

	if p.Format == models.FormatCSV {
		body := res.CSV()
		if err := response.Attachment(w, p.Format, name, bytes.NewReader(body), int64(len(body))); err != nil {
			log.Error("failed to write document", sl.Err(err))
			return nil
		}
	} else {
		committed, err := response.AttachmentFile(w, p.Format, name, inv.Output)
		if !committed {
			return fmt.Errorf("%s: %w", op, err)
		}
		if err != nil {
			log.Error("failed to write document", sl.Err(err))
			return nil
		}
	}

	log.Info("document sent", slog.Int("sources", len(files)))
	return nil
}

// fail отвечает на ошибку: 400 с формой для ошибок пользователя, 500 для остальных.
// В режиме отладки внутренняя ошибка отдаётся текстом целиком.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, p models.Parameters, err error) {
	var uerr *userError
	if errors.As(err, &uerr) {
		log.Warn("request rejected", sl.Err(err))
		h.metrics.Requests.WithLabelValues(r.Method, metrics.OutcomeUserError).Inc()
		h.render(w, r, log, http.StatusBadRequest, p, uerr.message)
		return
	}

	log.Error("failed to generate document", sl.Err(err))
	h.metrics.Requests.WithLabelValues(r.Method, metrics.OutcomeInternalError).Inc()

	if h.cfg.Debug {
		if werr := response.PlainText(w, http.StatusInternalServerError, err.Error()+"\n"); werr != nil {
			log.Error("failed to write debug response", sl.Err(werr))
		}
		return
	}
	h.render(w, r, log, http.StatusInternalServerError, p, MsgGenerationFailed)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, p models.Parameters, message string) {
	if err := h.form.Render(w, r, status, p, message); err != nil {
		log.Error("failed to render form", sl.Err(err))
		http.Error(w, MsgGenerationFailed, http.StatusInternalServerError)
	}
}
