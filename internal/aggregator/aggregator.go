// Package aggregator запускает внешний агрегатор бюджетов и разбирает результат его работы.
//
// Процесс запускается напрямую через exec без оболочки: фильтры из формы
// попадают в argv как есть и не интерпретируются. stdout и stderr
// собираются раздельно, поэтому диагностика не попадает в CSV.
package aggregator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/lib/sl"
)

// ErrNoSources — попытка запустить агрегатор без входных файлов.
var ErrNoSources = errors.New("aggregator: no source files")

// passEnv — переменные окружения, которые получает процесс агрегатора.
var passEnv = []string{"PATH", "HOME", "LANG", "LC_ALL", "TZ", "TMPDIR", "JAVA_HOME"}

// Config — настройки запуска агрегатора.
type Config struct {
	Path      string        // Абсолютный путь к исполняемому файлу
	Args      []string      // Аргументы перед опциями, например "-jar", "/opt/budget-aggregator.jar"
	Timeout   time.Duration // Ограничение времени одного запуска, 0 — без ограничения
	WaitDelay time.Duration // Сколько ждать после SIGTERM перед SIGKILL, 0 — SIGKILL сразу
}

// Result — итог успешного запуска.
type Result struct {
	Argv     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// CSV возвращает stdout как тело CSV‑ответа. Последний перевод строки
// ("\n" или "\r\n") заменяется на "\n", а если его нет, "\n" дописывается.
// Пустые строки перед ним сохраняются.
func (r *Result) CSV() []byte {
	body := r.Stdout
	if bytes.HasSuffix(body, []byte("\n")) {
		body = bytes.TrimSuffix(body[:len(body)-1], []byte("\r"))
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, body...)
	return append(out, '\n')
}

// Error — агрегатор не запустился, завершился с ненулевым кодом или не уложился во время.
type Error struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "aggregator: unexpected exit code %d when executing: %s", e.ExitCode, FormatCommand(e.Argv))
	if e.Err != nil {
		fmt.Fprintf(&b, "\n%v", e.Err)
	}
	if e.Stdout != "" {
		fmt.Fprintf(&b, "\n--- stdout ---\n%s", strings.TrimRight(e.Stdout, "\n"))
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\n--- stderr ---\n%s", strings.TrimRight(e.Stderr, "\n"))
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Runner запускает агрегатор с заданными настройками.
type Runner struct {
	cfg Config
	log *slog.Logger
	env []string
}

// New создаёт Runner.
func New(cfg Config, log *slog.Logger) *Runner {
	env := make([]string, 0, len(passEnv))
	for _, name := range passEnv {
		if value, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return &Runner{
		cfg: cfg,
		log: log,
		env: env,
	}
}

// Argv возвращает полный argv: путь, префиксные аргументы, опции и файлы.
func (r *Runner) Argv(inv Invocation) []string {
	argv := make([]string, 0, 1+len(r.cfg.Args)+7+len(inv.Sources))
	argv = append(argv, r.cfg.Path)
	argv = append(argv, r.cfg.Args...)
	return append(argv, Arguments(inv)...)
}

// Run запускает агрегатор в отдельной группе процессов и ждёт его завершения.
// При отмене ctx группа получает SIGTERM, а через WaitDelay SIGKILL; при
// WaitDelay = 0 сразу SIGKILL. После возврата из Run в группе не остаётся
// живых процессов. Ненулевой код выхода, ошибка запуска и таймаут
// возвращаются как *Error.
func (r *Runner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	const op = "aggregator.Run"

	if len(inv.Sources) == 0 {
		return nil, ErrNoSources
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	argv := r.Argv(inv)
	log := r.log.With(slog.String("op", op))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = r.env
	cmd.Dir = inv.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if r.cfg.WaitDelay <= 0 {
			return signalGroup(cmd.Process, syscall.SIGKILL)
		}
		return signalGroup(cmd.Process, syscall.SIGTERM)
	}
	cmd.WaitDelay = r.cfg.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("running aggregator", slog.String("command", FormatCommand(argv)))
	start := time.Now()
	err := cmd.Run()
	if cmd.Process != nil {
		if kerr := signalGroup(cmd.Process, syscall.SIGKILL); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			log.Warn("failed to kill aggregator process group", sl.Err(kerr))
		}
	}
	res := &Result{
		Argv:     argv,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		log.Error("aggregator failed",
			slog.Int("exit_code", res.ExitCode),
			slog.Duration("duration", res.Duration),
			sl.Output("stderr", res.Stderr),
			sl.Err(err),
		)
		return res, &Error{
			Argv:     argv,
			ExitCode: res.ExitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	if stderr.Len() > 0 {
		log.Warn("aggregator wrote to stderr", sl.Output("stderr", res.Stderr))
	}
	log.Info("aggregator finished",
		slog.Int("sources", len(inv.Sources)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// signalGroup отправляет sig всей группе процессов, лидером которой является p.
// Пустая группа даёт os.ErrProcessDone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
