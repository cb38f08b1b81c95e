// Package config предоставляет структуры и функции для загрузки конфига.
// Значения читаются из YAML‑файла, путь к которому задаёт CONFIG_PATH,
// и переопределяются переменными окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env           string `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local prod"`
	Debug         bool   `yaml:"debug" env:"DEBUG" env-default:"false"`
	CanonicalURL  string `yaml:"canonical_url" env:"CANONICAL_URL"`
	StaticDir     string `yaml:"static_dir" env:"STATIC_DIR"`
	TempRoot      string `yaml:"temp_root" env:"TEMP_ROOT"`
	MaxUploadSize int64  `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"67108864" validate:"gte=0"`
	Aggregator    `yaml:"aggregator"`
	HTTPServer    `yaml:"http_server"`
	RateLimit     `yaml:"rate_limit"`
}

// Aggregator структура для настройки запуска агрегатора
type Aggregator struct {
	Path      string        `yaml:"path" env:"AGGREGATOR_PATH" validate:"required,abspath"`
	Args      []string      `yaml:"args" env:"AGGREGATOR_ARGS" env-separator:" "`
	Timeout   time.Duration `yaml:"timeout" env:"AGGREGATOR_TIMEOUT" env-default:"2m" validate:"gte=0"`
	WaitDelay time.Duration `yaml:"wait_delay" env:"AGGREGATOR_WAIT_DELAY" env-default:"5s" validate:"gte=0"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"5m"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// RateLimit ограничивает частоту POST‑запросов. RPS = 0 отключает ограничение.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"0" validate:"gte=0"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"1" validate:"gte=1"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и окружения и проверяет его.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет значения конфига.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("abspath", func(fl validator.FieldLevel) bool {
		return filepath.IsAbs(fl.Field().String())
	}); err != nil {
		return err
	}

	err := v.Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return validationError(verrs)
	}
	return err
}

// validationError собирает нарушения в одну читаемую ошибку.
func validationError(errs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", err.Namespace()))
		case "abspath":
			msgs = append(msgs, fmt.Sprintf("field %s must be an absolute path", err.Namespace()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("field %s must be one of [%s]", err.Namespace(), err.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("field %s must be at least %s", err.Namespace(), err.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", err.Namespace()))
		}
	}
	return errors.New("invalid config: " + strings.Join(msgs, ", "))
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Debug: %t\n"+
			"CanonicalURL: %s\n"+
			"StaticDir: %s\n"+
			"TempRoot: %s\n"+
			"MaxUploadSize: %d\n"+
			"Aggregator:\n"+
			"  Path: %s\n"+
			"  Args: %q\n"+
			"  Timeout: %s\n"+
			"  WaitDelay: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RateLimit:\n"+
			"  RPS: %g\n"+
			"  Burst: %d\n",
		c.Env,
		c.Debug,
		c.CanonicalURL,
		c.StaticDir,
		c.TempRoot,
		c.MaxUploadSize,
		c.Aggregator.Path,
		c.Args,
		c.Aggregator.Timeout,
		c.WaitDelay,
		c.Address,
		c.HTTPServer.Timeout,
		c.IdleTimeout,
		c.RPS,
		c.Burst,
	)
}
