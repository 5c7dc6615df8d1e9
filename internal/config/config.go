package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/disintegration/imaging"
)

// Config настройки запуска; значения по умолчанию можно переопределить
// переменными окружения, а их, в свою очередь, флагами CLI.
type Config struct {
	SkipDistance    int    `env:"FRAME_CAPTURE_SKIP"              envDefault:"480"`
	ViewerAddr      string `env:"FRAME_CAPTURE_ADDR"              envDefault:"127.0.0.1:8765"`
	ImageExt        string `env:"FRAME_CAPTURE_EXT"               envDefault:"png"`
	WaitViewer      bool   `env:"FRAME_CAPTURE_WAIT_VIEWER"       envDefault:"true"`
	Debug           bool   `env:"FRAME_CAPTURE_DEBUG"             envDefault:"false"`
	DisplayMaxWidth int    `env:"FRAME_CAPTURE_DISPLAY_MAX_WIDTH" envDefault:"1280"`
	StreamQuality   int    `env:"FRAME_CAPTURE_STREAM_QUALITY"    envDefault:"85"`
}

// Error ошибка конфигурации с именем поля
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("конфигурация: %v", e.Err)
	}
	return fmt.Sprintf("конфигурация: %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError true, если err получена при разборе или проверке конфигурации
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Load читает конфигурацию из окружения процесса
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom читает конфигурацию из заданного набора переменных
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

// Default значения по умолчанию без учёта окружения
func Default() *Config {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(err)
	}
	return cfg
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, &Error{Err: err}
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize приводит поля к каноническому виду и проверяет их
func (c *Config) Normalize() error {
	c.ImageExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.ImageExt), "."))

	if c.SkipDistance <= 0 {
		return &Error{Field: "skip", Err: fmt.Errorf("должен быть положительным, получено %d", c.SkipDistance)}
	}
	if _, err := imaging.FormatFromExtension(c.ImageExt); err != nil {
		return &Error{Field: "ext", Err: fmt.Errorf("неподдерживаемый формат %q", c.ImageExt)}
	}
	if _, _, err := net.SplitHostPort(c.ViewerAddr); err != nil {
		return &Error{Field: "addr", Err: err}
	}
	if c.DisplayMaxWidth < 0 {
		return &Error{Field: "display-max-width", Err: fmt.Errorf("не может быть отрицательным")}
	}
	if c.StreamQuality < 1 || c.StreamQuality > 100 {
		return &Error{Field: "stream-quality", Err: fmt.Errorf("ожидается 1..100, получено %d", c.StreamQuality)}
	}
	return nil
}
