package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"frame-capture/internal/application"
	"frame-capture/internal/config"
)

// Runner проводит сессию просмотра одного видео
type Runner interface {
	Run(ctx context.Context, sourcePath string) error
}

// Options результат разбора командной строки
type Options struct {
	config.Config
	SourcePath string
	SaveDir    string
	// ShowUsage: аргументы неверны, сессия не запускается
	ShowUsage bool
	Args      []string

	helpShown bool
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	runner  Runner
	logger  application.Logger
	options *Options
	out     io.Writer
}

// NewCLI создает новый CLI интерфейс
func NewCLI(runner Runner, logger application.Logger, out io.Writer) *CLI {
	return &CLI{
		runner: runner,
		logger: logger,
		out:    out,
	}
}

// SetOptions устанавливает разобранные аргументы напрямую
func (c *CLI) SetOptions(options *Options) {
	c.options = options
}

// ParseArgs разбирает args (вместе с именем программы). Флаги переопределяют
// значения base, которые пришли из окружения.
func ParseArgs(args []string, base config.Config, out io.Writer) (*Options, error) {
	name := "frame-capture"
	if len(args) > 0 {
		name = args[0]
		args = args[1:]
	}
	opts := &Options{Config: base, Args: append([]string(nil), args...)}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.IntVar(&opts.SkipDistance, "skip", base.SkipDistance, "шаг перехода по клавишам a/d в кадрах")
	fs.StringVar(&opts.ViewerAddr, "addr", base.ViewerAddr, "адрес окна просмотра")
	fs.StringVar(&opts.ImageExt, "ext", base.ImageExt, "формат сохраняемых кадров: png, jpg")
	fs.BoolVar(&opts.Debug, "debug", base.Debug, "включить отладочные сообщения")
	fs.BoolVar(&opts.WaitViewer, "wait-viewer", base.WaitViewer, "не начинать воспроизведение до подключения браузера")
	fs.Usage = func() { PrintUsage(out, name) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			opts.ShowUsage = true
			opts.helpShown = true
			return opts, nil
		}
		return nil, err
	}
	// Неверные аргументы важнее неверных значений: сначала справка
	if fs.NArg() != 2 {
		opts.ShowUsage = true
		return opts, nil
	}
	if err := opts.Normalize(); err != nil {
		return nil, err
	}
	opts.SourcePath = fs.Arg(0)
	opts.SaveDir = fs.Arg(1)
	return opts, nil
}

// LoadOptions читает окружение (nil означает окружение процесса) и разбирает
// args. Ошибка окружения возвращается только если аргументы верны.
func LoadOptions(args []string, environ map[string]string, out io.Writer) (*Options, error) {
	base, envErr := config.LoadFrom(environ)
	if envErr != nil {
		base = config.Default()
	}
	opts, err := ParseArgs(args, *base, out)
	if err != nil {
		return nil, err
	}
	if envErr != nil && !opts.ShowUsage {
		return nil, envErr
	}
	return opts, nil
}

// PrintUsage выводит краткую справку
func PrintUsage(out io.Writer, name string) {
	fmt.Fprintf(out, "Использование: %s [флаги] <исходное видео> <каталог для кадров>\n", name)
	fmt.Fprintln(out, "Клавиши: a назад, d вперёд, s сохранить кадр, пробел пауза, q выход")
	fmt.Fprintln(out, "Флаги: -skip N, -addr host:port, -ext png|jpg, -debug, -wait-viewer")
}

// Run запускает сессию или печатает справку, если аргументы неверны
func (c *CLI) Run(ctx context.Context) error {
	if c.options.helpShown {
		return nil
	}
	if c.options.ShowUsage {
		fmt.Fprintf(c.out, "Аргументы: %q\n", c.options.Args)
		fmt.Fprintln(c.out, "Ошибка аргументов: нужны путь к исходному видео и каталог для сохранения кадров")
		PrintUsage(c.out, "frame-capture")
		return nil
	}

	c.logger.Debug("Аргументы: %q", c.options.Args)
	return c.runner.Run(ctx, c.options.SourcePath)
}
