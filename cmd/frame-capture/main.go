package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"frame-capture/internal/application"
	"frame-capture/internal/domain"
	"frame-capture/internal/infrastructure/logger"
	"frame-capture/internal/infrastructure/metrics"
	"frame-capture/internal/infrastructure/overlay"
	"frame-capture/internal/infrastructure/storage"
	"frame-capture/internal/infrastructure/video"
	"frame-capture/internal/infrastructure/viewer"
	"frame-capture/internal/presentation/cli"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Ошибка: %v", err)
	}
}

func run() error {
	// Окружение задаёт значения по умолчанию для флагов
	options, err := cli.LoadOptions(os.Args, nil, os.Stderr)
	if err != nil {
		return err
	}

	zapLogger, err := logger.NewZapLogger(options.Debug)
	if err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Инициализируем инфраструктурные компоненты
	recorder := metrics.NewRecorder()
	videoOpener := video.NewFFmpegOpener(zapLogger)
	displayOpener := &viewer.Opener{
		Addr:          options.ViewerAddr,
		WaitForViewer: options.WaitViewer,
		StreamQuality: options.StreamQuality,
		Debug:         options.Debug,
		Handlers:      map[string]http.Handler{"/metrics": recorder.Handler()},
		Logger:        zapLogger,
	}
	saver := storage.NewFileSaver(zapLogger)
	textOverlay := overlay.NewTextOverlay(options.DisplayMaxWidth)

	// Инициализируем сервис приложения
	captureService := application.NewCaptureService(
		videoOpener,
		displayOpener,
		saver,
		textOverlay,
		recorder,
		zapLogger,
		application.SessionConfig{
			SkipDistance: options.SkipDistance,
			WindowName:   domain.MainWindowName,
			SeekBarName:  domain.SeekBarName,
			SaveDir:      options.SaveDir,
			ImageExt:     options.ImageExt,
		},
	)

	cliApp := cli.NewCLI(captureService, zapLogger, os.Stdout)
	cliApp.SetOptions(options)

	err = cliApp.Run(ctx)
	if errors.Is(err, context.Canceled) {
		zapLogger.Info("Прерывание получено, закрытие...")
		return nil
	}
	return err
}
