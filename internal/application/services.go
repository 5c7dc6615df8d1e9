package application

import (
	"context"
	"errors"
	"fmt"

	"frame-capture/internal/domain"
)

// SessionConfig параметры одной сессии просмотра
type SessionConfig struct {
	SkipDistance int    // Шаг перехода по a/d в кадрах
	WindowName   string // Имя окна просмотра
	SeekBarName  string // Имя ползунка
	SaveDir      string // Каталог для сохранённых кадров
	ImageExt     string // Формат сохраняемых кадров
}

// CaptureService сервис покадрового просмотра видео с сохранением кадров
type CaptureService struct {
	videoOpener   VideoOpener
	displayOpener DisplayOpener
	saver         domain.FrameSaver
	overlay       Overlay
	recorder      Recorder
	logger        Logger
	config        SessionConfig
}

// NewCaptureService создает новый сервис захвата кадров.
// recorder может быть nil.
func NewCaptureService(
	videoOpener VideoOpener,
	displayOpener DisplayOpener,
	saver domain.FrameSaver,
	overlay Overlay,
	recorder Recorder,
	logger Logger,
	config SessionConfig,
) *CaptureService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if config.SkipDistance <= 0 {
		config.SkipDistance = domain.DefaultSkipDistance
	}
	if config.WindowName == "" {
		config.WindowName = domain.MainWindowName
	}
	if config.SeekBarName == "" {
		config.SeekBarName = domain.SeekBarName
	}
	if config.ImageExt == "" {
		config.ImageExt = "png"
	}
	return &CaptureService{
		videoOpener:   videoOpener,
		displayOpener: displayOpener,
		saver:         saver,
		overlay:       overlay,
		recorder:      recorder,
		logger:        logger,
		config:        config,
	}
}

// Run проводит одну сессию просмотра sourcePath до команды выхода,
// отмены ctx или ошибки. Видео и окно освобождаются на любом пути выхода.
func (s *CaptureService) Run(ctx context.Context, sourcePath string) (err error) {
	source, err := s.videoOpener.Open(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("открытие видео %q: %w", sourcePath, err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("закрытие видео: %w", cerr))
		}
	}()

	info := source.Info()
	s.logger.Info("read: %s", info.Path)
	s.logger.Info("max frame count:%d fps:%g size:(%d,%d)",
		info.MaxFrameIndex(), info.FPS, info.Width, info.Height)

	controller := domain.NewPlaybackController(info.MaxFrameIndex())

	display, err := s.displayOpener.Open(ctx, domain.DisplayOptions{
		WindowName:  s.config.WindowName,
		SeekBarName: s.config.SeekBarName,
		SeekMax:     controller.MaxIndex(),
		OnSeek:      controller.SetIndexFromExternalSeek,
	})
	if err != nil {
		return fmt.Errorf("открытие окна %q: %w", s.config.WindowName, err)
	}
	defer func() {
		if cerr := display.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("закрытие окна: %w", cerr))
		}
	}()

	sess := s.newSession(controller, source, display)
	return sess.loop(ctx)
}

func (s *CaptureService) newSession(controller *domain.PlaybackController, source domain.VideoSource, display domain.Display) *session {
	info := source.Info()
	return &session{
		svc:        s,
		controller: controller,
		source:     source,
		display:    display,
		sourcePath: info.Path,
		wait:       info.WaitInterval(),
	}
}
