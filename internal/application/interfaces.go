package application

import (
	"context"
	"image"

	"frame-capture/internal/domain"
)

// VideoOpener открывает источник кадров по пути к файлу
type VideoOpener interface {
	Open(ctx context.Context, path string) (domain.VideoSource, error)
}

// DisplayOpener создаёт окно просмотра
type DisplayOpener interface {
	Open(ctx context.Context, opts domain.DisplayOptions) (domain.Display, error)
}

// Overlay рисует строки статуса поверх копии кадра
type Overlay interface {
	Draw(img image.Image, lines []string) image.Image
}

// Recorder собирает счётчики сессии
type Recorder interface {
	FrameDecoded(index int)
	DecodeFailed()
	Seeked()
	CommandApplied(cmd domain.Command)
	FrameSaved(err error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

type nopRecorder struct{}

func (nopRecorder) FrameDecoded(int)              {}
func (nopRecorder) DecodeFailed()                 {}
func (nopRecorder) Seeked()                       {}
func (nopRecorder) CommandApplied(domain.Command) {}
func (nopRecorder) FrameSaved(error)              {}
