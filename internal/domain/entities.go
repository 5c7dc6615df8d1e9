package domain

import (
	"errors"
	"image"
	"time"
)

// ErrDecode означает, что источник не смог выдать кадр в текущей позиции
// (конец потока, битые данные, неполный кадр). Это временное состояние:
// цикл захвата пропускает такой кадр и идёт дальше.
var ErrDecode = errors.New("кадр не декодирован")

// DefaultSkipDistance шаг перехода по клавишам a/d в кадрах
const DefaultSkipDistance = 480

// Имена окна и ползунка, под которыми их видит оператор
const (
	MainWindowName = "MovieToImgCapture"
	SeekBarName    = "frame"
)

// defaultWait используется, если у видео неизвестна частота кадров
const defaultWait = 33 * time.Millisecond

// VideoInfo описывает видеофайл; читается один раз при открытии
type VideoInfo struct {
	Path       string  // Путь к исходному файлу
	FrameCount int     // Общее число кадров
	FPS        float64 // Частота кадров
	Width      int     // Ширина кадра в пикселях
	Height     int     // Высота кадра в пикселях
}

// MaxFrameIndex возвращает последний допустимый индекс кадра
func (v VideoInfo) MaxFrameIndex() int {
	if v.FrameCount <= 0 {
		return 0
	}
	return v.FrameCount - 1
}

// WaitInterval время ожидания клавиши за одну итерацию (1000/fps мс).
// Заодно задаёт темп воспроизведения, близкий к родному.
func (v VideoInfo) WaitInterval() time.Duration {
	if v.FPS <= 0 {
		return defaultWait
	}
	wait := time.Duration(int(1000/v.FPS)) * time.Millisecond
	if wait < time.Millisecond {
		return time.Millisecond
	}
	return wait
}

// Frame декодированный кадр до наложения текста
type Frame struct {
	Index int         // Позиция, с которой кадр был прочитан
	Image image.Image // Данные кадра
}

// Key код нажатой клавиши
type Key int

// NoKey означает, что за время ожидания ничего не нажато
const NoKey Key = -1

// SessionStatus вычисляемое состояние сессии для вывода на экран
type SessionStatus struct {
	FrameIndex        int
	MaxFrameIndex     int
	State             PlaybackState
	LastActionWasSave bool
	LastSavePath      string
}

// SaveRequest параметры сохранения текущего кадра
type SaveRequest struct {
	Dir        string // Каталог назначения
	SourcePath string // Исходное видео; из него берётся базовое имя
	Index      int    // Индекс кадра для имени файла
	Ext        string // Расширение без точки: png, jpg
}

// DisplayOptions параметры открытия окна просмотра
type DisplayOptions struct {
	WindowName  string
	SeekBarName string
	SeekMax     int
	// OnSeek вызывается, когда оператор двигает ползунок.
	// Вызов происходит внутри WaitKey, в потоке цикла захвата.
	OnSeek func(pos int)
}

// VideoSource источник кадров
type VideoSource interface {
	Info() VideoInfo
	// Position индекс кадра, который будет прочитан следующим
	Position() int
	Seek(index int) error
	// Read читает кадр в текущей позиции и сдвигает позицию на один.
	// При неудаче возвращает ошибку, обёрнутую вокруг ErrDecode.
	Read() (Frame, error)
	Close() error
}

// Display окно просмотра с ползунком позиции
type Display interface {
	Show(img image.Image) error
	SetSeekPosition(index int) error
	// WaitKey ждёт нажатия не дольше wait и возвращает NoKey, если нажатия не было
	WaitKey(wait time.Duration) Key
	Close() error
}

// FrameSaver сохраняет кадр на диск и возвращает итоговый путь
type FrameSaver interface {
	Save(img image.Image, req SaveRequest) (string, error)
}
