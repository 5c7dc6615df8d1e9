package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pion/mediadevices/pkg/frame"
	mdvideo "github.com/pion/mediadevices/pkg/io/video"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"frame-capture/internal/application"
	"frame-capture/internal/domain"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// Подменяются в тестах, чтобы не запускать ffprobe/ffmpeg
var (
	probeFunc   = ffmpeg.Probe
	startFunc   = startDecoder
	defaultRate = 30.0
)

// decoderProcess запущенный ffmpeg, пишущий кадры I420 в pipe
type decoderProcess struct {
	out    io.ReadCloser
	stop   func() error
	stderr *bytes.Buffer
}

// FFmpegOpener открывает видео через ffprobe/ffmpeg
type FFmpegOpener struct {
	logger application.Logger
}

// NewFFmpegOpener создает новый FFmpegOpener
func NewFFmpegOpener(logger application.Logger) *FFmpegOpener {
	return &FFmpegOpener{logger: logger}
}

// Open читает параметры видео и готовит источник кадров.
// Процесс декодера запускается при первом чтении.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (domain.VideoSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := probeFunc(path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	info, err := parseProbe(path, raw)
	if err != nil {
		return nil, err
	}
	if info.FPS <= 0 {
		o.logger.Info("Частота кадров не определена, используется %g", defaultRate)
		info.FPS = defaultRate
	}
	return NewFFmpegSource(info, o.logger)
}

// FFmpegSource источник кадров поверх ffmpeg. Последовательное чтение идёт
// из одного процесса; переход перезапускает ffmpeg с нужной позиции.
type FFmpegSource struct {
	info      domain.VideoInfo
	width     int
	height    int
	frameSize int

	decoder frame.Decoder
	proc    *decoderProcess
	reader  mdvideo.Reader
	release func()

	// last последний прочитанный кадр; replay: следующий Read вернёт его
	// без перезапуска ffmpeg
	last    domain.Frame
	hasLast bool
	replay  bool

	pos    int
	ended  bool
	logger application.Logger
}

// NewFFmpegSource создает источник для уже прочитанных параметров видео
func NewFFmpegSource(info domain.VideoInfo, logger application.Logger) (*FFmpegSource, error) {
	decoder, err := frame.NewDecoder(frame.FormatI420)
	if err != nil {
		return nil, err
	}
	// I420 требует чётных размеров
	w, h := info.Width&^1, info.Height&^1
	if w < 2 || h < 2 {
		return nil, fmt.Errorf("слишком маленький кадр %dx%d", info.Width, info.Height)
	}
	s := &FFmpegSource{
		info:      info,
		width:     w,
		height:    h,
		frameSize: w * h * 3 / 2,
		decoder:   decoder,
		logger:    logger,
	}
	s.reader = mdvideo.ReaderFunc(s.readRaw)
	return s, nil
}

// Info параметры видео
func (s *FFmpegSource) Info() domain.VideoInfo { return s.info }

// Position индекс кадра, который будет прочитан следующим
func (s *FFmpegSource) Position() int { return s.pos }

// Seek перезапускает декодер с кадра index. Переход на только что
// прочитанный кадр (пауза) обслуживается из памяти.
func (s *FFmpegSource) Seek(index int) error {
	if s.hasLast && index == s.last.Index {
		s.pos = index
		s.replay = true
		return nil
	}
	s.replay = false
	s.hasLast = false
	if err := s.stopProcess(); err != nil {
		s.logger.Debug("Остановка ffmpeg: %v", err)
	}
	if index < 0 {
		index = 0
	}
	s.pos = index
	s.ended = false
	return s.startProcess()
}

// Read читает кадр в текущей позиции
func (s *FFmpegSource) Read() (domain.Frame, error) {
	if s.replay {
		s.replay = false
		s.pos = s.last.Index + 1
		return s.last, nil
	}
	if s.ended {
		return domain.Frame{}, fmt.Errorf("%w: конец потока на кадре %d", domain.ErrDecode, s.pos)
	}
	if s.proc == nil {
		if err := s.startProcess(); err != nil {
			return domain.Frame{}, err
		}
	}
	if s.release != nil {
		s.release()
		s.release = nil
	}
	s.hasLast = false

	img, release, err := s.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.ended = true
		}
		return domain.Frame{}, fmt.Errorf("%w: кадр %d: %v", domain.ErrDecode, s.pos, err)
	}
	s.release = release

	f := domain.Frame{Index: s.pos, Image: img}
	s.last = f
	s.hasLast = true
	s.pos++
	return f, nil
}

// Close останавливает декодер
func (s *FFmpegSource) Close() error {
	s.hasLast = false
	s.replay = false
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return s.stopProcess()
}

// readRaw читает ровно один кадр из pipe и декодирует его
func (s *FFmpegSource) readRaw() (image.Image, func(), error) {
	buf := make([]byte, s.frameSize)
	if _, err := io.ReadFull(s.proc.out, buf); err != nil {
		return nil, func() {}, err
	}
	return s.decoder.Decode(buf, s.width, s.height)
}

func (s *FFmpegSource) startProcess() error {
	// Точка перехода на полкадра раньше нужного: ffmpeg отдаёт первый кадр
	// с pts >= offset, и округление времени не уводит на соседний кадр.
	offset := (float64(s.pos) - 0.5) / s.info.FPS
	if offset < 0 {
		offset = 0
	}
	proc, err := startFunc(s.info.Path, offset, s.width, s.height)
	if err != nil {
		return fmt.Errorf("запуск ffmpeg с кадра %d: %w", s.pos, err)
	}
	s.proc = proc
	s.logger.Debug("ffmpeg запущен с кадра %d (%.3fs)", s.pos, offset)
	return nil
}

func (s *FFmpegSource) stopProcess() error {
	if s.proc == nil {
		return nil
	}
	proc := s.proc
	s.proc = nil
	err := proc.stop()
	if proc.stderr != nil {
		if msg := strings.TrimSpace(proc.stderr.String()); msg != "" {
			s.logger.Debug("ffmpeg: %s", msg)
		}
	}
	return err
}

// startDecoder запускает ffmpeg: переход по времени до -i, вывод сырых кадров I420 в stdout
func startDecoder(path string, offset float64, width, height int) (*decoderProcess, error) {
	inArgs := ffmpeg.KwArgs{"loglevel": "error"}
	if offset > 0 {
		inArgs["ss"] = strconv.FormatFloat(offset, 'f', 6, 64)
	}
	stderr := &bytes.Buffer{}
	cmd := ffmpeg.Input(path, inArgs).
		Output("pipe:", ffmpeg.KwArgs{
			"format":  "rawvideo",
			"pix_fmt": "yuv420p",
			"vf":      fmt.Sprintf("scale=%d:%d", width, height),
		}).
		WithErrorOutput(stderr).
		Compile()

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	stop := func() error {
		_ = out.Close()
		_ = cmd.Process.Kill()
		var exitErr *exec.ExitError
		if err := cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
			return err
		}
		return nil
	}
	return &decoderProcess{out: out, stop: stop, stderr: stderr}, nil
}
