package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frame-capture/internal/domain"
)

// session состояние одной открытой сессии; живёт только внутри Run
type session struct {
	svc        *CaptureService
	controller *domain.PlaybackController
	source     domain.VideoSource
	display    domain.Display
	sourcePath string
	wait       time.Duration
}

func (s *session) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			s.svc.logger.Info("Сессия прервана: %v", ctx.Err())
			return nil
		}
		quit, err := s.step()
		if err != nil {
			return err
		}
		if quit {
			s.svc.logger.Debug("Получена команда выхода на кадре %d", s.controller.Index())
			return nil
		}
	}
}

// step одна итерация цикла. Возвращает true, если оператор запросил выход.
func (s *session) step() (bool, error) {
	index := s.controller.Index()

	// Переход дорогой, поэтому только при расхождении позиций;
	// последовательное чтение идёт без перехода.
	if index != s.source.Position() {
		if err := s.source.Seek(index); err != nil {
			return false, fmt.Errorf("переход к кадру %d: %w", index, err)
		}
		s.svc.recorder.Seeked()
	}

	frame, err := s.source.Read()
	if err != nil {
		if !errors.Is(err, domain.ErrDecode) {
			return false, fmt.Errorf("чтение кадра %d: %w", index, err)
		}
		return s.skipUnreadable(index, err), nil
	}
	s.svc.recorder.FrameDecoded(frame.Index)

	// Готовим индекс следующей итерации, показываем только что прочитанный кадр
	if s.controller.Playing() {
		s.controller.Advance(1)
	}

	res := s.pollInput()
	if res.QuitRequested {
		return true, nil
	}

	var (
		saved      bool
		saveFailed bool
		savePath   string
	)
	if res.SaveRequested {
		savePath, err = s.svc.saver.Save(frame.Image, domain.SaveRequest{
			Dir:        s.svc.config.SaveDir,
			SourcePath: s.sourcePath,
			Index:      s.controller.Index(),
			Ext:        s.svc.config.ImageExt,
		})
		s.svc.recorder.FrameSaved(err)
		if err != nil {
			s.svc.logger.Error("Не удалось сохранить кадр %d: %v", s.controller.Index(), err)
			saveFailed = true
		} else {
			s.svc.logger.Info("save img: %s", savePath)
			saved = true
		}
	}

	st := s.controller.Status(saved, savePath)
	work := s.svc.overlay.Draw(frame.Image, StatusLines(st, saveFailed))
	if err := s.display.Show(work); err != nil {
		return false, fmt.Errorf("вывод кадра %d: %w", frame.Index, err)
	}
	if err := s.display.SetSeekPosition(st.FrameIndex); err != nil {
		return false, fmt.Errorf("обновление ползунка: %w", err)
	}
	return false, nil
}

// skipUnreadable пропускает нечитаемый кадр без отрисовки.
// Если индекс упёрся в конец видео, итерация всё равно ждёт ввод,
// иначе цикл крутился бы вхолостую и не принимал выход.
func (s *session) skipUnreadable(index int, cause error) bool {
	s.svc.recorder.DecodeFailed()
	s.svc.logger.Debug("Кадр %d пропущен: %v", index, cause)

	if s.controller.Advance(1) != index {
		return false
	}
	res := s.pollInput()
	if res.SaveRequested {
		s.svc.logger.Debug("Сохранение пропущено: нет прочитанного кадра")
	}
	return res.QuitRequested
}

func (s *session) pollInput() domain.CommandResult {
	key := s.display.WaitKey(s.wait)
	cmd := s.controller.Interpret(key)
	if cmd != domain.CommandNone {
		s.svc.recorder.CommandApplied(cmd)
		s.svc.logger.Debug("Клавиша %d: %s", key, cmd)
	}
	return s.controller.ApplyCommand(cmd, s.svc.config.SkipDistance)
}
