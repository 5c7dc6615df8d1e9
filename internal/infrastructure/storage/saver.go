package storage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"frame-capture/internal/application"
	"frame-capture/internal/domain"
)

// Через переменные тесты подменяют операции файловой системы
var (
	renameFunc = os.Rename
	removeFunc = os.Remove
)

// tmpBaseName фиксированное имя временного файла в каталоге назначения.
// Кодировщик пишет только по ASCII-пути, итоговое имя получается переименованием.
const tmpBaseName = "tmp"

// PathTypeConflictError по целевому пути лежит не обычный файл
type PathTypeConflictError struct {
	Path string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("по пути %q ожидался файл, найдено: %s", e.Path, e.Got)
}

// IsPathTypeConflict проверяет, что err вызвана PathTypeConflictError
func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError rename между разными файловыми системами
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("переименование между файловыми системами (EXDEV): %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice проверяет, что err вызвана CrossDeviceError
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// FileSaver сохраняет кадры в каталог через временный файл
type FileSaver struct {
	logger application.Logger
}

// NewFileSaver создает новый FileSaver
func NewFileSaver(logger application.Logger) *FileSaver {
	return &FileSaver{logger: logger}
}

// TargetPath путь {dir}/{имя видео без расширения}_{index}.{ext}
func TargetPath(req domain.SaveRequest) string {
	base := filepath.Base(req.SourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(req.Dir, base+"_"+strconv.Itoa(req.Index)+"."+normalizeExt(req.Ext))
}

// Save пишет кадр во временный файл, удаляет существующий файл с целевым
// именем и переименовывает временный файл в целевой. При ошибке временный
// файл удаляется.
func (s *FileSaver) Save(img image.Image, req domain.SaveRequest) (string, error) {
	if img == nil {
		return "", errors.New("нет кадра для сохранения")
	}
	ext := normalizeExt(req.Ext)
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return "", fmt.Errorf("формат %q: %w", ext, err)
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return "", err
	}

	dst := TargetPath(req)
	tmp := filepath.Join(req.Dir, tmpBaseName+"."+ext)

	if err := writeImage(tmp, img, format); err != nil {
		_ = removeFunc(tmp)
		return "", fmt.Errorf("запись %q: %w", tmp, err)
	}

	if err := s.removeExisting(dst); err != nil {
		_ = removeFunc(tmp)
		return "", err
	}

	if err := rename(tmp, dst); err != nil {
		_ = removeFunc(tmp)
		return "", err
	}
	return dst, nil
}

func (s *FileSaver) removeExisting(dst string) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Got: "каталог"}
	}
	if err := removeFunc(dst); err != nil {
		return fmt.Errorf("удаление %q: %w", dst, err)
	}
	s.logger.Info("file is existed!! remove file: %s", dst)
	return nil
}

func writeImage(path string, img image.Image, format imaging.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, format, imaging.JPEGQuality(95)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return "png"
	}
	return ext
}
