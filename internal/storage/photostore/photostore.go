// Пакет photostore — файлы фотографий на диске (PA_UPLOAD_DIR).
//
// Запись двухфазная: Stage пишет данные во временный файл с подсчётом
// SHA-256 и fsync, Commit атомарно переименовывает его в итоговое имя.
// Это позволяет зафиксировать файл только после успешной записи в БД.
package photostore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound — файл фотографии отсутствует на диске.
var ErrNotFound = errors.New("файл фотографии не найден")

// allowedExt — допустимые расширения изображений.
var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

// Store — хранилище файлов фотографий.
type Store struct {
	dir string
}

// New создаёт Store. Директория создаётся, если её нет.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию фотографий %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir возвращает путь к директории фотографий.
func (s *Store) Dir() string {
	return s.dir
}

// FullPath возвращает абсолютный путь к файлу фотографии.
// Имя очищается от компонентов пути.
func (s *Store) FullPath(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Staged — записанный, но ещё не зафиксированный файл.
type Staged struct {
	// Filename — итоговое имя файла в директории
	Filename string
	// Size — размер в байтах
	Size int64
	// Checksum — SHA-256 содержимого
	Checksum string

	tmpPath  string
	fullPath string
	done     bool
}

// Stage записывает данные во временный файл.
// Итоговое имя: {uuid}{ext}, расширение берётся из исходного имени.
// maxSize ограничивает размер (0 — без ограничения).
func (s *Store) Stage(r io.Reader, originalFilename string, maxSize int64) (*Staged, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !allowedExt[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	name := uuid.New().String() + ext
	fullPath := filepath.Join(s.dir, name)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if maxSize > 0 {
		// +1 байт, чтобы отличить «ровно maxSize» от превышения
		r = io.LimitReader(r, maxSize+1)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if maxSize > 0 && size > maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, maxSize)
	}
	if size == 0 {
		f.Close()
		os.Remove(tmpPath)
		return nil, ErrEmpty
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	return &Staged{
		Filename: name,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
		tmpPath:  tmpPath,
		fullPath: fullPath,
	}, nil
}

// Ошибки приёма файла.
var (
	// ErrTooLarge — файл превышает допустимый размер.
	ErrTooLarge = errors.New("файл слишком большой")
	// ErrUnsupportedType — расширение файла не поддерживается.
	ErrUnsupportedType = errors.New("недопустимый тип файла")
	// ErrEmpty — файл не содержит данных.
	ErrEmpty = errors.New("пустой файл")
)

// Commit атомарно переносит файл под итоговое имя.
func (st *Staged) Commit() error {
	if st.done {
		return nil
	}
	if err := os.Rename(st.tmpPath, st.fullPath); err != nil {
		os.Remove(st.tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}
	st.done = true
	return nil
}

// Abort удаляет временный файл. Безопасен после Commit.
func (st *Staged) Abort() {
	if st.done {
		return
	}
	os.Remove(st.tmpPath)
	st.done = true
}

// Open открывает файл фотографии для чтения.
func (s *Store) Open(filename string) (*os.File, error) {
	f, err := os.Open(s.FullPath(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", filename, err)
	}
	return f, nil
}

// Delete удаляет файл фотографии. Отсутствие файла не считается ошибкой.
func (s *Store) Delete(filename string) error {
	err := os.Remove(s.FullPath(filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", filename, err)
	}
	return nil
}
