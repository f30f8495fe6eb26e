// Пакет tempstore — временные артефакты генерации видео.
//
// Каждый запрос получает Workspace с парой уникальных путей (манифест и
// видео) в выделенной директории. Release удаляет оба файла при любом
// исходе запроса; ошибки удаления логируются и не возвращаются.
// Sweep подчищает артефакты, оставшиеся после аварийного завершения.
package tempstore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/photoalbum/internal/domain/lifecycle"
	"github.com/bigkaa/photoalbum/internal/slideshow"
)

const (
	// nameBytes — длина случайной части имени артефакта
	nameBytes = 16

	manifestExt = ".txt"
	outputExt   = ".mp4"
)

var cleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pa_artifact_cleanup_failures_total",
	Help: "Количество неудачных удалений временных артефактов",
})

// Store — директория временных артефактов.
type Store struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{} // базовые имена артефактов незавершённых запросов
}

// New создаёт Store. Директория создаётся, если её нет.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию артефактов %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With(slog.String("component", "tempstore")),
		active: make(map[string]struct{}),
	}, nil
}

// Dir возвращает путь к директории артефактов.
func (s *Store) Dir() string {
	return s.dir
}

// Acquire выделяет артефакты для одного запроса.
// Вызывающий код обязан вызвать Release (обычно через defer).
func (s *Store) Acquire() (*Workspace, error) {
	// Директорию могли удалить извне после старта
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию артефактов %s: %w", s.dir, err)
	}

	base, err := randomName()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, dup := s.active[base]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("коллизия имени артефакта %s", base)
	}
	s.active[base] = struct{}{}
	s.mu.Unlock()

	return &Workspace{
		store:        s,
		base:         base,
		ManifestPath: filepath.Join(s.dir, base+manifestExt),
		OutputPath:   filepath.Join(s.dir, base+outputExt),
		state:        lifecycle.NewStateMachine(),
	}, nil
}

// Sweep удаляет файлы артефактов старше maxAge, не принадлежащие
// активным запросам. Возвращает число удалённых файлов и ошибок.
func (s *Store) Sweep(maxAge time.Duration) (removed, failed int) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Ошибка чтения директории артефактов", slog.String("error", err.Error()))
		}
		return 0, 0
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != manifestExt && ext != outputExt {
			continue
		}
		if s.isActive(strings.TrimSuffix(name, ext)) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			failed++
			cleanupFailuresTotal.Inc()
			s.logger.Error("Ошибка удаления устаревшего артефакта",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed, failed
}

func (s *Store) isActive(base string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[base]
	return ok
}

func (s *Store) release(base string) {
	s.mu.Lock()
	delete(s.active, base)
	s.mu.Unlock()
}

// Workspace — артефакты одного запроса и их жизненный цикл.
type Workspace struct {
	store *Store
	base  string

	// ManifestPath — путь к манифесту входных файлов
	ManifestPath string
	// OutputPath — путь к итоговому видео
	OutputPath string

	state *lifecycle.StateMachine
	once  sync.Once
}

// State возвращает текущее состояние жизненного цикла.
func (w *Workspace) State() lifecycle.State {
	return w.state.Current()
}

// History возвращает историю переходов жизненного цикла.
func (w *Workspace) History() []lifecycle.TransitionRecord {
	return w.state.History()
}

// MarkPopulated фиксирует запись манифеста.
func (w *Workspace) MarkPopulated() error {
	return w.state.TransitionTo(lifecycle.StatePopulated)
}

// MarkEncoded фиксирует успешное кодирование.
func (w *Workspace) MarkEncoded() error {
	return w.state.TransitionTo(lifecycle.StateEncoded)
}

// MarkDelivered фиксирует передачу видео вызывающему.
func (w *Workspace) MarkDelivered() error {
	return w.state.TransitionTo(lifecycle.StateDelivered)
}

// Fail фиксирует сбой запроса. Артефакты удаляются в Release.
func (w *Workspace) Fail(err error) {
	w.state.Fail(err)
}

// Failure возвращает ошибку, с которой завершился запрос, или nil.
func (w *Workspace) Failure() error {
	return w.state.Failure()
}

// Release удаляет манифест и видео. Безопасен для повторного вызова.
// Ошибки удаления логируются и учитываются в метрике, но не возвращаются.
func (w *Workspace) Release() {
	w.once.Do(func() {
		for _, path := range []string{w.ManifestPath, w.OutputPath} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				cleanupFailuresTotal.Inc()
				w.store.logger.Error("Ошибка удаления артефакта",
					slog.String("path", path),
					slog.String("error", fmt.Errorf("%w: %w", slideshow.ErrCleanup, err).Error()),
				)
			}
		}
		if w.state.Current() != lifecycle.StateCleaned {
			_ = w.state.TransitionTo(lifecycle.StateCleaned)
		}
		w.store.release(w.base)
	})
}

// randomName возвращает hex-строку из криптографически случайных байт.
func randomName() (string, error) {
	buf := make([]byte, nameBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации имени артефакта: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
