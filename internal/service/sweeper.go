// sweeper.go — фоновая очистка забытых артефактов видео.
//
// Каждый запрос удаляет свои артефакты сам; sweeper подбирает только то,
// что осталось после аварийного завершения процесса. Активные артефакты
// (выделенные и ещё не освобождённые) не трогаются.
//
// Запускается как горутина с периодическим тикером (PA_ARTIFACT_SWEEP_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/photoalbum/internal/storage/tempstore"
)

// Prometheus-метрики очистки.
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_artifact_sweep_runs_total",
		Help: "Общее количество запусков очистки артефактов",
	})

	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pa_artifact_sweep_removed_total",
		Help: "Общее количество артефактов, удалённых фоновой очисткой",
	})
)

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// Removed — количество удалённых файлов
	Removed int
	// Errors — количество файлов, которые не удалось удалить
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// ArtifactSweeper — фоновая очистка директории артефактов.
type ArtifactSweeper struct {
	store    *tempstore.Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewArtifactSweeper создаёт сервис очистки.
// maxAge — возраст, после которого неактивный артефакт считается забытым.
func NewArtifactSweeper(store *tempstore.Store, maxAge, interval time.Duration, logger *slog.Logger) *ArtifactSweeper {
	return &ArtifactSweeper{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With(slog.String("component", "artifact_sweeper")),
	}
}

// Start запускает фоновую горутину очистки.
func (s *ArtifactSweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("Очистка артефактов запущена",
		slog.String("interval", s.interval.String()),
		slog.String("max_age", s.maxAge.String()),
		slog.String("dir", s.store.Dir()),
	)
}

// Stop останавливает фоновую горутину и дожидается её завершения.
func (s *ArtifactSweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Очистка артефактов остановлена")
}

func (s *ArtifactSweeper) run(ctx context.Context) {
	defer close(s.done)

	// Первый запуск — сразу после старта, подбирает остатки прошлого процесса
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce выполняет один проход очистки.
func (s *ArtifactSweeper) RunOnce() *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	removed, failed := s.store.Sweep(s.maxAge)
	result := &SweepResult{
		Removed:  removed,
		Errors:   failed,
		Duration: time.Since(start),
	}

	sweepRunsTotal.Inc()
	sweepRemovedTotal.Add(float64(removed))

	level := slog.LevelDebug
	if removed > 0 || failed > 0 {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, "Очистка артефактов завершена",
		slog.Int("removed", result.Removed),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)
	return result
}
