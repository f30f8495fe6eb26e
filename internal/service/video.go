// video.go — оркестратор генерации слайдшоу.
//
// Поток одного запроса:
//  1. Валидация параметров (до любых побочных эффектов)
//  2. Resolve — загрузка фотографий и проверка владельца
//  3. Order — упорядочивание
//  4. Plan — расчёт таймлайна
//  5. Acquire — выделение артефактов (манифест + выходной файл)
//  6. WriteManifest → Populated
//  7. Encode (с ограничением параллельности, если задано) → Encoded
//  8. deliver — отдача видео клиенту → Delivered
//  9. Release — удаление артефактов на любом исходе → Cleaned
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/bigkaa/photoalbum/internal/encoder"
	"github.com/bigkaa/photoalbum/internal/slideshow"
	"github.com/bigkaa/photoalbum/internal/storage/tempstore"
)

// Prometheus-метрики генерации видео.
var (
	videoRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pa_video_requests_total",
		Help: "Количество запросов генерации видео по исходу.",
	}, []string{"outcome"})

	videoEncodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pa_video_encode_duration_seconds",
		Help:    "Длительность кодирования видео в секундах.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	videoActiveEncodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pa_video_active_encodes",
		Help: "Количество выполняющихся процессов кодирования.",
	})
)

// Video — готовое видео, передаваемое в функцию доставки.
// Файл существует только до возврата из deliver.
type Video struct {
	// Path — путь к выходному файлу
	Path string
	// Size — размер файла в байтах
	Size int64
	// Duration — длительность таймлайна
	Duration time.Duration
}

// DeliverFunc отдаёт видео клиенту. Вызывается не более одного раза за запрос.
type DeliverFunc func(ctx context.Context, v Video) error

// VideoService — сервис генерации слайдшоу.
type VideoService struct {
	photos  slideshow.PhotoSource
	encoder encoder.Encoder
	store   *tempstore.Store
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// NewVideoService создаёт оркестратор.
// maxConcurrent > 0 ограничивает число одновременных кодирований, 0 — без ограничения.
func NewVideoService(
	photos slideshow.PhotoSource,
	enc encoder.Encoder,
	store *tempstore.Store,
	maxConcurrent int,
	logger *slog.Logger,
) *VideoService {
	s := &VideoService{
		photos:  photos,
		encoder: enc,
		store:   store,
		logger:  logger.With(slog.String("component", "video_service")),
	}
	if maxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return s
}

// Generate строит слайдшоу для пользователя и передаёт результат в deliver.
// Ошибка классифицируется через slideshow.KindOf.
// Временные файлы удаляются до возврата независимо от исхода.
func (s *VideoService) Generate(ctx context.Context, userID int64, req slideshow.VideoRequest, deliver DeliverFunc) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(slideshow.KindOf(err))
		}
		videoRequestsTotal.WithLabelValues(outcome).Inc()
	}()

	if userID <= 0 {
		return slideshow.ErrUnauthenticated
	}
	if err := req.Validate(); err != nil {
		return err
	}

	photos, err := slideshow.Resolve(ctx, s.photos, userID, req.PhotoIDs)
	if err != nil {
		return err
	}
	ordered, err := slideshow.Order(photos, req.SortBy)
	if err != nil {
		return err
	}
	tl, err := slideshow.Plan(ordered, slideshow.OptionsFromRequest(req))
	if err != nil {
		return err
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("ожидание слота кодирования прервано: %w", err)
		}
		defer s.sem.Release(1)
	}

	ws, err := s.store.Acquire()
	if err != nil {
		return err
	}
	defer ws.Release()

	logger := s.logger.With(
		slog.Int64("user_id", userID),
		slog.String("artifact", ws.OutputPath),
	)

	fail := func(err error) error {
		ws.Fail(err)
		return err
	}

	if err := encoder.WriteManifest(ws.ManifestPath, tl); err != nil {
		return fail(err)
	}
	if err := ws.MarkPopulated(); err != nil {
		return fail(err)
	}

	logger.Info("Кодирование видео начато",
		slog.Int("photos", len(tl.Segments)),
		slog.String("transition", string(tl.Transition)),
		slog.Duration("total", tl.Total()),
	)

	videoActiveEncodes.Inc()
	encStart := time.Now()
	err = s.encoder.Encode(ctx, encoder.Job{
		Timeline:     tl,
		ManifestPath: ws.ManifestPath,
		OutputPath:   ws.OutputPath,
	})
	videoEncodeDuration.Observe(time.Since(encStart).Seconds())
	videoActiveEncodes.Dec()
	if err != nil {
		logger.Error("Ошибка кодирования видео",
			slog.String("kind", string(slideshow.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return fail(err)
	}
	if err := ws.MarkEncoded(); err != nil {
		return fail(err)
	}

	info, err := os.Stat(ws.OutputPath)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", slideshow.ErrOutputMissing, err))
	}

	deliverErr := deliver(ctx, Video{Path: ws.OutputPath, Size: info.Size(), Duration: tl.Total()})
	// Доставка завершает жизнь артефакта при любом исходе
	if err := ws.MarkDelivered(); err != nil {
		return fail(err)
	}
	if deliverErr != nil {
		logger.Warn("Ошибка отдачи видео клиенту", slog.String("error", deliverErr.Error()))
		return fmt.Errorf("ошибка отдачи видео: %w", deliverErr)
	}

	logger.Info("Видео отдано",
		slog.Int64("size", info.Size()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
