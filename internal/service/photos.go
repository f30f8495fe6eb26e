// photos.go — библиотека фотографий пользователя: загрузка, просмотр, фильтрация.
//
// PhotoService также является источником фотографий для слайдшоу
// (slideshow.PhotoSource): GetPhoto возвращает запись без проверки владельца,
// проверку выполняет slideshow.Resolve.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/photoalbum/internal/domain/model"
	"github.com/bigkaa/photoalbum/internal/repository"
	"github.com/bigkaa/photoalbum/internal/slideshow"
	"github.com/bigkaa/photoalbum/internal/storage/photostore"
)

// Лимиты пагинации списка фотографий.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// TxRunner — выполнение функции в транзакции БД.
// Реализуется repository.TxRunner.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// UploadParams — параметры загрузки фотографии.
type UploadParams struct {
	// UserID — владелец (sub из JWT)
	UserID int64
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalFilename — имя файла у клиента, используется только расширение
	OriginalFilename string
	// Metadata — метаданные от клиента; uploadDate заполняет сервер
	Metadata model.PhotoMetadata
}

// PhotoList — страница списка фотографий.
type PhotoList struct {
	Items  []*model.Photo
	Total  int
	Limit  int
	Offset int
}

// PhotoService — сервис библиотеки фотографий.
type PhotoService struct {
	photos        repository.PhotoRepository
	tx            TxRunner
	repoFor       func(db repository.DBTX) repository.PhotoRepository
	store         *photostore.Store
	cache         *PhotoCache
	maxUploadSize int64
	now           func() time.Time
	logger        *slog.Logger
}

// NewPhotoService создаёт сервис фотографий.
// cache может быть nil — тогда записи всегда читаются из БД.
func NewPhotoService(
	photos repository.PhotoRepository,
	tx TxRunner,
	store *photostore.Store,
	cache *PhotoCache,
	maxUploadSize int64,
	logger *slog.Logger,
) *PhotoService {
	return &PhotoService{
		photos:        photos,
		tx:            tx,
		repoFor:       repository.NewPhotoRepository,
		store:         store,
		cache:         cache,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "photo_service")),
	}
}

// Upload сохраняет файл и создаёт запись фотографии.
//
// Поток:
//  1. Stage — временный файл + fsync + SHA-256
//  2. Транзакция: INSERT записи, затем атомарный rename файла
//  3. COMMIT
//
// При ошибке на любом шаге файл удаляется, запись откатывается.
func (s *PhotoService) Upload(ctx context.Context, params UploadParams) (*model.Photo, error) {
	meta := params.Metadata
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	meta.UploadDate = s.now().UTC().Format(time.RFC3339)

	staged, err := s.store.Stage(params.Reader, params.OriginalFilename, s.maxUploadSize)
	if err != nil {
		switch {
		case errors.Is(err, photostore.ErrTooLarge):
			return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
		case errors.Is(err, photostore.ErrUnsupportedType), errors.Is(err, photostore.ErrEmpty):
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("ошибка сохранения файла: %w", err)
	}

	photo := &model.Photo{
		UserID:   params.UserID,
		Filename: staged.Filename,
		Metadata: meta,
	}

	committed := false
	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.repoFor(tx).Create(ctx, photo); err != nil {
			return err
		}
		if err := staged.Commit(); err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil {
		staged.Abort()
		if committed {
			// Файл уже переименован, но транзакция не зафиксирована
			if delErr := s.store.Delete(staged.Filename); delErr != nil {
				s.logger.Error("Не удалось удалить файл после отката",
					slog.String("filename", staged.Filename),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return nil, fmt.Errorf("ошибка сохранения фотографии: %w", err)
	}

	photo.Path = s.store.FullPath(photo.Filename)
	if s.cache != nil {
		s.cache.Set(photo)
	}

	s.logger.Info("Фотография загружена",
		slog.Int64("photo_id", photo.ID),
		slog.Int64("user_id", photo.UserID),
		slog.Int64("size", staged.Size),
		slog.String("sha256", staged.Checksum),
	)
	return photo, nil
}

// GetPhoto возвращает фотографию по ID без проверки владельца.
// Реализует slideshow.PhotoSource.
func (s *PhotoService) GetPhoto(ctx context.Context, id int64) (*model.Photo, error) {
	if s.cache != nil {
		if p, ok := s.cache.Get(id); ok {
			return p, nil
		}
	}

	p, err := s.photos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", slideshow.ErrNotFound, id)
		}
		return nil, fmt.Errorf("ошибка получения фотографии %d: %w", id, err)
	}
	p.Path = s.store.FullPath(p.Filename)

	if s.cache != nil {
		s.cache.Set(p)
	}
	return p, nil
}

// Get возвращает фотографию владельца.
// Чужая фотография неотличима от отсутствующей.
func (s *PhotoService) Get(ctx context.Context, userID, id int64) (*model.Photo, error) {
	p, err := s.GetPhoto(ctx, id)
	if err != nil {
		if errors.Is(err, slideshow.ErrNotFound) {
			return nil, fmt.Errorf("%w: фотография %d", ErrNotFound, id)
		}
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("%w: фотография %d", ErrNotFound, id)
	}
	return p, nil
}

// List возвращает страницу фотографий пользователя, новые первыми.
// limit <= 0 — значение по умолчанию, больше MaxPageLimit — обрезается.
func (s *PhotoService) List(ctx context.Context, userID int64, filters repository.PhotoListFilters, limit, offset int) (*PhotoList, error) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.photos.ListByUser(ctx, userID, filters, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка фотографий: %w", err)
	}
	total, err := s.photos.CountByUser(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта фотографий: %w", err)
	}
	for _, p := range items {
		p.Path = s.store.FullPath(p.Filename)
	}

	return &PhotoList{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// OpenFile открывает файл фотографии владельца для отдачи клиенту.
func (s *PhotoService) OpenFile(ctx context.Context, userID, id int64) (*os.File, *model.Photo, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.store.Open(p.Filename)
	if err != nil {
		if errors.Is(err, photostore.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: файл фотографии %d", ErrNotFound, id)
		}
		return nil, nil, err
	}
	return f, p, nil
}
