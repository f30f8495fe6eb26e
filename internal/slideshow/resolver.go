package slideshow

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// PhotoSource — источник записей фотографий (слой хранения).
// GetPhoto возвращает ошибку, совпадающую с ErrNotFound через errors.Is,
// если записи нет.
type PhotoSource interface {
	GetPhoto(ctx context.Context, id int64) (*model.Photo, error)
}

// Resolve разрешает идентификаторы в записи фотографий с сохранением порядка.
// Первая ненайденная запись даёт ErrNotFound, первая чужая — ErrForbidden.
func Resolve(ctx context.Context, src PhotoSource, userID int64, ids []int64) ([]*model.Photo, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	photos := make([]*model.Photo, 0, len(ids))
	for _, id := range ids {
		p, err := src.GetPhoto(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
			}
			return nil, fmt.Errorf("ошибка получения фотографии %d: %w", id, err)
		}
		if p.UserID != userID {
			return nil, fmt.Errorf("%w: id %d", ErrForbidden, id)
		}
		photos = append(photos, p)
	}
	return photos, nil
}
