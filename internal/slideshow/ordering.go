package slideshow

import (
	"fmt"
	"slices"
	"time"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// Order возвращает перестановку фотографий согласно стратегии.
// Сортировка стабильная; исходный срез не изменяется.
func Order(photos []*model.Photo, sortBy SortBy) ([]*model.Photo, error) {
	out := slices.Clone(photos)

	switch sortBy {
	case SortByCustom:
		return out, nil

	case SortByEvent:
		slices.SortStableFunc(out, func(a, b *model.Photo) int {
			ea, eb := a.Metadata.EventName(), b.Metadata.EventName()
			switch {
			case ea < eb:
				return -1
			case ea > eb:
				return 1
			}
			return 0
		})
		return out, nil

	case SortByUploadDate:
		dates := make(map[*model.Photo]time.Time, len(out))
		for _, p := range out {
			t, err := time.Parse(time.RFC3339Nano, p.Metadata.UploadDate)
			if err != nil {
				return nil, fmt.Errorf("%w: фотография %d, uploadDate %q", ErrDataIntegrity, p.ID, p.Metadata.UploadDate)
			}
			dates[p] = t
		}
		slices.SortStableFunc(out, func(a, b *model.Photo) int {
			return dates[a].Compare(dates[b])
		})
		return out, nil
	}

	return nil, invalidOptions("недопустимый sortBy %q", sortBy)
}
