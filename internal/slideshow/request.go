// Пакет slideshow — ядро генерации слайдшоу: проверка запроса,
// разрешение ссылок на фотографии, упорядочивание и планирование таймлайна.
// Пакет не выполняет ввод-вывод, кроме чтения через PhotoSource.
package slideshow

import (
	"math"
	"time"
)

// SortBy — стратегия упорядочивания фотографий.
type SortBy string

const (
	SortByUploadDate SortBy = "uploadDate"
	SortByEvent      SortBy = "event"
	SortByCustom     SortBy = "custom"
)

// Transition — вид перехода между кадрами.
type Transition string

const (
	TransitionFade  Transition = "fade"
	TransitionSlide Transition = "slide"
	TransitionZoom  Transition = "zoom"
)

// Ограничения запроса.
const (
	MinPhotos   = 2
	MinDuration = 1.0
	MaxDuration = 10.0
)

// VideoRequest — параметры генерации видео. Не изменяется после создания.
type VideoRequest struct {
	// PhotoIDs — упорядоченные идентификаторы фотографий (не менее двух)
	PhotoIDs []int64 `json:"photoIds"`
	// SortBy — порядок кадров
	SortBy SortBy `json:"sortBy"`
	// Transition — вид перехода
	Transition Transition `json:"transition"`
	// Duration — длительность показа одной фотографии в секундах [1, 10]
	Duration float64 `json:"duration"`
	// Captions — показывать подписи фотографий
	Captions bool `json:"captions"`
	// Title — заголовок поверх первого кадра (опционально)
	Title *string `json:"title,omitempty"`
	// Music — ссылка на музыку; принимается, но не используется
	Music *string `json:"music,omitempty"`
}

// Validate проверяет запрос до начала любой обработки.
func (r VideoRequest) Validate() error {
	if len(r.PhotoIDs) < MinPhotos {
		return invalidOptions("нужно минимум %d фотографии, получено %d", MinPhotos, len(r.PhotoIDs))
	}
	switch r.SortBy {
	case SortByUploadDate, SortByEvent, SortByCustom:
	default:
		return invalidOptions("недопустимый sortBy %q", r.SortBy)
	}
	switch r.Transition {
	case TransitionFade, TransitionSlide, TransitionZoom:
	default:
		return invalidOptions("недопустимый transition %q", r.Transition)
	}
	return validateDuration(r.Duration)
}

// SegmentDuration возвращает длительность кадра как time.Duration.
func (r VideoRequest) SegmentDuration() time.Duration {
	return secondsToDuration(r.Duration)
}

// TitleText возвращает заголовок или пустую строку.
func (r VideoRequest) TitleText() string {
	if r.Title == nil {
		return ""
	}
	return *r.Title
}

func validateDuration(seconds float64) error {
	if math.IsNaN(seconds) || seconds < MinDuration || seconds > MaxDuration {
		return invalidOptions("duration %v вне диапазона [%v, %v]", seconds, MinDuration, MaxDuration)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds * float64(time.Second)))
}
