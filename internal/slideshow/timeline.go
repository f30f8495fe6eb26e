package slideshow

import (
	"time"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// TransitionLength — фиксированная длина перехода.
const TransitionLength = time.Second

// ZoomCeiling — максимальный коэффициент увеличения для перехода zoom.
// Рампа зума приближается к нему к концу кадра, но не превышает.
const ZoomCeiling = 1.5

// TransitionSpec — описание перехода на входе в кадр.
type TransitionSpec struct {
	Kind   Transition
	Length time.Duration
}

// Segment — временной слот одной фотографии в видео.
type Segment struct {
	Photo *model.Photo
	// Start — смещение начала кадра от начала видео
	Start time.Duration
	// Duration — длительность показа
	Duration time.Duration
	// Caption — подпись; пустая строка, если подписи нет
	Caption string
	// TransitionIn — переход на входе; nil у первого кадра
	TransitionIn *TransitionSpec
}

// End возвращает момент окончания кадра.
func (s Segment) End() time.Duration {
	return s.Start + s.Duration
}

// Timeline — план видео. Строится один раз на запрос и не сохраняется.
type Timeline struct {
	Segments   []Segment
	Transition Transition
	// Overlap — перекрытие соседних кадров
	Overlap time.Duration
	// Title — заголовок поверх первого кадра; пустая строка, если не задан
	Title string
}

// Total возвращает общую длительность видео.
func (t *Timeline) Total() time.Duration {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End()
}

// FadeOutStart возвращает момент начала затухания в конце видео.
func (t *Timeline) FadeOutStart() time.Duration {
	start := t.Total() - TransitionLength
	if start < 0 {
		return 0
	}
	return start
}

// PlanOptions — параметры планирования.
type PlanOptions struct {
	Duration   float64
	Transition Transition
	Captions   bool
	Title      string
}

// OptionsFromRequest извлекает параметры планирования из запроса.
func OptionsFromRequest(r VideoRequest) PlanOptions {
	return PlanOptions{
		Duration:   r.Duration,
		Transition: r.Transition,
		Captions:   r.Captions,
		Title:      r.TitleText(),
	}
}

// Plan строит таймлайн по упорядоченному списку фотографий.
// Чистая функция: одинаковые входные данные дают одинаковый план.
func Plan(photos []*model.Photo, opts PlanOptions) (*Timeline, error) {
	if len(photos) < MinPhotos {
		return nil, invalidOptions("нужно минимум %d фотографии, получено %d", MinPhotos, len(photos))
	}
	if err := validateDuration(opts.Duration); err != nil {
		return nil, err
	}
	switch opts.Transition {
	case TransitionFade, TransitionSlide, TransitionZoom:
	default:
		return nil, invalidOptions("недопустимый transition %q", opts.Transition)
	}

	d := secondsToDuration(opts.Duration)
	// При duration < 2s переход не может занимать весь кадр
	overlap := min(TransitionLength, d/2)

	tl := &Timeline{
		Segments:   make([]Segment, 0, len(photos)),
		Transition: opts.Transition,
		Overlap:    overlap,
		Title:      opts.Title,
	}

	var start time.Duration
	for i, p := range photos {
		seg := Segment{
			Photo:    p,
			Start:    start,
			Duration: d,
		}
		if opts.Captions {
			seg.Caption = p.Metadata.Caption()
		}
		if i > 0 {
			seg.TransitionIn = &TransitionSpec{Kind: opts.Transition, Length: TransitionLength}
		}
		tl.Segments = append(tl.Segments, seg)
		start += d - overlap
	}

	return tl, nil
}
