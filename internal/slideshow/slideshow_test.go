package slideshow

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bigkaa/photoalbum/internal/domain/model"
)

// fakePhotoSource — источник фотографий в памяти.
type fakePhotoSource struct {
	photos map[int64]*model.Photo
	err    error
	calls  int
}

func (f *fakePhotoSource) GetPhoto(_ context.Context, id int64) (*model.Photo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.photos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func strPtr(s string) *string { return &s }

func photo(id, user int64, uploadDate string, event *string) *model.Photo {
	return &model.Photo{
		ID:     id,
		UserID: user,
		Path:   "/photos/" + string(rune('a'+id)) + ".jpg",
		Metadata: model.PhotoMetadata{
			Tags:       []string{},
			UploadDate: uploadDate,
			Event:      event,
		},
	}
}

func ids(photos []*model.Photo) []int64 {
	out := make([]int64, len(photos))
	for i, p := range photos {
		out[i] = p.ID
	}
	return out
}

func validRequest() VideoRequest {
	return VideoRequest{
		PhotoIDs:   []int64{5, 7},
		SortBy:     SortByCustom,
		Transition: TransitionFade,
		Duration:   3,
	}
}

// --- VideoRequest.Validate ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *VideoRequest)
		wantErr bool
	}{
		{"корректный запрос", func(r *VideoRequest) {}, false},
		{"одна фотография", func(r *VideoRequest) { r.PhotoIDs = []int64{1} }, true},
		{"без фотографий", func(r *VideoRequest) { r.PhotoIDs = nil }, true},
		{"duration ниже минимума", func(r *VideoRequest) { r.Duration = 0.5 }, true},
		{"duration выше максимума", func(r *VideoRequest) { r.Duration = 10.5 }, true},
		{"duration на границе 1", func(r *VideoRequest) { r.Duration = 1 }, false},
		{"duration на границе 10", func(r *VideoRequest) { r.Duration = 10 }, false},
		{"неизвестный sortBy", func(r *VideoRequest) { r.SortBy = "name" }, true},
		{"неизвестный transition", func(r *VideoRequest) { r.Transition = "wipe" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOptions) {
					t.Errorf("Validate() = %v, ожидается ErrInvalidOptions", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() вернул ошибку: %v", err)
			}
		})
	}
}

// Scenario B: одна фотография — InvalidOptions до любого обращения к хранилищу.
func TestValidate_SinglePhotoUploadDate(t *testing.T) {
	r := VideoRequest{PhotoIDs: []int64{1}, SortBy: SortByUploadDate, Transition: TransitionFade, Duration: 3}
	if err := r.Validate(); KindOf(err) != KindInvalidOptions {
		t.Errorf("KindOf(Validate()) = %s, ожидается %s", KindOf(err), KindInvalidOptions)
	}
}

// --- Resolve ---

func TestResolve_PreservesOrder(t *testing.T) {
	src := &fakePhotoSource{photos: map[int64]*model.Photo{
		5: photo(5, 1, "2024-01-02T00:00:00Z", nil),
		7: photo(7, 1, "2024-01-01T00:00:00Z", nil),
		9: photo(9, 1, "2024-01-03T00:00:00Z", nil),
	}}

	got, err := Resolve(context.Background(), src, 1, []int64{9, 5, 7})
	if err != nil {
		t.Fatalf("Resolve() вернул ошибку: %v", err)
	}
	if want := []int64{9, 5, 7}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Resolve() = %v, ожидается %v", ids(got), want)
	}
}

func TestResolve_Errors(t *testing.T) {
	src := &fakePhotoSource{photos: map[int64]*model.Photo{
		2: photo(2, 1, "2024-01-01T00:00:00Z", nil),
		3: photo(3, 2, "2024-01-01T00:00:00Z", nil),
	}}

	tests := []struct {
		name   string
		userID int64
		ids    []int64
		want   error
	}{
		// Scenario C
		{"чужая фотография", 1, []int64{2, 3}, ErrForbidden},
		{"несуществующая фотография", 1, []int64{2, 42}, ErrNotFound},
		{"без пользователя", 0, []int64{2, 3}, ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(context.Background(), src, tt.userID, tt.ids)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve() = %v, ожидается %v", err, tt.want)
			}
		})
	}
}

func TestResolve_SourceError(t *testing.T) {
	boom := errors.New("соединение разорвано")
	src := &fakePhotoSource{err: boom}

	_, err := Resolve(context.Background(), src, 1, []int64{1, 2})
	if !errors.Is(err, boom) {
		t.Errorf("Resolve() = %v, ожидается обёрнутая ошибка источника", err)
	}
	if KindOf(err) != KindInternal {
		t.Errorf("KindOf() = %s, ожидается %s", KindOf(err), KindInternal)
	}
}

// --- Order ---

func TestOrder_UploadDateStable(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-03-01T10:00:00Z", nil),
		photo(2, 1, "2024-01-01T10:00:00Z", nil),
		photo(3, 1, "2024-03-01T10:00:00Z", nil),
		photo(4, 1, "2024-03-01T12:00:00+02:00", nil), // тот же момент, что у 1 и 3
	}

	got, err := Order(photos, SortByUploadDate)
	if err != nil {
		t.Fatalf("Order() вернул ошибку: %v", err)
	}
	if want := []int64{2, 1, 3, 4}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Order(uploadDate) = %v, ожидается %v", ids(got), want)
	}
	if want := []int64{1, 2, 3, 4}; !reflect.DeepEqual(ids(photos), want) {
		t.Errorf("исходный срез изменён: %v", ids(photos))
	}
}

func TestOrder_EventAbsentIsEmpty(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-01-01T00:00:00Z", strPtr("wedding")),
		photo(2, 1, "2024-01-01T00:00:00Z", nil),
		photo(3, 1, "2024-01-01T00:00:00Z", strPtr("birthday")),
		photo(4, 1, "2024-01-01T00:00:00Z", strPtr("")),
		photo(5, 1, "2024-01-01T00:00:00Z", strPtr("birthday")),
	}

	got, err := Order(photos, SortByEvent)
	if err != nil {
		t.Fatalf("Order() вернул ошибку: %v", err)
	}
	if want := []int64{2, 4, 3, 5, 1}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Order(event) = %v, ожидается %v", ids(got), want)
	}
}

func TestOrder_CustomIdentity(t *testing.T) {
	photos := []*model.Photo{
		photo(7, 1, "2024-05-01T00:00:00Z", strPtr("b")),
		photo(5, 1, "2024-01-01T00:00:00Z", strPtr("a")),
	}

	got, err := Order(photos, SortByCustom)
	if err != nil {
		t.Fatalf("Order() вернул ошибку: %v", err)
	}
	if want := []int64{7, 5}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Order(custom) = %v, ожидается %v", ids(got), want)
	}
}

func TestOrder_MalformedUploadDate(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-01-01T00:00:00Z", nil),
		photo(2, 1, "вчера", nil),
	}

	_, err := Order(photos, SortByUploadDate)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Errorf("Order() = %v, ожидается ErrDataIntegrity", err)
	}

	// Для других стратегий дата не разбирается
	if _, err := Order(photos, SortByEvent); err != nil {
		t.Errorf("Order(event) вернул ошибку: %v", err)
	}
}

// --- Plan ---

// Scenario A: два кадра по 3 секунды, fade.
func TestPlan_ScenarioA(t *testing.T) {
	photos := []*model.Photo{
		photo(5, 1, "2024-01-01T00:00:00Z", nil),
		photo(7, 1, "2024-01-02T00:00:00Z", nil),
	}
	photos[0].Metadata.CaptionText = strPtr("подпись")

	tl, err := Plan(photos, PlanOptions{Duration: 3, Transition: TransitionFade, Captions: false})
	if err != nil {
		t.Fatalf("Plan() вернул ошибку: %v", err)
	}

	if len(tl.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, ожидается 2", len(tl.Segments))
	}
	if tl.Segments[0].TransitionIn != nil {
		t.Errorf("у первого кадра не должно быть перехода")
	}
	in := tl.Segments[1].TransitionIn
	if in == nil || in.Kind != TransitionFade || in.Length != time.Second {
		t.Errorf("TransitionIn второго кадра = %+v, ожидается fade 1s", in)
	}
	if tl.Segments[1].Start != 2*time.Second {
		t.Errorf("Start второго кадра = %v, ожидается 2s", tl.Segments[1].Start)
	}
	if tl.Total() != 5*time.Second {
		t.Errorf("Total() = %v, ожидается 5s", tl.Total())
	}
	if tl.FadeOutStart() != 4*time.Second {
		t.Errorf("FadeOutStart() = %v, ожидается 4s", tl.FadeOutStart())
	}
	for i, s := range tl.Segments {
		if s.Caption != "" {
			t.Errorf("Segments[%d].Caption = %q при выключенных подписях", i, s.Caption)
		}
	}
}

func TestPlan_OffsetsAndCaptions(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-01-01T00:00:00Z", nil),
		photo(2, 1, "2024-01-01T00:00:00Z", nil),
		photo(3, 1, "2024-01-01T00:00:00Z", nil),
	}
	photos[1].Metadata.CaptionText = strPtr("Море")

	tl, err := Plan(photos, PlanOptions{Duration: 4, Transition: TransitionSlide, Captions: true, Title: "Лето"})
	if err != nil {
		t.Fatalf("Plan() вернул ошибку: %v", err)
	}

	wantStarts := []time.Duration{0, 3 * time.Second, 6 * time.Second}
	for i, s := range tl.Segments {
		if s.Start != wantStarts[i] {
			t.Errorf("Segments[%d].Start = %v, ожидается %v", i, s.Start, wantStarts[i])
		}
		if s.Duration != 4*time.Second {
			t.Errorf("Segments[%d].Duration = %v, ожидается 4s", i, s.Duration)
		}
		if i > 0 && (s.TransitionIn == nil || s.TransitionIn.Kind != TransitionSlide) {
			t.Errorf("Segments[%d].TransitionIn = %+v, ожидается slide", i, s.TransitionIn)
		}
	}
	if tl.Segments[1].Caption != "Море" || tl.Segments[0].Caption != "" {
		t.Errorf("подписи = [%q %q], ожидается [\"\" \"Море\"]", tl.Segments[0].Caption, tl.Segments[1].Caption)
	}
	if tl.Title != "Лето" {
		t.Errorf("Title = %q, ожидается Лето", tl.Title)
	}
	if tl.Total() != 10*time.Second {
		t.Errorf("Total() = %v, ожидается 10s", tl.Total())
	}
}

func TestPlan_ShortDurationClampsOverlap(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-01-01T00:00:00Z", nil),
		photo(2, 1, "2024-01-01T00:00:00Z", nil),
	}

	tl, err := Plan(photos, PlanOptions{Duration: 1, Transition: TransitionZoom})
	if err != nil {
		t.Fatalf("Plan() вернул ошибку: %v", err)
	}
	if tl.Overlap != 500*time.Millisecond {
		t.Errorf("Overlap = %v, ожидается 500ms", tl.Overlap)
	}
	if tl.Segments[1].Start != 500*time.Millisecond {
		t.Errorf("Start второго кадра = %v, ожидается 500ms", tl.Segments[1].Start)
	}
}

func TestPlan_InvalidOptions(t *testing.T) {
	two := []*model.Photo{photo(1, 1, "", nil), photo(2, 1, "", nil)}

	tests := []struct {
		name   string
		photos []*model.Photo
		opts   PlanOptions
	}{
		{"одна фотография", two[:1], PlanOptions{Duration: 3, Transition: TransitionFade}},
		{"duration 0", two, PlanOptions{Duration: 0, Transition: TransitionFade}},
		{"duration 11", two, PlanOptions{Duration: 11, Transition: TransitionFade}},
		{"пустой transition", two, PlanOptions{Duration: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Plan(tt.photos, tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Plan() = %v, ожидается ErrInvalidOptions", err)
			}
		})
	}
}

func TestPlan_Deterministic(t *testing.T) {
	photos := []*model.Photo{
		photo(1, 1, "2024-01-01T00:00:00Z", nil),
		photo(2, 1, "2024-01-01T00:00:00Z", nil),
		photo(3, 1, "2024-01-01T00:00:00Z", nil),
	}
	opts := PlanOptions{Duration: 2.5, Transition: TransitionZoom, Captions: true}

	first, err := Plan(photos, opts)
	if err != nil {
		t.Fatalf("Plan() вернул ошибку: %v", err)
	}
	second, err := Plan(photos, opts)
	if err != nil {
		t.Fatalf("Plan() вернул ошибку: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("повторный Plan() дал другой план:\n%+v\n%+v", first, second)
	}
}

// --- KindOf / ExitError ---

func TestKindOf(t *testing.T) {
	exitErr := &ExitError{Code: 1, Stderr: "boom"}
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrForbidden, KindForbidden},
		{invalidOptions("x"), KindInvalidOptions},
		{exitErr, KindProcessExit},
		{errors.Join(ErrOutputMissing), KindOutputMissing},
		{errors.New("прочее"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, ожидается %s", tt.err, got, tt.want)
		}
	}

	var target *ExitError
	if !errors.As(error(exitErr), &target) || target.Code != 1 {
		t.Errorf("errors.As(ExitError) не сработал")
	}
}
