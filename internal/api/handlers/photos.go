// photos.go — обработчики библиотеки фотографий: загрузка, список, метаданные, файл.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
	"github.com/bigkaa/photoalbum/internal/api/middleware"
	"github.com/bigkaa/photoalbum/internal/domain/model"
	"github.com/bigkaa/photoalbum/internal/repository"
	"github.com/bigkaa/photoalbum/internal/service"
)

// multipartMemory — объём multipart-формы, хранимый в памяти (остальное — во временных файлах).
const multipartMemory = 32 << 20

// multipartOverhead — запас на заголовки частей и поле metadata сверх размера файла.
const multipartOverhead = 1 << 20

// metadataInput — поле metadata формы загрузки.
// uploadDate назначает сервер.
type metadataInput struct {
	Tags        []string `json:"tags"`
	Description *string  `json:"description"`
	Event       *string  `json:"event"`
	Location    *string  `json:"location"`
	CaptionText *string  `json:"captionText"`
}

// listPhotosParams — query-параметры GET /api/photos.
type listPhotosParams struct {
	Tag    *string
	Event  *string
	Limit  *int
	Offset *int
}

// UploadPhoto — POST /api/photos (multipart/form-data: photo + metadata).
func (h *APIHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	if h.maxUploadSize > 0 {
		limit := h.maxUploadSize + multipartOverhead
		if r.ContentLength > limit {
			apierrors.TooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxUploadSize))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.TooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxUploadSize))
			return
		}
		apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["photo"]
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Поле 'photo' обязательно")
		return
	}
	var photo openapi_types.File
	photo.InitFromMultipart(headers[0])

	rawMeta := r.FormValue("metadata")
	if rawMeta == "" {
		apierrors.ValidationError(w, "Поле 'metadata' обязательно")
		return
	}
	var meta metadataInput
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в поле 'metadata': "+err.Error())
		return
	}

	rc, err := photo.Reader()
	if err != nil {
		apierrors.ValidationError(w, "Ошибка чтения файла: "+err.Error())
		return
	}
	defer rc.Close()

	p, err := h.photos.Upload(r.Context(), service.UploadParams{
		UserID:           userID,
		Reader:           rc,
		OriginalFilename: photo.Filename(),
		Metadata: model.PhotoMetadata{
			Tags:        meta.Tags,
			Description: meta.Description,
			Event:       meta.Event,
			Location:    meta.Location,
			CaptionText: meta.CaptionText,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooLarge):
			apierrors.TooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxUploadSize))
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		default:
			h.logger.Error("Ошибка загрузки фотографии",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toPhotoResponse(p))
}

// ListPhotos — GET /api/photos.
func (h *APIHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var params listPhotosParams
	query := r.URL.Query()
	for _, p := range []struct {
		name string
		dest any
	}{
		{"tag", &params.Tag},
		{"event", &params.Event},
		{"limit", &params.Limit},
		{"offset", &params.Offset},
	} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, query, p.dest); err != nil {
			apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр %s: %v", p.name, err))
			return
		}
	}

	limit, offset := service.DefaultPageLimit, 0
	if params.Limit != nil {
		limit = *params.Limit
	}
	if params.Offset != nil {
		offset = *params.Offset
	}

	list, err := h.photos.List(r.Context(), userID, repository.PhotoListFilters{
		Tag:   params.Tag,
		Event: params.Event,
	}, limit, offset)
	if err != nil {
		h.logger.Error("Ошибка получения списка фотографий", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	resp := photoListResponse{
		Items:  make([]photoResponse, 0, len(list.Items)),
		Total:  list.Total,
		Limit:  list.Limit,
		Offset: list.Offset,
	}
	for _, p := range list.Items {
		resp.Items = append(resp.Items, toPhotoResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPhoto — GET /api/photos/{id}.
func (h *APIHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	id, err := bindPhotoID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный id: "+err.Error())
		return
	}

	p, err := h.photos.Get(r.Context(), userID, id)
	if err != nil {
		h.photoError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toPhotoResponse(p))
}

// GetPhotoFile — GET /api/photos/{id}/file.
func (h *APIHandler) GetPhotoFile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	id, err := bindPhotoID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный id: "+err.Error())
		return
	}

	f, p, err := h.photos.OpenFile(r.Context(), userID, id)
	if err != nil {
		h.photoError(w, id, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(p.Filename)))
	// ServeContent определяет Content-Type по расширению и поддерживает Range
	http.ServeContent(w, r, p.Filename, p.CreatedAt, f)
}

func (h *APIHandler) photoError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, service.ErrNotFound) {
		apierrors.NotFound(w, fmt.Sprintf("Фотография %d не найдена", id))
		return
	}
	h.logger.Error("Ошибка получения фотографии",
		slog.Int64("photo_id", id),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, "Внутренняя ошибка сервера")
}
