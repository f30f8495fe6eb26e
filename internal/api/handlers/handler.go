// handler.go — основной обработчик API фотоальбома.
// Объединяет health, auth, photos и videos обработчики и регистрирует маршруты.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/photoalbum/internal/domain/model"
	"github.com/bigkaa/photoalbum/internal/repository"
	"github.com/bigkaa/photoalbum/internal/service"
	"github.com/bigkaa/photoalbum/internal/slideshow"
)

// AuthService — операции учётных записей (service.AuthService).
type AuthService interface {
	Register(ctx context.Context, username, password string) (*service.AuthResult, error)
	Login(ctx context.Context, username, password string) (*service.AuthResult, error)
	Me(ctx context.Context, userID int64) (*model.User, error)
}

// PhotoService — операции библиотеки фотографий (service.PhotoService).
type PhotoService interface {
	Upload(ctx context.Context, params service.UploadParams) (*model.Photo, error)
	List(ctx context.Context, userID int64, filters repository.PhotoListFilters, limit, offset int) (*service.PhotoList, error)
	Get(ctx context.Context, userID, id int64) (*model.Photo, error)
	OpenFile(ctx context.Context, userID, id int64) (*os.File, *model.Photo, error)
}

// VideoGenerator — генерация слайдшоу (service.VideoService).
type VideoGenerator interface {
	Generate(ctx context.Context, userID int64, req slideshow.VideoRequest, deliver service.DeliverFunc) error
}

// JWKSProvider — источник открытых ключей (auth.Issuer).
type JWKSProvider interface {
	JWKS(ctx context.Context) (json.RawMessage, error)
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health        *HealthHandler
	auth          AuthService
	photos        PhotoService
	videos        VideoGenerator
	jwks          JWKSProvider
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	auth AuthService,
	photos PhotoService,
	videos VideoGenerator,
	jwks JWKSProvider,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		auth:          auth,
		photos:        photos,
		videos:        videos,
		jwks:          jwks,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты API в роутере.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Get("/.well-known/jwks.json", h.GetJWKS)

	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Get("/api/auth/me", h.Me)

	r.Get("/api/photos", h.ListPhotos)
	r.Post("/api/photos", h.UploadPhoto)
	r.Get("/api/photos/{id}", h.GetPhoto)
	r.Get("/api/photos/{id}/file", h.GetPhotoFile)

	r.Post("/api/generate-video", h.GenerateVideo)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// bindPhotoID извлекает {id} из пути.
func bindPhotoID(r *http.Request) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	return id, err
}

// --- API-типы ответов ---

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type photoResponse struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"userId"`
	Filename  string              `json:"filename"`
	Metadata  model.PhotoMetadata `json:"metadata"`
	CreatedAt time.Time           `json:"createdAt"`
}

type photoListResponse struct {
	Items  []photoResponse `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toPhotoResponse(p *model.Photo) photoResponse {
	meta := p.Metadata
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return photoResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Filename:  p.Filename,
		Metadata:  meta,
		CreatedAt: p.CreatedAt,
	}
}
