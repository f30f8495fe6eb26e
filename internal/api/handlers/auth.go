// auth.go — обработчики регистрации, входа и профиля.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
	"github.com/bigkaa/photoalbum/internal/api/middleware"
	"github.com/bigkaa/photoalbum/internal/service"
)

// maxCredentialsBody — максимальный размер тела запроса с учётными данными.
const maxCredentialsBody = 64 << 10

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialsBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return req, false
	}
	return req, true
}

// Register — POST /api/auth/register.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	res, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "Пользователь с таким именем уже существует")
		default:
			h.logger.Error("Ошибка регистрации", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Внутренняя ошибка сервера")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login — POST /api/auth/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierrors.Unauthorized(w, "Неверное имя пользователя или пароль")
			return
		}
		h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Me — GET /api/auth/me.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == 0 {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	user, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		// Пользователь удалён, а токен ещё действителен
		if errors.Is(err, service.ErrNotFound) {
			apierrors.Unauthorized(w, "Пользователь не найден")
			return
		}
		h.logger.Error("Ошибка получения профиля", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	})
}

func toAuthResponse(res *service.AuthResult) authResponse {
	return authResponse{
		ID:        res.User.ID,
		Username:  res.User.Username,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	}
}
