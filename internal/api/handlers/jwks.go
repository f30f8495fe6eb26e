package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
)

// GetJWKS — GET /.well-known/jwks.json, открытые ключи подписи токенов.
func (h *APIHandler) GetJWKS(w http.ResponseWriter, r *http.Request) {
	raw, err := h.jwks.JWKS(r.Context())
	if err != nil {
		h.logger.Error("Ошибка формирования JWKS", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
