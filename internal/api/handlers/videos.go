// videos.go — обработчик генерации слайдшоу.
// Видео отдаётся потоком после успешного кодирования; ошибки до начала
// отдачи возвращаются JSON-конвертом с кодом вида ошибки.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
	"github.com/bigkaa/photoalbum/internal/api/middleware"
	"github.com/bigkaa/photoalbum/internal/service"
	"github.com/bigkaa/photoalbum/internal/slideshow"
)

// maxVideoRequestBody — максимальный размер JSON запроса генерации.
const maxVideoRequestBody = 1 << 20

// videoFilename — имя файла во вложении ответа.
const videoFilename = "memory.mp4"

// GenerateVideo — POST /api/generate-video.
func (h *APIHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req slideshow.VideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxVideoRequestBody)).Decode(&req); err != nil {
		apierrors.PipelineError(w, slideshow.KindInvalidOptions, "Некорректный JSON: "+err.Error())
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	started := false

	err := h.videos.Generate(r.Context(), userID, req, func(_ context.Context, v service.Video) error {
		f, err := os.Open(v.Path)
		if err != nil {
			return err
		}
		defer f.Close()

		started = true
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="`+videoFilename+`"`)
		w.Header().Set("Content-Length", strconv.FormatInt(v.Size, 10))
		w.WriteHeader(http.StatusOK)
		_, err = io.Copy(w, f)
		return err
	})
	if err == nil {
		return
	}
	if started {
		// Заголовки уже отправлены, клиент увидит обрыв потока
		h.logger.Warn("Отдача видео прервана", slog.String("error", err.Error()))
		return
	}

	kind := slideshow.KindOf(err)
	status := apierrors.StatusForKind(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Ошибка генерации видео",
			slog.Int64("user_id", userID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		apierrors.PipelineError(w, kind, pipelineMessage(kind))
		return
	}
	apierrors.PipelineError(w, kind, err.Error())
}

// pipelineMessage — сообщение клиенту для серверных ошибок.
// Вывод кодировщика и пути файлов наружу не отдаются.
func pipelineMessage(kind slideshow.Kind) string {
	switch kind {
	case slideshow.KindDataIntegrity:
		return "Повреждены метаданные фотографии"
	case slideshow.KindProcessSpawn:
		return "Не удалось запустить кодировщик"
	case slideshow.KindProcessExit:
		return "Ошибка кодирования видео"
	case slideshow.KindOutputMissing:
		return "Видео не было создано"
	default:
		return "Внутренняя ошибка сервера"
	}
}
