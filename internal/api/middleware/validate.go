// validate.go — валидация входящих запросов по OpenAPI-контракту (kin-openapi).
// Пути, не описанные в контракте (health, metrics, jwks), проходят без проверки.
package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
)

// extErrorCode — расширение операции, задающее код ошибки валидации.
const extErrorCode = "x-error-code"

// RequestValidator — middleware проверки запросов по контракту.
type RequestValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewRequestValidator создаёт валидатор по разобранному контракту.
func NewRequestValidator(doc *openapi3.T, logger *slog.Logger) (*RequestValidator, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, err
	}
	return &RequestValidator{
		router: router,
		logger: logger.With(slog.String("component", "request_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Тело multipart-запросов не проверяется: файл читается обработчиком потоково.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			opts := &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			}
			if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil &&
				strings.HasPrefix(mediaType, "multipart/") {
				opts.ExcludeRequestBody = true
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не прошёл валидацию",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				code := apierrors.CodeValidationError
				if ext, ok := route.Operation.Extensions[extErrorCode].(string); ok && ext != "" {
					code = ext
				}
				apierrors.WriteError(w, http.StatusBadRequest, code, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage сокращает сообщение kin-openapi до причины.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "\n"); i > 0 {
		msg = msg[:i]
	}
	return "Некорректный запрос: " + msg
}
