// auth.go — JWT middleware для аутентификации пользователей фотоальбома.
// Проверяет подпись RS256 по JWKS (собственному или внешнего IdP),
// извлекает ID пользователя из sub и помещает claims в контекст.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/photoalbum/internal/api/errors"
	"github.com/bigkaa/photoalbum/internal/auth"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — claims аутентифицированного пользователя.
type AuthClaims struct {
	// UserID — ID пользователя (sub из JWT)
	UserID int64
	// Username — preferred_username из JWT
	Username string
}

// JWTAuth — middleware для JWT-аутентификации.
// Токен принимается, если его подпись проверяется ключом из любого
// хранилища, а iss входит в список допустимых.
type JWTAuth struct {
	jwks      []keyfunc.Keyfunc
	issuers   map[string]bool
	logger    *slog.Logger
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт middleware поверх хранилищ ключей
// (собственный auth.Issuer.Storage() и, опционально, JWKS внешнего IdP).
// issuers — допустимые значения iss (пустой список — iss не проверяется).
func NewJWTAuth(storages []jwkset.Storage, issuers []string, jwtLeeway time.Duration, logger *slog.Logger) (*JWTAuth, error) {
	if len(storages) == 0 {
		return nil, fmt.Errorf("не задано ни одного хранилища ключей")
	}

	kfs := make([]keyfunc.Keyfunc, 0, len(storages))
	for _, storage := range storages {
		k, err := keyfunc.New(keyfunc.Options{
			Storage: storage,
		})
		if err != nil {
			return nil, fmt.Errorf("создание keyfunc: %w", err)
		}
		kfs = append(kfs, k)
	}

	allowed := make(map[string]bool, len(issuers))
	for _, iss := range issuers {
		if iss != "" {
			allowed[iss] = true
		}
	}

	return &JWTAuth{
		jwks:      kfs,
		issuers:   allowed,
		logger:    logger.With(slog.String("component", "jwt_auth")),
		jwtLeeway: jwtLeeway,
	}, nil
}

// NewHTTPStorage создаёт хранилище ключей JWKS внешнего IdP.
// Ключи обновляются в фоне; старт не блокируется недоступностью IdP.
func NewHTTPStorage(
	jwksURL string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	logger *slog.Logger,
) (jwkset.Storage, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}
	return storage, nil
}

// keyfunc перебирает хранилища до первого, знающего ключ токена.
func (j *JWTAuth) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		var lastErr error
		for _, k := range j.jwks {
			key, err := k.KeyfuncCtx(ctx)(token)
			if err == nil {
				return key, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256) и срок действия,
// помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			rawClaims := &auth.Claims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.keyfunc(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if len(j.issuers) > 0 && !j.issuers[rawClaims.Issuer] {
				apierrors.Unauthorized(w, "Недопустимый issuer токена")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}
			userID, err := strconv.ParseInt(subject, 10, 64)
			if err != nil || userID <= 0 {
				apierrors.Unauthorized(w, "Некорректный sub в токене")
				return
			}

			ctx := WithClaims(r.Context(), &AuthClaims{
				UserID:   userID,
				Username: rawClaims.PreferredUsername,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// WithClaims помещает claims в контекст.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// UserIDFromContext возвращает ID пользователя или 0, если запрос не аутентифицирован.
func UserIDFromContext(ctx context.Context) int64 {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return 0
	}
	return claims.UserID
}

// --- ReadinessChecker для внешнего IdP ---

// JWKSReadinessChecker — проверка доступности JWKS внешнего IdP.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности JWKS.
func NewJWKSReadinessChecker(jwksURL string, timeout time.Duration) *JWKSReadinessChecker {
	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: timeout},
	}
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
