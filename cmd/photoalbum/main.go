// Точка входа фотоальбома — сервиса библиотеки фотографий и генерации слайдшоу.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/photoalbum/internal/api/handlers"
	"github.com/bigkaa/photoalbum/internal/api/middleware"
	"github.com/bigkaa/photoalbum/internal/api/openapi"
	"github.com/bigkaa/photoalbum/internal/auth"
	"github.com/bigkaa/photoalbum/internal/config"
	"github.com/bigkaa/photoalbum/internal/database"
	"github.com/bigkaa/photoalbum/internal/encoder"
	"github.com/bigkaa/photoalbum/internal/repository"
	"github.com/bigkaa/photoalbum/internal/server"
	"github.com/bigkaa/photoalbum/internal/service"
	"github.com/bigkaa/photoalbum/internal/storage/photostore"
	"github.com/bigkaa/photoalbum/internal/storage/tempstore"
)

// defaultServiceName — имя вершины графа зависимостей вне Kubernetes.
const defaultServiceName = "photoalbum"

// jwksClientTimeout — таймаут HTTP-клиента внешнего JWKS.
const jwksClientTimeout = 10 * time.Second

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Фотоальбом запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("upload_dir", cfg.UploadDir),
		slog.String("video_temp_dir", cfg.VideoTempDir),
	)

	ctx := context.Background()

	// --- Инициализация компонентов ---

	// 1. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 2. Выпуск токенов
	issuer, err := auth.NewIssuer(ctx, cfg.JWTPrivateKeyPath, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Error("Ошибка инициализации ключа подписи", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.JWTPrivateKeyPath == "" {
		logger.Warn("PA_JWT_PRIVATE_KEY_PATH не задан: ключ сгенерирован, токены не переживут перезапуск")
	}

	// 3. Хранилища
	photos, err := photostore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища фотографий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	artifacts, err := tempstore.New(cfg.VideoTempDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации временного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Сервисы
	var cache *service.PhotoCache
	if cfg.PhotoCacheSize > 0 {
		cache = service.NewPhotoCache(cfg.PhotoCacheSize, cfg.PhotoCacheTTL)
	}
	photoSvc := service.NewPhotoService(
		repository.NewPhotoRepository(pool),
		repository.NewTxRunner(pool),
		photos,
		cache,
		cfg.MaxUploadSize,
		logger,
	)
	authSvc := service.NewAuthService(repository.NewUserRepository(pool), issuer, logger)

	ffmpeg := encoder.NewFFmpeg(encoder.Options{
		Path: cfg.FFmpegPath,
		Frame: encoder.Frame{
			Width:    cfg.VideoWidth,
			Height:   cfg.VideoHeight,
			FPS:      cfg.VideoFPS,
			FontFile: cfg.VideoFontFile,
		},
	}, logger)
	videoSvc := service.NewVideoService(photoSvc, ffmpeg, artifacts, cfg.VideoMaxConcurrent, logger)

	// 5. Фоновые процессы

	// 5.1 Очистка забытых артефактов
	sweeper := service.NewArtifactSweeper(artifacts, cfg.ArtifactSweepAge, cfg.ArtifactSweepInterval, logger)
	sweeper.Start(ctx)

	// 5.2 topologymetrics — мониторинг PostgreSQL
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	dephealthSvc, dephealthErr := service.NewDephealthService(
		dephealthServiceName(defaultServiceName),
		cfg.DephealthGroup,
		sqlDB,
		cfg.DatabaseURL("postgres"),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 6. JWT: собственные ключи + опционально JWKS внешнего IdP
	storages := []jwkset.Storage{issuer.Storage()}
	issuers := []string{issuer.Issuer()}
	var jwksChecker handlers.ReadinessChecker
	if cfg.JWTJWKSURL != "" {
		external, err := middleware.NewHTTPStorage(cfg.JWTJWKSURL, jwksClientTimeout, cfg.JWTJWKSRefreshInterval, logger)
		if err != nil {
			logger.Error("Ошибка инициализации внешнего JWKS", slog.String("error", err.Error()))
			os.Exit(1)
		}
		storages = append(storages, external)
		if cfg.JWTExternalIssuer != "" {
			issuers = append(issuers, cfg.JWTExternalIssuer)
		} else {
			// iss внешнего IdP не задан — проверка iss отключена
			issuers = nil
		}
		jwksChecker = middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, jwksClientTimeout)
		logger.Info("Внешний JWKS подключён", slog.String("jwks_url", cfg.JWTJWKSURL))
	}

	jwtAuth, err := middleware.NewJWTAuth(storages, issuers, cfg.JWTLeeway, logger)
	if err != nil {
		logger.Error("Ошибка инициализации JWT", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Валидация запросов по OpenAPI
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-спецификации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка инициализации валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), jwksChecker)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		authSvc,
		photoSvc,
		videoSvc,
		issuer,
		cfg.MaxUploadSize,
		logger,
	)

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestID(),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		server.JWTAuthWithExclusions(jwtAuth.Middleware(),
			"/health/",
			"/metrics",
			"/.well-known/jwks.json",
			"/api/auth/register",
			"/api/auth/login",
		),
		validator.Middleware(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		sweeper.Stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: пул закрывается ОС
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	sweeper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Фотоальбом остановлен")
}
