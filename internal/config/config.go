// Пакет config — загрузка и валидация конфигурации фотоальбома
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации фотоальбома.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 60s, загрузка фотографий)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 10m — генерация видео идёт синхронно)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула соединений
	DBMaxConns int

	// --- JWT ---

	// Issuer выпускаемых токенов
	JWTIssuer string
	// Время жизни токена
	JWTTTL time.Duration
	// Путь к приватному RSA-ключу в PEM (опционально, иначе ключ генерируется при старте)
	JWTPrivateKeyPath string
	// URL внешнего JWKS (опционально; токены внешнего IdP принимаются наравне с собственными)
	JWTJWKSURL string
	// Issuer токенов внешнего IdP (пустой — iss внешних токенов не ограничивается)
	JWTExternalIssuer string
	// Интервал обновления внешнего JWKS
	JWTJWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Хранилище ---

	// Директория хранения фотографий
	UploadDir string
	// Директория временных артефактов генерации видео (манифесты, видео)
	VideoTempDir string
	// Максимальный размер загружаемой фотографии в байтах
	MaxUploadSize int64

	// --- Кодирование видео ---

	// Путь к исполняемому файлу ffmpeg
	FFmpegPath string
	// Ширина кадра итогового видео
	VideoWidth int
	// Высота кадра итогового видео
	VideoHeight int
	// Частота кадров итогового видео
	VideoFPS int
	// Файл шрифта для подписей (опционально, иначе fontconfig)
	VideoFontFile string
	// Максимальное число одновременных процессов кодирования (0 — без ограничения)
	VideoMaxConcurrent int

	// --- Очистка артефактов ---

	// Возраст, после которого забытый артефакт удаляется фоновой очисткой
	ArtifactSweepAge time.Duration
	// Интервал фоновой очистки артефактов
	ArtifactSweepInterval time.Duration

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше фотографий
	PhotoCacheSize int
	// Время жизни записи в кэше
	PhotoCacheTTL time.Duration

	// --- topologymetrics ---

	// Группа сервиса в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PA_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PA_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PA_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PA_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PA_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PA_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PA_LOG_LEVEL: %w", err)
	}

	// PA_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PA_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PA_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("PA_HTTP_READ_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("PA_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PA_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("PA_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// PA_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("PA_DB_HOST")
	if err != nil {
		return nil, err
	}

	// PA_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("PA_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PA_DB_PORT: %w", err)
	}

	// PA_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("PA_DB_NAME")
	if err != nil {
		return nil, err
	}

	// PA_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("PA_DB_USER")
	if err != nil {
		return nil, err
	}

	// PA_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("PA_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PA_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PA_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PA_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// PA_DB_MAX_CONNS — размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("PA_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("PA_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("PA_DB_MAX_CONNS: значение должно быть > 0")
	}

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("PA_JWT_ISSUER", "photoalbum")

	cfg.JWTTTL, err = getEnvDurationPositive("PA_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PA_JWT_TTL: %w", err)
	}

	cfg.JWTPrivateKeyPath = getEnvDefault("PA_JWT_PRIVATE_KEY_PATH", "")
	cfg.JWTJWKSURL = getEnvDefault("PA_JWT_JWKS_URL", "")
	cfg.JWTExternalIssuer = getEnvDefault("PA_JWT_EXTERNAL_ISSUER", "")

	cfg.JWTJWKSRefreshInterval, err = getEnvDurationPositive("PA_JWT_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PA_JWT_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("PA_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_JWT_LEEWAY: %w", err)
	}

	// --- Хранилище ---

	cfg.UploadDir, err = absDir(getEnvDefault("PA_UPLOAD_DIR", "uploads"))
	if err != nil {
		return nil, fmt.Errorf("PA_UPLOAD_DIR: %w", err)
	}

	cfg.VideoTempDir, err = absDir(getEnvDefault("PA_VIDEO_TEMP_DIR", filepath.Join(os.TempDir(), "photoalbum-videos")))
	if err != nil {
		return nil, fmt.Errorf("PA_VIDEO_TEMP_DIR: %w", err)
	}

	maxUpload, err := getEnvInt("PA_MAX_UPLOAD_SIZE", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("PA_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("PA_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- Кодирование видео ---

	cfg.FFmpegPath = getEnvDefault("PA_FFMPEG_PATH", "ffmpeg")

	cfg.VideoWidth, err = getEnvInt("PA_VIDEO_WIDTH", 1280)
	if err != nil {
		return nil, fmt.Errorf("PA_VIDEO_WIDTH: %w", err)
	}
	cfg.VideoHeight, err = getEnvInt("PA_VIDEO_HEIGHT", 720)
	if err != nil {
		return nil, fmt.Errorf("PA_VIDEO_HEIGHT: %w", err)
	}
	// libx264 + yuv420p требуют чётных размеров кадра
	if cfg.VideoWidth <= 0 || cfg.VideoHeight <= 0 || cfg.VideoWidth%2 != 0 || cfg.VideoHeight%2 != 0 {
		return nil, fmt.Errorf("PA_VIDEO_WIDTH/PA_VIDEO_HEIGHT: размеры кадра должны быть положительными и чётными, получено %dx%d",
			cfg.VideoWidth, cfg.VideoHeight)
	}

	cfg.VideoFPS, err = getEnvInt("PA_VIDEO_FPS", 25)
	if err != nil {
		return nil, fmt.Errorf("PA_VIDEO_FPS: %w", err)
	}
	if cfg.VideoFPS < 1 || cfg.VideoFPS > 120 {
		return nil, fmt.Errorf("PA_VIDEO_FPS: значение %d вне допустимого диапазона 1-120", cfg.VideoFPS)
	}

	cfg.VideoFontFile = getEnvDefault("PA_VIDEO_FONT_FILE", "")

	cfg.VideoMaxConcurrent, err = getEnvInt("PA_VIDEO_MAX_CONCURRENT", 0)
	if err != nil {
		return nil, fmt.Errorf("PA_VIDEO_MAX_CONCURRENT: %w", err)
	}
	if cfg.VideoMaxConcurrent < 0 {
		return nil, fmt.Errorf("PA_VIDEO_MAX_CONCURRENT: значение должно быть >= 0")
	}

	// --- Очистка артефактов ---

	cfg.ArtifactSweepAge, err = getEnvDurationPositive("PA_ARTIFACT_SWEEP_AGE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PA_ARTIFACT_SWEEP_AGE: %w", err)
	}
	cfg.ArtifactSweepInterval, err = getEnvDurationPositive("PA_ARTIFACT_SWEEP_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PA_ARTIFACT_SWEEP_INTERVAL: %w", err)
	}

	// --- Кэш метаданных ---

	cfg.PhotoCacheSize, err = getEnvInt("PA_PHOTO_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("PA_PHOTO_CACHE_SIZE: %w", err)
	}
	if cfg.PhotoCacheSize < 1 {
		return nil, fmt.Errorf("PA_PHOTO_CACHE_SIZE: значение должно быть > 0")
	}
	cfg.PhotoCacheTTL, err = getEnvDurationPositive("PA_PHOTO_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PA_PHOTO_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("PA_DEPHEALTH_GROUP", "photoalbum")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("PA_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PA_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PA_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode, c.DBMaxConns,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL.
// scheme — "postgres" для метрик topologymetrics или "pgx5" для golang-migrate.
func (c *Config) DatabaseURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// absDir приводит путь директории к абсолютному.
func absDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("некорректный путь %q: %w", dir, err)
	}
	return abs, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
