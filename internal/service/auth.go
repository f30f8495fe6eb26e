// auth.go — регистрация и вход пользователей, выпуск JWT.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/photoalbum/internal/domain/model"
	"github.com/bigkaa/photoalbum/internal/repository"
)

// Ограничения учётных данных.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // предел bcrypt
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

// TokenIssuer выпускает JWT для пользователя. Реализуется auth.Issuer.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, time.Time, error)
}

// AuthResult — результат регистрации или входа.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// AuthService — сервис учётных записей.
type AuthService struct {
	users  repository.UserRepository
	issuer TokenIssuer
	cost   int
	// dummyHash сравнивается при неизвестном имени, чтобы время ответа не выдавало наличие пользователя
	dummyHash []byte
	logger    *slog.Logger
}

// NewAuthService создаёт сервис учётных записей.
func NewAuthService(users repository.UserRepository, issuer TokenIssuer, logger *slog.Logger) *AuthService {
	return newAuthService(users, issuer, bcrypt.DefaultCost, logger)
}

func newAuthService(users repository.UserRepository, issuer TokenIssuer, cost int, logger *slog.Logger) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("photoalbum-dummy-password"), cost)
	return &AuthService{
		users:     users,
		issuer:    issuer,
		cost:      cost,
		dummyHash: dummy,
		logger:    logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт пользователя и выпускает для него токен.
func (s *AuthService) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хэширования пароля: %w", err)
	}

	user := &model.User{Username: username, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь %q уже существует", ErrConflict, username)
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login проверяет пароль и выпускает токен.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Неудачная попытка входа", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me возвращает текущего пользователя по ID из токена.
func (s *AuthService) Me(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, exp, err := s.issuer.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("ошибка выпуска токена: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func validateCredentials(username, password string) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("%w: имя пользователя должно содержать 3-64 символа [a-zA-Z0-9_.-]", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: пароль короче %d символов", ErrValidation, MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: пароль длиннее %d байт", ErrValidation, MaxPasswordLength)
	}
	return nil
}
