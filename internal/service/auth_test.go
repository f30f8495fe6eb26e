package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/photoalbum/internal/domain/model"
	"github.com/bigkaa/photoalbum/internal/repository"
)

// fakeUserRepo — репозиторий пользователей в памяти.
type fakeUserRepo struct {
	byName map[string]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byName: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := f.byName[u.Username]; ok {
		return repository.ErrConflict
	}
	u.ID = f.nextID
	f.nextID++
	cp := *u
	f.byName[u.Username] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// fakeIssuer выпускает предсказуемые токены.
type fakeIssuer struct{}

func (fakeIssuer) Issue(userID int64, username string) (string, time.Time, error) {
	return "token-" + username, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func newAuth() (*AuthService, *fakeUserRepo) {
	repo := newFakeUserRepo()
	return newAuthService(repo, fakeIssuer{}, bcrypt.MinCost, testLogger()), repo
}

// TestRegisterAndLogin — полный цикл регистрации и входа.
func TestRegisterAndLogin(t *testing.T) {
	svc, repo := newAuth()
	ctx := context.Background()

	res, err := svc.Register(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Register() вернул ошибку: %v", err)
	}
	if res.User.ID != 1 || res.Token != "token-alice" {
		t.Errorf("результат регистрации = %+v", res)
	}
	if stored := repo.byName["alice"].PasswordHash; stored == "secret1" || !strings.HasPrefix(stored, "$2") {
		t.Errorf("пароль хранится не как bcrypt-хэш: %q", stored)
	}

	res, err = svc.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login() вернул ошибку: %v", err)
	}
	if res.User.Username != "alice" {
		t.Errorf("Username = %q", res.User.Username)
	}

	me, err := svc.Me(ctx, res.User.ID)
	if err != nil || me.Username != "alice" {
		t.Errorf("Me() = %+v, %v", me, err)
	}
}

// TestRegister_Conflict — повторная регистрация имени.
func TestRegister_Conflict(t *testing.T) {
	svc, _ := newAuth()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "bob", "secret1"); err != nil {
		t.Fatalf("Register() вернул ошибку: %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "secret2"); !errors.Is(err, ErrConflict) {
		t.Errorf("Register() = %v, ожидается ErrConflict", err)
	}
}

// TestRegister_Validation проверяет ограничения учётных данных.
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"короткий пароль", "carol", "12345"},
		{"короткое имя", "ab", "secret1"},
		{"пробел в имени", "car ol", "secret1"},
		{"слишком длинный пароль", "carol", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAuth()
			if _, err := svc.Register(context.Background(), tt.username, tt.password); !errors.Is(err, ErrValidation) {
				t.Errorf("Register() = %v, ожидается ErrValidation", err)
			}
		})
	}
}

// TestLogin_InvalidCredentials — неверный пароль и неизвестный пользователь дают одну ошибку.
func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newAuth()
	ctx := context.Background()
	if _, err := svc.Register(ctx, "dave", "secret1"); err != nil {
		t.Fatalf("Register() вернул ошибку: %v", err)
	}

	if _, err := svc.Login(ctx, "dave", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(неверный пароль) = %v, ожидается ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(неизвестный) = %v, ожидается ErrInvalidCredentials", err)
	}
}

// TestMe_NotFound — пользователь из токена удалён.
func TestMe_NotFound(t *testing.T) {
	svc, _ := newAuth()
	if _, err := svc.Me(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Me() = %v, ожидается ErrNotFound", err)
	}
}
