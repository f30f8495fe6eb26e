package model

import "time"

// User — пользователь фотоальбома.
type User struct {
	// ID — идентификатор пользователя (bigserial), используется как sub в JWT
	ID int64
	// Username — уникальное имя пользователя
	Username string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// CreatedAt — время регистрации
	CreatedAt time.Time
}
