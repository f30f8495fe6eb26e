// Пакет auth — выпуск JWT (RS256) для пользователей фотоальбома
// и публикация открытого ключа в формате JWKS.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"
)

// rsaKeyBits — размер генерируемого ключа.
const rsaKeyBits = 2048

// Claims — claims выпускаемого токена. sub — ID пользователя.
type Claims struct {
	jwt.RegisteredClaims
	// PreferredUsername — имя пользователя
	PreferredUsername string `json:"preferred_username"`
}

// Issuer — выпуск токенов и хранилище открытых ключей (JWKS).
type Issuer struct {
	key     *rsa.PrivateKey
	kid     string
	issuer  string
	ttl     time.Duration
	storage jwkset.Storage
	now     func() time.Time
}

// NewIssuer создаёт Issuer. Если keyPath пуст, ключ генерируется в памяти
// (токены перестают быть валидны после перезапуска).
func NewIssuer(ctx context.Context, keyPath, issuer string, ttl time.Duration) (*Issuer, error) {
	var (
		key *rsa.PrivateKey
		err error
	)
	if keyPath != "" {
		key, err = loadPrivateKey(keyPath)
	} else {
		key, err = rsa.GenerateKey(rand.Reader, rsaKeyBits)
	}
	if err != nil {
		return nil, err
	}
	return newIssuerWithKey(ctx, key, issuer, ttl)
}

func newIssuerWithKey(ctx context.Context, key *rsa.PrivateKey, issuer string, ttl time.Duration) (*Issuer, error) {
	kid, err := keyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWK: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("запись JWK в хранилище: %w", err)
	}

	return &Issuer{
		key:     key,
		kid:     kid,
		issuer:  issuer,
		ttl:     ttl,
		storage: storage,
		now:     time.Now,
	}, nil
}

// Issue выпускает токен для пользователя. Возвращает токен и момент истечения.
func (i *Issuer) Issue(userID int64, username string) (string, time.Time, error) {
	now := i.now().UTC()
	expires := now.Add(i.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		PreferredUsername: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return signed, expires, nil
}

// Issuer возвращает значение iss выпускаемых токенов.
func (i *Issuer) Issuer() string {
	return i.issuer
}

// KeyID возвращает kid текущего ключа.
func (i *Issuer) KeyID() string {
	return i.kid
}

// Storage возвращает хранилище открытых ключей для проверки токенов.
func (i *Issuer) Storage() jwkset.Storage {
	return i.storage
}

// JWKS возвращает открытые ключи в формате JWK Set.
func (i *Issuer) JWKS(ctx context.Context) (json.RawMessage, error) {
	return i.storage.JSONPublic(ctx)
}

// loadPrivateKey читает RSA-ключ из PEM (PKCS#1 или PKCS#8).
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение ключа %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("файл %s не содержит PEM-блок", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор ключа %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("ключ должен быть RSA")
	}
	return key, nil
}

// keyID — первые 8 байт SHA-256 от DER открытого ключа.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("сериализация открытого ключа: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8]), nil
}
