// Package jwt реализует выпуск и разбор JWT токенов сессий.
//
// Токен подписывается HS256 и несёт идентификатор пользователя (sub),
// его почту и идентификатор сессии (jti), который сверяется с реестром сессий.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается для токенов с неверной подписью, структурой или сроком.
var ErrInvalidToken = errors.New("invalid token")

// Maker описывает интерфейс для выпуска и разбора JWT токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя и сессии, возвращает токен и момент истечения.
	GenerateToken(userUID, email, sessionID string) (string, time.Time, error)
	// ParseToken проверяет подпись и срок действия токена.
	ParseToken(tokenStr string) (*CustomClaims, error)
	// ParseTokenIgnoringExpiry проверяет только подпись, срок действия не учитывается.
	ParseTokenIgnoringExpiry(tokenStr string) (*CustomClaims, error)
	// TTL возвращает время жизни выпускаемых токенов.
	TTL() time.Duration
}

// CustomClaims описывает данные, хранящиеся в JWT.
type CustomClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserUID возвращает идентификатор пользователя из claim sub.
func (c *CustomClaims) UserUID() string {
	return c.Subject
}

// SessionID возвращает идентификатор сессии из claim jti.
func (c *CustomClaims) SessionID() string {
	return c.ID
}

// MakerImpl реализует Maker с секретным ключом и временем жизни токена.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}

// TTL возвращает время жизни токена.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}

// GenerateToken создаёт подписанный токен сессии.
func (j *MakerImpl) GenerateToken(userUID, email, sessionID string) (string, time.Time, error) {
	const op = "jwt.GenerateToken"
	now := j.now()
	expiresAt := now.Add(j.tokenTTL)
	claims := CustomClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	return signed, expiresAt, nil
}

// ParseToken разбирает токен, проверяя подпись и срок действия.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	return j.parse("jwt.ParseToken", tokenStr)
}

// ParseTokenIgnoringExpiry разбирает токен без проверки срока действия.
// Используется при завершении сессии, когда токен мог уже истечь.
func (j *MakerImpl) ParseTokenIgnoringExpiry(tokenStr string) (*CustomClaims, error) {
	return j.parse("jwt.ParseTokenIgnoringExpiry", tokenStr, jwt.WithoutClaimsValidation())
}

func (j *MakerImpl) parse(op, tokenStr string, opts ...jwt.ParserOption) (*CustomClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%s: %w: missing subject or session id", op, ErrInvalidToken)
	}
	return claims, nil
}
