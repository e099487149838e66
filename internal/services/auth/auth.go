// Package auth содержит логику регистрации, входа и проверки сессий.
// Сессия — это JWT, идентификатор которого (jti) зарегистрирован в Redis;
// выход из системы удаляет регистрацию, и токен перестаёт приниматься.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-gate/internal/cache"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/password"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его ID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по почте или models.ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionStore реестр активных сессий.
type SessionStore interface {
	SaveSession(ctx context.Context, sessionID string, rec cache.SessionRecord, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*cache.SessionRecord, bool, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Session выданная при входе сессия.
type Session struct {
	Token     string
	SessionID string
	UserUID   string
	ExpiresAt time.Time
}

// Principal аутентифицированный владелец запроса.
type Principal struct {
	UserUID   string
	Email     string
	SessionID string
}

// AuthService отвечает за регистрацию, вход, выход и проверку токенов.
type AuthService struct {
	log      *slog.Logger
	users    UserRepository
	sessions SessionStore
	jwtMaker jwt.Maker
	now      func() time.Time
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(log *slog.Logger, users UserRepository, sessions SessionStore, jwtMaker jwt.Maker) *AuthService {
	return &AuthService{
		log:      log,
		users:    users,
		sessions: sessions,
		jwtMaker: jwtMaker,
		now:      time.Now,
	}
}

// maxPasswordBytes предел bcrypt на длину пароля.
const maxPasswordBytes = 72

// normalizeEmail приводит почту к виду, в котором она хранится.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает пользователя без оплаченного доступа.
// Занятая почта или имя возвращаются как models.ErrDuplicateEmail / models.ErrDuplicateUsername.
func (s *AuthService) Register(ctx context.Context, username, email, rawPassword string) (string, error) {
	const op = "auth.Register"

	if len(rawPassword) > maxPasswordBytes {
		return "", fmt.Errorf("%s: %w", op, models.ErrPasswordTooLong)
	}
	email = normalizeEmail(email)

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := s.users.RegisterUser(ctx, models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashed,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Authenticate проверяет почту и пароль и открывает новую сессию.
// Неизвестная почта и неверный пароль неразличимы: models.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "auth.Authenticate"

	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			metrics.AuthAttempt(false)
			return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		metrics.AuthAttempt(false)
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Warn("stored password hash is unusable", sl.Op(op), slog.String("user_uid", user.UUID), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.jwtMaker.GenerateToken(user.UUID, user.Email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := cache.SessionRecord{UserUID: user.UUID, Email: user.Email, IssuedAt: s.now().UTC()}
	if err = s.sessions.SaveSession(ctx, sessionID, rec, s.jwtMaker.TTL()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.AuthAttempt(true)
	return &Session{
		Token:     token,
		SessionID: sessionID,
		UserUID:   user.UUID,
		ExpiresAt: expiresAt,
	}, nil
}

// EndSession завершает сессию токена. Повторный выход, истёкший или
// нечитаемый токен ошибкой не считаются.
func (s *AuthService) EndSession(ctx context.Context, token string) error {
	const op = "auth.EndSession"

	claims, err := s.jwtMaker.ParseTokenIgnoringExpiry(token)
	if err != nil {
		s.log.Debug("logout with unusable token", sl.Op(op), sl.Err(err))
		return nil
	}
	if err = s.sessions.DeleteSession(ctx, claims.SessionID()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ValidateToken проверяет подпись и срок токена, а также что его сессия не завершена.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	const op = "auth.ValidateToken"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, found, err := s.sessions.GetSession(ctx, claims.SessionID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found || rec.UserUID != claims.UserUID() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrSessionNotFound)
	}

	return &Principal{
		UserUID:   claims.UserUID(),
		Email:     claims.Email,
		SessionID: claims.SessionID(),
	}, nil
}
