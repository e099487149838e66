// Package storage реализует хранилище пользователей на PostgreSQL.
// Все изменения строки пользователя выполняются одним атомарным запросом.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/subscription-gate/internal/models"
)

// Имена ограничений уникальности из миграции 000001.
const (
	constraintUniqueEmail    = "users_email_key"
	constraintUniqueUsername = "users_username_key"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// Ping проверяет доступность базы.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

const userColumns = `uid, email, username, password_hash, subscription_end,
			      payment_customer_ref, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var subscriptionEnd sql.NullTime
	var customerRef sql.NullString
	if err := row.Scan(&u.UUID, &u.Email, &u.Username, &u.PasswordHash,
		&subscriptionEnd, &customerRef, &u.CreatedAt); err != nil {
		return nil, err
	}
	if subscriptionEnd.Valid {
		t := subscriptionEnd.Time.UTC()
		u.SubscriptionEnd = &t
	}
	if customerRef.Valid {
		ref := customerRef.String
		u.PaymentCustomerRef = &ref
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя и возвращает выданный базой UID.
// Нарушение уникальности почты или имени возвращается как
// models.ErrDuplicateEmail или models.ErrDuplicateUsername.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, username, password_hash)
			  VALUES ($1, $2, $3)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, mapUniqueViolation(err))
	}
	return newID, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return u, nil
}

// SetPaymentCustomerRef привязывает пользователя к клиенту провайдера.
// Запись выполняется только если ссылка ещё не задана; возвращается
// ссылка, которая хранится в базе после вызова.
func (s *Storage) SetPaymentCustomerRef(ctx context.Context, userUID, ref string) (string, error) {
	const op = "storage.SetPaymentCustomerRef"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET payment_customer_ref = $2
			  WHERE uid = $1 AND payment_customer_ref IS NULL
			  RETURNING payment_customer_ref`
	var stored string
	err := s.DB.QueryRowContext(ctx, query, userUID, ref).Scan(&stored)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Ссылка уже записана параллельным запросом либо пользователя нет.
	var existing sql.NullString
	err = s.DB.QueryRowContext(ctx,
		`SELECT payment_customer_ref FROM users WHERE uid = $1`, userUID).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return existing.String, nil
}

// UpdateSubscriptionEnd устанавливает окончание доступа. Значение в базе
// не уменьшается: сохраняется большее из текущего и нового.
func (s *Storage) UpdateSubscriptionEnd(ctx context.Context, userUID string, end time.Time) (time.Time, error) {
	const op = "storage.UpdateSubscriptionEnd"
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET subscription_end = GREATEST(COALESCE(subscription_end, $2), $2)
			  WHERE uid = $1
			  RETURNING subscription_end`
	var stored time.Time
	if err := s.DB.QueryRowContext(ctx, query, userUID, end).Scan(&stored); err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return stored.UTC(), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrUserNotFound
	}
	return err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintUniqueUsername:
		return models.ErrDuplicateUsername
	case constraintUniqueEmail:
		return models.ErrDuplicateEmail
	default:
		return models.ErrDuplicateEmail
	}
}
