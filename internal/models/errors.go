package models

import "errors"

// Ошибки предметной области. Хранилище и сервисы оборачивают их через %w,
// HTTP-обработчики сопоставляют их со статусами ответа через errors.Is.
var (
	// ErrDuplicateEmail пользователь с такой почтой уже существует.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateUsername имя пользователя уже занято.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrPasswordTooLong пароль длиннее 72 байт, bcrypt такой не принимает.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidCredentials неизвестная почта или неверный пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound сессия (локальная или checkout-сессия провайдера) не найдена.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCustomerNotFound клиент удалён или отсутствует на стороне провайдера.
	ErrCustomerNotFound = errors.New("payment customer not found")
	// ErrProviderUnavailable сетевая ошибка или ошибка на стороне провайдера, запрос можно повторить.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrInvalidReturn возврат с платёжной страницы без ссылки на сессию.
	ErrInvalidReturn = errors.New("invalid checkout return")
	// ErrVerificationFailed провайдер ответил, но оплата не подтверждена.
	ErrVerificationFailed = errors.New("payment not verified")
)
