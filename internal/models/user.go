// Package models содержит доменные структуры сервиса: пользователя с данными
// об оплаченном доступе и ошибки, общие для хранилища, сервисов и HTTP-слоя.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID               string     // Уникальный идентификатор пользователя, выдаётся базой
	Email              string     // Электронная почта, ключ аутентификации
	Username           string     // Имя пользователя (уникальное)
	PasswordHash       string     // bcrypt-хэш пароля
	SubscriptionEnd    *time.Time // Окончание оплаченного доступа, nil если покупок не было
	PaymentCustomerRef *string    // Идентификатор клиента у платёжного провайдера
	CreatedAt          time.Time
}

// HasCustomerRef сообщает, привязан ли пользователь к клиенту платёжного провайдера.
func (u *User) HasCustomerRef() bool {
	return u.PaymentCustomerRef != nil && *u.PaymentCustomerRef != ""
}

// CustomerRef возвращает идентификатор клиента провайдера или пустую строку.
func (u *User) CustomerRef() string {
	if u.PaymentCustomerRef == nil {
		return ""
	}
	return *u.PaymentCustomerRef
}
