// Package entitlement содержит чистые функции расчёта оплаченного доступа пользователя.
// Пакет не обращается к хранилищу: он только считает новое окончание доступа,
// сохранение выполняет вызывающий сервис.
package entitlement

import (
	"time"

	"github.com/magabrotheeeer/subscription-gate/internal/models"
)

// Period продление доступа за одну успешную оплату.
const Period = 30 * 24 * time.Hour

// IsEntitled сообщает, действует ли доступ пользователя в момент now.
// Граница строгая: в момент now == SubscriptionEnd доступа уже нет.
func IsEntitled(user *models.User, now time.Time) bool {
	if user == nil || user.SubscriptionEnd == nil {
		return false
	}
	return user.SubscriptionEnd.After(now)
}

// Extend возвращает новое окончание доступа после оплаты в момент now.
//
// Окно отсчитывается заново от now, а не прибавляется к текущему окончанию:
// покупка при действующем доступе не суммируется.
func Extend(_ *models.User, now time.Time, duration time.Duration) time.Time {
	return now.Add(duration)
}

// Remaining возвращает остаток доступа на момент now, либо 0, если доступа нет.
func Remaining(user *models.User, now time.Time) time.Duration {
	if !IsEntitled(user, now) {
		return 0
	}
	return user.SubscriptionEnd.Sub(now)
}
