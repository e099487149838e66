// Package paymentprovider описывает общий контракт платёжных провайдеров
// и содержит адаптер Stripe. Адаптер Paddle находится в подпакете paddle.
package paymentprovider

import "errors"

// ErrNotFound провайдер сообщил, что объекта (клиента или сессии) не существует.
var ErrNotFound = errors.New("payment provider: not found")

// SessionIDPlaceholder подставляется провайдером в адрес возврата вместо
// идентификатора checkout-сессии.
const SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// Mode режим checkout-сессии.
type Mode string

const (
	ModeSubscription Mode = "subscription"
	ModePayment      Mode = "payment"
)

// PaymentStatus статус оплаты checkout-сессии, приведённый к общему виду.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
	PaymentStatusUnknown           PaymentStatus = "unknown"
)

// Customer клиент на стороне провайдера.
type Customer struct {
	ID      string
	Email   string
	Deleted bool
}

// LineItem позиция checkout-сессии. UnitAmount задаётся в минимальных единицах валюты.
type LineItem struct {
	Name       string
	Currency   string
	UnitAmount int64
	Quantity   int64
}

// CheckoutParams параметры создания checkout-сессии.
type CheckoutParams struct {
	CustomerRef string
	// ClientReference идентификатор пользователя сервиса, передаётся провайдеру как метка.
	ClientReference string
	LineItem        LineItem
	Mode            Mode
	SuccessURL      string
	CancelURL       string
}

// CheckoutSession checkout-сессия провайдера.
type CheckoutSession struct {
	ID            string
	URL           string
	CustomerRef   string
	PaymentStatus PaymentStatus
}
