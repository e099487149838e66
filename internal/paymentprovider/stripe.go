package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeConfig параметры подключения к Stripe.
type StripeConfig struct {
	SecretKey string
	// APIURL переопределяет адрес API, используется для stripe-mock и тестов.
	APIURL  string
	Timeout time.Duration
}

// Stripe адаптер Stripe Checkout.
type Stripe struct {
	api *client.API
}

// NewStripe создаёт клиента Stripe. Повторы запросов отключены:
// решение о повторе принимает пользователь.
func NewStripe(cfg StripeConfig) *Stripe {
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	return &Stripe{api: client.New(cfg.SecretKey, backends)}
}

// CreateCustomer создаёт клиента с указанной почтой и возвращает его идентификатор.
func (s *Stripe) CreateCustomer(ctx context.Context, email string) (string, error) {
	const op = "paymentprovider.Stripe.CreateCustomer"
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapStripeError(err))
	}
	return c.ID, nil
}

// RetrieveCustomer возвращает клиента по идентификатору.
// Удалённый клиент возвращается с Deleted = true.
func (s *Stripe) RetrieveCustomer(ctx context.Context, ref string) (*Customer, error) {
	const op = "paymentprovider.Stripe.RetrieveCustomer"
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := s.api.Customers.Get(ref, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStripeError(err))
	}
	return &Customer{ID: c.ID, Email: c.Email, Deleted: c.Deleted}, nil
}

// CreateCheckoutSession создаёт сессию оплаты одной позиции.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	const op = "paymentprovider.Stripe.CreateCheckoutSession"

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(p.LineItem.Currency),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(p.LineItem.Name),
		},
		UnitAmount: stripe.Int64(p.LineItem.UnitAmount),
	}
	mode := stripe.CheckoutSessionModePayment
	if p.Mode == ModeSubscription {
		mode = stripe.CheckoutSessionModeSubscription
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval:      stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			IntervalCount: stripe.Int64(1),
		}
	}

	quantity := p.LineItem.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerRef),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: priceData,
				Quantity:  stripe.Int64(quantity),
			},
		},
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.ClientReference != "" {
		params.ClientReferenceID = stripe.String(p.ClientReference)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStripeError(err))
	}
	return toCheckoutSession(sess), nil
}

// RetrieveCheckoutSession возвращает сессию и статус её оплаты.
func (s *Stripe) RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	const op = "paymentprovider.Stripe.RetrieveCheckoutSession"
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStripeError(err))
	}
	return toCheckoutSession(sess), nil
}

func toCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: stripePaymentStatus(sess.PaymentStatus),
	}
	if sess.Customer != nil {
		out.CustomerRef = sess.Customer.ID
	}
	return out
}

func stripePaymentStatus(s stripe.CheckoutSessionPaymentStatus) PaymentStatus {
	switch s {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return PaymentStatusUnpaid
	case stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return PaymentStatusNoPaymentRequired
	default:
		return PaymentStatusUnknown
	}
}

// mapStripeError сводит ответы "ресурс не найден" к ErrNotFound,
// остальные ошибки возвращает как есть.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %s", ErrNotFound, stripeErr.Msg)
		}
	}
	return err
}
