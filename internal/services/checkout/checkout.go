// Package checkout сверяет оплаченный доступ пользователя с платёжным провайдером.
//
// Пользователь проходит состояния no_customer → has_customer → checkout_pending →
// verified. Неудачная проверка (verification_failed) или возврат без ссылки на
// сессию (invalid_return) конечны для попытки, повторить можно с has_customer.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-gate/internal/lib/entitlement"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider"
)

// State состояние сверки оплаты.
type State string

const (
	StateNoCustomer         State = "no_customer"
	StateHasCustomer        State = "has_customer"
	StateCheckoutPending    State = "checkout_pending"
	StateVerified           State = "verified"
	StateVerificationFailed State = "verification_failed"
	StateInvalidReturn      State = "invalid_return"
)

// Пути API, на которые провайдер возвращает пользователя.
const (
	StartPath    = "/api/v1/checkout"
	CompletePath = "/api/v1/checkout/complete"
)

// RoutingKeyActivated ключ маршрутизации события о продлении доступа.
const RoutingKeyActivated = "subscription.activated"

// PaymentProvider контракт платёжного провайдера.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, email string) (string, error)
	RetrieveCustomer(ctx context.Context, ref string) (*paymentprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, params paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*paymentprovider.CheckoutSession, error)
}

// UserStore операции хранилища, нужные для сверки.
type UserStore interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// SetPaymentCustomerRef записывает ссылку, только если она ещё не задана,
	// и возвращает сохранённое значение.
	SetPaymentCustomerRef(ctx context.Context, userUID, ref string) (string, error)
	// UpdateSubscriptionEnd не уменьшает сохранённое окончание доступа.
	UpdateSubscriptionEnd(ctx context.Context, userUID string, end time.Time) (time.Time, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Config параметры продукта и адресов возврата.
type Config struct {
	BaseURL         string
	ProductName     string
	Currency        string
	UnitAmount      int64
	Mode            paymentprovider.Mode
	Period          time.Duration
	ProviderTimeout time.Duration
}

// Redirect результат начала оплаты: куда отправить пользователя.
type Redirect struct {
	SessionID   string
	URL         string
	CustomerRef string
	State       State
}

// Result результат успешной проверки оплаты.
type Result struct {
	State           State
	SessionID       string
	SubscriptionEnd time.Time
}

// SubscriptionStatus текущее состояние доступа пользователя.
type SubscriptionStatus struct {
	Entitled        bool
	SubscriptionEnd *time.Time
	Remaining       time.Duration
	State           State
}

// ActivatedEvent публикуется после продления доступа.
type ActivatedEvent struct {
	UserUID         string    `json:"user_uid"`
	Email           string    `json:"email"`
	SessionID       string    `json:"session_id"`
	SubscriptionEnd time.Time `json:"subscription_end"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Service оркестрирует оплату: клиент провайдера, checkout-сессия, проверка и продление.
type Service struct {
	log      *slog.Logger
	users    UserStore
	provider PaymentProvider
	events   EventPublisher
	cfg      Config
	now      func() time.Time
}

// New создаёт сервис. Нулевые Period и ProviderTimeout заменяются значениями по умолчанию.
func New(log *slog.Logger, users UserStore, provider PaymentProvider, events EventPublisher, cfg Config) *Service {
	if cfg.Period <= 0 {
		cfg.Period = entitlement.Period
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = paymentprovider.ModeSubscription
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		log:      log,
		users:    users,
		provider: provider,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SuccessURL адрес возврата после оплаты с подстановкой идентификатора сессии.
func (s *Service) SuccessURL() string {
	return s.cfg.BaseURL + CompletePath + "?session_id=" + paymentprovider.SessionIDPlaceholder
}

// CancelURL адрес возврата при отказе от оплаты.
func (s *Service) CancelURL() string {
	return s.cfg.BaseURL + StartPath
}

// StartCheckout гарантирует наличие клиента у провайдера и открывает checkout-сессию.
func (s *Service) StartCheckout(ctx context.Context, userID string) (*Redirect, error) {
	const op = "checkout.StartCheckout"
	log := s.log.With(sl.Op(op), slog.String("user_uid", userID))

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		metrics.CheckoutStarted(metrics.ResultNotFound)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerRef, err := s.ensureCustomer(ctx, log, user)
	if err != nil {
		if errors.Is(err, models.ErrCustomerNotFound) {
			metrics.CheckoutStarted(metrics.ResultNotFound)
		} else {
			metrics.CheckoutStarted(metrics.ResultProviderError)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := paymentprovider.CheckoutParams{
		CustomerRef:     customerRef,
		ClientReference: user.UUID,
		LineItem: paymentprovider.LineItem{
			Name:       s.cfg.ProductName,
			Currency:   s.cfg.Currency,
			UnitAmount: s.cfg.UnitAmount,
			Quantity:   1,
		},
		Mode:       s.cfg.Mode,
		SuccessURL: s.SuccessURL(),
		CancelURL:  s.CancelURL(),
	}

	var sess *paymentprovider.CheckoutSession
	err = s.callProvider(ctx, "create_checkout_session", func(ctx context.Context) error {
		var callErr error
		sess, callErr = s.provider.CreateCheckoutSession(ctx, params)
		return callErr
	})
	if err != nil {
		metrics.CheckoutStarted(metrics.ResultProviderError)
		log.Error("failed to create checkout session", sl.Err(err))
		return nil, providerUnavailable(op, err)
	}

	metrics.CheckoutStarted(metrics.ResultPending)
	log.Info("checkout session created", slog.String("session_id", sess.ID))
	return &Redirect{
		SessionID:   sess.ID,
		URL:         sess.URL,
		CustomerRef: customerRef,
		State:       StateCheckoutPending,
	}, nil
}

// ensureCustomer возвращает ссылку на клиента провайдера, создавая его при первой оплате.
func (s *Service) ensureCustomer(ctx context.Context, log *slog.Logger, user *models.User) (string, error) {
	const op = "checkout.ensureCustomer"

	if user.HasCustomerRef() {
		ref := user.CustomerRef()
		var customer *paymentprovider.Customer
		err := s.callProvider(ctx, "retrieve_customer", func(ctx context.Context) error {
			var callErr error
			customer, callErr = s.provider.RetrieveCustomer(ctx, ref)
			return callErr
		})
		switch {
		case errors.Is(err, paymentprovider.ErrNotFound):
			log.Warn("payment customer missing at provider", slog.String("customer_ref", ref))
			return "", fmt.Errorf("%s: %w", op, models.ErrCustomerNotFound)
		case err != nil:
			log.Error("failed to retrieve payment customer", sl.Err(err))
			return "", providerUnavailable(op, err)
		case customer.Deleted:
			log.Warn("payment customer deleted at provider", slog.String("customer_ref", ref))
			return "", fmt.Errorf("%s: %w", op, models.ErrCustomerNotFound)
		}
		return ref, nil
	}

	var created string
	err := s.callProvider(ctx, "create_customer", func(ctx context.Context) error {
		var callErr error
		created, callErr = s.provider.CreateCustomer(ctx, user.Email)
		return callErr
	})
	if err != nil {
		log.Error("failed to create payment customer", sl.Err(err))
		return "", providerUnavailable(op, err)
	}

	stored, err := s.users.SetPaymentCustomerRef(ctx, user.UUID, created)
	if err != nil {
		log.Error("failed to store payment customer ref", slog.String("customer_ref", created), sl.Err(err))
		return "", providerUnavailable(op, err)
	}
	if stored != created {
		log.Info("customer ref already stored by a concurrent checkout",
			slog.String("stored", stored), slog.String("discarded", created))
	}
	return stored, nil
}

// CompleteCheckout проверяет оплату сессии sessionRef и продлевает доступ на период.
// Повторный вызов с той же сессией снова продлевает доступ от текущего момента.
func (s *Service) CompleteCheckout(ctx context.Context, userID, sessionRef string) (*Result, error) {
	const op = "checkout.CompleteCheckout"
	log := s.log.With(sl.Op(op), slog.String("user_uid", userID))

	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		metrics.CheckoutCompleted(metrics.ResultInvalidReturn)
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidReturn)
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var sess *paymentprovider.CheckoutSession
	err = s.callProvider(ctx, "retrieve_checkout_session", func(ctx context.Context) error {
		var callErr error
		sess, callErr = s.provider.RetrieveCheckoutSession(ctx, sessionRef)
		return callErr
	})
	if err != nil {
		if errors.Is(err, paymentprovider.ErrNotFound) {
			metrics.CheckoutCompleted(metrics.ResultNotFound)
			log.Warn("checkout session not found", slog.String("session_id", sessionRef))
			return nil, fmt.Errorf("%s: %w", op, models.ErrSessionNotFound)
		}
		metrics.CheckoutCompleted(metrics.ResultProviderError)
		log.Error("failed to retrieve checkout session", sl.Err(err))
		return nil, providerUnavailable(op, err)
	}

	if !user.HasCustomerRef() || sess.CustomerRef != user.CustomerRef() {
		metrics.CheckoutCompleted(metrics.ResultVerificationFailed)
		log.Warn("checkout session belongs to another customer",
			slog.String("session_id", sess.ID), slog.String("session_customer", sess.CustomerRef))
		return nil, fmt.Errorf("%s: %w: session customer mismatch", op, models.ErrVerificationFailed)
	}
	if sess.PaymentStatus != paymentprovider.PaymentStatusPaid {
		metrics.CheckoutCompleted(metrics.ResultVerificationFailed)
		log.Info("checkout session not paid",
			slog.String("session_id", sess.ID), slog.String("payment_status", string(sess.PaymentStatus)))
		return nil, fmt.Errorf("%s: %w: payment status %s", op, models.ErrVerificationFailed, sess.PaymentStatus)
	}

	now := s.now().UTC()
	end, err := s.users.UpdateSubscriptionEnd(ctx, user.UUID, entitlement.Extend(user, now, s.cfg.Period))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.CheckoutCompleted(metrics.ResultVerified)
	log.Info("subscription extended", slog.String("session_id", sess.ID), slog.Time("subscription_end", end))

	event := ActivatedEvent{UserUID: user.UUID, Email: user.Email, SessionID: sess.ID, SubscriptionEnd: end, OccurredAt: now}
	if err = s.events.Publish(ctx, RoutingKeyActivated, event); err != nil {
		log.Warn("failed to publish subscription event", sl.Err(err))
	}

	return &Result{State: StateVerified, SessionID: sess.ID, SubscriptionEnd: end}, nil
}

// Status возвращает состояние доступа пользователя на текущий момент.
func (s *Service) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	const op = "checkout.Status"

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	state := StateNoCustomer
	if user.HasCustomerRef() {
		state = StateHasCustomer
	}
	return &SubscriptionStatus{
		Entitled:        entitlement.IsEntitled(user, now),
		SubscriptionEnd: user.SubscriptionEnd,
		Remaining:       entitlement.Remaining(user, now),
		State:           state,
	}, nil
}

// callProvider выполняет вызов провайдера с таймаутом и записывает его длительность.
func (s *Service) callProvider(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	metrics.ObserveProviderCall(operation, started, err)
	return err
}

func providerUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrProviderUnavailable, err)
}
