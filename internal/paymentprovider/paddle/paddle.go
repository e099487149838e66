// Package paddle адаптирует Paddle Billing к контракту платёжного провайдера.
// Checkout-сессией здесь выступает транзакция Paddle: её идентификатор
// приходит обратно в параметре _ptxn адреса возврата.
package paddle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/PaddleHQ/paddle-go-sdk/v4/pkg/paddleerr"

	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider"
)

// Environment окружение Paddle.
const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

const (
	customerStatusArchived = "archived"
	errCodeNotFound        = "not_found"
)

type customersAPI interface {
	CreateCustomer(ctx context.Context, req *paddle.CreateCustomerRequest) (*paddle.Customer, error)
	GetCustomer(ctx context.Context, req *paddle.GetCustomerRequest) (*paddle.Customer, error)
}

type transactionsAPI interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
	GetTransaction(ctx context.Context, req *paddle.GetTransactionRequest) (*paddle.Transaction, error)
}

// Config параметры подключения к Paddle.
type Config struct {
	APIKey      string
	Environment string
	// PriceID каталожная цена продукта подписки. Сумма и валюта задаются в каталоге Paddle.
	PriceID string
}

// Provider адаптер Paddle.
type Provider struct {
	customers    customersAPI
	transactions transactionsAPI
	priceID      string
}

// New создаёт клиента Paddle для выбранного окружения.
func New(cfg Config) (*Provider, error) {
	const op = "paddle.New"
	if cfg.PriceID == "" {
		return nil, fmt.Errorf("%s: price id is required", op)
	}

	var (
		sdk *paddle.SDK
		err error
	)
	if cfg.Environment == EnvironmentProduction {
		sdk, err = paddle.New(cfg.APIKey)
	} else {
		sdk, err = paddle.NewSandbox(cfg.APIKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Provider{
		customers:    sdk.CustomersClient,
		transactions: sdk.TransactionsClient,
		priceID:      cfg.PriceID,
	}, nil
}

// CreateCustomer создаёт клиента Paddle.
func (p *Provider) CreateCustomer(ctx context.Context, email string) (string, error) {
	const op = "paddle.CreateCustomer"
	c, err := p.customers.CreateCustomer(ctx, &paddle.CreateCustomerRequest{Email: email})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return c.ID, nil
}

// RetrieveCustomer возвращает клиента. Архивный клиент считается удалённым.
func (p *Provider) RetrieveCustomer(ctx context.Context, ref string) (*paymentprovider.Customer, error) {
	const op = "paddle.RetrieveCustomer"
	c, err := p.customers.GetCustomer(ctx, &paddle.GetCustomerRequest{CustomerID: ref})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return &paymentprovider.Customer{
		ID:      c.ID,
		Email:   c.Email,
		Deleted: string(c.Status) == customerStatusArchived,
	}, nil
}

// CreateCheckoutSession создаёт транзакцию с каталожной ценой. Позиция
// из параметров используется только для количества.
func (p *Provider) CreateCheckoutSession(ctx context.Context, params paymentprovider.CheckoutParams) (*paymentprovider.CheckoutSession, error) {
	const op = "paddle.CreateCheckoutSession"

	quantity := int(params.LineItem.Quantity)
	if quantity <= 0 {
		quantity = 1
	}
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.priceID,
		Quantity: quantity,
	})

	customerID := params.CustomerRef
	req := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: &customerID,
		CustomData: paddle.CustomData{
			"user_uid": params.ClientReference,
		},
	}
	if returnURL := ReturnURL(params.SuccessURL); returnURL != "" {
		req.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(returnURL),
		}
	}

	txn, err := p.transactions.CreateTransaction(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return nil, fmt.Errorf("%s: no checkout url returned", op)
	}

	return &paymentprovider.CheckoutSession{
		ID:            txn.ID,
		URL:           *txn.Checkout.URL,
		CustomerRef:   customerID,
		PaymentStatus: transactionPaymentStatus(string(txn.Status)),
	}, nil
}

// RetrieveCheckoutSession возвращает транзакцию и её статус оплаты.
func (p *Provider) RetrieveCheckoutSession(ctx context.Context, id string) (*paymentprovider.CheckoutSession, error) {
	const op = "paddle.RetrieveCheckoutSession"
	txn, err := p.transactions.GetTransaction(ctx, &paddle.GetTransactionRequest{TransactionID: id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	sess := &paymentprovider.CheckoutSession{
		ID:            txn.ID,
		PaymentStatus: transactionPaymentStatus(string(txn.Status)),
	}
	if txn.CustomerID != nil {
		sess.CustomerRef = *txn.CustomerID
	}
	if txn.Checkout != nil && txn.Checkout.URL != nil {
		sess.URL = *txn.Checkout.URL
	}
	return sess, nil
}

// ReturnURL убирает из адреса возврата параметр с подстановкой идентификатора
// сессии: Paddle сам добавляет _ptxn.
func ReturnURL(successURL string) string {
	base, query, found := strings.Cut(successURL, "?")
	if !found || !strings.Contains(query, paymentprovider.SessionIDPlaceholder) {
		return successURL
	}

	var kept []string
	for _, part := range strings.Split(query, "&") {
		if part != "" && !strings.Contains(part, paymentprovider.SessionIDPlaceholder) {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return base
	}
	return base + "?" + strings.Join(kept, "&")
}

// transactionPaymentStatus приводит статус транзакции Paddle к общему виду.
// Оплаченными считаются paid и completed.
func transactionPaymentStatus(status string) paymentprovider.PaymentStatus {
	switch status {
	case "paid", "completed":
		return paymentprovider.PaymentStatusPaid
	case "draft", "ready", "billed", "past_due":
		return paymentprovider.PaymentStatusUnpaid
	default:
		return paymentprovider.PaymentStatusUnknown
	}
}

func mapError(err error) error {
	var apiErr *paddleerr.Error
	if errors.As(err, &apiErr) && apiErr.Code == errCodeNotFound {
		return fmt.Errorf("%w: %s", paymentprovider.ErrNotFound, apiErr.Detail)
	}
	return err
}
