package paddle

import (
	"context"
	"errors"
	"testing"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider"
)

type TransactionsMock struct {
	mock.Mock
}

func (m *TransactionsMock) CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
	args := m.Called(ctx, req)
	txn, _ := args.Get(0).(*paddle.Transaction)
	return txn, args.Error(1)
}

func (m *TransactionsMock) GetTransaction(ctx context.Context, req *paddle.GetTransactionRequest) (*paddle.Transaction, error) {
	args := m.Called(ctx, req)
	txn, _ := args.Get(0).(*paddle.Transaction)
	return txn, args.Error(1)
}

func TestReturnURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "placeholder only",
			in:   "https://gate.example.com/api/v1/checkout/complete?session_id=" + paymentprovider.SessionIDPlaceholder,
			want: "https://gate.example.com/api/v1/checkout/complete",
		},
		{
			name: "placeholder with other params",
			in:   "https://gate.example.com/done?lang=en&session_id=" + paymentprovider.SessionIDPlaceholder,
			want: "https://gate.example.com/done?lang=en",
		},
		{
			name: "no placeholder",
			in:   "https://gate.example.com/done?lang=en",
			want: "https://gate.example.com/done?lang=en",
		},
		{
			name: "no query",
			in:   "https://gate.example.com/done",
			want: "https://gate.example.com/done",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnURL(tt.in))
		})
	}
}

func TestTransactionPaymentStatus(t *testing.T) {
	tests := map[string]paymentprovider.PaymentStatus{
		"paid":      paymentprovider.PaymentStatusPaid,
		"completed": paymentprovider.PaymentStatusPaid,
		"ready":     paymentprovider.PaymentStatusUnpaid,
		"draft":     paymentprovider.PaymentStatusUnpaid,
		"billed":    paymentprovider.PaymentStatusUnpaid,
		"past_due":  paymentprovider.PaymentStatusUnpaid,
		"canceled":  paymentprovider.PaymentStatusUnknown,
		"":          paymentprovider.PaymentStatusUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, transactionPaymentStatus(in), in)
	}
}

func TestProvider_RetrieveCheckoutSession(t *testing.T) {
	customerID := "ctm_01"
	checkoutURL := "https://gate.example.com/api/v1/checkout/complete?_ptxn=txn_01"

	tests := []struct {
		name       string
		setupMocks func(m *TransactionsMock)
		want       *paymentprovider.CheckoutSession
		wantErrIs  error
		wantErr    bool
	}{
		{
			name: "paid transaction",
			setupMocks: func(m *TransactionsMock) {
				m.On("GetTransaction", mock.Anything, &paddle.GetTransactionRequest{TransactionID: "txn_01"}).
					Return(&paddle.Transaction{
						ID:         "txn_01",
						Status:     paddle.TransactionStatus("completed"),
						CustomerID: &customerID,
						Checkout:   &paddle.TransactionCheckout{URL: &checkoutURL},
					}, nil)
			},
			want: &paymentprovider.CheckoutSession{
				ID:            "txn_01",
				URL:           checkoutURL,
				CustomerRef:   customerID,
				PaymentStatus: paymentprovider.PaymentStatusPaid,
			},
		},
		{
			name: "transport error",
			setupMocks: func(m *TransactionsMock) {
				m.On("GetTransaction", mock.Anything, mock.Anything).
					Return(nil, errors.New("dial tcp: timeout"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &TransactionsMock{}
			tt.setupMocks(m)
			p := &Provider{transactions: m, priceID: "pri_01"}

			got, err := p.RetrieveCheckoutSession(context.Background(), "txn_01")
			if tt.wantErr {
				require.Error(t, err)
				assert.NotErrorIs(t, err, paymentprovider.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			m.AssertExpectations(t)
		})
	}
}

func TestNew_RequiresPrice(t *testing.T) {
	_, err := New(Config{APIKey: "key", Environment: EnvironmentSandbox})
	require.Error(t, err)
}
