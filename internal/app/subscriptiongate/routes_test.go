package subscriptiongate

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/config"
	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/paymentprovider"
	"github.com/magabrotheeeer/subscription-gate/internal/services/auth"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) Register(ctx context.Context, username, email, password string) (string, error) {
	args := m.Called(ctx, username, email, password)
	return args.String(0), args.Error(1)
}

func (m *AuthServiceMock) Authenticate(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func (m *AuthServiceMock) EndSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *AuthServiceMock) ValidateToken(ctx context.Context, token string) (*auth.Principal, error) {
	args := m.Called(ctx, token)
	p, _ := args.Get(0).(*auth.Principal)
	return p, args.Error(1)
}

type CheckoutServiceMock struct {
	mock.Mock
}

func (m *CheckoutServiceMock) StartCheckout(ctx context.Context, userID string) (*checkout.Redirect, error) {
	args := m.Called(ctx, userID)
	r, _ := args.Get(0).(*checkout.Redirect)
	return r, args.Error(1)
}

func (m *CheckoutServiceMock) CompleteCheckout(ctx context.Context, userID, sessionRef string) (*checkout.Result, error) {
	args := m.Called(ctx, userID, sessionRef)
	r, _ := args.Get(0).(*checkout.Result)
	return r, args.Error(1)
}

func (m *CheckoutServiceMock) Status(ctx context.Context, userID string) (*checkout.SubscriptionStatus, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*checkout.SubscriptionStatus)
	return s, args.Error(1)
}

func newTestRouter(authSvc *AuthServiceMock, checkoutSvc *CheckoutServiceMock, burst int) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, slog.New(slog.NewTextHandler(io.Discard, nil)), Services{
		Auth:     authSvc,
		Checkout: checkoutSvc,
		Limiter:  middlewarectx.NewIPRateLimiter(0.001, burst),
	})
	return r
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		token      string
		setupMocks func(a *AuthServiceMock, c *CheckoutServiceMock)
		wantCode   int
	}{
		{
			name:       "health is public",
			method:     http.MethodGet,
			target:     "/api/v1/health",
			setupMocks: func(_ *AuthServiceMock, _ *CheckoutServiceMock) {},
			wantCode:   http.StatusOK,
		},
		{
			name:       "metrics exposed",
			method:     http.MethodGet,
			target:     "/metrics",
			setupMocks: func(_ *AuthServiceMock, _ *CheckoutServiceMock) {},
			wantCode:   http.StatusOK,
		},
		{
			name:   "register is public",
			method: http.MethodPost,
			target: "/api/v1/register",
			body:   `{"username":"alice","email":"alice@example.com","password":"wonderland"}`,
			setupMocks: func(a *AuthServiceMock, _ *CheckoutServiceMock) {
				a.On("Register", mock.Anything, "alice", "alice@example.com", "wonderland").Return("u1", nil).Once()
			},
			wantCode: http.StatusCreated,
		},
		{
			name:       "checkout requires token",
			method:     http.MethodPost,
			target:     "/api/v1/checkout",
			setupMocks: func(_ *AuthServiceMock, _ *CheckoutServiceMock) {},
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:   "checkout with valid session",
			method: http.MethodPost,
			target: "/api/v1/checkout",
			token:  "tok",
			setupMocks: func(a *AuthServiceMock, c *CheckoutServiceMock) {
				a.On("ValidateToken", mock.Anything, "tok").Return(&auth.Principal{UserUID: "u1", SessionID: "s1"}, nil).Once()
				c.On("StartCheckout", mock.Anything, "u1").Return(&checkout.Redirect{
					SessionID: "cs_1", URL: "https://pay.example/cs_1", State: checkout.StateCheckoutPending,
				}, nil).Once()
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "ended session rejected",
			method: http.MethodGet,
			target: "/api/v1/me/subscription",
			token:  "old",
			setupMocks: func(a *AuthServiceMock, _ *CheckoutServiceMock) {
				a.On("ValidateToken", mock.Anything, "old").Return(nil, models.ErrSessionNotFound).Once()
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "premium without entitlement",
			method: http.MethodGet,
			target: "/api/v1/premium",
			token:  "tok",
			setupMocks: func(a *AuthServiceMock, c *CheckoutServiceMock) {
				a.On("ValidateToken", mock.Anything, "tok").Return(&auth.Principal{UserUID: "u1"}, nil).Once()
				c.On("Status", mock.Anything, "u1").Return(&checkout.SubscriptionStatus{}, nil).Once()
			},
			wantCode: http.StatusPaymentRequired,
		},
		{
			name:   "premium with entitlement",
			method: http.MethodGet,
			target: "/api/v1/premium",
			token:  "tok",
			setupMocks: func(a *AuthServiceMock, c *CheckoutServiceMock) {
				a.On("ValidateToken", mock.Anything, "tok").Return(&auth.Principal{UserUID: "u1"}, nil).Once()
				c.On("Status", mock.Anything, "u1").Return(&checkout.SubscriptionStatus{
					Entitled: true, Remaining: time.Hour,
				}, nil).Once()
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "logout without session validation",
			method: http.MethodPost,
			target: "/api/v1/logout",
			token:  "expired",
			setupMocks: func(a *AuthServiceMock, _ *CheckoutServiceMock) {
				a.On("EndSession", mock.Anything, "expired").Return(nil).Once()
			},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := new(AuthServiceMock)
			checkoutSvc := new(CheckoutServiceMock)
			tt.setupMocks(authSvc, checkoutSvc)
			router := newTestRouter(authSvc, checkoutSvc, 5)

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			authSvc.AssertExpectations(t)
			checkoutSvc.AssertExpectations(t)
		})
	}
}

func TestRoutes_LoginRateLimited(t *testing.T) {
	authSvc := new(AuthServiceMock)
	authSvc.On("Authenticate", mock.Anything, "alice@example.com", "bad").
		Return(nil, models.ErrInvalidCredentials)
	router := newTestRouter(authSvc, new(CheckoutServiceMock), 2)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login",
			strings.NewReader(`{"email":"alice@example.com","password":"bad"}`))
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
	authSvc.AssertNumberOfCalls(t, "Authenticate", 2)
}

func TestNewPaymentProvider(t *testing.T) {
	t.Run("stripe", func(t *testing.T) {
		p, err := newPaymentProvider(config.PaymentProvider{Kind: config.ProviderStripe, SecretKey: "sk_test", Timeout: time.Second})
		require.NoError(t, err)
		assert.IsType(t, &paymentprovider.Stripe{}, p)
	})

	t.Run("paddle without price", func(t *testing.T) {
		p, err := newPaymentProvider(config.PaymentProvider{Kind: config.ProviderPaddle, SecretKey: "key"})
		require.Error(t, err)
		assert.Nil(t, p)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := newPaymentProvider(config.PaymentProvider{Kind: "yookassa"})
		assert.ErrorContains(t, err, "unknown payment provider")
	})
}
