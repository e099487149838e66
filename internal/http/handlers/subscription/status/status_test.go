package status

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Status(ctx context.Context, userID string) (*checkout.SubscriptionStatus, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*checkout.SubscriptionStatus)
	return s, args.Error(1)
}

func TestStatusHandler_ServeHTTP(t *testing.T) {
	end := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		setupMocks     func(m *ServiceMock)
		wantStatusCode int
		want           SubscriptionResponse
		wantError      string
	}{
		{
			name: "entitled user",
			setupMocks: func(m *ServiceMock) {
				m.On("Status", mock.Anything, "u1").Return(&checkout.SubscriptionStatus{
					Entitled: true, SubscriptionEnd: &end, Remaining: 90 * time.Minute, State: checkout.StateHasCustomer,
				}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			want: SubscriptionResponse{
				Entitled: true, SubscriptionEnd: &end, RemainingSeconds: 5400, State: "has_customer",
			},
		},
		{
			name: "never paid",
			setupMocks: func(m *ServiceMock) {
				m.On("Status", mock.Anything, "u1").Return(&checkout.SubscriptionStatus{
					State: checkout.StateNoCustomer,
				}, nil).Once()
			},
			wantStatusCode: http.StatusOK,
			want:           SubscriptionResponse{State: "no_customer"},
		},
		{
			name: "user deleted",
			setupMocks: func(m *ServiceMock) {
				m.On("Status", mock.Anything, "u1").Return(nil, models.ErrUserNotFound).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name: "storage error",
			setupMocks: func(m *ServiceMock) {
				m.On("Status", mock.Anything, "u1").Return(nil, errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to get subscription status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/me/subscription", nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "u1"))
			rec := httptest.NewRecorder()
			New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatusCode, rec.Code)

			var got struct {
				Error string               `json:"error"`
				Data  SubscriptionResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantError, got.Error)
			if tt.wantError == "" {
				assert.Equal(t, tt.want.Entitled, got.Data.Entitled)
				assert.Equal(t, tt.want.RemainingSeconds, got.Data.RemainingSeconds)
				assert.Equal(t, tt.want.State, got.Data.State)
				if tt.want.SubscriptionEnd == nil {
					assert.Nil(t, got.Data.SubscriptionEnd)
				} else {
					require.NotNil(t, got.Data.SubscriptionEnd)
					assert.True(t, tt.want.SubscriptionEnd.Equal(*got.Data.SubscriptionEnd))
				}
			}
			svc.AssertExpectations(t)
		})
	}
}
