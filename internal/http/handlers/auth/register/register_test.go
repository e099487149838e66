package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/models"
)

// Мок сервиса с методом Register
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, username, email, password string) (string, error) {
	args := m.Called(ctx, username, email, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	valid := Request{Username: "bob", Email: "bob@example.com", Password: "password123"}

	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(m *ServiceMock)
		wantStatusCode int
		wantData       map[string]any
		wantError      string
		wantStatus     string
	}{
		{
			name:        "valid registration",
			requestBody: valid,
			setupMocks: func(m *ServiceMock) {
				m.On("Register", mock.Anything, "bob", "bob@example.com", "password123").
					Return("uid-1", nil).Once()
			},
			wantStatusCode: http.StatusCreated,
			wantData:       map[string]any{"user_id": "uid-1", "username": "bob"},
			wantStatus:     "OK",
		},
		{
			name:           "invalid json body",
			requestBody:    "not a json",
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
			wantStatus:     "Error",
		},
		{
			name:           "validation error - missing password",
			requestBody:    Request{Username: "bob", Email: "bob@example.com"},
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password is a required field",
			wantStatus:     "Error",
		},
		{
			name:           "validation error - bad email",
			requestBody:    Request{Username: "bob", Email: "bob", Password: "password123"},
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Email must be a valid email",
			wantStatus:     "Error",
		},
		{
			name:           "validation error - password too long",
			requestBody:    Request{Username: "bob", Email: "bob@example.com", Password: strings.Repeat("a", 73)},
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Password must be at most 72 characters",
			wantStatus:     "Error",
		},
		{
			name:        "password over bcrypt byte limit",
			requestBody: Request{Username: "bob", Email: "bob@example.com", Password: strings.Repeat("я", 40)},
			setupMocks: func(m *ServiceMock) {
				m.On("Register", mock.Anything, "bob", "bob@example.com", strings.Repeat("я", 40)).
					Return("", models.ErrPasswordTooLong).Once()
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "password must be at most 72 bytes",
			wantStatus:     "Error",
		},
		{
			name:        "duplicate email",
			requestBody: valid,
			setupMocks: func(m *ServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", models.ErrDuplicateEmail).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantError:      "email already registered",
			wantStatus:     "Error",
		},
		{
			name:        "duplicate username",
			requestBody: valid,
			setupMocks: func(m *ServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", models.ErrDuplicateUsername).Once()
			},
			wantStatusCode: http.StatusConflict,
			wantError:      "username already taken",
			wantStatus:     "Error",
		},
		{
			name:        "storage error",
			requestBody: valid,
			setupMocks: func(m *ServiceMock) {
				m.On("Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return("", errors.New("db error")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to register user",
			wantStatus:     "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)
			handler := New(newNoopLogger(), svc)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				var err error
				bodyBytes, err = json.Marshal(v)
				require.NoError(t, err)
			}

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(bodyBytes))
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])

			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			} else {
				assert.Nil(t, got["error"])
			}

			if tt.wantData != nil {
				data, ok := got["data"].(map[string]any)
				require.True(t, ok)
				for k, v := range tt.wantData {
					assert.Equal(t, v, data[k])
				}
			}

			svc.AssertExpectations(t)
		})
	}
}
