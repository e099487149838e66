package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	c, _ := args.Get(0).(smtp.Client)
	return c, args.Error(1)
}

func (m *MockTransport) Sender() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockSMTPClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockSMTPClient) Quit() error            { return m.Called().Error(0) }
func (m *MockSMTPClient) Close() error           { return m.Called().Error(0) }

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	w, _ := args.Get(0).(io.WriteCloser)
	return w, args.Error(1)
}

type bufferCloser struct {
	bytes.Buffer
	closeErr error
}

func (b *bufferCloser) Close() error { return b.closeErr }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func activatedBody(t *testing.T, email string) []byte {
	t.Helper()
	body, err := json.Marshal(checkout.ActivatedEvent{
		UserUID:         "u1",
		Email:           email,
		SessionID:       "cs_1",
		SubscriptionEnd: time.Date(2026, 11, 18, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return body
}

func TestHandleActivated(t *testing.T) {
	tests := []struct {
		name          string
		body          func(t *testing.T) []byte
		setupMocks    func(tr *MockTransport, c *MockSMTPClient, w *bufferCloser)
		wantErr       bool
		wantPermanent bool
		wantInBody    string
	}{
		{
			name: "email sent",
			body: func(t *testing.T) []byte { return activatedBody(t, "alice@example.com") },
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, w *bufferCloser) {
				tr.On("Sender").Return("no-reply@example.com")
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "no-reply@example.com").Return(nil).Once()
				c.On("Rcpt", "alice@example.com").Return(nil).Once()
				c.On("Data").Return(w, nil).Once()
				c.On("Quit").Return(nil).Once()
				c.On("Close").Return(nil).Once()
			},
			wantInBody: "2026-11-18 09:30:00",
		},
		{
			name:          "broken json is permanent",
			body:          func(*testing.T) []byte { return []byte("{not json") },
			setupMocks:    func(*MockTransport, *MockSMTPClient, *bufferCloser) {},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "missing email is permanent",
			body:          func(t *testing.T) []byte { return activatedBody(t, "") },
			setupMocks:    func(*MockTransport, *MockSMTPClient, *bufferCloser) {},
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name: "smtp unavailable is retried",
			body: func(t *testing.T) []byte { return activatedBody(t, "alice@example.com") },
			setupMocks: func(tr *MockTransport, _ *MockSMTPClient, _ *bufferCloser) {
				tr.On("Sender").Return("no-reply@example.com")
				tr.On("Connect").Return(nil, errors.New("dial tcp: refused")).Once()
			},
			wantErr: true,
		},
		{
			name: "recipient rejected",
			body: func(t *testing.T) []byte { return activatedBody(t, "alice@example.com") },
			setupMocks: func(tr *MockTransport, c *MockSMTPClient, _ *bufferCloser) {
				tr.On("Sender").Return("no-reply@example.com")
				tr.On("Connect").Return(c, nil).Once()
				c.On("Mail", "no-reply@example.com").Return(nil).Once()
				c.On("Rcpt", "alice@example.com").Return(errors.New("550 no such user")).Once()
				c.On("Close").Return(nil).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTransport)
			client := new(MockSMTPClient)
			w := &bufferCloser{}
			tt.setupMocks(tr, client, w)

			err := New(newNoopLogger(), tr).HandleActivated(context.Background(), tt.body(t))

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantPermanent, errors.Is(err, rabbitmq.ErrPermanent))
			} else {
				require.NoError(t, err)
				assert.Contains(t, w.String(), "To: alice@example.com")
				assert.Contains(t, w.String(), tt.wantInBody)
			}
			tr.AssertExpectations(t)
			client.AssertExpectations(t)
		})
	}
}
