package notifier

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-gate/internal/config"
)

func TestNew_RequiresBroker(t *testing.T) {
	_, err := New(&config.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, ErrBrokerNotConfigured)
}
