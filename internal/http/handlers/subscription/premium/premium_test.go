package premium

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
)

func TestPremiumHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/premium", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "u1"))
	rec := httptest.NewRecorder()

	New(slog.New(slog.NewTextHandler(io.Discard, nil))).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Status string  `json:"status"`
		Data   Content `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "OK", got.Status)
	assert.Equal(t, "u1", got.Data.UserUID)
}
