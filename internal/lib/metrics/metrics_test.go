package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCheckoutCounters(t *testing.T) {
	before := testutil.ToFloat64(checkoutCompleted.WithLabelValues(ResultVerified))
	CheckoutCompleted(ResultVerified)
	CheckoutCompleted(ResultVerified)
	assert.Equal(t, before+2, testutil.ToFloat64(checkoutCompleted.WithLabelValues(ResultVerified)))

	before = testutil.ToFloat64(checkoutStarted.WithLabelValues(ResultProviderError))
	CheckoutStarted(ResultProviderError)
	assert.Equal(t, before+1, testutil.ToFloat64(checkoutStarted.WithLabelValues(ResultProviderError)))
}

func TestAuthAttempt(t *testing.T) {
	beforeOK := testutil.ToFloat64(authAttempts.WithLabelValues("success"))
	beforeFail := testutil.ToFloat64(authAttempts.WithLabelValues("failure"))

	AuthAttempt(true)
	AuthAttempt(false)
	AuthAttempt(false)

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(authAttempts.WithLabelValues("success")))
	assert.Equal(t, beforeFail+2, testutil.ToFloat64(authAttempts.WithLabelValues("failure")))
}

func TestObserveProviderCall(t *testing.T) {
	before := testutil.CollectAndCount(providerRequestDuration)

	ObserveProviderCall("metrics_test_op", time.Now().Add(-10*time.Millisecond), nil)
	ObserveProviderCall("metrics_test_op", time.Now(), errors.New("boom"))

	assert.Equal(t, before+2, testutil.CollectAndCount(providerRequestDuration))
}
