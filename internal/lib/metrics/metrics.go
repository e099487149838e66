// Package metrics объявляет Prometheus-метрики сервиса.
// Метрики регистрируются в реестре по умолчанию и отдаются через /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения метки result.
const (
	ResultPending            = "checkout_pending"
	ResultVerified           = "verified"
	ResultVerificationFailed = "verification_failed"
	ResultInvalidReturn      = "invalid_return"
	ResultProviderError      = "provider_error"
	ResultNotFound           = "not_found"
)

var (
	checkoutStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subscription_gate",
		Name:      "checkout_started_total",
		Help:      "Checkout sessions started, by outcome.",
	}, []string{"result"})

	checkoutCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subscription_gate",
		Name:      "checkout_completed_total",
		Help:      "Checkout completion attempts, by outcome.",
	}, []string{"result"})

	providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "subscription_gate",
		Name:      "payment_provider_request_duration_seconds",
		Help:      "Latency of payment provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subscription_gate",
		Name:      "auth_attempts_total",
		Help:      "Login attempts, by outcome.",
	}, []string{"result"})
)

// CheckoutStarted учитывает попытку начать оплату.
func CheckoutStarted(result string) {
	checkoutStarted.WithLabelValues(result).Inc()
}

// CheckoutCompleted учитывает попытку завершить оплату.
func CheckoutCompleted(result string) {
	checkoutCompleted.WithLabelValues(result).Inc()
}

// ObserveProviderCall записывает длительность вызова провайдера.
func ObserveProviderCall(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerRequestDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

// AuthAttempt учитывает попытку входа; success=false для неверных учётных данных.
func AuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttempts.WithLabelValues(result).Inc()
}
