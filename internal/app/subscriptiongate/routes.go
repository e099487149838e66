// Package subscriptiongate собирает HTTP-приложение сервиса.
package subscriptiongate

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/checkout/complete"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/checkout/start"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/subscription/health"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/subscription/premium"
	"github.com/magabrotheeeer/subscription-gate/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
)

// AuthService операции аутентификации, нужные маршрутам.
type AuthService interface {
	register.Service
	login.Service
	logout.Service
	middlewarectx.Service
}

// CheckoutService операции оплаты и чтения доступа.
type CheckoutService interface {
	start.Service
	complete.Service
	status.Service
}

// Services зависимости маршрутов.
type Services struct {
	Auth     AuthService
	Checkout CheckoutService
	Limiter  *middlewarectx.IPRateLimiter
	Health   map[string]health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, svc.Health).ServeHTTP)

		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, svc.Limiter))
			r.Post("/register", register.New(logger, svc.Auth).ServeHTTP)
			r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)
		})

		// Выход идемпотентен, поэтому живёт вне JWT-группы
		r.Post("/logout", logout.New(logger, svc.Auth).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Post("/checkout", start.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/checkout/complete", complete.New(logger, svc.Checkout).ServeHTTP)
			r.Get("/me/subscription", status.New(logger, svc.Checkout).ServeHTTP)

			r.With(middlewarectx.EntitlementMiddleware(logger, svc.Checkout)).
				Get("/premium", premium.New(logger).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
