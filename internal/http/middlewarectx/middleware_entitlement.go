package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-gate/internal/http/response"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

// StatusService определяет интерфейс для получения состояния доступа.
type StatusService interface {
	Status(ctx context.Context, userUID string) (*checkout.SubscriptionStatus, error)
}

// EntitlementMiddleware пропускает только пользователей с действующим оплаченным доступом.
// Должен стоять после JWTMiddleware.
func EntitlementMiddleware(log *slog.Logger, statusService StatusService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.EntitlementMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := UserUIDFrom(r.Context())
			if !ok {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			status, err := statusService.Status(r.Context(), userUID)
			if err != nil {
				if errors.Is(err, models.ErrUserNotFound) {
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("user not found"))
					return
				}
				log.Error("failed to get subscription status", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}

			if !status.Entitled {
				log.Info("no active subscription, access denied", slog.String("user_uid", userUID))
				render.Status(r, http.StatusPaymentRequired)
				render.JSON(w, r, response.Error("active subscription required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
