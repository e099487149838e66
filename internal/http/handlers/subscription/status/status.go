// Package status реализует HTTP-обработчик чтения состояния доступа.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/http/response"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

// SubscriptionResponse состояние доступа пользователя.
type SubscriptionResponse struct {
	Entitled         bool       `json:"entitled"`
	SubscriptionEnd  *time.Time `json:"subscription_end"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	State            string     `json:"state" example:"has_customer"`
}

// Service описывает получение состояния доступа.
type Service interface {
	Status(ctx context.Context, userID string) (*checkout.SubscriptionStatus, error)
}

// Handler обрабатывает GET /me/subscription.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние подписки
// @Description Возвращает, есть ли у пользователя оплаченный доступ и сколько его осталось.
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=SubscriptionResponse} "Состояние доступа"
// @Failure 401 {object} response.ErrorResponse "Нет действующей сессии"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /me/subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("user identification missing"))
		return
	}

	st, err := h.service.Status(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to get subscription status", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to get subscription status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(SubscriptionResponse{
		Entitled:         st.Entitled,
		SubscriptionEnd:  st.SubscriptionEnd,
		RemainingSeconds: int64(st.Remaining / time.Second),
		State:            string(st.State),
	}))
}
