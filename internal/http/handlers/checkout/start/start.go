// Package start реализует HTTP-обработчик начала оплаты.
package start

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/http/response"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/models"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

// RedirectResponse данные для перенаправления на страницу оплаты.
type RedirectResponse struct {
	ID    string `json:"id" example:"cs_test_123"`
	URL   string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_123"`
	State string `json:"state" example:"checkout_pending"`
}

// Service описывает операцию начала оплаты.
type Service interface {
	StartCheckout(ctx context.Context, userID string) (*checkout.Redirect, error)
}

// Handler обрабатывает POST /checkout.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Начать оплату
// @Description Создаёт клиента у провайдера при первой оплате и открывает checkout-сессию.
// @Tags Checkout
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=RedirectResponse} "Сессия создана"
// @Failure 401 {object} response.ErrorResponse "Нет действующей сессии"
// @Failure 404 {object} response.ErrorResponse "Клиент провайдера не найден"
// @Failure 503 {object} response.ErrorResponse "Провайдер недоступен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.start"

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

	redirect, err := h.service.StartCheckout(r.Context(), userUID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCustomerNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("payment customer not found"))
		case errors.Is(err, models.ErrUserNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		case errors.Is(err, models.ErrProviderUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		default:
			log.Error("failed to start checkout", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to start checkout"))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(RedirectResponse{
		ID:    redirect.SessionID,
		URL:   redirect.URL,
		State: string(redirect.State),
	}))
}
