// Package complete реализует HTTP-обработчик возврата пользователя после оплаты.
// Идентификатор сессии берётся из session_id, а для Paddle из _ptxn.
package complete

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

const (
	querySessionID   = "session_id"
	queryPaddleTxnID = "_ptxn"
)

// ResultResponse результат проверки оплаты.
type ResultResponse struct {
	State           string    `json:"state" example:"verified"`
	SessionID       string    `json:"session_id" example:"cs_test_123"`
	SubscriptionEnd time.Time `json:"subscription_end"`
}

// Service описывает операцию завершения оплаты.
type Service interface {
	CompleteCheckout(ctx context.Context, userID, sessionRef string) (*checkout.Result, error)
}

// Handler обрабатывает GET /checkout/complete.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Завершить оплату
// @Description Проверяет у провайдера, что сессия оплачена и принадлежит пользователю, и продлевает доступ.
// @Tags Checkout
// @Produce  json
// @Security BearerAuth
// @Param session_id query string false "Идентификатор checkout-сессии"
// @Param _ptxn query string false "Идентификатор транзакции Paddle"
// @Success 200 {object} response.Response{data=ResultResponse} "Доступ продлён"
// @Failure 400 {object} response.ErrorResponse "Нет идентификатора сессии"
// @Failure 401 {object} response.ErrorResponse "Нет действующей сессии"
// @Failure 402 {object} response.ErrorResponse "Оплата не подтверждена"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена"
// @Failure 503 {object} response.ErrorResponse "Провайдер недоступен"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /checkout/complete [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.checkout.complete"

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

	query := r.URL.Query()
	sessionRef := query.Get(querySessionID)
	if sessionRef == "" {
		sessionRef = query.Get(queryPaddleTxnID)
	}

	result, err := h.service.CompleteCheckout(r.Context(), userUID, sessionRef)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidReturn):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("checkout session id is missing"))
		case errors.Is(err, models.ErrVerificationFailed):
			log.Info("payment not verified", sl.Err(err))
			render.Status(r, http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("payment not verified"))
		case errors.Is(err, models.ErrSessionNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("checkout session not found"))
		case errors.Is(err, models.ErrUserNotFound):
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		case errors.Is(err, models.ErrProviderUnavailable):
			log.Error("payment provider unavailable", sl.Err(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("payment provider unavailable"))
		default:
			log.Error("failed to complete checkout", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to complete checkout"))
		}
		return
	}

	render.JSON(w, r, response.StatusOKWithData(ResultResponse{
		State:           string(result.State),
		SessionID:       result.SessionID,
		SubscriptionEnd: result.SubscriptionEnd,
	}))
}
