// Package logout реализует HTTP-обработчик завершения сессии.
// Маршрут не закрыт JWTMiddleware: выход с уже завершённой сессией отвечает 200.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/http/response"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
)

// Service описывает завершение сессии.
type Service interface {
	EndSession(ctx context.Context, token string) error
}

// Handler обрабатывает выход из системы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик выхода.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход из системы
// @Description Завершает текущую сессию. Повторный выход не является ошибкой.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Сессия завершена"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /logout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	token, ok := middlewarectx.BearerToken(r)
	if !ok {
		render.JSON(w, r, response.OK())
		return
	}

	if err := h.service.EndSession(r.Context(), token); err != nil {
		log.Error("failed to end session", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to logout"))
		return
	}

	render.JSON(w, r, response.OK())
}
