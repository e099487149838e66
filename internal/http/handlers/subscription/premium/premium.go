// Package premium отдаёт содержимое, доступное только с оплаченным доступом.
// Роут закрыт EntitlementMiddleware.
package premium

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-gate/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-gate/internal/http/response"
)

// Content ответ закрытого роута.
type Content struct {
	Message string `json:"message" example:"welcome to premium"`
	UserUID string `json:"user_uid"`
}

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Закрытое содержимое
// @Tags Subscription
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=Content}
// @Failure 401 {object} response.ErrorResponse "Нет действующей сессии"
// @Failure 402 {object} response.ErrorResponse "Нужна активная подписка"
// @Router /premium [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userUID, _ := middlewarectx.UserUIDFrom(r.Context())

	h.log.Debug("premium content served",
		slog.String("user_uid", userUID),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	render.JSON(w, r, response.StatusOKWithData(Content{
		Message: "welcome to premium",
		UserUID: userUID,
	}))
}
