// Package webhook принимает входящие сообщения от шлюза мессенджера.
//
// Handler передаёт сообщение диспетчеру, отправляет его ответы обратно через
// шлюз и возвращает их же в теле ответа.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/streaming-reseller/internal/http/response"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/dispatcher"
)

// maxBodyBytes предел тела запроса, с учётом файлов импорта.
const maxBodyBytes = 8 << 20

// Dispatcher обработка входящего сообщения.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatcher.Message) []dispatcher.Reply
}

// Sender отправка ответа в чат.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// Result тело успешного ответа.
type Result struct {
	MessageID string             `json:"message_id"`
	Replies   []dispatcher.Reply `json:"replies"`
	Delivered int                `json:"delivered"`
}

// Handler обработчик POST /api/v1/webhook/messages.
type Handler struct {
	log        *slog.Logger
	dispatcher Dispatcher
	sender     Sender
	validate   *validator.Validate
}

// New создаёт Handler. При sender == nil ответы только возвращаются в теле.
func New(log *slog.Logger, d Dispatcher, sender Sender) *Handler {
	return &Handler{
		log:        log,
		dispatcher: d,
		sender:     sender,
		validate:   validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Входящее сообщение
// @Description Передаёт сообщение чата диспетчеру команд и возвращает ответы бота.
// @Tags Webhook
// @Accept  json
// @Produce  json
// @Param request body dispatcher.Message true "Сообщение шлюза"
// @Success 200 {object} response.OKResponse
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Нет токена"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много запросов"
// @Router /webhook/messages [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var msg dispatcher.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		render.Status(r, status)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(msg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	replies := h.dispatcher.Dispatch(r.Context(), msg)

	delivered := 0
	if h.sender != nil {
		for _, reply := range replies {
			if err := h.sender.Send(r.Context(), reply.ChatID, reply.Text); err != nil {
				log.Error("failed to deliver reply", slog.String("chat_id", reply.ChatID), sl.Err(err))
				continue
			}
			delivered++
		}
	}
	if replies == nil {
		replies = []dispatcher.Reply{}
	}

	render.JSON(w, r, response.OKWithData(Result{
		MessageID: msg.ID,
		Replies:   replies,
		Delivered: delivered,
	}))
}
