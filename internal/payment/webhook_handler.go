package payment

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/novandria/bankgateway/internal"
	"github.com/novandria/bankgateway/internal/transport"
)

// WebhookHandler receives the bank's asynchronous payment notifications.
// The body is normally a sealed token; after a failed sealed decode the
// handler falls back once to treating the body as plain JSON before giving
// up. Failure responses never leak internal detail.
type WebhookHandler struct {
	*transport.BaseHandler
	codec      SealedCodec
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, codec SealedCodec, reconciler *Reconciler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		codec:       codec,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// HandleNotification handles POST /api/v1/payment/callback
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		h.logger.Error("notification body unreadable", "error", err)
		h.WriteJSON(w, http.StatusBadRequest, Ack{Status: "rejected", Message: "empty body"})
		return
	}

	msg, decodeErr := h.decode(body)
	if decodeErr != nil {
		h.logger.Warn("notification could not be decoded",
			"error", decodeErr,
			"body_length", len(body))
		h.WriteJSON(w, http.StatusBadRequest, Ack{Status: "rejected", Message: "invalid notification"})
		return
	}

	ctx, cancel := internal.WithTimeout(r.Context(), 0)
	defer cancel()

	ack := h.reconciler.Apply(ctx, msg)

	h.logger.Info("notification processed",
		"status_code", ack.StatusCode,
		"status", ack.Status,
		"message", ack.Message)

	h.WriteJSON(w, ack.StatusCode, ack)
}

// decode tries the sealed token first, then falls back once to plain JSON.
func (h *WebhookHandler) decode(body []byte) (*IPNMessage, error) {
	var msg IPNMessage

	sealedErr := h.codec.Open(string(body), &msg)
	if sealedErr == nil {
		return &msg, nil
	}

	h.logger.Warn("sealed decode failed, attempting plain JSON fallback", "error", sealedErr)

	msg = IPNMessage{}
	if jsonErr := json.Unmarshal(body, &msg); jsonErr != nil {
		// report the sealed failure; it is the primary path
		return nil, sealedErr
	}

	return &msg, nil
}
