package payment

import (
	"log/slog"
	"net/http"

	"github.com/novandria/bankgateway/internal/transport"
)

// ReturnHandler consumes the browser return leg forwarded by the host
// platform's router. The session salt is the only trust anchor: a mismatch
// is a security event, never mutates order state, and the response does not
// reveal which check failed.
type ReturnHandler struct {
	*transport.BaseHandler
	sessions   *SessionService
	reconciler *Reconciler
	logger     *slog.Logger
}

func NewReturnHandler(baseHandler *transport.BaseHandler, sessions *SessionService, reconciler *Reconciler, logger *slog.Logger) *ReturnHandler {
	return &ReturnHandler{
		BaseHandler: baseHandler,
		sessions:    sessions,
		reconciler:  reconciler,
		logger:      logger,
	}
}

type returnAck struct {
	Status  string `json:"status"`
	OrderNo string `json:"order_no,omitempty"`
	Action  string `json:"action,omitempty"`
}

// HandleReturn handles GET /api/v1/payment/return
func (h *ReturnHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderNo := q.Get("orderNo")
	transactionID := q.Get("transactionID")
	action := q.Get("action")
	salt := q.Get("salt")

	if orderNo == "" || salt == "" {
		h.WriteJSON(w, http.StatusForbidden, returnAck{Status: "refused"})
		return
	}

	ok, err := h.sessions.VerifySalt(r.Context(), orderNo, salt)
	if err != nil {
		h.logger.Error("return-leg session lookup failed", "error", err, "order_no", orderNo)
		h.WriteJSON(w, http.StatusForbidden, returnAck{Status: "refused"})
		return
	}
	if !ok {
		// security event: guessed or replayed return URL
		h.logger.Error("return-leg salt mismatch",
			"order_no", orderNo,
			"transaction_id", transactionID,
			"remote_addr", r.RemoteAddr)
		h.WriteJSON(w, http.StatusForbidden, returnAck{Status: "refused"})
		return
	}

	if err := h.reconciler.ApplyReturn(r.Context(), orderNo, action); err != nil {
		h.logger.Error("return-leg transition failed", "error", err, "order_no", orderNo, "action", action)
		h.HandleError(w, err)
		return
	}

	h.logger.Info("return leg processed",
		"order_no", orderNo,
		"action", action,
		"transaction_id", transactionID)

	h.WriteJSON(w, http.StatusOK, returnAck{
		Status:  "verified",
		OrderNo: orderNo,
		Action:  action,
	})
}
