package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	internalerrors "github.com/novandria/bankgateway/internal"
	"github.com/novandria/bankgateway/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Logger  *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Logger:      logger,
	}
}

type CheckoutRequest struct {
	OrderNo    string `json:"order_no"`
	SuccessURL string `json:"success_url"`
	FailURL    string `json:"fail_url"`
	CancelURL  string `json:"cancel_url"`
	BackendURL string `json:"backend_url"`
}

// Checkout handles POST /api/v1/payment/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("Checkout: failed to parse request body", "error", err)
		h.HandleError(w, internalerrors.NewValidationError("invalid request body", internalerrors.ErrCodeValidationFailed))
		return
	}

	if req.OrderNo == "" {
		h.HandleError(w, internalerrors.NewValidationError("order_no is required", internalerrors.ErrCodeValidationFailed))
		return
	}

	result, err := h.Service.ProcessPayment(r.Context(), req.OrderNo, URLSet{
		Success: req.SuccessURL,
		Fail:    req.FailURL,
		Cancel:  req.CancelURL,
		Backend: req.BackendURL,
	})
	if err != nil {
		h.Logger.Error("Checkout: service error", "error", err, "order_no", req.OrderNo)
		h.HandleError(w, err)
		return
	}

	h.Logger.Info("Checkout: payment session ready",
		"order_no", result.OrderNo,
		"reused", result.Reused)

	h.WriteJSON(w, http.StatusOK, result)
}
