package payment

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	"github.com/novandria/bankgateway/internal/core/events"
	orderpkg "github.com/novandria/bankgateway/internal/order"
)

// maxMessageAge is how far in the past a notification's iat may lie before
// the message is rejected as stale.
const maxMessageAge = 3600 * time.Second

// Reconciler applies validated notification messages to order state. It is
// safe under at-least-once delivery: settlements are idempotent and terminal
// order states are never regressed by late or duplicate deliveries.
type Reconciler struct {
	orders   orderpkg.Repository
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewReconciler(orders orderpkg.Repository, eventBus *events.EventBus, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		orders:   orders,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

type transitionFunc func(r *Reconciler, ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack

// transitions maps gateway payment-status codes onto order transitions.
// Codes not listed here change nothing and are logged as anomalies.
var transitions = map[string]transitionFunc{
	"PCPS": statusTransition(ordermodel.StatusPending),
	"I":    statusTransition(ordermodel.StatusProcessing),
	"A":    (*Reconciler).applySettlement,
	"S":    (*Reconciler).applySettlement,
	"V":    cancellation("payment voided by gateway"),
	"E":    cancellation("payment rejected with gateway error"),
	"C":    cancellation("payment cancelled by customer"),
	"R":    (*Reconciler).applyRefund,
	"P":    statusTransition(ordermodel.StatusOnHold),
	"F":    (*Reconciler).applyRejection,
}

// terminalAdmits lists the only codes a terminal order may still receive:
// its own duplicates (handled as no-ops by the transition itself) and the
// explicit forward move from completed to refunded. Anything else arriving
// after a terminal state is a late or duplicate delivery and changes nothing.
var terminalAdmits = map[string]map[string]bool{
	ordermodel.StatusCompleted: {"A": true, "S": true, "R": true},
	ordermodel.StatusRefunded:  {"R": true},
	ordermodel.StatusCancelled: {"V": true, "E": true, "C": true},
	ordermodel.StatusFailed:    {"F": true},
}

// Apply validates the notification and drives the matching transition.
// Rejections never mutate order state.
func (r *Reconciler) Apply(ctx context.Context, msg *IPNMessage) *Ack {
	if ack := r.validate(msg); ack != nil {
		return ack
	}

	res := msg.PaymentResult
	o, err := r.orders.GetByOrderNo(res.OrderNo)
	if err != nil {
		if internal.IsErrorCode(err, internal.ErrCodeOrderNotFound) {
			r.logger.Warn("notification references unknown order", "order_no", res.OrderNo)
			return &Ack{StatusCode: http.StatusNotFound, Status: "rejected", Message: "order not found"}
		}
		r.logger.Error("order lookup failed", "error", err, "order_no", res.OrderNo)
		return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "order lookup failed"}
	}

	transition, known := transitions[res.PaymentStatus]
	if !known {
		r.logger.Warn("unrecognized payment status code, no action taken",
			"order_no", res.OrderNo,
			"payment_status", res.PaymentStatus)
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "unrecognized status code"}
	}

	if o.IsTerminal() && !terminalAdmits[o.Status][res.PaymentStatus] {
		r.logger.Info("stale transition ignored for terminal order",
			"order_no", res.OrderNo,
			"order_status", o.Status,
			"payment_status", res.PaymentStatus)
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "order already finalized"}
	}

	return transition(r, ctx, o, res)
}

func (r *Reconciler) validate(msg *IPNMessage) *Ack {
	reject := func(message string) *Ack {
		return &Ack{StatusCode: http.StatusBadRequest, Status: "rejected", Message: message}
	}

	if msg == nil || msg.PaymentResult == nil {
		return reject("paymentResult is required")
	}
	if msg.PaymentResult.OrderNo == "" {
		return reject("paymentResult.orderNo is required")
	}
	if msg.PaymentResult.PaymentStatus == "" {
		return reject("paymentResult.paymentStatus is required")
	}

	now := float64(r.now().UTC().Unix())

	if msg.IssuedAt != nil {
		iat, err := msg.IssuedAt.Float64()
		if err != nil {
			return reject("iat must be numeric")
		}
		if now-iat > maxMessageAge.Seconds() {
			return reject("message is stale")
		}
	}

	if msg.ExpiresAt != nil {
		exp, err := msg.ExpiresAt.Float64()
		if err != nil {
			return reject("exp must be numeric")
		}
		if exp < now {
			return reject("message has expired")
		}
	}

	return nil
}

// statusTransition returns a transition that moves the order to the target
// status, as a no-op when already there.
func statusTransition(target string) transitionFunc {
	return func(r *Reconciler, ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack {
		if o.Status == target {
			return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "no change"}
		}
		if err := r.orders.UpdateStatus(o.OrderNo, target); err != nil {
			r.logger.Error("failed to update order status", "error", err, "order_no", o.OrderNo, "target", target)
			return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "failed to update order"}
		}
		r.logger.Info("order status updated",
			"order_no", o.OrderNo,
			"old_status", o.Status,
			"new_status", target,
			"payment_status", res.PaymentStatus)
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged"}
	}
}

// applySettlement marks the order paid. Idempotent: a duplicate delivery of
// an approved/settled notification leaves the order paid without a second
// settlement note.
func (r *Reconciler) applySettlement(ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack {
	if o.IsPaid() {
		r.logger.Info("duplicate settlement notification, order already paid",
			"order_no", o.OrderNo,
			"payment_status", res.PaymentStatus)
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "already settled"}
	}

	if err := r.orders.MarkPaid(o.OrderNo, res.TransactionID, r.now().UTC()); err != nil {
		r.logger.Error("failed to mark order paid", "error", err, "order_no", o.OrderNo)
		return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "failed to update order"}
	}

	if err := r.orders.AppendNote(o.OrderNo, settlementNote(res)); err != nil {
		r.logger.Error("failed to append settlement note", "error", err, "order_no", o.OrderNo)
	}

	r.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(
		o.OrderNo, res.PaymentStatus, res.TransactionID, o.TotalAmount, o.Currency))

	r.logger.Info("order marked paid",
		"order_no", o.OrderNo,
		"payment_status", res.PaymentStatus,
		"transaction_id", res.TransactionID)

	return &Ack{StatusCode: http.StatusOK, Status: "acknowledged"}
}

// cancellation returns a transition to cancelled with a message selected per
// status code.
func cancellation(reason string) transitionFunc {
	return func(r *Reconciler, ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack {
		if o.Status == ordermodel.StatusCancelled {
			return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "already cancelled"}
		}
		if err := r.orders.UpdateStatus(o.OrderNo, ordermodel.StatusCancelled); err != nil {
			r.logger.Error("failed to cancel order", "error", err, "order_no", o.OrderNo)
			return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "failed to update order"}
		}
		if err := r.orders.AppendNote(o.OrderNo, reason); err != nil {
			r.logger.Error("failed to append cancellation note", "error", err, "order_no", o.OrderNo)
		}

		r.eventBus.Publish(ctx, events.NewPaymentCancelledEvent(o.OrderNo, res.PaymentStatus, reason))

		r.logger.Info("order cancelled",
			"order_no", o.OrderNo,
			"payment_status", res.PaymentStatus,
			"reason", reason)
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged"}
	}
}

func (r *Reconciler) applyRefund(ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack {
	if o.Status == ordermodel.StatusRefunded {
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "already refunded"}
	}
	if err := r.orders.UpdateStatus(o.OrderNo, ordermodel.StatusRefunded); err != nil {
		r.logger.Error("failed to refund order", "error", err, "order_no", o.OrderNo)
		return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "failed to update order"}
	}

	r.logger.Info("order refunded", "order_no", o.OrderNo)
	return &Ack{StatusCode: http.StatusOK, Status: "acknowledged"}
}

func (r *Reconciler) applyRejection(ctx context.Context, o *ordermodel.Order, res *PaymentResult) *Ack {
	if o.Status == ordermodel.StatusFailed {
		return &Ack{StatusCode: http.StatusOK, Status: "acknowledged", Message: "already failed"}
	}
	if err := r.orders.UpdateStatus(o.OrderNo, ordermodel.StatusFailed); err != nil {
		r.logger.Error("failed to fail order", "error", err, "order_no", o.OrderNo)
		return &Ack{StatusCode: http.StatusInternalServerError, Status: "error", Message: "failed to update order"}
	}

	r.eventBus.Publish(ctx, events.NewPaymentFailedEvent(o.OrderNo, res.PaymentStatus, "payment rejected by gateway"))

	r.logger.Info("order failed", "order_no", o.OrderNo, "payment_status", res.PaymentStatus)
	return &Ack{StatusCode: http.StatusOK, Status: "acknowledged"}
}

// ApplyReturn handles the browser return leg after the session salt has been
// verified: a cancel action cancels, a fail action fails, success leaves the
// order to the backend notification. Terminal orders are never regressed.
func (r *Reconciler) ApplyReturn(ctx context.Context, orderNo, action string) error {
	o, err := r.orders.GetByOrderNo(orderNo)
	if err != nil {
		return err
	}

	if o.IsTerminal() {
		r.logger.Info("return-leg action ignored for terminal order",
			"order_no", orderNo,
			"order_status", o.Status,
			"action", action)
		return nil
	}

	switch action {
	case "cancel":
		if err := r.orders.UpdateStatus(orderNo, ordermodel.StatusCancelled); err != nil {
			return err
		}
		r.eventBus.Publish(ctx, events.NewPaymentCancelledEvent(orderNo, "", "payment cancelled by customer"))
	case "fail":
		if err := r.orders.UpdateStatus(orderNo, ordermodel.StatusFailed); err != nil {
			return err
		}
		r.eventBus.Publish(ctx, events.NewPaymentFailedEvent(orderNo, "", "payment failed at gateway"))
	case "":
		// success leg: settlement is confirmed by the backend
		// notification, not the browser redirect
	default:
		return internal.NewValidationError(fmt.Sprintf("unknown return action %q", action), internal.ErrCodeValidationFailed)
	}

	return nil
}

func settlementNote(res *PaymentResult) string {
	note := fmt.Sprintf("payment settled by gateway (status %s)", res.PaymentStatus)
	if res.TransactionID != "" {
		note += fmt.Sprintf(", transaction %s", res.TransactionID)
	}
	if res.CardAuthDetails != nil && res.CardAuthDetails.AuthCode != "" {
		note += fmt.Sprintf(", auth code %s", res.CardAuthDetails.AuthCode)
	}
	return note
}
