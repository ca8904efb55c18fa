package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypePaymentCancelled = "payment.cancelled"
)

type PaymentCompletedEvent struct {
	BaseEvent
	OrderNo       string  `json:"order_no"`
	StatusCode    string  `json:"status_code"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

func NewPaymentCompletedEvent(orderNo, statusCode, transactionID string, amount float64, currency string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_no":       orderNo,
				"status_code":    statusCode,
				"transaction_id": transactionID,
				"amount":         amount,
				"currency":       currency,
			},
		},
		OrderNo:       orderNo,
		StatusCode:    statusCode,
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      currency,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	OrderNo    string `json:"order_no"`
	StatusCode string `json:"status_code"`
	Reason     string `json:"reason"`
}

func NewPaymentFailedEvent(orderNo, statusCode, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_no":    orderNo,
				"status_code": statusCode,
				"reason":      reason,
			},
		},
		OrderNo:    orderNo,
		StatusCode: statusCode,
		Reason:     reason,
	}
}

type PaymentCancelledEvent struct {
	BaseEvent
	OrderNo    string `json:"order_no"`
	StatusCode string `json:"status_code"`
	Reason     string `json:"reason"`
}

func NewPaymentCancelledEvent(orderNo, statusCode, reason string) *PaymentCancelledEvent {
	return &PaymentCancelledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCancelled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_no":    orderNo,
				"status_code": statusCode,
				"reason":      reason,
			},
		},
		OrderNo:    orderNo,
		StatusCode: statusCode,
		Reason:     reason,
	}
}
