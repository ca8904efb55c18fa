package payment_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	"github.com/novandria/bankgateway/internal/core/events"
	"github.com/novandria/bankgateway/internal/payment"
)

// Mock order repository shared by the reconciler, service and handler specs.
type mockOrderRepository struct {
	orders        map[string]*ordermodel.Order
	notes         map[string][]string
	markPaidCalls int
	updateCalls   int
	getError      error
	updateError   error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[string]*ordermodel.Order),
		notes:  make(map[string][]string),
	}
}

func (m *mockOrderRepository) GetByOrderNo(orderNo string) (*ordermodel.Order, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	o, exists := m.orders[orderNo]
	if !exists {
		return nil, internal.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) UpdateStatus(orderNo string, status string) error {
	if m.updateError != nil {
		return m.updateError
	}
	o, exists := m.orders[orderNo]
	if !exists {
		return internal.ErrOrderNotFound
	}
	m.updateCalls++
	o.Status = status
	return nil
}

func (m *mockOrderRepository) MarkPaid(orderNo string, transactionID string, paidAt time.Time) error {
	if m.updateError != nil {
		return m.updateError
	}
	o, exists := m.orders[orderNo]
	if !exists {
		return internal.ErrOrderNotFound
	}
	m.markPaidCalls++
	o.Status = ordermodel.StatusCompleted
	o.TransactionID = &transactionID
	o.PaidAt = &paidAt
	return nil
}

func (m *mockOrderRepository) AppendNote(orderNo string, note string) error {
	m.notes[orderNo] = append(m.notes[orderNo], note)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func jsonNumber(v int64) *json.Number {
	n := json.Number(strconv.FormatInt(v, 10))
	return &n
}

func notification(orderNo, status string) *payment.IPNMessage {
	return &payment.IPNMessage{
		IssuedAt: jsonNumber(time.Now().UTC().Unix()),
		PaymentResult: &payment.PaymentResult{
			OrderNo:       orderNo,
			PaymentStatus: status,
			TransactionID: "TXN-555",
		},
	}
}

var _ = Describe("Reconciler", func() {
	var (
		reconciler *payment.Reconciler
		mockRepo   *mockOrderRepository
		ctx        context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockOrderRepository()
		mockRepo.orders["ORD-1001"] = &ordermodel.Order{
			ID:          1,
			OrderNo:     "ORD-1001",
			Status:      ordermodel.StatusPending,
			TotalAmount: 125.50,
			Currency:    "MVR",
		}
		logger := testLogger()
		reconciler = payment.NewReconciler(mockRepo, events.NewEventBus(logger), logger)
		ctx = context.Background()
	})

	Describe("Apply", func() {
		Context("when the message is structurally invalid", func() {
			It("should reject a message without a payment result", func() {
				ack := reconciler.Apply(ctx, &payment.IPNMessage{})

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(ack.Status).To(Equal("rejected"))
				Expect(mockRepo.updateCalls).To(BeZero())
			})

			It("should reject a message without an order number", func() {
				msg := notification("", "A")

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(mockRepo.markPaidCalls).To(BeZero())
			})

			It("should reject a message without a payment status", func() {
				msg := notification("ORD-1001", "")

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		Context("when the message timestamps are invalid", func() {
			It("should reject a stale message without touching the order", func() {
				msg := notification("ORD-1001", "A")
				msg.IssuedAt = jsonNumber(time.Now().UTC().Add(-2 * time.Hour).Unix())

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(ack.Message).To(ContainSubstring("stale"))
				Expect(mockRepo.markPaidCalls).To(BeZero())
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))
			})

			It("should reject a non-numeric iat claim", func() {
				msg := notification("ORD-1001", "A")
				bad := json.Number("not-a-number")
				msg.IssuedAt = &bad

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(ack.Message).To(ContainSubstring("iat"))
			})

			It("should reject an expired message", func() {
				msg := notification("ORD-1001", "A")
				msg.ExpiresAt = jsonNumber(time.Now().UTC().Add(-time.Minute).Unix())

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(ack.Message).To(ContainSubstring("expired"))
				Expect(mockRepo.markPaidCalls).To(BeZero())
			})

			It("should accept a message with no timestamps at all", func() {
				msg := notification("ORD-1001", "A")
				msg.IssuedAt = nil
				msg.ExpiresAt = nil

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
			})
		})

		Context("when the order cannot be resolved", func() {
			It("should acknowledge with not found", func() {
				msg := notification("ORD-UNKNOWN", "A")

				ack := reconciler.Apply(ctx, msg)

				Expect(ack.StatusCode).To(Equal(http.StatusNotFound))
				Expect(ack.Status).To(Equal("rejected"))
			})
		})

		Context("when a settlement notification arrives", func() {
			It("should mark the order paid with a settlement note", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "A"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Status).To(Equal("acknowledged"))
				Expect(mockRepo.markPaidCalls).To(Equal(1))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))
				Expect(*mockRepo.orders["ORD-1001"].TransactionID).To(Equal("TXN-555"))
				Expect(mockRepo.notes["ORD-1001"]).To(HaveLen(1))
				Expect(mockRepo.notes["ORD-1001"][0]).To(ContainSubstring("TXN-555"))
			})

			It("should settle on the settled code as well as approved", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "S"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))
			})

			It("should treat a duplicate delivery as a no-op", func() {
				first := reconciler.Apply(ctx, notification("ORD-1001", "A"))
				Expect(first.StatusCode).To(Equal(http.StatusOK))

				second := reconciler.Apply(ctx, notification("ORD-1001", "A"))

				Expect(second.StatusCode).To(Equal(http.StatusOK))
				Expect(second.Message).To(ContainSubstring("already settled"))
				Expect(mockRepo.markPaidCalls).To(Equal(1))
				Expect(mockRepo.notes["ORD-1001"]).To(HaveLen(1))
			})
		})

		Context("when an early-stage notification arrives", func() {
			It("should move a pending order to processing", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "I"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusProcessing))
			})

			It("should move a pending order to on-hold", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "P"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusOnHold))
			})

			It("should leave an already-pending order unchanged on PCPS", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "PCPS"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("no change"))
				Expect(mockRepo.updateCalls).To(BeZero())
			})

			It("should never regress a terminal order", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusRefunded

				ack := reconciler.Apply(ctx, notification("ORD-1001", "I"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("already finalized"))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusRefunded))
				Expect(mockRepo.updateCalls).To(BeZero())
			})
		})

		Context("when a late delivery lands on a terminal order", func() {
			It("should not re-credit a refunded order on a duplicate settlement", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusRefunded

				ack := reconciler.Apply(ctx, notification("ORD-1001", "A"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("already finalized"))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusRefunded))
				Expect(mockRepo.markPaidCalls).To(BeZero())
				Expect(mockRepo.notes["ORD-1001"]).To(BeEmpty())
			})

			It("should not cancel a settled order on a late cancellation", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCompleted

				ack := reconciler.Apply(ctx, notification("ORD-1001", "C"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("already finalized"))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))
				Expect(mockRepo.updateCalls).To(BeZero())
			})

			It("should not fail a settled order on a late rejection", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCompleted

				ack := reconciler.Apply(ctx, notification("ORD-1001", "F"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))
				Expect(mockRepo.updateCalls).To(BeZero())
			})

			It("should still allow a settled order to move to refunded", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCompleted

				ack := reconciler.Apply(ctx, notification("ORD-1001", "R"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusRefunded))
			})

			It("should treat a duplicate refund as a no-op", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusRefunded

				ack := reconciler.Apply(ctx, notification("ORD-1001", "R"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("already refunded"))
				Expect(mockRepo.updateCalls).To(BeZero())
			})
		})

		Context("when a cancellation notification arrives", func() {
			It("should cancel on void with a void note", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "V"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCancelled))
				Expect(mockRepo.notes["ORD-1001"][0]).To(ContainSubstring("voided"))
			})

			It("should cancel on gateway error with an error note", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "E"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.notes["ORD-1001"][0]).To(ContainSubstring("error"))
			})

			It("should cancel on customer cancellation with a cancellation note", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "C"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.notes["ORD-1001"][0]).To(ContainSubstring("cancelled by customer"))
			})

			It("should leave an already-cancelled order unchanged", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCancelled

				ack := reconciler.Apply(ctx, notification("ORD-1001", "V"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("already cancelled"))
				Expect(mockRepo.updateCalls).To(BeZero())
			})
		})

		Context("when refund and rejection notifications arrive", func() {
			It("should move the order to refunded", func() {
				mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCompleted

				ack := reconciler.Apply(ctx, notification("ORD-1001", "R"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusRefunded))
			})

			It("should move the order to failed", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "F"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusFailed))
			})
		})

		Context("when the status code is unrecognized", func() {
			It("should acknowledge without changing the order", func() {
				ack := reconciler.Apply(ctx, notification("ORD-1001", "ZZ"))

				Expect(ack.StatusCode).To(Equal(http.StatusOK))
				Expect(ack.Message).To(ContainSubstring("unrecognized"))
				Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))
				Expect(mockRepo.updateCalls).To(BeZero())
			})
		})
	})

	Describe("ApplyReturn", func() {
		It("should cancel the order on the cancel action", func() {
			err := reconciler.ApplyReturn(ctx, "ORD-1001", "cancel")

			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCancelled))
		})

		It("should fail the order on the fail action", func() {
			err := reconciler.ApplyReturn(ctx, "ORD-1001", "fail")

			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusFailed))
		})

		It("should leave the order to the backend notification on success", func() {
			err := reconciler.ApplyReturn(ctx, "ORD-1001", "")

			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))
		})

		It("should never regress a terminal order", func() {
			mockRepo.orders["ORD-1001"].Status = ordermodel.StatusCompleted

			err := reconciler.ApplyReturn(ctx, "ORD-1001", "cancel")

			Expect(err).ToNot(HaveOccurred())
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))
		})

		It("should reject an unknown action", func() {
			err := reconciler.ApplyReturn(ctx, "ORD-1001", "explode")

			Expect(err).To(HaveOccurred())
			Expect(internal.IsErrorCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
		})

		It("should propagate an unknown order", func() {
			err := reconciler.ApplyReturn(ctx, "ORD-NOPE", "cancel")

			Expect(internal.IsErrorCode(err, internal.ErrCodeOrderNotFound)).To(BeTrue())
		})
	})
})
