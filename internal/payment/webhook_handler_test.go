package payment_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	"github.com/novandria/bankgateway/internal/core/events"
	"github.com/novandria/bankgateway/internal/payment"
	"github.com/novandria/bankgateway/internal/transport"
)

// notificationCodec plays the inbound half of a sealed codec: Open yields a
// canned message or fails so the handler falls back to plain JSON.
type notificationCodec struct {
	message *payment.IPNMessage
	openErr error
}

func (c *notificationCodec) Seal(payload interface{}) (string, error) {
	return "", nil
}

func (c *notificationCodec) Open(token string, out interface{}) error {
	if c.openErr != nil {
		return c.openErr
	}
	msg, ok := out.(*payment.IPNMessage)
	if !ok {
		return internal.NewInternalError("unexpected open target", nil)
	}
	*msg = *c.message
	return nil
}

var _ = Describe("WebhookHandler", func() {
	var (
		handler  *payment.WebhookHandler
		codec    *notificationCodec
		mockRepo *mockOrderRepository
		recorder *httptest.ResponseRecorder
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
		reconciler := payment.NewReconciler(mockRepo, events.NewEventBus(logger), logger)
		codec = &notificationCodec{message: notification("ORD-1001", "A")}
		handler = payment.NewWebhookHandler(transport.NewBaseHandler(logger), codec, reconciler, logger)
		recorder = httptest.NewRecorder()
	})

	post := func(body []byte) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/callback", bytes.NewReader(body))
		handler.HandleNotification(recorder, req)
	}

	Context("when the body is a sealed token", func() {
		It("should decode it and apply the transition", func() {
			post([]byte("sealed-token"))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCompleted))

			var ack payment.Ack
			Expect(json.Unmarshal(recorder.Body.Bytes(), &ack)).To(Succeed())
			Expect(ack.Status).To(Equal("acknowledged"))
		})
	})

	Context("when the sealed decode fails but the body is plain JSON", func() {
		It("should fall back once and apply the transition", func() {
			codec.openErr = internal.NewMalformedTokenError("token cannot be parsed", nil)
			body, err := json.Marshal(notification("ORD-1001", "C"))
			Expect(err).ToNot(HaveOccurred())

			post(body)

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCancelled))
		})
	})

	Context("when neither decode succeeds", func() {
		It("should reject without touching any order", func() {
			codec.openErr = internal.NewMalformedTokenError("token cannot be parsed", nil)

			post([]byte("%%% not json, not jose %%%"))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))

			var ack payment.Ack
			Expect(json.Unmarshal(recorder.Body.Bytes(), &ack)).To(Succeed())
			Expect(ack.Status).To(Equal("rejected"))
		})
	})

	Context("when the body is empty", func() {
		It("should reject with bad request", func() {
			post(nil)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("when the notification references an unknown order", func() {
		It("should answer not found", func() {
			codec.message = notification("ORD-GHOST", "A")

			post([]byte("sealed-token"))

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})
})
