package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	sessionmodel "github.com/novandria/bankgateway/internal/core/datamodel/session"
	"github.com/novandria/bankgateway/internal/core/events"
	"github.com/novandria/bankgateway/internal/payment"
	"github.com/novandria/bankgateway/internal/transport"
)

var _ = Describe("ReturnHandler", func() {
	var (
		handler  *payment.ReturnHandler
		mockRepo *mockOrderRepository
		store    *memorySessionStore
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

		store = newMemorySessionStore()
		store.sessions["ORD-1001"] = &sessionmodel.PaymentSession{
			OrderNo:    "ORD-1001",
			PaymentURL: "https://gateway.example.com/pay/abc123",
			Salt:       "session-salt",
			ExpiresAt:  time.Now().UTC().Add(time.Hour),
		}

		logger := testLogger()
		sessions := payment.NewSessionService(store, logger)
		reconciler := payment.NewReconciler(mockRepo, events.NewEventBus(logger), logger)
		handler = payment.NewReturnHandler(transport.NewBaseHandler(logger), sessions, reconciler, logger)
		recorder = httptest.NewRecorder()
	})

	get := func(params map[string]string) {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/return?"+q.Encode(), nil)
		handler.HandleReturn(recorder, req)
	}

	status := func() string {
		var body map[string]interface{}
		Expect(json.Unmarshal(recorder.Body.Bytes(), &body)).To(Succeed())
		return body["status"].(string)
	}

	Context("when the salt matches the stored session", func() {
		It("should verify a success return without changing the order", func() {
			get(map[string]string{
				"orderNo":       "ORD-1001",
				"transactionID": "TXN-555",
				"salt":          "session-salt",
			})

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(status()).To(Equal("verified"))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))
		})

		It("should cancel the order on the cancel action", func() {
			get(map[string]string{
				"orderNo": "ORD-1001",
				"action":  "cancel",
				"salt":    "session-salt",
			})

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusCancelled))
		})

		It("should fail the order on the fail action", func() {
			get(map[string]string{
				"orderNo": "ORD-1001",
				"action":  "fail",
				"salt":    "session-salt",
			})

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusFailed))
		})
	})

	Context("when the salt does not match", func() {
		It("should refuse without changing the order", func() {
			get(map[string]string{
				"orderNo": "ORD-1001",
				"action":  "cancel",
				"salt":    "guessed-salt",
			})

			Expect(recorder.Code).To(Equal(http.StatusForbidden))
			Expect(status()).To(Equal("refused"))
			Expect(mockRepo.orders["ORD-1001"].Status).To(Equal(ordermodel.StatusPending))
		})
	})

	Context("when no session exists for the order", func() {
		It("should refuse with the same response as a mismatch", func() {
			get(map[string]string{
				"orderNo": "ORD-GHOST",
				"salt":    "session-salt",
			})

			Expect(recorder.Code).To(Equal(http.StatusForbidden))
			Expect(status()).To(Equal("refused"))
		})
	})

	Context("when required parameters are missing", func() {
		It("should refuse without a salt", func() {
			get(map[string]string{"orderNo": "ORD-1001"})

			Expect(recorder.Code).To(Equal(http.StatusForbidden))
			Expect(status()).To(Equal("refused"))
		})

		It("should refuse without an order number", func() {
			get(map[string]string{"salt": "session-salt"})

			Expect(recorder.Code).To(Equal(http.StatusForbidden))
			Expect(status()).To(Equal("refused"))
		})
	})
})
