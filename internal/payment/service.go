package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	orderpkg "github.com/novandria/bankgateway/internal/order"
)

// SealedCodec seals outbound payloads and opens sealed responses.
type SealedCodec interface {
	Seal(payload interface{}) (string, error)
	Open(token string, out interface{}) error
}

// GatewayAPI submits one sealed token and returns the sealed response.
type GatewayAPI interface {
	Submit(ctx context.Context, sealedToken string) (string, error)
}

// Service orchestrates a checkout attempt: session short-circuit, request
// build, seal, submit, open, session persist. There is no in-process
// locking; concurrent duplicate submissions are tolerated through the
// idempotent session check.
type Service struct {
	codec    SealedCodec
	gateway  GatewayAPI
	sessions *SessionService
	orders   orderpkg.Repository
	cfg      internal.GatewayConfig
	logger   *slog.Logger
}

func NewService(codec SealedCodec, gw GatewayAPI, sessions *SessionService, orders orderpkg.Repository, cfg internal.GatewayConfig, logger *slog.Logger) *Service {
	return &Service{
		codec:    codec,
		gateway:  gw,
		sessions: sessions,
		orders:   orders,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessPayment returns the redirect URL for an order. An unexpired session
// short-circuits without contacting the gateway; otherwise a fresh request
// (new message id, new timestamp, new salt) goes out.
func (s *Service) ProcessPayment(ctx context.Context, orderNo string, urls URLSet) (*CheckoutResult, error) {
	o, err := s.orders.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}

	if sess, err := s.sessions.Active(ctx, orderNo); err != nil {
		return nil, err
	} else if sess != nil {
		s.logger.Info("reusing unexpired payment session",
			"order_no", orderNo,
			"expires_at", sess.ExpiresAt)
		return &CheckoutResult{
			OrderNo:    orderNo,
			PaymentURL: sess.PaymentURL,
			Reused:     true,
		}, nil
	}

	req, err := BuildPaymentRequest(o, s.cfg, urls)
	if err != nil {
		return nil, err
	}

	token, err := s.codec.Seal(req)
	if err != nil {
		s.logger.Error("failed to seal payment request",
			"error", err,
			"order_no", orderNo,
			"request_message_id", req.RequestMessageID)
		return nil, err
	}

	responseToken, err := s.gateway.Submit(ctx, token)
	if err != nil {
		// transport failure: the order goes to failed and the caller
		// surfaces the failure; a retry must originate a fresh request
		if internal.IsErrorCode(err, internal.ErrCodeTransport) {
			if updateErr := s.orders.UpdateStatus(orderNo, ordermodel.StatusFailed); updateErr != nil {
				s.logger.Error("failed to mark order failed after transport error",
					"error", updateErr, "order_no", orderNo)
			}
		}
		return nil, err
	}

	var resp PaymentResponse
	if err := s.codec.Open(responseToken, &resp); err != nil {
		s.logger.Error("failed to open gateway response",
			"error", err,
			"order_no", orderNo,
			"request_message_id", req.RequestMessageID)
		return nil, err
	}

	if resp.PaymentURL == "" {
		return nil, internal.NewInternalError(
			fmt.Sprintf("gateway response carries no payment URL (result code %q)", resp.ResultCode), nil)
	}

	expiresAt := s.sessionExpiry(resp.ExpiryTime)
	if _, err := s.sessions.Create(ctx, orderNo, resp.PaymentURL, expiresAt); err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		"order_no", orderNo,
		"request_message_id", req.RequestMessageID,
		"session_expires_at", expiresAt)

	return &CheckoutResult{
		OrderNo:    orderNo,
		PaymentURL: resp.PaymentURL,
		Reused:     false,
	}, nil
}

// sessionExpiry prefers the gateway-provided expiry, falling back to the
// configured TTL when the gateway gives none or one already in the past.
func (s *Service) sessionExpiry(expiryTime int64) time.Time {
	fallback := time.Now().UTC().Add(s.cfg.GetSessionTTL())
	if expiryTime <= 0 {
		return fallback
	}
	provided := time.Unix(expiryTime, 0).UTC()
	if !provided.After(time.Now().UTC()) {
		return fallback
	}
	return provided
}
