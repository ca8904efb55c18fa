package payment

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	sessionmodel "github.com/novandria/bankgateway/internal/core/datamodel/session"
)

// saltBytes is the entropy behind each session salt; the salt is the only
// trust anchor for the browser return leg.
const saltBytes = 32

// SessionStore persists the per-order idempotent payment session.
// Implementations: GORM (postgres/sqlite) and Redis.
type SessionStore interface {
	// Get returns (nil, nil) when no session exists for the order.
	Get(ctx context.Context, orderNo string) (*sessionmodel.PaymentSession, error)
	Save(ctx context.Context, s *sessionmodel.PaymentSession) error
	Delete(ctx context.Context, orderNo string) error
}

// SessionService owns session reuse and expiry semantics: an unexpired
// session short-circuits a new gateway call; an expired session is
// invalidated before a new one is created, never silently extended.
type SessionService struct {
	store  SessionStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSessionService(store SessionStore, logger *slog.Logger) *SessionService {
	return &SessionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Active returns the unexpired session for the order, or nil. An expired
// session found here is deleted before returning.
func (s *SessionService) Active(ctx context.Context, orderNo string) (*sessionmodel.PaymentSession, error) {
	sess, err := s.store.Get(ctx, orderNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(s.now()) {
		s.logger.Info("payment session expired, invalidating",
			"order_no", orderNo,
			"expired_at", sess.ExpiresAt)
		if err := s.store.Delete(ctx, orderNo); err != nil {
			return nil, fmt.Errorf("failed to invalidate expired session: %w", err)
		}
		return nil, nil
	}

	return sess, nil
}

// Create stores a fresh session with a newly generated salt. Any prior
// session for the order must already have been invalidated.
func (s *SessionService) Create(ctx context.Context, orderNo, paymentURL string, expiresAt time.Time) (*sessionmodel.PaymentSession, error) {
	salt, err := newSecureSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session salt: %w", err)
	}

	sess := &sessionmodel.PaymentSession{
		OrderNo:    orderNo,
		PaymentURL: paymentURL,
		Salt:       salt,
		ExpiresAt:  expiresAt.UTC(),
		CreatedAt:  s.now().UTC(),
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store payment session: %w", err)
	}

	s.logger.Info("payment session created",
		"order_no", orderNo,
		"expires_at", sess.ExpiresAt)

	return sess, nil
}

func (s *SessionService) Invalidate(ctx context.Context, orderNo string) error {
	return s.store.Delete(ctx, orderNo)
}

// VerifySalt compares the supplied salt against the stored session salt in
// constant time. Returns false when no session exists.
func (s *SessionService) VerifySalt(ctx context.Context, orderNo, supplied string) (bool, error) {
	sess, err := s.store.Get(ctx, orderNo)
	if err != nil {
		return false, fmt.Errorf("failed to load payment session: %w", err)
	}
	if sess == nil {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(sess.Salt), []byte(supplied)) == 1, nil
}

func newSecureSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
