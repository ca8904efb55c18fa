// Package rediscache provides a Redis-backed SessionStore, useful when the
// merchant runs several stateless instances behind one storefront.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	sessionmodel "github.com/novandria/bankgateway/internal/core/datamodel/session"
	paymentpkg "github.com/novandria/bankgateway/internal/payment"
)

type SessionStore struct {
	client      *redis.Client
	serviceName string
}

func NewSessionStore(addr, serviceName string) paymentpkg.SessionStore {
	return &SessionStore{
		client:      redis.NewClient(&redis.Options{Addr: addr}),
		serviceName: serviceName,
	}
}

func (r *SessionStore) Get(ctx context.Context, orderNo string) (*sessionmodel.PaymentSession, error) {
	raw, err := r.client.Get(ctx, r.key(orderNo)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s sessionmodel.PaymentSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("corrupt session record for order %s: %w", orderNo, err)
	}
	return &s, nil
}

func (r *SessionStore) Save(ctx context.Context, s *sessionmodel.PaymentSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}

	// the record expires with the session itself; expiry semantics still
	// live in the session service, the TTL just garbage-collects
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return r.client.Set(ctx, r.key(s.OrderNo), raw, ttl).Err()
}

func (r *SessionStore) Delete(ctx context.Context, orderNo string) error {
	return r.client.Del(ctx, r.key(orderNo)).Err()
}

func (r *SessionStore) key(orderNo string) string {
	return fmt.Sprintf("%s:session:%s", r.serviceName, orderNo)
}
