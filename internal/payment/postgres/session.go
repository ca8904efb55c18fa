package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	sessionmodel "github.com/novandria/bankgateway/internal/core/datamodel/session"
	paymentpkg "github.com/novandria/bankgateway/internal/payment"
)

type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) paymentpkg.SessionStore {
	return &SessionStore{
		db: db,
	}
}

func (r *SessionStore) Get(ctx context.Context, orderNo string) (*sessionmodel.PaymentSession, error) {
	var s sessionmodel.PaymentSession
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SessionStore) Save(ctx context.Context, s *sessionmodel.PaymentSession) error {
	// one session per order; a save replaces whatever row is there
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_no"}},
		UpdateAll: true,
	}).Create(s).Error
}

func (r *SessionStore) Delete(ctx context.Context, orderNo string) error {
	return r.db.WithContext(ctx).Where("order_no = ?", orderNo).Delete(&sessionmodel.PaymentSession{}).Error
}
