package session

import (
	"time"
)

// PaymentSession is the short-lived per-order payment record that prevents
// duplicate gateway calls. The salt is generated once per session and is the
// only trust anchor for the browser return leg; a new session always gets a
// new salt.
type PaymentSession struct {
	ID         int64     `gorm:"primaryKey"`
	OrderNo    string    `gorm:"column:order_no;not null;uniqueIndex"`
	PaymentURL string    `gorm:"column:payment_url;not null"`
	Salt       string    `gorm:"column:salt;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;default:now()"`
}

// Expired compares against now using UTC-normalized times.
func (s *PaymentSession) Expired(now time.Time) bool {
	return !now.UTC().Before(s.ExpiresAt.UTC())
}
