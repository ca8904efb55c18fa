package order

import (
	"time"
)

// Order statuses are owned by the host platform's order store; this core
// only requests transitions between them.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusOnHold     = "on-hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

// TerminalStatuses are never overwritten by earlier-stage notification
// codes once reached.
var TerminalStatuses = map[string]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusRefunded:  true,
	StatusFailed:    true,
}

type Order struct {
	ID            int64       `gorm:"primaryKey"`
	OrderNo       string      `gorm:"column:order_no;not null;uniqueIndex"`
	Status        string      `gorm:"column:status;default:pending"`
	TotalAmount   float64     `gorm:"column:total_amount;not null"`
	Currency      string      `gorm:"column:currency;not null"`
	TransactionID *string     `gorm:"column:transaction_id"`
	PaidAt        *time.Time  `gorm:"column:paid_at"`
	Items         []OrderItem `gorm:"foreignKey:OrderID"`
	Notes         []OrderNote `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time   `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time   `gorm:"column:updated_at;default:now()"`
}

type OrderItem struct {
	ID          int64   `gorm:"primaryKey"`
	OrderID     int64   `gorm:"column:order_id;not null;index"`
	ReferenceNo string  `gorm:"column:reference_no"`
	Description string  `gorm:"column:description"`
	Price       float64 `gorm:"column:price;not null"`
	Quantity    int     `gorm:"column:quantity;default:1"`
}

type OrderNote struct {
	ID        int64     `gorm:"primaryKey"`
	OrderID   int64     `gorm:"column:order_id;not null;index"`
	Note      string    `gorm:"column:note;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

// IsTerminal reports whether the order has reached a state that must not
// be regressed by out-of-order notification deliveries.
func (o *Order) IsTerminal() bool {
	return TerminalStatuses[o.Status]
}

func (o *Order) IsPaid() bool {
	return o.Status == StatusCompleted
}
