// Package order defines the explicit repository boundary to the host
// platform's order store. The reconciliation engine only ever requests
// transitions through this interface; it never owns order status itself.
package order

import (
	"time"

	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
)

type Repository interface {
	// GetByOrderNo returns internal.ErrOrderNotFound when the order
	// cannot be resolved.
	GetByOrderNo(orderNo string) (*ordermodel.Order, error)
	UpdateStatus(orderNo string, status string) error
	// MarkPaid sets the completed status, transaction id and paid
	// timestamp in one update.
	MarkPaid(orderNo string, transactionID string, paidAt time.Time) error
	AppendNote(orderNo string, note string) error
}
