package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	internalerrors "github.com/novandria/bankgateway/internal"
	ordermodel "github.com/novandria/bankgateway/internal/core/datamodel/order"
	orderpkg "github.com/novandria/bankgateway/internal/order"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) orderpkg.Repository {
	return &OrderRepository{
		db: db,
	}
}

func (r *OrderRepository) GetByOrderNo(orderNo string) (*ordermodel.Order, error) {
	var o ordermodel.Order
	err := r.db.Preload("Items").Preload("Notes").Where("order_no = ?", orderNo).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internalerrors.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) UpdateStatus(orderNo string, status string) error {
	return r.db.Model(&ordermodel.Order{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *OrderRepository) MarkPaid(orderNo string, transactionID string, paidAt time.Time) error {
	return r.db.Model(&ordermodel.Order{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"status":         ordermodel.StatusCompleted,
			"transaction_id": transactionID,
			"paid_at":        paidAt,
			"updated_at":     time.Now(),
		}).Error
}

func (r *OrderRepository) AppendNote(orderNo string, note string) error {
	var o ordermodel.Order
	if err := r.db.Select("id").Where("order_no = ?", orderNo).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return internalerrors.ErrOrderNotFound
		}
		return err
	}
	return r.db.Create(&ordermodel.OrderNote{
		OrderID: o.ID,
		Note:    note,
	}).Error
}
