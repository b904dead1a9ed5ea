package postgres

import (
	"time"

	"github.com/lalunalounge/restaurant-ordering/internal/core/datamodel/order"
	paymentpkg "github.com/lalunalounge/restaurant-ordering/internal/payment"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) paymentpkg.RepositoryAPI {
	return &OrderRepository{
		db: db,
	}
}

func (r *OrderRepository) GetOrderByID(id string) (*order.Order, error) {
	var o order.Order
	err := r.db.Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SetCheckoutIssued stamps the merchant payment id on the order and moves it
// to awaiting_confirmation, but only while the order is still in one of the
// given statuses. Returns false when a concurrent transition got there first.
func (r *OrderRepository) SetCheckoutIssued(orderID, mPaymentID string, from []string) (bool, error) {
	res := r.db.Model(&order.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(map[string]interface{}{
			"status":       order.StatusAwaitingConfirmation,
			"m_payment_id": mPaymentID,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) MarkPaid(orderID, gatewayPaymentID string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&order.Order{}).
		Where("id = ? AND status IN ?", orderID, []string{order.StatusPending, order.StatusAwaitingConfirmation}).
		Updates(map[string]interface{}{
			"status":             order.StatusPaid,
			"gateway_payment_id": gatewayPaymentID,
			"paid_at":            now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) MarkFailed(orderID string) (bool, error) {
	res := r.db.Model(&order.Order{}).
		Where("id = ? AND status IN ?", orderID, []string{order.StatusPending, order.StatusAwaitingConfirmation}).
		Updates(map[string]interface{}{
			"status":     order.StatusFailed,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) CreateNotification(n *order.PaymentNotification) error {
	return r.db.Create(n).Error
}

// DecrementStock reduces menu item stock by the quantities on the order's
// line items. Called once per order, gated by the paid transition.
func (r *OrderRepository) DecrementStock(orderID string) error {
	return r.db.Exec(`
		UPDATE menu_items
		SET stock = menu_items.stock - order_items.quantity
		FROM order_items
		WHERE order_items.menu_item_id = menu_items.id
		  AND order_items.order_id = ?`, orderID).Error
}
