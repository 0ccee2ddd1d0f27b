package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the header and its items in one statement batch.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// ListAccountOrders returns up to limit orders older than cursor, newest first,
// plus the cursor for the following page when more rows exist.
func (r *repository) ListAccountOrders(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]OrderSummary, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Table("orders").
		Select(`orders.id, orders.total, orders.status, orders.created_at,
			(SELECT COALESCE(SUM(order_items.quantity), 0) FROM order_items WHERE order_items.order_id = orders.id) AS item_count`).
		Where("orders.account_id = ?", accountID)
	if cursor != nil {
		query = query.Where("((orders.created_at < ?) OR (orders.created_at = ? AND orders.id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []OrderSummary
	err := query.
		Order("orders.created_at DESC").
		Order("orders.id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, limit, func(o OrderSummary) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// FindAccountOrder loads an order only when it belongs to accountID.
func (r *repository) FindAccountOrder(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", orderID, accountID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindOrderItems returns the order's lines with product names.
func (r *repository) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error) {
	var items []OrderItemDetail
	err := r.db.WithContext(ctx).
		Table("order_items").
		Select("order_items.id, order_items.product_id, COALESCE(products.name, '') AS product_name, order_items.quantity, order_items.unit_price").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Order("product_name ASC").
		Order("order_items.id ASC").
		Scan(&items).Error
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Subtotal = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
	}
	return items, nil
}
