package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	ListAccountOrders(ctx context.Context, accountID uuid.UUID, limit int, cursor *pagination.Cursor) ([]OrderSummary, *pagination.Cursor, error)
	FindAccountOrder(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error)
	FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error)
}
