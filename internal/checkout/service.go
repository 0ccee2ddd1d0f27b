package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartReader interface {
	List(ctx context.Context, sessionID string) (*cart.View, error)
	Entries(ctx context.Context, sessionID string) ([]cart.Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

type productResolver interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service turns a session cart into an order.
type Service interface {
	Preview(ctx context.Context, sess *session.Record) (*cart.View, error)
	Submit(ctx context.Context, sess *session.Record) (*Result, error)
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	Tx      txRunner
	Cart    cartReader
	Catalog *catalog.Repository
	Orders  orders.Repository
	Outbox  outboxPublisher
	Metrics *metrics.CheckoutMetrics
	Logger  *logger.Logger
}

type service struct {
	tx       txRunner
	cart     cartReader
	products func(tx *gorm.DB) productResolver
	orders   orders.Repository
	outbox   outboxPublisher
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	catalogRepo := params.Catalog
	return &service{
		tx:       params.Tx,
		cart:     params.Cart,
		products: func(tx *gorm.DB) productResolver { return catalogRepo.WithTx(tx) },
		orders:   params.Orders,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// Preview runs both gates and returns the priced cart.
func (s *service) Preview(ctx context.Context, sess *session.Record) (*cart.View, error) {
	if err := authGate(sess); err != nil {
		return nil, err
	}
	view, err := s.cart.List(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if view.Empty() {
		return nil, emptyCartError()
	}
	return view, nil
}

// Submit places the order. Prices are read inside the transaction; entries
// whose product no longer exists are dropped. The cart is cleared only after
// the order commits.
func (s *service) Submit(ctx context.Context, sess *session.Record) (*Result, error) {
	started := s.now()
	defer func() { s.metrics.ObserveDuration(time.Since(started)) }()

	if err := authGate(sess); err != nil {
		s.metrics.IncFailure(metrics.ReasonUnauthorized)
		return nil, err
	}
	accountID := *sess.AccountID

	entries, err := s.cart.Entries(ctx, sess.ID)
	if err != nil {
		s.metrics.IncFailure(metrics.ReasonPersistence)
		return nil, err
	}
	if len(entries) == 0 {
		s.metrics.IncFailure(metrics.ReasonEmptyCart)
		return nil, emptyCartError()
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ProductID)
		}
		products, err := s.products(tx).FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(entries))
		total := decimal.Zero
		for _, e := range entries {
			p, ok := products[e.ProductID]
			if !ok || e.Quantity <= 0 {
				continue
			}
			items = append(items, models.OrderItem{
				ProductID: p.ID,
				Quantity:  e.Quantity,
				UnitPrice: p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "none of the cart items are available").
				WithDetails(GateDetails{Redirect: CartRedirect})
		}

		created, err := s.orders.WithTx(tx).CreateOrder(ctx, &models.Order{
			AccountID: accountID,
			Total:     total,
			Status:    enums.OrderStatusPending,
			Items:     items,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return err
		}
		order = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{AccountID: accountID, SessionID: sess.ID},
			Data:          orderCreatedPayload(created),
			OccurredAt:    created.CreatedAt,
		})
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeInvalidState) {
			s.metrics.IncFailure(metrics.ReasonUnresolved)
			return nil, err
		}
		s.metrics.IncFailure(metrics.ReasonPersistence)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
	}

	if err := s.cart.Clear(ctx, sess.ID); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"error":    err.Error(),
		}), "cart clear failed after checkout")
	}

	s.metrics.IncPlaced()
	result := &Result{
		OrderID:   order.ID,
		Total:     order.Total,
		ItemCount: itemCount(order.Items),
		Status:    order.Status,
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"total":      order.Total.StringFixed(2),
		"item_count": result.ItemCount,
	}), "order placed")
	return result, nil
}

func authGate(sess *session.Record) error {
	if !sess.Authenticated() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "login required to check out").
			WithDetails(GateDetails{Redirect: LoginRedirect})
	}
	return nil
}

func emptyCartError() error {
	return pkgerrors.New(pkgerrors.CodeInvalidState, "cart is empty").
		WithDetails(GateDetails{Redirect: CartRedirect})
}

func itemCount(items []models.OrderItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	items := make([]payloads.OrderCreatedItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, payloads.OrderCreatedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:   order.ID,
		AccountID: order.AccountID,
		Total:     order.Total.StringFixed(2),
		Status:    order.Status.String(),
		Items:     items,
	}
}
