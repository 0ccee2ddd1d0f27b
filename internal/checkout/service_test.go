package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/testutil/dbtest"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	svc     Service
	client  *db.Client
	cart    cart.Service
	store   *cart.MemoryStore
	reg     *prometheus.Registry
	account *models.Account
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox insert failed")
}

type clearFailingCart struct {
	cart.Service
}

func (clearFailingCart) Clear(context.Context, string) error {
	return errors.New("redis timeout")
}

func newHarness(t *testing.T, opts ...func(*ServiceParams)) *harness {
	t.Helper()
	client := dbtest.Open(t)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(client.DB()), client, nil)
	require.NoError(t, err)

	store := cart.NewMemoryStore(time.Hour)
	cartSvc, err := cart.NewService(store, catalogSvc)
	require.NoError(t, err)

	account := &models.Account{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, client.DB().Create(account).Error)

	reg := prometheus.NewRegistry()
	params := ServiceParams{
		Tx:      client,
		Cart:    cartSvc,
		Catalog: catalog.NewRepository(client.DB()),
		Orders:  orders.NewRepository(client.DB()),
		Outbox:  outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Metrics: metrics.NewCheckoutMetrics(reg),
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return &harness{svc: svc, client: client, cart: cartSvc, store: store, reg: reg, account: account}
}

func (h *harness) product(t *testing.T, name, price string) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Description: name, Price: decimal.RequireFromString(price), Stock: 10, Category: "Test"}
	require.NoError(t, h.client.DB().Create(p).Error)
	return p
}

func (h *harness) loggedIn(id string) *session.Record {
	accountID := h.account.ID
	return &session.Record{ID: id, AccountID: &accountID}
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Count(&n).Error)
	return n
}

func (h *harness) counter(t *testing.T, name, reason string) float64 {
	t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if reason == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func gateRedirect(t *testing.T, err error) string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(GateDetails)
	require.True(t, ok, "details %T", typed.Details())
	return details.Redirect
}

func TestSubmitPlacesOrderAtCheckoutPrices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")

	sess := h.loggedIn("sess-1")
	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)
	_, err = h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)

	result, err := h.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("20.00")), "total %s", result.Total)
	assert.Equal(t, 2, result.ItemCount)
	assert.Equal(t, enums.OrderStatusPending, result.Status)

	var order models.Order
	require.NoError(t, h.client.DB().Preload("Items").First(&order, "id = ?", result.OrderID).Error)
	assert.Equal(t, h.account.ID, order.AccountID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))

	entries, err := h.cart.Entries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	var event models.OutboxEvent
	require.NoError(t, h.client.DB().First(&event, "aggregate_id = ?", result.OrderID).Error)
	assert.Equal(t, enums.EventOrderCreated, event.EventType)
	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(event.Payload, &envelope))
	var payload payloads.OrderCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "20.00", payload.Total)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "10.00", payload.Items[0].UnitPrice)

	assert.Equal(t, float64(1), h.counter(t, "storefront_orders_placed_total", ""))
}

func TestSubmitUsesPriceReadDuringCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")
	sess := h.loggedIn("sess-1")

	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Model(&models.Product{}).Where("id = ?", a.ID).
		Update("price", decimal.RequireFromString("12.50")).Error)

	result, err := h.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("12.50")), "total %s", result.Total)
}

func TestSubmitUnauthenticatedLeavesCartUntouched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")
	sess := &session.Record{ID: "anon"}

	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, sess)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, LoginRedirect, gateRedirect(t, err))

	assert.Zero(t, h.count(t, &models.Order{}))
	entries, err := h.cart.Entries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, float64(1), h.counter(t, "storefront_checkout_failures_total", metrics.ReasonUnauthorized))

	_, err = h.svc.Submit(ctx, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestSubmitEmptyCartIsInvalidState(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), h.loggedIn("sess-1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
	assert.Equal(t, CartRedirect, gateRedirect(t, err))
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Equal(t, float64(1), h.counter(t, "storefront_checkout_failures_total", metrics.ReasonEmptyCart))
}

func TestSubmitDropsUnresolvableEntries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")
	b := h.product(t, "B", "4.00")
	sess := h.loggedIn("sess-1")

	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)
	_, err = h.cart.Add(ctx, sess.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Delete(&models.Product{}, "id = ?", b.ID).Error)

	result, err := h.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.True(t, result.Total.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, int64(1), h.count(t, &models.OrderItem{}))
}

func TestSubmitAllUnresolvablePersistsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")
	sess := h.loggedIn("sess-1")

	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)
	require.NoError(t, h.client.DB().Delete(&models.Product{}, "id = ?", a.ID).Error)

	_, err = h.svc.Submit(ctx, sess)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.OutboxEvent{}))

	entries, err := h.store.Entries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, float64(1), h.counter(t, "storefront_checkout_failures_total", metrics.ReasonUnresolved))
}

func TestSubmitRollsBackOnPersistenceFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) { p.Outbox = failingOutbox{} })
	ctx := context.Background()
	a := h.product(t, "A", "10.00")
	sess := h.loggedIn("sess-1")

	_, err := h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx, sess)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Zero(t, h.count(t, &models.Order{}))
	assert.Zero(t, h.count(t, &models.OrderItem{}))

	entries, err := h.cart.Entries(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, float64(1), h.counter(t, "storefront_checkout_failures_total", metrics.ReasonPersistence))
}

func TestSubmitSucceedsWhenCartClearFails(t *testing.T) {
	var cartSvc cart.Service
	h := newHarness(t, func(p *ServiceParams) {
		cartSvc = p.Cart.(cart.Service)
		p.Cart = clearFailingCart{Service: cartSvc}
	})
	ctx := context.Background()
	a := h.product(t, "A", "3.00")
	sess := h.loggedIn("sess-1")

	_, err := cartSvc.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)

	result, err := h.svc.Submit(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.OrderID)
	assert.Equal(t, int64(1), h.count(t, &models.Order{}))
}

func TestPreviewGates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.product(t, "A", "10.00")

	_, err := h.svc.Preview(ctx, &session.Record{ID: "anon"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	sess := h.loggedIn("sess-1")
	_, err = h.svc.Preview(ctx, sess)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	_, err = h.cart.Add(ctx, sess.ID, a.ID)
	require.NoError(t, err)
	view, err := h.svc.Preview(ctx, sess)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("10.00")))
	assert.Zero(t, h.count(t, &models.Order{}))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
