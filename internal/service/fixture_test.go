package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/database"
)

const (
	sellerA  = "seller-a"
	sellerB  = "seller-b"
	buyer    = "buyer-1"
	productA = "product-a"
	productB = "product-b"
)

type fixture struct {
	ctx         context.Context
	store       *repository.Store
	notes       NotificationService
	commissions CommissionService
	orders      OrderLifecycle
	referrals   ReferralService
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	store := repository.NewStore(db)
	ctx := context.Background()
	now := time.Now()
	for _, p := range []*model.Product{
		{ID: productA, SellerID: sellerA, Name: "Tea Set", Slug: "tea-set", CreatedAt: now, UpdatedAt: now},
		{ID: productB, SellerID: sellerB, Name: "Kettle", Slug: "kettle", CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, store.Products.Upsert(ctx, p))
	}

	products := NewProductDirectory(store.Products)
	notes := NewNotificationService(store)
	commissions := NewCommissionService(store, NewRatePolicy(store.Commissions, dec("10")), nil, notes)
	return &fixture{
		ctx:         ctx,
		store:       store,
		notes:       notes,
		commissions: commissions,
		orders:      NewOrderLifecycle(store, products, notes, commissions),
		referrals:   NewReferralService(store, products, NewDeliveredRevenueSource(store.Orders), DefaultReferralPolicy()),
	}
}

// twoSellerOrder is 2 × 10.00 from seller A and 1 × 30.00 from seller B.
func twoSellerOrder() PlaceOrderInput {
	return PlaceOrderInput{
		BuyerID:       buyer,
		Subtotal:      dec("50"),
		Tax:           dec("0"),
		ShippingCost:  dec("5"),
		Discount:      dec("0"),
		Total:         dec("55"),
		PaymentStatus: model.PaymentStatusPaid,
		PaymentMethod: "card",
		Items: []PlaceOrderItem{
			{ProductID: productA, UnitPrice: dec("10"), Quantity: 2},
			{ProductID: productB, UnitPrice: dec("30"), Quantity: 1},
		},
	}
}

func (f *fixture) place(t *testing.T) *model.Order {
	t.Helper()
	order, err := f.orders.PlaceOrder(f.ctx, twoSellerOrder())
	require.NoError(t, err)
	return order
}

// advance walks the order through each status as sellerA.
func (f *fixture) advance(t *testing.T, orderID string, to ...model.OrderStatus) *model.Order {
	t.Helper()
	var (
		order *model.Order
		err   error
	)
	for _, st := range to {
		if st == model.OrderStatusSellerAccepted {
			order, err = f.orders.AcceptOrder(f.ctx, AcceptOrderInput{OrderID: orderID, SellerID: sellerA})
		} else {
			order, err = f.orders.UpdateStatus(f.ctx, UpdateStatusInput{OrderID: orderID, SellerID: sellerA, Status: st})
		}
		require.NoError(t, err, "move to %s", st)
	}
	return order
}

var toDelivered = []model.OrderStatus{
	model.OrderStatusSellerAccepted,
	model.OrderStatusConfirmed,
	model.OrderStatusProcessing,
	model.OrderStatusShipped,
	model.OrderStatusDelivered,
}
