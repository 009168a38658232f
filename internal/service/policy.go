package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/d60-Lab/market-ledger/internal/repository"
)

// ProductInfo is the part of a catalog product the ledger snapshots.
type ProductInfo struct {
	ID       string
	SellerID string
	Name     string
	Slug     string
}

// ProductDirectory resolves products to their owning seller at placement time.
type ProductDirectory interface {
	Lookup(ctx context.Context, productIDs []string) (map[string]ProductInfo, error)
}

type storeProductDirectory struct {
	products repository.ProductRepository
}

func NewProductDirectory(products repository.ProductRepository) ProductDirectory {
	return &storeProductDirectory{products: products}
}

func (d *storeProductDirectory) Lookup(ctx context.Context, productIDs []string) (map[string]ProductInfo, error) {
	rows, err := d.products.GetByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ProductInfo, len(rows))
	for id, p := range rows {
		out[id] = ProductInfo{ID: p.ID, SellerID: p.SellerID, Name: p.Name, Slug: p.Slug}
	}
	return out, nil
}

// RatePolicy resolves the platform commission rate (percent) for a seller.
type RatePolicy interface {
	RateFor(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

// tableRatePolicy 先查卖家费率覆盖表，没有则使用默认费率
type tableRatePolicy struct {
	commissions repository.CommissionRepository
	defaultRate decimal.Decimal
}

func NewRatePolicy(commissions repository.CommissionRepository, defaultRate decimal.Decimal) RatePolicy {
	return &tableRatePolicy{commissions: commissions, defaultRate: defaultRate}
}

func (p *tableRatePolicy) RateFor(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	row, err := p.commissions.GetSellerRate(ctx, sellerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return p.defaultRate, nil
		}
		return decimal.Zero, err
	}
	return row.Rate, nil
}

// FlatRate applies one rate to every seller.
type FlatRate decimal.Decimal

func (r FlatRate) RateFor(context.Context, string) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}

// RevenueSource reports a seller's cumulative revenue for seller-account referral accrual.
type RevenueSource interface {
	SellerRevenue(ctx context.Context, sellerID string) (decimal.Decimal, error)
}

type deliveredRevenue struct {
	orders repository.OrderRepository
}

// NewDeliveredRevenueSource sums the seller's line totals on delivered orders.
func NewDeliveredRevenueSource(orders repository.OrderRepository) RevenueSource {
	return &deliveredRevenue{orders: orders}
}

func (r *deliveredRevenue) SellerRevenue(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	return r.orders.SellerDeliveredRevenue(ctx, sellerID)
}

// RevenueFunc adapts a function to RevenueSource.
type RevenueFunc func(ctx context.Context, sellerID string) (decimal.Decimal, error)

func (f RevenueFunc) SellerRevenue(ctx context.Context, sellerID string) (decimal.Decimal, error) {
	return f(ctx, sellerID)
}
