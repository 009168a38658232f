package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// SummaryCache stores per-seller commission summaries; implementations must
// tolerate a missing backend.
type SummaryCache interface {
	Get(ctx context.Context, sellerID string) (*model.CommissionSummary, bool)
	Set(ctx context.Context, s *model.CommissionSummary)
	Invalidate(ctx context.Context, sellerIDs ...string)
}

type noopSummaryCache struct{}

func (noopSummaryCache) Get(context.Context, string) (*model.CommissionSummary, bool) { return nil, false }
func (noopSummaryCache) Set(context.Context, *model.CommissionSummary)               {}
func (noopSummaryCache) Invalidate(context.Context, ...string)                       {}

// CommissionService 平台佣金
type CommissionService interface {
	CalculateAndCreateCommission(ctx context.Context, orderID string) ([]*model.Commission, error)
	MarkCommissionAsPaid(ctx context.Context, commissionID, payoutRef string) (*model.Commission, error)
	CancelOrderCommissions(ctx context.Context, orderID string) (int, error)
	GetSellerCommissionSummary(ctx context.Context, sellerID string) (*model.CommissionSummary, error)
	ListSellerCommissions(ctx context.Context, sellerID string, status model.CommissionStatus, page, pageSize int) (*Page[*model.Commission], error)
	ReconcileDeliveredOrders(ctx context.Context, limit int) (*ReconcileResult, error)
}

type ReconcileResult struct {
	Scanned  int      `json:"scanned"`
	Repaired int      `json:"repaired"`
	Created  int      `json:"created"`
	Failed   []string `json:"failed,omitempty"`
}

type commissionService struct {
	store    *repository.Store
	rates    RatePolicy
	cache    SummaryCache
	notifier NotificationDispatcher
	now      func() time.Time
}

func NewCommissionService(store *repository.Store, rates RatePolicy, cache SummaryCache, notifier NotificationDispatcher) CommissionService {
	if cache == nil {
		cache = noopSummaryCache{}
	}
	return &commissionService{store: store, rates: rates, cache: cache, notifier: notifier, now: time.Now}
}

type sellerShare struct {
	sellerID string
	amount   decimal.Decimal
}

// sellerShares groups line totals by seller in first-seen order.
func sellerShares(items []model.OrderItem) []sellerShare {
	idx := make(map[string]int)
	var out []sellerShare
	for _, it := range items {
		i, ok := idx[it.SellerID]
		if !ok {
			i = len(out)
			idx[it.SellerID] = i
			out = append(out, sellerShare{sellerID: it.SellerID, amount: decimal.Zero})
		}
		out[i].amount = out[i].amount.Add(it.LineTotal())
	}
	return out
}

func (s *commissionService) CalculateAndCreateCommission(ctx context.Context, orderID string) ([]*model.Commission, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("order_not_found", "order %s not found", orderID))
	}
	if order.Status != model.OrderStatusDelivered {
		return nil, apperr.PreconditionFailed("order_not_delivered", "order %s is %s, commission requires delivered", orderID, order.Status)
	}

	rates := make(map[string]decimal.Decimal)
	for _, sellerID := range order.SellerIDs() {
		rate, err := s.rates.RateFor(ctx, sellerID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		rates[sellerID] = rate
	}

	var created []*model.Commission
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		// 事务内重新读取订单与明细，和已有佣金一起判断
		order, err := tx.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderStatusDelivered {
			return apperr.PreconditionFailed("order_not_delivered", "order %s is %s, commission requires delivered", orderID, order.Status)
		}
		existing, err := tx.Commissions.ListActiveByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[c.SellerID] = true
		}

		for _, share := range sellerShares(order.Items) {
			if have[share.sellerID] {
				continue
			}
			rate, ok := rates[share.sellerID]
			if !ok {
				continue
			}
			c := &model.Commission{
				ID:           uuid.New().String(),
				OrderID:      orderID,
				SellerID:     share.sellerID,
				OrderAmount:  share.amount.Round(2),
				Rate:         rate,
				Amount:       model.Percent(share.amount, rate),
				Status:       model.CommissionStatusCalculated,
				CalculatedAt: &now,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			inserted, err := tx.Commissions.CreateIfAbsent(ctx, c)
			if err != nil {
				return err
			}
			if !inserted {
				continue
			}
			if err := writeEvent(ctx, tx, model.EventCommissionCalculated, orderID, events.CommissionCalculated{
				CommissionID: c.ID,
				OrderID:      orderID,
				SellerID:     c.SellerID,
				Amount:       c.Amount,
				Rate:         c.Rate,
			}); err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("order_not_found", "order %s not found", orderID))
	}

	sellers := make([]string, 0, len(created))
	for _, c := range created {
		sellers = append(sellers, c.SellerID)
	}
	s.cache.Invalidate(ctx, sellers...)
	for _, c := range created {
		if s.notifier == nil {
			break
		}
		if err := s.notifier.Dispatch(ctx, commissionEarnedNotification(c)); err != nil {
			logger.Warn("commission notification failed",
				zap.String("order_id", orderID),
				zap.String("seller_id", c.SellerID),
				zap.Error(err))
		}
	}
	return created, nil
}

func (s *commissionService) MarkCommissionAsPaid(ctx context.Context, commissionID, payoutRef string) (*model.Commission, error) {
	if payoutRef == "" {
		return nil, apperr.Validation("payout_reference_required", "payout reference is required")
	}
	c, err := s.store.Commissions.GetByID(ctx, commissionID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("commission_not_found", "commission not found"))
	}
	ok, err := s.store.Commissions.MarkPaid(ctx, commissionID, payoutRef, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.InvalidState("commission_not_payable", "commission is %s, only calculated commissions can be paid", c.Status)
	}
	s.cache.Invalidate(ctx, c.SellerID)

	paid, err := s.store.Commissions.GetByID(ctx, commissionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return paid, nil
}

func (s *commissionService) CancelOrderCommissions(ctx context.Context, orderID string) (int, error) {
	var sellers []string
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		sellers, err = tx.Commissions.CancelUnpaidByOrder(ctx, orderID, s.now())
		return err
	})
	if err != nil {
		return 0, apperr.Internal(err)
	}
	s.cache.Invalidate(ctx, sellers...)
	return len(sellers), nil
}

func (s *commissionService) GetSellerCommissionSummary(ctx context.Context, sellerID string) (*model.CommissionSummary, error) {
	if cached, ok := s.cache.Get(ctx, sellerID); ok {
		return cached, nil
	}
	summary, err := s.store.Commissions.Summary(ctx, sellerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.cache.Set(ctx, summary)
	return summary, nil
}

func (s *commissionService) ListSellerCommissions(ctx context.Context, sellerID string, status model.CommissionStatus, page, pageSize int) (*Page[*model.Commission], error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown commission status %q", status)
	}
	page, pageSize = normalizePage(page, pageSize)
	rows, total, err := s.store.Commissions.ListBySeller(ctx, sellerID, status, page, pageSize)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Page[*model.Commission]{Items: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

// ReconcileDeliveredOrders backfills commissions for delivered orders whose
// computation was lost after the status update.
func (s *commissionService) ReconcileDeliveredOrders(ctx context.Context, limit int) (*ReconcileResult, error) {
	ids, err := s.store.Orders.ListDeliveredWithoutCommission(ctx, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	res := &ReconcileResult{Scanned: len(ids)}
	for _, id := range ids {
		created, err := s.CalculateAndCreateCommission(ctx, id)
		if err != nil {
			logger.Error("commission reconcile failed", zap.String("order_id", id), zap.Error(err))
			res.Failed = append(res.Failed, id)
			continue
		}
		if len(created) > 0 {
			res.Repaired++
			res.Created += len(created)
		}
	}
	return res, nil
}
