package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/d60-Lab/market-ledger/config"
	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/internal/repository"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/logger"
)

// CodeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type ReferralPolicy struct {
	SellerAccountRate decimal.Decimal
	ProductRate       decimal.Decimal
	CodeLength        int
	MaxCodeAttempts   int
	ReferralTTL       time.Duration
}

func DefaultReferralPolicy() ReferralPolicy {
	return ReferralPolicy{
		SellerAccountRate: decimal.NewFromInt(10),
		ProductRate:       decimal.NewFromInt(5),
		CodeLength:        8,
		MaxCodeAttempts:   10,
		ReferralTTL:       30 * 24 * time.Hour,
	}
}

// ReferralPolicyFromConfig converts the configured percentages.
func ReferralPolicyFromConfig(cfg config.ReferralConfig) ReferralPolicy {
	return ReferralPolicy{
		SellerAccountRate: decimal.NewFromFloat(cfg.SellerAccountRate),
		ProductRate:       decimal.NewFromFloat(cfg.ProductRate),
		CodeLength:        cfg.CodeLength,
		MaxCodeAttempts:   cfg.MaxCodeAttempts,
		ReferralTTL:       cfg.ReferralTTL,
	}
}

func (p ReferralPolicy) defaultRate(t model.ReferralType) decimal.Decimal {
	if t == model.ReferralTypeSellerAccount {
		return p.SellerAccountRate
	}
	return p.ProductRate
}

type CreateCodeInput struct {
	OwnerID   string
	Target    model.ReferralTarget
	Rate      *decimal.Decimal
	MaxUsage  *int
	ExpiresAt *time.Time
}

type CreateReferralInput struct {
	ReferrerID string
	ReferredID string
	Type       model.ReferralType
	Code       string
	ProductID  string
	SellerID   string
}

// ReferralService 推荐计划：推荐码、推荐关系、推荐佣金
type ReferralService interface {
	CreateReferralCode(ctx context.Context, in CreateCodeInput) (*model.ReferralCode, error)
	ValidateReferralCode(ctx context.Context, code string, typ model.ReferralType) (*model.ReferralCode, error)
	CreateReferral(ctx context.Context, in CreateReferralInput) (*model.Referral, error)
	GetReferral(ctx context.Context, referralID string) (*model.Referral, error)
	ActivateReferral(ctx context.Context, referralID string) (*model.Referral, error)
	CompleteReferral(ctx context.Context, referralID string) (*model.Referral, error)
	CancelReferral(ctx context.Context, referralID string) (*model.Referral, error)
	ExpireReferrals(ctx context.Context, now time.Time) (int64, error)
	ProcessOrderCommission(ctx context.Context, orderID string) ([]*model.ReferralCommission, error)
	ProcessSellerCommission(ctx context.Context, sellerID string) (*model.ReferralCommission, error)
	CancelOrderCommissions(ctx context.Context, orderID string) (int, error)
	MarkCommissionAsPaid(ctx context.Context, commissionID, txRef string) (*model.ReferralCommission, error)
	GetReferralStats(ctx context.Context, userID string) (*model.ReferralStats, error)
	ListReferralCodes(ctx context.Context, userID string) ([]*model.ReferralCode, error)
	ListReferrals(ctx context.Context, referrerID string, status model.ReferralStatus, page, pageSize int) (*Page[*model.Referral], error)
	HandleOrderDelivered(ctx context.Context, e events.Event) error
	HandleOrderStatusChanged(ctx context.Context, e events.Event) error
}

type referralService struct {
	store    *repository.Store
	products ProductDirectory
	revenue  RevenueSource
	policy   ReferralPolicy
	genCode  func(n int) (string, error)
	now      func() time.Time
}

func NewReferralService(store *repository.Store, products ProductDirectory, revenue RevenueSource, policy ReferralPolicy) ReferralService {
	def := DefaultReferralPolicy()
	if policy.CodeLength <= 0 {
		policy.CodeLength = def.CodeLength
	}
	if policy.MaxCodeAttempts <= 0 {
		policy.MaxCodeAttempts = def.MaxCodeAttempts
	}
	if policy.ReferralTTL <= 0 {
		policy.ReferralTTL = def.ReferralTTL
	}
	if !policy.SellerAccountRate.IsPositive() {
		policy.SellerAccountRate = def.SellerAccountRate
	}
	if !policy.ProductRate.IsPositive() {
		policy.ProductRate = def.ProductRate
	}
	return &referralService{
		store:    store,
		products: products,
		revenue:  revenue,
		policy:   policy,
		genCode:  randomCode,
		now:      time.Now,
	}
}

func randomCode(n int) (string, error) {
	size := big.NewInt(int64(len(CodeAlphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(CodeAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var hundred = decimal.NewFromInt(100)

func (s *referralService) CreateReferralCode(ctx context.Context, in CreateCodeInput) (*model.ReferralCode, error) {
	if in.OwnerID == "" {
		return nil, apperr.Validation("owner_required", "code owner is required")
	}
	if in.Target == nil {
		return nil, apperr.Validation("invalid_type", "referral type is required")
	}
	rate := s.policy.defaultRate(in.Target.Type())
	if in.Rate != nil {
		if !in.Rate.IsPositive() || in.Rate.GreaterThan(hundred) {
			return nil, apperr.Validation("invalid_rate", "commission rate must be in (0, 100]")
		}
		rate = *in.Rate
	}
	if in.MaxUsage != nil && *in.MaxUsage < 1 {
		return nil, apperr.Validation("invalid_max_usage", "max usage must be at least 1")
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, apperr.Validation("invalid_expiry", "expiry must be in the future")
	}
	if pt, ok := in.Target.(model.ProductTarget); ok && s.products != nil {
		found, err := s.products.Lookup(ctx, []string{pt.ProductID})
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if _, ok := found[pt.ProductID]; !ok {
			return nil, apperr.Validation("unknown_product", "product %s is not in the catalog", pt.ProductID)
		}
	}

	for attempt := 0; attempt < s.policy.MaxCodeAttempts; attempt++ {
		code, err := s.genCode(s.policy.CodeLength)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		taken, err := s.store.Referrals.CodeExists(ctx, code)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if taken {
			continue
		}
		rc := &model.ReferralCode{
			ID:             uuid.New().String(),
			Code:           code,
			UserID:         in.OwnerID,
			CommissionRate: rate,
			IsActive:       true,
			ExpiresAt:      in.ExpiresAt,
			MaxUsage:       in.MaxUsage,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		rc.SetTarget(in.Target)
		// 唯一索引兜底：并发生成到同一个码时 DoNothing，重试
		inserted, err := s.store.Referrals.CreateCode(ctx, rc)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if inserted {
			return rc, nil
		}
	}
	logger.Error("referral code generation exhausted", zap.String("owner_id", in.OwnerID), zap.Int("attempts", s.policy.MaxCodeAttempts))
	return nil, apperr.Duplicate("code_generation_failed", "could not generate a unique referral code")
}

func (s *referralService) ValidateReferralCode(ctx context.Context, code string, typ model.ReferralType) (*model.ReferralCode, error) {
	invalid := apperr.NotFound("invalid_referral_code", "invalid referral code")
	code = normalizeCode(code)
	if code == "" || !typ.Valid() {
		return nil, invalid
	}
	rc, err := s.store.Referrals.GetCodeByCode(ctx, code)
	if err != nil {
		return nil, storeErr(err, invalid)
	}
	if rc.Type != typ || !rc.UsableAt(s.now()) {
		return nil, invalid
	}
	return rc, nil
}

func (s *referralService) CreateReferral(ctx context.Context, in CreateReferralInput) (*model.Referral, error) {
	invalid := apperr.Validation("invalid_referral_code", "invalid referral code")
	code := normalizeCode(in.Code)
	switch {
	case in.ReferrerID == "" || in.ReferredID == "":
		return nil, apperr.Validation("users_required", "referrer and referred user are required")
	case !in.Type.Valid():
		return nil, apperr.Validation("invalid_type", "unknown referral type %q", in.Type)
	case code == "":
		return nil, invalid
	case in.ReferrerID == in.ReferredID:
		return nil, apperr.Validation("self_referral", "users cannot refer themselves")
	}

	var ref *model.Referral
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		rc, err := tx.Referrals.GetCodeByCode(ctx, code)
		if err != nil {
			if repository.IsNotFound(err) {
				return invalid
			}
			return err
		}
		if rc.UserID != in.ReferrerID {
			return apperr.Validation("code_owner_mismatch", "referral code does not belong to the referrer")
		}
		exists, err := tx.Referrals.ExistsForReferred(ctx, in.ReferredID, in.Type)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Duplicate("referral_exists", "user was already referred for %s", in.Type)
		}
		now := s.now()
		if rc.Type != in.Type || !rc.UsableAt(now) {
			return invalid
		}

		target, err := s.referralTarget(rc, in)
		if err != nil {
			return err
		}
		consumed, err := tx.Referrals.ConsumeCode(ctx, rc.ID, now)
		if err != nil {
			return err
		}
		if !consumed {
			return invalid
		}

		expires := now.Add(s.policy.ReferralTTL)
		ref = &model.Referral{
			ID:              uuid.New().String(),
			ReferrerID:      in.ReferrerID,
			ReferredID:      in.ReferredID,
			ReferralCodeID:  rc.ID,
			ReferralCode:    rc.Code,
			Status:          model.ReferralStatusPending,
			CommissionRate:  rc.CommissionRate,
			TotalCommission: decimal.Zero,
			ExpiresAt:       &expires,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		ref.SetTarget(target)
		if err := tx.Referrals.Create(ctx, ref); err != nil {
			if repository.IsDuplicateKey(err) {
				return apperr.Duplicate("referral_exists", "user was already referred for %s", in.Type)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return ref, nil
}

// referralTarget picks the variant for a new referral: the code's product for
// product referrals, the requested or referred seller for seller-account ones.
func (s *referralService) referralTarget(rc *model.ReferralCode, in CreateReferralInput) (model.ReferralTarget, error) {
	switch t := rc.Target().(type) {
	case model.ProductTarget:
		if in.ProductID != "" && in.ProductID != t.ProductID {
			return nil, apperr.Validation("product_mismatch", "referral code is for a different product")
		}
		return t, nil
	case model.SellerAccountTarget:
		sellerID := in.SellerID
		if sellerID == "" {
			sellerID = t.SellerID
		}
		if sellerID == "" {
			sellerID = in.ReferredID
		}
		return model.SellerAccountTarget{SellerID: sellerID}, nil
	}
	return nil, apperr.Validation("invalid_type", "unknown referral type")
}

func (s *referralService) ActivateReferral(ctx context.Context, referralID string) (*model.Referral, error) {
	ref, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if ref.Status == model.ReferralStatusPending && ref.ExpiresAt != nil && !now.Before(*ref.ExpiresAt) {
		if _, err := s.store.Referrals.Transition(ctx, ref.ID, []model.ReferralStatus{model.ReferralStatusPending}, model.ReferralStatusExpired,
			map[string]interface{}{"updated_at": now}); err != nil {
			return nil, apperr.Internal(err)
		}
		return nil, apperr.InvalidState("referral_expired", "referral expired before activation")
	}
	return s.transition(ctx, ref, []model.ReferralStatus{model.ReferralStatusPending}, model.ReferralStatusActive, "activated_at")
}

func (s *referralService) CompleteReferral(ctx context.Context, referralID string) (*model.Referral, error) {
	ref, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, ref, []model.ReferralStatus{model.ReferralStatusActive}, model.ReferralStatusCompleted, "completed_at")
}

func (s *referralService) CancelReferral(ctx context.Context, referralID string) (*model.Referral, error) {
	ref, err := s.getReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, ref,
		[]model.ReferralStatus{model.ReferralStatusPending, model.ReferralStatusActive},
		model.ReferralStatusCancelled, "cancelled_at")
}

func (s *referralService) transition(ctx context.Context, ref *model.Referral, from []model.ReferralStatus, to model.ReferralStatus, stampCol string) (*model.Referral, error) {
	now := s.now()
	ok, err := s.store.Referrals.Transition(ctx, ref.ID, from, to, map[string]interface{}{stampCol: now, "updated_at": now})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.InvalidState("invalid_referral_state", "referral is %s, cannot become %s", ref.Status, to)
	}
	return s.getReferral(ctx, ref.ID)
}

func (s *referralService) GetReferral(ctx context.Context, referralID string) (*model.Referral, error) {
	return s.getReferral(ctx, referralID)
}

func (s *referralService) getReferral(ctx context.Context, id string) (*model.Referral, error) {
	ref, err := s.store.Referrals.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("referral_not_found", "referral not found"))
	}
	return ref, nil
}

func (s *referralService) ExpireReferrals(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.Referrals.ExpirePending(ctx, now)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if n > 0 {
		logger.Info("referrals expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *referralService) ProcessOrderCommission(ctx context.Context, orderID string) ([]*model.ReferralCommission, error) {
	order, err := s.store.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("order_not_found", "order %s not found", orderID))
	}
	if order.Status != model.OrderStatusDelivered {
		return nil, apperr.PreconditionFailed("order_not_delivered", "order %s is %s, referral commission requires delivered", orderID, order.Status)
	}

	productIDs := make([]string, 0, len(order.Items))
	for _, it := range order.Items {
		productIDs = append(productIDs, it.ProductID)
	}

	var created []*model.ReferralCommission
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		refs, err := tx.Referrals.ListActiveProductReferrals(ctx, order.SellerIDs(), productIDs)
		if err != nil {
			return err
		}
		now := s.now()
		for _, ref := range refs {
			base := decimal.Zero
			for _, it := range order.Items {
				if it.SellerID == ref.ReferrerID || (ref.ProductID != nil && *ref.ProductID == it.ProductID) {
					base = base.Add(it.LineTotal())
				}
			}
			if !base.IsPositive() {
				continue
			}
			rc, err := s.accrue(ctx, tx, ref, model.OrderSource{OrderID: orderID}, base, now)
			if err != nil {
				return err
			}
			if rc != nil {
				created = append(created, rc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return created, nil
}

func (s *referralService) ProcessSellerCommission(ctx context.Context, sellerID string) (*model.ReferralCommission, error) {
	ref, err := s.store.Referrals.FindActiveSellerAccountReferral(ctx, sellerID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("referral_not_found", "no active seller-account referral for seller %s", sellerID))
	}
	if s.revenue == nil {
		return nil, apperr.Internal(errors.New("referral service has no revenue source"))
	}
	revenue, err := s.revenue.SellerRevenue(ctx, sellerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !revenue.IsPositive() {
		return nil, apperr.PreconditionFailed("seller_has_no_revenue", "seller %s has no revenue to accrue from", sellerID)
	}

	source := model.RevenueSnapshotSource{SellerID: sellerID}
	var out *model.ReferralCommission
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		rc, err := s.accrue(ctx, tx, ref, source, revenue, s.now())
		if err != nil {
			return err
		}
		if rc != nil {
			out = rc
			return nil
		}
		// 已经结算过：返回已有记录，不重复计提
		existing, err := tx.Referrals.ListCommissionsByReferral(ctx, ref.ID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.SourceKey == source.Key() {
				out = c
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return out, nil
}

// accrue inserts one earned commission for (ref, source) and bumps the
// referral total. It returns nil when the source was already accrued.
func (s *referralService) accrue(ctx context.Context, tx *repository.Store, ref *model.Referral, source model.CommissionSource, base decimal.Decimal, now time.Time) (*model.ReferralCommission, error) {
	rc := &model.ReferralCommission{
		ID:         uuid.New().String(),
		ReferralID: ref.ID,
		ReferrerID: ref.ReferrerID,
		BaseAmount: base.Round(2),
		Rate:       ref.CommissionRate,
		Amount:     model.Percent(base, ref.CommissionRate),
		Status:     model.ReferralCommissionEarned,
		EarnedAt:   &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rc.SetSource(source)
	inserted, err := tx.Referrals.CreateCommissionIfAbsent(ctx, rc)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	if err := tx.Referrals.AddToTotal(ctx, ref.ID, rc.Amount, now); err != nil {
		return nil, err
	}
	return rc, nil
}

// CancelOrderCommissions reverses the unpaid commissions a returned order
// earned. Paid rows stay as they are.
func (s *referralService) CancelOrderCommissions(ctx context.Context, orderID string) (int, error) {
	var n int
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		rows, err := tx.Referrals.ListEarnedByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, rc := range rows {
			ok, err := tx.Referrals.CancelCommission(ctx, rc.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := tx.Referrals.AddToTotal(ctx, rc.ReferralID, rc.Amount.Neg(), now); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storeErr(err, nil)
	}
	if n > 0 {
		logger.Info("referral commissions cancelled", zap.String("order_id", orderID), zap.Int("count", n))
	}
	return n, nil
}

func (s *referralService) MarkCommissionAsPaid(ctx context.Context, commissionID, txRef string) (*model.ReferralCommission, error) {
	if txRef == "" {
		return nil, apperr.Validation("transaction_reference_required", "transaction reference is required")
	}
	rc, err := s.store.Referrals.GetCommission(ctx, commissionID)
	if err != nil {
		return nil, storeErr(err, apperr.NotFound("referral_commission_not_found", "referral commission not found"))
	}
	ok, err := s.store.Referrals.MarkCommissionPaid(ctx, commissionID, txRef, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.InvalidState("commission_not_payable", "referral commission is %s, only earned commissions can be paid", rc.Status)
	}
	paid, err := s.store.Referrals.GetCommission(ctx, commissionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return paid, nil
}

func (s *referralService) GetReferralStats(ctx context.Context, userID string) (*model.ReferralStats, error) {
	counts, err := s.store.Referrals.CountByStatus(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	earned, paid, pending, err := s.store.Referrals.CommissionTotals(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	activeCodes, err := s.store.Referrals.CountActiveCodes(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	stats := &model.ReferralStats{
		UserID:        userID,
		ByStatus:      counts,
		TotalEarned:   earned,
		TotalPaid:     paid,
		PendingPayout: pending,
		ActiveCodes:   activeCodes,
	}
	for _, n := range counts {
		stats.TotalReferrals += n
	}
	return stats, nil
}

func (s *referralService) ListReferralCodes(ctx context.Context, userID string) ([]*model.ReferralCode, error) {
	rows, err := s.store.Referrals.ListCodesByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rows, nil
}

func (s *referralService) ListReferrals(ctx context.Context, referrerID string, status model.ReferralStatus, page, pageSize int) (*Page[*model.Referral], error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("invalid_status", "unknown referral status %q", status)
	}
	page, pageSize = normalizePage(page, pageSize)
	rows, total, err := s.store.Referrals.ListByReferrer(ctx, referrerID, status, page, pageSize)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Page[*model.Referral]{Items: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

// HandleOrderDelivered accrues product-referral commission for a delivered
// order. Orders that left delivered or vanished are skipped, not retried.
func (s *referralService) HandleOrderDelivered(ctx context.Context, e events.Event) error {
	var payload events.OrderDelivered
	if err := e.Decode(&payload); err != nil {
		logger.Error("bad order.delivered payload", zap.String("event_id", e.ID), zap.Error(err))
		return nil
	}
	created, err := s.ProcessOrderCommission(ctx, payload.OrderID)
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindPreconditionFailed:
		logger.Info("referral accrual skipped", zap.String("order_id", payload.OrderID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	if len(created) > 0 {
		logger.Info("referral commission accrued", zap.String("order_id", payload.OrderID), zap.Int("count", len(created)))
	}
	return nil
}

// HandleOrderStatusChanged cancels earned referral commission once an order is returned.
func (s *referralService) HandleOrderStatusChanged(ctx context.Context, e events.Event) error {
	var payload events.OrderStatusChanged
	if err := e.Decode(&payload); err != nil {
		logger.Error("bad order.status_changed payload", zap.String("event_id", e.ID), zap.Error(err))
		return nil
	}
	if model.OrderStatus(payload.To) != model.OrderStatusReturned {
		return nil
	}
	_, err := s.CancelOrderCommissions(ctx, payload.OrderID)
	return err
}
