package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/market-ledger/config"
	"github.com/d60-Lab/market-ledger/internal/events"
	"github.com/d60-Lab/market-ledger/internal/model"
	"github.com/d60-Lab/market-ledger/pkg/apperr"
)

const (
	referrer = "user-referrer"
	referred = "user-referred"
)

func (f *fixture) productCode(t *testing.T, owner string, maxUsage *int) *model.ReferralCode {
	t.Helper()
	code, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{
		OwnerID:  owner,
		Target:   model.ProductTarget{ProductID: productA},
		MaxUsage: maxUsage,
	})
	require.NoError(t, err)
	return code
}

func (f *fixture) activeProductReferral(t *testing.T) *model.Referral {
	t.Helper()
	code := f.productCode(t, referrer, nil)
	ref, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer,
		ReferredID: referred,
		Type:       model.ReferralTypeProduct,
		Code:       code.Code,
	})
	require.NoError(t, err)
	ref, err = f.referrals.ActivateReferral(f.ctx, ref.ID)
	require.NoError(t, err)
	return ref
}

func intPtr(n int) *int { return &n }

func TestCreateReferralCode_Defaults(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)

	assert.Len(t, code.Code, 8)
	for _, r := range code.Code {
		assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected rune %q", r)
	}
	assert.Equal(t, model.ReferralTypeProduct, code.Type)
	assert.True(t, code.CommissionRate.Equal(dec("5")))
	assert.True(t, code.IsActive)
	assert.Equal(t, 0, code.UsageCount)

	seller, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{
		OwnerID: referrer,
		Target:  model.SellerAccountTarget{},
	})
	require.NoError(t, err)
	assert.True(t, seller.CommissionRate.Equal(dec("10")))

	codes, err := f.referrals.ListReferralCodes(f.ctx, referrer)
	require.NoError(t, err)
	assert.Len(t, codes, 2)
}

func TestCreateReferralCode_Validation(t *testing.T) {
	f := newFixture(t)
	bad := dec("150")
	past := time.Now().Add(-time.Hour)

	cases := []CreateCodeInput{
		{Target: model.ProductTarget{ProductID: productA}},
		{OwnerID: referrer},
		{OwnerID: referrer, Target: model.ProductTarget{ProductID: productA}, Rate: &bad},
		{OwnerID: referrer, Target: model.ProductTarget{ProductID: productA}, MaxUsage: intPtr(0)},
		{OwnerID: referrer, Target: model.ProductTarget{ProductID: productA}, ExpiresAt: &past},
		{OwnerID: referrer, Target: model.ProductTarget{ProductID: "ghost"}},
	}
	for i, in := range cases {
		_, err := f.referrals.CreateReferralCode(f.ctx, in)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "case %d: %v", i, err)
	}
}

func TestCreateReferralCode_GenerationExhausted(t *testing.T) {
	f := newFixture(t)
	svc := f.referrals.(*referralService)
	svc.genCode = func(int) (string, error) { return "SAMECODE", nil }

	_, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{OwnerID: referrer, Target: model.SellerAccountTarget{}})
	require.NoError(t, err)

	_, err = f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{OwnerID: referrer, Target: model.SellerAccountTarget{}})
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateResource))

	svc.genCode = func(int) (string, error) { return "", errors.New("entropy gone") }
	_, err = f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{OwnerID: referrer, Target: model.SellerAccountTarget{}})
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestValidateReferralCode(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)

	got, err := f.referrals.ValidateReferralCode(f.ctx, strings.ToLower(code.Code), model.ReferralTypeProduct)
	require.NoError(t, err)
	assert.Equal(t, code.ID, got.ID)

	_, err = f.referrals.ValidateReferralCode(f.ctx, code.Code, model.ReferralTypeSellerAccount)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.referrals.ValidateReferralCode(f.ctx, "NOPE2345", model.ReferralTypeProduct)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateReferral_ConsumesCode(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)

	ref, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeProduct, Code: code.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusPending, ref.Status)
	assert.Equal(t, model.ProductTarget{ProductID: productA}, ref.Target())
	assert.True(t, ref.CommissionRate.Equal(dec("5")))
	require.NotNil(t, ref.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *ref.ExpiresAt, time.Minute)

	stored, err := f.store.Referrals.GetCodeByCode(f.ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestCreateReferral_DuplicatePair(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)
	in := CreateReferralInput{ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeProduct, Code: code.Code}

	_, err := f.referrals.CreateReferral(f.ctx, in)
	require.NoError(t, err)
	_, err = f.referrals.CreateReferral(f.ctx, in)
	assert.True(t, apperr.IsKind(err, apperr.KindDuplicateResource))

	stored, err := f.store.Referrals.GetCodeByCode(f.ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestCreateReferral_UsageCap(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, intPtr(1))

	_, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: "first", Type: model.ReferralTypeProduct, Code: code.Code,
	})
	require.NoError(t, err)

	_, err = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: "second", Type: model.ReferralTypeProduct, Code: code.Code,
	})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "invalid_referral_code", appErr.Code)

	stored, err := f.store.Referrals.GetCodeByCode(f.ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)
}

func TestCreateReferral_ConcurrentUsageCap(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, intPtr(1))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, who := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, who string) {
			defer wg.Done()
			_, errs[i] = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
				ReferrerID: referrer, ReferredID: who, Type: model.ReferralTypeProduct, Code: code.Code,
			})
		}(i, who)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)

	stored, err := f.store.Referrals.GetCodeByCode(f.ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)

	page, err := f.referrals.ListReferrals(f.ctx, referrer, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestCreateReferral_Rejections(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)

	_, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referrer, Type: model.ReferralTypeProduct, Code: code.Code,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "self referral: %v", err)

	_, err = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: "someone-else", ReferredID: referred, Type: model.ReferralTypeProduct, Code: code.Code,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "owner mismatch: %v", err)

	_, err = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeSellerAccount, Code: code.Code,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "type mismatch: %v", err)

	_, err = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeProduct, Code: code.Code, ProductID: productB,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "product mismatch: %v", err)

	soon := time.Now().Add(24 * time.Hour)
	expiring, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{
		OwnerID: referrer, Target: model.ProductTarget{ProductID: productA}, ExpiresAt: &soon,
	})
	require.NoError(t, err)
	svc := f.referrals.(*referralService)
	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeProduct, Code: expiring.Code,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "expired code: %v", err)
}

func TestReferralLifecycle(t *testing.T) {
	f := newFixture(t)
	ref := f.activeProductReferral(t)
	assert.Equal(t, model.ReferralStatusActive, ref.Status)
	assert.NotNil(t, ref.ActivatedAt)

	_, err := f.referrals.ActivateReferral(f.ctx, ref.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	done, err := f.referrals.CompleteReferral(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	_, err = f.referrals.CancelReferral(f.ctx, ref.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	_, err = f.referrals.CompleteReferral(f.ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestActivateReferral_ExpiredPending(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)
	ref, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: referred, Type: model.ReferralTypeProduct, Code: code.Code,
	})
	require.NoError(t, err)

	svc := f.referrals.(*referralService)
	svc.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	_, err = f.referrals.ActivateReferral(f.ctx, ref.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	stored, err := f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusExpired, stored.Status)
}

func TestExpireReferrals(t *testing.T) {
	f := newFixture(t)
	code := f.productCode(t, referrer, nil)
	for _, who := range []string{"a", "b"} {
		_, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
			ReferrerID: referrer, ReferredID: who, Type: model.ReferralTypeProduct, Code: code.Code,
		})
		require.NoError(t, err)
	}

	n, err := f.referrals.ExpireReferrals(f.ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = f.referrals.ExpireReferrals(f.ctx, time.Now().Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	page, err := f.referrals.ListReferrals(f.ctx, referrer, model.ReferralStatusExpired, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = f.referrals.ListReferrals(f.ctx, referrer, "bogus", 1, 10)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestProcessOrderCommission(t *testing.T) {
	f := newFixture(t)
	ref := f.activeProductReferral(t)
	order := f.place(t)

	_, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPreconditionFailed))

	f.advance(t, order.ID, toDelivered...)
	created, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	rc := created[0]
	// only product A's line (2 × 10.00) counts
	assert.True(t, rc.BaseAmount.Equal(dec("20")))
	assert.True(t, rc.Amount.Equal(dec("1")), "got %s", rc.Amount)
	assert.Equal(t, "order:"+order.ID, rc.SourceKey)
	assert.Equal(t, model.ReferralCommissionEarned, rc.Status)

	again, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	stored, err := f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCommission.Equal(dec("1")))

	_, err = f.referrals.ProcessOrderCommission(f.ctx, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestProcessSellerCommission(t *testing.T) {
	f := newFixture(t)
	code, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{OwnerID: referrer, Target: model.SellerAccountTarget{}})
	require.NoError(t, err)
	ref, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: sellerB, Type: model.ReferralTypeSellerAccount, Code: code.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SellerAccountTarget{SellerID: sellerB}, ref.Target())

	_, err = f.referrals.ProcessSellerCommission(f.ctx, sellerB)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "pending referral does not accrue")

	_, err = f.referrals.ActivateReferral(f.ctx, ref.ID)
	require.NoError(t, err)

	_, err = f.referrals.ProcessSellerCommission(f.ctx, sellerB)
	assert.True(t, apperr.IsKind(err, apperr.KindPreconditionFailed), "no revenue yet")

	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)

	first, err := f.referrals.ProcessSellerCommission(f.ctx, sellerB)
	require.NoError(t, err)
	assert.True(t, first.BaseAmount.Equal(dec("30")))
	assert.True(t, first.Amount.Equal(dec("3")), "got %s", first.Amount)
	assert.Equal(t, "seller_approval", first.SourceKey)

	second, err := f.referrals.ProcessSellerCommission(f.ctx, sellerB)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	rows, err := f.store.Referrals.ListCommissionsByReferral(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProcessSellerCommission_RevenueSource(t *testing.T) {
	f := newFixture(t)
	var fail bool
	revenue := RevenueFunc(func(_ context.Context, sellerID string) (decimal.Decimal, error) {
		if fail {
			return decimal.Zero, errors.New("ledger offline")
		}
		return dec("1000"), nil
	})
	f.referrals = NewReferralService(f.store, NewProductDirectory(f.store.Products), revenue, DefaultReferralPolicy())

	code, err := f.referrals.CreateReferralCode(f.ctx, CreateCodeInput{OwnerID: referrer, Target: model.SellerAccountTarget{}})
	require.NoError(t, err)
	ref, err := f.referrals.CreateReferral(f.ctx, CreateReferralInput{
		ReferrerID: referrer, ReferredID: sellerA, Type: model.ReferralTypeSellerAccount, Code: code.Code,
	})
	require.NoError(t, err)
	_, err = f.referrals.ActivateReferral(f.ctx, ref.ID)
	require.NoError(t, err)

	fail = true
	_, err = f.referrals.ProcessSellerCommission(f.ctx, sellerA)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))

	fail = false
	rc, err := f.referrals.ProcessSellerCommission(f.ctx, sellerA)
	require.NoError(t, err)
	assert.True(t, rc.BaseAmount.Equal(dec("1000")))
	assert.True(t, rc.Amount.Equal(dec("100")), "got %s", rc.Amount)

	stored, err := f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCommission.Equal(dec("100")))
}

func TestReturnedOrder_CancelsEarnedReferralCommission(t *testing.T) {
	f := newFixture(t)
	ref := f.activeProductReferral(t)

	mux := events.NewMux(nil)
	mux.Handle(model.EventOrderDelivered, f.referrals.HandleOrderDelivered)
	mux.Handle(model.EventOrderStatusChanged, f.referrals.HandleOrderStatusChanged)
	relay := NewOutboxRelay(f.store, mux, RelayOptions{BatchSize: 100})

	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)
	_, err := relay.ProcessOnce(f.ctx)
	require.NoError(t, err)

	stored, err := f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalCommission.Equal(dec("1")), "got %s", stored.TotalCommission)

	f.advance(t, order.ID, model.OrderStatusReturned)
	_, err = relay.ProcessOnce(f.ctx)
	require.NoError(t, err)

	rows, err := f.store.Referrals.ListCommissionsByReferral(f.ctx, ref.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.ReferralCommissionCancelled, rows[0].Status)

	stored, err = f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCommission.IsZero(), "got %s", stored.TotalCommission)

	earned, _, pending, err := f.store.Referrals.CommissionTotals(f.ctx, referrer)
	require.NoError(t, err)
	assert.True(t, earned.IsZero())
	assert.True(t, pending.IsZero())

	_, err = f.referrals.MarkCommissionAsPaid(f.ctx, rows[0].ID, "tx-1")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	n, err := f.referrals.CancelOrderCommissions(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelOrderCommissions_KeepsPaidRows(t *testing.T) {
	f := newFixture(t)
	ref := f.activeProductReferral(t)
	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)
	created, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	_, err = f.referrals.MarkCommissionAsPaid(f.ctx, created[0].ID, "tx-1")
	require.NoError(t, err)

	n, err := f.referrals.CancelOrderCommissions(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := f.store.Referrals.GetByID(f.ctx, ref.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalCommission.Equal(dec("1")))
}

func TestMarkReferralCommissionAsPaid_AndStats(t *testing.T) {
	f := newFixture(t)
	f.activeProductReferral(t)
	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)
	created, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	stats, err := f.referrals.GetReferralStats(f.ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalReferrals)
	assert.Equal(t, int64(1), stats.ByStatus[model.ReferralStatusActive])
	assert.True(t, stats.TotalEarned.Equal(dec("1")))
	assert.True(t, stats.PendingPayout.Equal(dec("1")))
	assert.True(t, stats.TotalPaid.IsZero())
	assert.Equal(t, int64(1), stats.ActiveCodes)

	_, err = f.referrals.MarkCommissionAsPaid(f.ctx, created[0].ID, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	paid, err := f.referrals.MarkCommissionAsPaid(f.ctx, created[0].ID, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReferralCommissionPaid, paid.Status)
	assert.Equal(t, "tx-1", paid.TransactionReference)

	_, err = f.referrals.MarkCommissionAsPaid(f.ctx, created[0].ID, "tx-2")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	stats, err = f.referrals.GetReferralStats(f.ctx, referrer)
	require.NoError(t, err)
	assert.True(t, stats.TotalEarned.Equal(dec("1")))
	assert.True(t, stats.TotalPaid.Equal(dec("1")))
	assert.True(t, stats.PendingPayout.IsZero())
}

func TestHandleOrderDelivered_ViaOutbox(t *testing.T) {
	f := newFixture(t)
	f.activeProductReferral(t)

	mux := events.NewMux(nil)
	mux.Handle(model.EventOrderDelivered, f.referrals.HandleOrderDelivered)
	relay := NewOutboxRelay(f.store, mux, RelayOptions{BatchSize: 100})

	order := f.place(t)
	f.advance(t, order.ID, toDelivered...)
	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Positive(t, n)

	earned, _, pending, err := f.store.Referrals.CommissionTotals(f.ctx, referrer)
	require.NoError(t, err)
	assert.True(t, earned.Equal(dec("1")), "got %s", earned)
	assert.True(t, pending.Equal(dec("1")))

	// redelivery of the same events accrues nothing new
	created, err := f.referrals.ProcessOrderCommission(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestHandleOrderDelivered_SkipsStaleOrders(t *testing.T) {
	f := newFixture(t)
	order := f.place(t)
	payload := []byte(`{"order_id":"` + order.ID + `"}`)

	err := f.referrals.HandleOrderDelivered(f.ctx, events.Event{Type: model.EventOrderDelivered, Payload: payload})
	assert.NoError(t, err)

	err = f.referrals.HandleOrderDelivered(f.ctx, events.Event{Type: model.EventOrderDelivered, Payload: []byte(`{"order_id":"missing"}`)})
	assert.NoError(t, err)
}

func TestReferralPolicyFromConfig(t *testing.T) {
	p := ReferralPolicyFromConfig(config.ReferralConfig{
		SellerAccountRate: 12.5,
		ProductRate:       4,
		CodeLength:        10,
		MaxCodeAttempts:   3,
		ReferralTTL:       48 * time.Hour,
	})
	assert.True(t, p.defaultRate(model.ReferralTypeSellerAccount).Equal(dec("12.5")))
	assert.True(t, p.defaultRate(model.ReferralTypeProduct).Equal(dec("4")))
	assert.Equal(t, 10, p.CodeLength)
	assert.Equal(t, 3, p.MaxCodeAttempts)
	assert.Equal(t, 48*time.Hour, p.ReferralTTL)
}
