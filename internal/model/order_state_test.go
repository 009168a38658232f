package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusSellerNotified, OrderStatusSellerAccepted))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))
	assert.True(t, CanTransition(OrderStatusDelivered, OrderStatusReturned))

	assert.False(t, CanTransition(OrderStatusPending, OrderStatusSellerNotified), "system-only step")
	assert.False(t, CanTransition(OrderStatusConfirmed, OrderStatusSellerAccepted))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusCancelled))

	for _, terminal := range []OrderStatus{OrderStatusCancelled, OrderStatusRefunded, OrderStatusReturned} {
		assert.True(t, terminal.IsTerminal())
		assert.Empty(t, AllowedTransitions(terminal))
	}
}

func TestIsSystemTransition(t *testing.T) {
	assert.True(t, IsSystemTransition("", OrderStatusPending))
	assert.True(t, IsSystemTransition(OrderStatusPending, OrderStatusSellerNotified))
	assert.False(t, IsSystemTransition(OrderStatusSellerNotified, OrderStatusSellerAccepted))
	assert.False(t, IsSystemTransition("", OrderStatusSellerNotified))
}

func TestReferralStatusValid(t *testing.T) {
	for _, s := range []ReferralStatus{ReferralStatusPending, ReferralStatusActive, ReferralStatusCompleted, ReferralStatusExpired, ReferralStatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, ReferralStatus("bogus").Valid())
	assert.False(t, ReferralStatus("").Valid())
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	got := AllowedTransitions(OrderStatusShipped)
	got[0] = OrderStatusRefunded
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))
}

func TestPercentRoundsToCents(t *testing.T) {
	cases := []struct {
		base, rate, want string
	}{
		{"20", "10", "2"},
		{"30", "10", "3"},
		{"1000", "10", "100"},
		{"33.33", "7.5", "2.5"},
		{"19.99", "12.5", "2.5"},
	}
	for _, c := range cases {
		got := Percent(dec(c.base), dec(c.rate))
		assert.True(t, dec(c.want).Equal(got), "%s*%s%% = %s, got %s", c.base, c.rate, c.want, got)
	}
}

func TestOrderSellerHelpers(t *testing.T) {
	o := &Order{Items: []OrderItem{{SellerID: "a"}, {SellerID: "b"}, {SellerID: "a"}}}
	assert.Equal(t, []string{"a", "b"}, o.SellerIDs())
	assert.True(t, o.HasSeller("b"))
	assert.False(t, o.HasSeller("c"))
}

func TestReferralTargetColumnsRoundTrip(t *testing.T) {
	var code ReferralCode
	code.SetTarget(ProductTarget{ProductID: "p1"})
	assert.Equal(t, ReferralTypeProduct, code.Type)
	assert.Nil(t, code.SellerID)
	assert.Equal(t, ProductTarget{ProductID: "p1"}, code.Target())

	code.SetTarget(SellerAccountTarget{})
	assert.Equal(t, ReferralTypeSellerAccount, code.Type)
	assert.Nil(t, code.ProductID)
	assert.Equal(t, SellerAccountTarget{}, code.Target())

	_, err := NewReferralTarget(ReferralTypeProduct, "", "")
	assert.Error(t, err)
	_, err = NewReferralTarget("partner", "", "")
	assert.Error(t, err)
}

func TestCommissionSourceKeys(t *testing.T) {
	var rc ReferralCommission
	rc.SetSource(OrderSource{OrderID: "o1"})
	assert.Equal(t, "order:o1", rc.SourceKey)
	assert.Equal(t, "o1", *rc.OrderID)

	rc = ReferralCommission{}
	rc.SetSource(RevenueSnapshotSource{SellerID: "s1"})
	assert.Equal(t, "seller_approval", rc.SourceKey)
	assert.Equal(t, "s1", *rc.SellerID)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
