package model

// orderTransitions 订单状态流转表；pending -> seller_notified 由系统在下单时完成，不在表内
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusCancelled},
	OrderStatusSellerNotified: {OrderStatusSellerAccepted, OrderStatusCancelled},
	OrderStatusSellerAccepted: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:      {OrderStatusReturned},
}

// CanTransition reports whether a caller may move an order from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s by a caller.
func AllowedTransitions(s OrderStatus) []OrderStatus {
	out := make([]OrderStatus, len(orderTransitions[s]))
	copy(out, orderTransitions[s])
	return out
}

// IsSystemTransition reports the placement step the lifecycle performs on its own.
func IsSystemTransition(from, to OrderStatus) bool {
	return (from == "" && to == OrderStatusPending) ||
		(from == OrderStatusPending && to == OrderStatusSellerNotified)
}
