package enums

import "fmt"

// OrderItemStatus tracks the seller-side approval state of one order line.
type OrderItemStatus string

const (
	OrderItemStatusPending  OrderItemStatus = "pending"
	OrderItemStatusApproved OrderItemStatus = "approved"
	OrderItemStatusRejected OrderItemStatus = "rejected"
	OrderItemStatusShipped  OrderItemStatus = "shipped"
)

var validOrderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusApproved,
	OrderItemStatusRejected,
	OrderItemStatusShipped,
}

// String implements fmt.Stringer.
func (s OrderItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderItemStatus.
func (s OrderItemStatus) IsValid() bool {
	for _, candidate := range validOrderItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of the state.
func (s OrderItemStatus) IsTerminal() bool {
	return s == OrderItemStatusRejected || s == OrderItemStatusShipped
}

// ParseOrderItemStatus converts raw input into an OrderItemStatus.
func ParseOrderItemStatus(value string) (OrderItemStatus, error) {
	for _, candidate := range validOrderItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order item status %q", value)
}
