package orders

import (
	"context"
	"fmt"
)

// DeriveOrderStatus computes the order status implied by its rows. Evaluated
// in strict priority order:
//  1. every row cancelled            -> cancelled
//  2. every non-cancelled row paid   -> paid
//  3. every non-cancelled row served or paid -> served
//  4. anything pending, or no non-cancelled rows -> pending
//
// Pure function of the multiset of row statuses.
func DeriveOrderStatus(rows []OrderRow) OrderStatus {
	if len(rows) == 0 {
		return OrderPending
	}

	allCancelled := true
	allPaid := true
	allServedOrPaid := true
	nonCancelled := 0

	for _, r := range rows {
		if r.Status == RowCancelled {
			continue
		}
		allCancelled = false
		nonCancelled++
		if r.Status != RowPaid {
			allPaid = false
		}
		if r.Status != RowServed && r.Status != RowPaid {
			allServedOrPaid = false
		}
	}

	switch {
	case allCancelled:
		return OrderCancelled
	case nonCancelled > 0 && allPaid:
		return OrderPaid
	case nonCancelled > 0 && allServedOrPaid:
		return OrderServed
	default:
		return OrderPending
	}
}

// OrderStatusUpdater persists a status change for an order record.
type OrderStatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, orderDocID string, status OrderStatus) error
}

// Reconciler converges an order's stored status with the status derived from
// its rows. Called explicitly after any row mutation completes.
type Reconciler struct {
	store OrderStatusUpdater
}

func NewReconciler(store OrderStatusUpdater) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile re-derives the order status and persists it when it differs from
// the stored value. Merged orders are frozen and never touched. Returns
// whether a remote update was issued; re-running on an unchanged row set is
// idempotent.
func (r *Reconciler) Reconcile(ctx context.Context, order *Order) (bool, error) {
	if order.OrderStatus == OrderMerged {
		return false, nil
	}
	derived := DeriveOrderStatus(order.Rows)
	if derived == order.OrderStatus {
		return false, nil
	}
	if err := r.store.UpdateOrderStatus(ctx, order.DocumentID, derived); err != nil {
		return false, fmt.Errorf("update order %s status: %w", order.DocumentID, err)
	}
	order.OrderStatus = derived
	return true, nil
}
