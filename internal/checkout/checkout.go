package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/idempotency"
	"github.com/kandalvillage/posflow/internal/orders"
	"github.com/kandalvillage/posflow/internal/pricing"
	"github.com/kandalvillage/posflow/internal/store"
)

var (
	// ErrOrderNotFound means the order does not exist in the remote store.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAlreadyPaid means the order has already been paid.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrOrderMerged means the order was retired into another order.
	ErrOrderMerged = errors.New("order merged into another order")
	// ErrNothingToPay means the order has no non-cancelled rows.
	ErrNothingToPay = errors.New("order has no payable rows")
	// ErrCheckoutInProgress means another submission with the same
	// idempotency key has not finished yet.
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// Store is the slice of the remote client the orchestrator needs.
type Store interface {
	LoadOrder(ctx context.Context, docID string) (*orders.Order, map[string]*catalog.Product, error)
	UpdateOrder(ctx context.Context, docID string, patch store.OrderPatch) error
	UpdateOrderRowStatus(ctx context.Context, rowDocID string, status orders.RowStatus, updatedBy string) error
}

// IdempotencyStore guards the order-level payment write against duplicate
// submissions.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, orderDocID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, receipt string) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Metrics receives payment observations. Failures never fail a checkout.
type Metrics interface {
	RecordPayment(ctx context.Context, method string, amountUSD float64) error
}

// Receipt is what the cashier gets back after a successful (or replayed)
// checkout.
type Receipt struct {
	OrderDocID      string    `json:"orderDocId"`
	PaymentMethod   string    `json:"paymentMethod"`
	PaidAt          time.Time `json:"paidAt"`
	Base            string    `json:"base"`
	Taxes           string    `json:"taxes"`
	Final           string    `json:"final"`
	RefinedUSD      string    `json:"refinedUSD"`
	RefinedRiel     string    `json:"refinedRiel"`
	DiscountSummary string    `json:"discountSummary"`
	Replayed        bool      `json:"replayed,omitempty"`
}

// Orchestrator drives the checkout sequence: price, guard, persist the
// order-level payment, then settle the individual rows.
type Orchestrator struct {
	store   Store
	calc    *pricing.Calculator
	idemp   IdempotencyStore // nil disables the duplicate-submission guard
	metrics Metrics          // nil disables payment metrics
	nowFunc func() time.Time
}

func NewOrchestrator(st Store, calc *pricing.Calculator, idemp IdempotencyStore, metrics Metrics) *Orchestrator {
	return &Orchestrator{
		store:   st,
		calc:    calc,
		idemp:   idemp,
		metrics: metrics,
		nowFunc: time.Now,
	}
}

// Quote reprices the order under the given discounts without touching any
// state. Used by the totals preview while the cashier toggles discounts.
func (o *Orchestrator) Quote(ctx context.Context, orderDocID string, d pricing.DiscountSet) (pricing.Totals, []pricing.PricedRow, error) {
	order, products, err := o.store.LoadOrder(ctx, orderDocID)
	if err != nil {
		return pricing.Totals{}, nil, err
	}
	if order == nil {
		return pricing.Totals{}, nil, ErrOrderNotFound
	}
	return o.calc.Totals(ctx, order.Rows, products, d)
}

// Pay runs the full checkout for an order. idempotencyKey may be empty, in
// which case the duplicate-submission guard is skipped.
//
// The order-level update is the commit point: once it succeeds the checkout
// is considered paid even if individual row updates fail afterwards. The
// status reconciler heals any rows left behind.
func (o *Orchestrator) Pay(ctx context.Context, orderDocID string, method orders.PaymentMethod, d pricing.DiscountSet, idempotencyKey, processedBy string) (*Receipt, error) {
	order, products, err := o.store.LoadOrder(ctx, orderDocID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	// The guard runs before the status gates: a duplicate submission arriving
	// after the first one completed must get the stored receipt back, not a
	// rejection for the order it already paid.
	claimed := false
	if idempotencyKey != "" && o.idemp != nil {
		receipt, guardErr := o.guard(ctx, idempotencyKey, orderDocID)
		if guardErr != nil {
			return nil, guardErr
		}
		if receipt != nil {
			return receipt, nil
		}
		claimed = true
	}

	payable := order.ActiveRows()
	if gateErr := payGate(order, payable); gateErr != nil {
		if errors.Is(gateErr, ErrOrderMerged) && order.OrderStatus != orders.OrderMerged && order.MergedToOderDocID != "" {
			// The forward reference exists but the status was left behind;
			// re-assert it before refusing.
			merged := orders.OrderMerged
			if patchErr := o.store.UpdateOrder(ctx, orderDocID, store.OrderPatch{OrderStatus: &merged}); patchErr != nil {
				log.Printf("[checkout] failed to re-assert merged status for order=%s: %v", orderDocID, patchErr)
			}
		}
		if claimed {
			if markErr := o.idemp.MarkFailed(ctx, idempotencyKey, gateErr.Error()); markErr != nil {
				log.Printf("[checkout] mark failed key=%s: %v", idempotencyKey, markErr)
			}
		}
		return nil, gateErr
	}

	totals, _, err := o.calc.Totals(ctx, order.Rows, products, d)
	if err != nil {
		return nil, fmt.Errorf("compute totals: %w", err)
	}

	now := o.nowFunc()
	paid := orders.OrderPaid
	methodStr := string(method)
	paidAmount, _ := totals.RefinedUSD.Float64()
	summary := d.Summary()

	patch := store.OrderPatch{
		OrderStatus:     &paid,
		PaymentDaytime:  &now,
		PaymentMethod:   &methodStr,
		PaidAmount:      &paidAmount,
		AppliedDiscount: &summary,
	}
	if processedBy != "" {
		patch.ProcessedByUserName = &processedBy
	}

	if err := o.store.UpdateOrder(ctx, orderDocID, patch); err != nil {
		if idempotencyKey != "" && o.idemp != nil {
			if markErr := o.idemp.MarkFailed(ctx, idempotencyKey, err.Error()); markErr != nil {
				log.Printf("[checkout] mark failed key=%s: %v", idempotencyKey, markErr)
			}
		}
		return nil, fmt.Errorf("persist payment for order %s: %w", orderDocID, err)
	}

	// When another order was merged into this one, re-assert the retired
	// source's status alongside the commit. The merge already set it, so
	// this is an idempotent second write catching any earlier partial merge.
	if order.MergedWithOderDocID != "" {
		merged := orders.OrderMerged
		if patchErr := o.store.UpdateOrder(ctx, order.MergedWithOderDocID, store.OrderPatch{OrderStatus: &merged}); patchErr != nil {
			log.Printf("[checkout] re-assert merged status for source=%s: %v", order.MergedWithOderDocID, patchErr)
		}
	}

	// Settle rows after the commit point. Errors are logged, not returned:
	// the paid order status is already durable and the reconciler catches up.
	o.settleRows(ctx, payable, processedBy)

	receipt := &Receipt{
		OrderDocID:      orderDocID,
		PaymentMethod:   methodStr,
		PaidAt:          now,
		Base:            totals.Base.StringFixed(2),
		Taxes:           totals.Taxes.StringFixed(2),
		Final:           totals.Final.StringFixed(2),
		RefinedUSD:      totals.RefinedUSD.StringFixed(2),
		RefinedRiel:     totals.RefinedRiel.StringFixed(0),
		DiscountSummary: summary,
	}

	if idempotencyKey != "" && o.idemp != nil {
		raw, err := json.Marshal(receipt)
		if err == nil {
			if markErr := o.idemp.MarkDone(ctx, idempotencyKey, string(raw)); markErr != nil {
				log.Printf("[checkout] mark done key=%s: %v", idempotencyKey, markErr)
			}
		}
	}

	if o.metrics != nil {
		if err := o.metrics.RecordPayment(ctx, methodStr, paidAmount); err != nil {
			log.Printf("[checkout] record payment metric order=%s: %v", orderDocID, err)
		}
	}

	return receipt, nil
}

// payGate rejects orders that must not take a payment: already paid, retired
// into another order, or with nothing left to pay.
func payGate(order *orders.Order, payable []orders.OrderRow) error {
	if order.OrderStatus == orders.OrderPaid {
		return ErrAlreadyPaid
	}
	if order.OrderStatus == orders.OrderMerged || order.MergedToOderDocID != "" {
		return ErrOrderMerged
	}
	if len(payable) == 0 {
		return ErrNothingToPay
	}
	return nil
}

// guard claims the idempotency key. Returns a non-nil receipt when a previous
// submission already completed, an error when one is still running, and
// (nil, nil) when the caller holds the claim and should proceed.
func (o *Orchestrator) guard(ctx context.Context, key, orderDocID string) (*Receipt, error) {
	created, err := o.idemp.CreateIfNotExists(ctx, key, orderDocID)
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if created {
		return nil, nil
	}

	rec, err := o.idemp.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("inspect idempotency key: %w", err)
	}
	if rec == nil {
		// Claimed a moment ago and already expired; extremely unlikely, but
		// refusing is safer than double-charging.
		return nil, ErrCheckoutInProgress
	}

	switch rec.Status {
	case idempotency.StatusDone:
		var receipt Receipt
		if err := json.Unmarshal([]byte(rec.Receipt), &receipt); err != nil {
			return nil, fmt.Errorf("decode stored receipt: %w", err)
		}
		receipt.Replayed = true
		return &receipt, nil
	case idempotency.StatusFailed:
		// A failed attempt releases nothing in the remote store, so a retry
		// with the same key is allowed to run again.
		return nil, nil
	default:
		return nil, ErrCheckoutInProgress
	}
}

func (o *Orchestrator) settleRows(ctx context.Context, rows []orders.OrderRow, updatedBy string) {
	var wg sync.WaitGroup
	for _, row := range rows {
		if row.Status == orders.RowPaid {
			continue
		}
		wg.Add(1)
		go func(r orders.OrderRow) {
			defer wg.Done()
			if err := o.store.UpdateOrderRowStatus(ctx, r.DocumentID, orders.RowPaid, updatedBy); err != nil {
				log.Printf("[checkout] settle row=%s: %v", r.DocumentID, err)
			}
		}(row)
	}
	wg.Wait()
}
