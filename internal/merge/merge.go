package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/orders"
	"github.com/kandalvillage/posflow/internal/store"
)

// ErrSourceEmpty is returned when the selected source order has no rows to move.
var ErrSourceEmpty = errors.New("merge source has no order rows")

// Store is the slice of the remote-store client the merge protocol needs.
type Store interface {
	ListOrders(ctx context.Context, q store.ListOrdersQuery) ([]orders.Order, error)
	ListOrderRows(ctx context.Context, orderDocID string) ([]orders.OrderRow, error)
	CreateOrderRow(ctx context.Context, in store.RowCreate) (*orders.OrderRow, error)
	UpdateOrder(ctx context.Context, docID string, patch store.OrderPatch) error
	LoadOrder(ctx context.Context, docID string) (*orders.Order, map[string]*catalog.Product, error)
}

// Merger absorbs one served order's rows into another, retiring the source as
// merged while preserving both records for audit.
type Merger struct {
	store   Store
	nowFunc func() time.Time
}

func NewMerger(s Store) *Merger {
	return &Merger{store: s, nowFunc: time.Now}
}

// Candidates lists the served orders created within the current business day,
// excluding the destination itself. Rows are attached so the operator can see
// item counts before choosing.
func (m *Merger) Candidates(ctx context.Context, excludeDocID string) ([]orders.Order, error) {
	start, end := orders.BusinessDay(m.nowFunc())
	list, err := m.store.ListOrders(ctx, store.ListOrdersQuery{
		Status:      orders.OrderServed,
		CreatedFrom: start,
		CreatedTo:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("list merge candidates: %w", err)
	}

	candidates := make([]orders.Order, 0, len(list))
	for _, o := range list {
		if o.DocumentID == excludeDocID {
			continue
		}
		rows, err := m.store.ListOrderRows(ctx, o.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("load candidate %s rows: %w", o.DocumentID, err)
		}
		o.Rows = rows
		candidates = append(candidates, o)
	}
	return candidates, nil
}

// Merge moves the source order's rows under the destination. Steps run in
// strict sequence: copy rows (status served, issued concurrently and awaited
// together), mark the source merged with a forward reference, set the
// backward reference on the destination, then reload the destination from the
// store. A failure aborts at that step; nothing is rolled back, so a partial
// merge is detectable rather than silently lost.
func (m *Merger) Merge(ctx context.Context, dest *orders.Order, sourceDocID, mergedBy string) (*orders.Order, map[string]*catalog.Product, error) {
	sourceRows, err := m.store.ListOrderRows(ctx, sourceDocID)
	if err != nil {
		return nil, nil, fmt.Errorf("load source order %s: %w", sourceDocID, err)
	}
	if len(sourceRows) == 0 {
		return nil, nil, ErrSourceEmpty
	}

	// The items have physically been served already; the copies start served,
	// not pending.
	var wg sync.WaitGroup
	createErrs := make([]error, len(sourceRows))
	for i, row := range sourceRows {
		wg.Add(1)
		go func(i int, row orders.OrderRow) {
			defer wg.Done()
			_, err := m.store.CreateOrderRow(ctx, store.RowCreate{
				Quantity:          row.Quantity,
				Subtotal:          row.Subtotal,
				TaxesSubtotal:     row.TaxesSubtotal,
				OrderDocID:        dest.DocumentID,
				ProductDocID:      row.ProductDocID,
				CategoryDocID:     row.CategoryDocID,
				Status:            orders.RowServed,
				CreatedByUserName: mergedBy,
				UpdatedByUserName: mergedBy,
			})
			createErrs[i] = err
		}(i, row)
	}
	wg.Wait()
	for _, err := range createErrs {
		if err != nil {
			return nil, nil, fmt.Errorf("copy source rows to %s: %w", dest.DocumentID, err)
		}
	}

	mergedStatus := orders.OrderMerged
	destDocID := dest.DocumentID
	if err := m.store.UpdateOrder(ctx, sourceDocID, store.OrderPatch{
		OrderStatus:       &mergedStatus,
		MergedToOderDocID: &destDocID,
	}); err != nil {
		return nil, nil, fmt.Errorf("mark source %s merged: %w", sourceDocID, err)
	}

	srcDocID := sourceDocID
	if err := m.store.UpdateOrder(ctx, dest.DocumentID, store.OrderPatch{
		MergedWithOderDocID: &srcDocID,
	}); err != nil {
		return nil, nil, fmt.Errorf("set merge reference on %s: %w", dest.DocumentID, err)
	}

	// The in-memory merge is a display optimization only; the store is the
	// source of truth.
	reloaded, products, err := m.store.LoadOrder(ctx, dest.DocumentID)
	if err != nil {
		return nil, nil, fmt.Errorf("reload destination %s: %w", dest.DocumentID, err)
	}
	return reloaded, products, nil
}
