package orders

import (
	"context"
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a row status change is not permitted.
// The row is left untouched and no remote call is issued.
var ErrIllegalTransition = errors.New("illegal order-row status transition")

// CanTransition reports whether a row may move from one status to another.
// The forward sequence is pending -> served -> paid; cancelled is reachable
// from pending or served only and is terminal. Self-transitions are rejected.
func CanTransition(from, to RowStatus) bool {
	if from == to {
		return false
	}
	if from == RowCancelled {
		return false
	}
	if to == RowCancelled {
		return from == RowPending || from == RowServed
	}
	switch from {
	case RowPending:
		return to == RowServed
	case RowServed:
		return to == RowPaid
	default:
		return false
	}
}

// RowUpdater persists a status change for a single order-row record.
type RowUpdater interface {
	UpdateOrderRowStatus(ctx context.Context, rowDocID string, status RowStatus, updatedBy string) error
}

// Transitioner applies row status transitions and persists them one call at
// a time. Local state is only committed after the remote update succeeds.
type Transitioner struct {
	store RowUpdater
}

func NewTransitioner(store RowUpdater) *Transitioner {
	return &Transitioner{store: store}
}

// Transition validates and persists a single row status change, mutating the
// row only on success. Illegal transitions return ErrIllegalTransition before
// any remote call.
func (t *Transitioner) Transition(ctx context.Context, row *OrderRow, to RowStatus, updatedBy string) error {
	if !CanTransition(row.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, row.Status, to)
	}
	if err := t.store.UpdateOrderRowStatus(ctx, row.DocumentID, to, updatedBy); err != nil {
		return fmt.Errorf("update row %s: %w", row.DocumentID, err)
	}
	row.Status = to
	return nil
}
