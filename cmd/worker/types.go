package main

import (
	"context"
	"log"

	"github.com/kandalvillage/posflow/internal/notify"
)

// Printer renders a kitchen ticket. The default implementation writes to the
// process log; a real deployment points this at the ticket printer bridge.
type Printer interface {
	Print(ctx context.Context, t notify.Ticket) error
}

// LogPrinter writes tickets to the log.
type LogPrinter struct{}

func (LogPrinter) Print(ctx context.Context, t notify.Ticket) error {
	log.Printf("[kitchen] order=%s %dx %s (row=%s, placed by %s)",
		t.OrderDocID, t.Quantity, t.ProductName, t.RowDocID, t.PlacedBy)
	return nil
}
