package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kandalvillage/posflow/internal/awsx"
	"github.com/kandalvillage/posflow/internal/idempotency"
	"github.com/kandalvillage/posflow/internal/notify"
)

// Dedup guards against printing the same ticket twice; SQS is at-least-once.
type Dedup interface {
	CreateIfNotExists(ctx context.Context, key, orderDocID string) (bool, error)
	MarkDone(ctx context.Context, key, receipt string) error
}

// Processor consumes kitchen tickets from SQS and prints them exactly once.
type Processor struct {
	dedup   Dedup
	printer Printer
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *awsx.Clients, dedupTable string) *Processor {
	return &Processor{
		dedup:   idempotency.NewStore(clients.DynamoDB, dedupTable, 48*time.Hour),
		printer: LogPrinter{},
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ticket notify.Ticket
	if err := json.Unmarshal([]byte(rec.Body), &ticket); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ticket.RowDocID == "" {
		return fmt.Errorf("ticket without row doc id: %s", rec.Body)
	}

	log.Printf("[worker] received ticket order=%s row=%s corr=%s",
		ticket.OrderDocID, ticket.RowDocID, ticket.CorrelationID)

	key := "ticket:" + ticket.RowDocID
	created, err := p.dedup.CreateIfNotExists(ctx, key, ticket.OrderDocID)
	if err != nil {
		return fmt.Errorf("claim ticket %s: %w", key, err)
	}
	if !created {
		log.Printf("[worker] duplicate ticket row=%s, skipping", ticket.RowDocID)
		return nil
	}

	if err := p.printer.Print(ctx, ticket); err != nil {
		return fmt.Errorf("print ticket %s: %w", key, err)
	}

	if err := p.dedup.MarkDone(ctx, key, ""); err != nil {
		return fmt.Errorf("mark ticket %s done: %w", key, err)
	}

	log.Printf("[worker] printed ticket row=%s", ticket.RowDocID)
	return nil
}
