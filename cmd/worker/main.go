package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/kandalvillage/posflow/internal/awsx"
)

func main() {
	ctx := context.Background()

	clients, err := awsx.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	table := os.Getenv("IDEMPOTENCY_TABLE")
	if table == "" {
		log.Fatal("IDEMPOTENCY_TABLE is required")
	}

	processor := NewProcessor(clients, table)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_doc_id":"local-order-1","row_doc_id":"local-row-1","product_name":"Fish Amok","quantity":1}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := processor.Handle(ctx, event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(processor.Handle)
}
