package idempotency

import "time"

// Status values for checkout idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record tracks one checkout attempt so a duplicate Pay submission (or a
// retried request) cannot re-run the order-level payment update.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderDocID     string    `dynamodbav:"order_doc_id,omitempty"`
	Receipt        string    `dynamodbav:"receipt,omitempty"` // small JSON receipt returned on replays
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}
