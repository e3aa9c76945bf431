package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 20, 15, 0, 0, time.UTC)
}

func newTestStore(mock *simpleMock) *Store {
	s := NewStore(mock, "checkout-idempotency", 48*time.Hour)
	s.nowFunc = fixedNow
	return s
}

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	ctx := context.Background()
	mock := newSimpleMock()
	store := newTestStore(mock)

	created, err := store.CreateIfNotExists(ctx, "key-1", "order-abc")
	if err != nil {
		t.Fatalf("CreateIfNotExists: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first insert")
	}

	// second insert with the same key must not create and must not error
	created, err = store.CreateIfNotExists(ctx, "key-1", "order-abc")
	if err != nil {
		t.Fatalf("CreateIfNotExists duplicate: %v", err)
	}
	if created {
		t.Fatalf("expected created=false on duplicate insert")
	}

	rec, err := store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Errorf("status = %q, want %q", rec.Status, StatusInProgress)
	}
	if rec.OrderDocID != "order-abc" {
		t.Errorf("order doc id = %q, want %q", rec.OrderDocID, "order-abc")
	}
	if rec.ExpiresAt != fixedNow().Add(48*time.Hour).Unix() {
		t.Errorf("expires_at = %d, want %d", rec.ExpiresAt, fixedNow().Add(48*time.Hour).Unix())
	}

	if err := store.MarkDone(ctx, "key-1", `{"orderDocId":"order-abc","refinedUSD":19}`); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	item := mock.table["key-1"]
	if got := item["status"].(*types.AttributeValueMemberS).Value; got != StatusDone {
		t.Errorf("raw status = %q, want %q", got, StatusDone)
	}
	if got := item["receipt"].(*types.AttributeValueMemberS).Value; got == "" {
		t.Errorf("expected receipt to be stored")
	}

	rec, err = store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get after MarkDone: %v", err)
	}
	if rec.Status != StatusDone {
		t.Errorf("status = %q, want %q", rec.Status, StatusDone)
	}
	if rec.Receipt == "" {
		t.Errorf("expected receipt on record")
	}

	if err := store.MarkFailed(ctx, "key-1", "remote update failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	rec, err = store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("Get after MarkFailed: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Errorf("status = %q, want %q", rec.Status, StatusFailed)
	}
	if rec.Note != "remote update failed" {
		t.Errorf("note = %q, want %q", rec.Note, "remote update failed")
	}
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(newSimpleMock())
	rec, err := store.Get(context.Background(), "no-such-key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for missing key, got %+v", rec)
	}
}

func TestRecordAttributevalueRoundtrip(t *testing.T) {
	in := Record{
		IdempotencyKey: "key-9",
		Status:         StatusDone,
		OrderDocID:     "order-9",
		Receipt:        `{"refinedUSD":7.5}`,
		CreatedAt:      fixedNow(),
		UpdatedAt:      fixedNow(),
		ExpiresAt:      fixedNow().Add(time.Hour).Unix(),
	}
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		t.Fatalf("MarshalMap: %v", err)
	}
	var out Record
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		t.Fatalf("UnmarshalMap: %v", err)
	}
	if out.IdempotencyKey != in.IdempotencyKey || out.Status != in.Status || out.Receipt != in.Receipt {
		t.Errorf("roundtrip mismatch: got %+v", out)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("created_at roundtrip: got %v, want %v", out.CreatedAt, in.CreatedAt)
	}
}
