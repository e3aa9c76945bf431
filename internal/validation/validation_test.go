package validation

import (
	"testing"
)

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()

	req := CreateOrderRequest{
		TableName:    "Table 4",
		CustomerName: "walk-in",
		CreatedBy:    "sokha",
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_MissingTable(t *testing.T) {
	v := New()

	req := CreateOrderRequest{CustomerName: "walk-in"}
	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for missing tableName, got nil")
	}
}

func TestAddRowRequest_QuantityBounds(t *testing.T) {
	v := New()

	valid := AddRowRequest{ProductDocID: "prod-1", Quantity: 1}
	if err := v.Struct(valid); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	zero := AddRowRequest{ProductDocID: "prod-1", Quantity: 0}
	if err := v.Struct(zero); err == nil {
		t.Fatal("expected validation error for zero quantity, got nil")
	}

	negative := AddRowRequest{ProductDocID: "prod-1", Quantity: -2}
	if err := v.Struct(negative); err == nil {
		t.Fatal("expected validation error for negative quantity, got nil")
	}
}

func TestRowStatusRequest_StatusEnum(t *testing.T) {
	v := New()

	for _, status := range []string{"pending", "served", "paid", "cancelled"} {
		if err := v.Struct(RowStatusRequest{Status: status}); err != nil {
			t.Errorf("status %q: expected valid, got %v", status, err)
		}
	}
	if err := v.Struct(RowStatusRequest{Status: "shipped"}); err == nil {
		t.Fatal("expected validation error for unknown status, got nil")
	}
}

func TestCheckoutRequest_PaymentMethod(t *testing.T) {
	v := New()

	for _, method := range []string{"QR", "cash"} {
		if err := v.Struct(CheckoutRequest{PaymentMethod: method}); err != nil {
			t.Errorf("method %q: expected valid, got %v", method, err)
		}
	}
	if err := v.Struct(CheckoutRequest{PaymentMethod: "card"}); err == nil {
		t.Fatal("expected validation error for unsupported method, got nil")
	}
	if err := v.Struct(CheckoutRequest{}); err == nil {
		t.Fatal("expected validation error for missing method, got nil")
	}
}

func TestCheckoutRequest_CustomDiscount(t *testing.T) {
	v := New()

	ok := CheckoutRequest{
		PaymentMethod: "cash",
		Discounts: DiscountPayload{
			Custom: &CustomDiscountPayload{Value: 10, Type: "percentage"},
		},
	}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	over := CheckoutRequest{
		PaymentMethod: "cash",
		Discounts: DiscountPayload{
			Custom: &CustomDiscountPayload{Value: 120, Type: "percentage"},
		},
	}
	if err := v.Struct(over); err == nil {
		t.Fatal("expected validation error for percentage > 100, got nil")
	}

	negative := CheckoutRequest{
		PaymentMethod: "cash",
		Discounts: DiscountPayload{
			Custom: &CustomDiscountPayload{Value: -1, Type: "dollar"},
		},
	}
	if err := v.Struct(negative); err == nil {
		t.Fatal("expected validation error for negative value, got nil")
	}

	untyped := CheckoutRequest{
		PaymentMethod: "cash",
		Discounts: DiscountPayload{
			Custom: &CustomDiscountPayload{Value: 5},
		},
	}
	if err := v.Struct(untyped); err == nil {
		t.Fatal("expected validation error for value without type, got nil")
	}
}

func TestMergeRequest_SourceRequired(t *testing.T) {
	v := New()

	if err := v.Struct(MergeRequest{SourceDocID: "order-2"}); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
	if err := v.Struct(MergeRequest{}); err == nil {
		t.Fatal("expected validation error for missing sourceDocId, got nil")
	}
}
