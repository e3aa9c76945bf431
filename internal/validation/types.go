package validation

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	TableName    string `json:"tableName" validate:"required"`
	CustomerName string `json:"customerName,omitempty"`
	CreatedBy    string `json:"createdBy,omitempty"`
}

// AddRowRequest is the payload for POST /orders/:docID/rows.
type AddRowRequest struct {
	ProductDocID  string `json:"productDocId" validate:"required"`
	CategoryDocID string `json:"categoryDocId,omitempty"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	CreatedBy     string `json:"createdBy,omitempty"`
}

// RowStatusRequest is the payload for PUT /order-rows/:docID/status.
type RowStatusRequest struct {
	Status    string `json:"status" validate:"required,oneof=pending served paid cancelled"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

// MergeRequest is the payload for POST /orders/:docID/merge. The path names
// the destination; the body names the source being retired into it.
type MergeRequest struct {
	SourceDocID string `json:"sourceDocId" validate:"required"`
}

// CustomDiscountPayload is the optional order-wide discount entered at
// checkout. A zero value means "none".
type CustomDiscountPayload struct {
	Value float64 `json:"value" validate:"gte=0"`
	Type  string  `json:"type" validate:"omitempty,oneof=dollar percentage"`
}

// DiscountPayload carries the per-checkout discount toggles.
type DiscountPayload struct {
	KhmerCustomer       bool                   `json:"khmerCustomer"`
	CBACMembers         bool                   `json:"cbacMembers"`
	KandalVillageFriend bool                   `json:"kandalVillageFriend"`
	Custom              *CustomDiscountPayload `json:"custom,omitempty"`
}

// QuoteRequest is the payload for POST /orders/:docID/quote.
type QuoteRequest struct {
	Discounts DiscountPayload `json:"discounts"`
}

// CheckoutRequest is the payload for POST /orders/:docID/checkout.
type CheckoutRequest struct {
	PaymentMethod string          `json:"paymentMethod" validate:"required,oneof=QR cash"`
	Discounts     DiscountPayload `json:"discounts"`
	ProcessedBy   string          `json:"processedBy,omitempty"`
}
