package orders

import "time"

// OrderStatus is the lifecycle status stored on an order record.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderServed    OrderStatus = "served"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderMerged    OrderStatus = "merged"
)

// RowStatus is the lifecycle status stored on an order-row record.
type RowStatus string

const (
	RowPending   RowStatus = "pending"
	RowServed    RowStatus = "served"
	RowPaid      RowStatus = "paid"
	RowCancelled RowStatus = "cancelled"
)

// PaymentMethod the operator captured at checkout.
type PaymentMethod string

const (
	PayQR   PaymentMethod = "QR"
	PayCash PaymentMethod = "cash"
)

// Order is an order record as persisted in the remote store. Order rows are
// separate remote records; the two are kept consistent only by explicit,
// sequential API calls, never an atomic transaction.
type Order struct {
	ID                  int         `json:"id"`
	DocumentID          string      `json:"documentId"`
	OrderStatus         OrderStatus `json:"orderStatus"`
	TableName           string      `json:"tableName,omitempty"`
	CustomerName        string      `json:"customerName,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
	PaymentDaytime      *time.Time  `json:"paymentDaytime,omitempty"`
	PaymentMethod       string      `json:"paymentMethod,omitempty"`
	PaidAmount          float64     `json:"paidAmount,omitempty"`
	AppliedDiscount     string      `json:"appliedDiscount,omitempty"`
	MergedWithOderDocID string      `json:"mergedWithOderDocId,omitempty"`
	MergedToOderDocID   string      `json:"mergedToOderDocId,omitempty"`
	CreatedByUserName   string      `json:"createdByUserName,omitempty"`
	ProcessedByUserName string      `json:"processedByUserName,omitempty"`
	Rows                []OrderRow  `json:"order_rows"`
}

// OrderRow is a single product-quantity line within an order. Subtotal is
// VAT-inclusive; TaxesSubtotal is the tax portion embedded in it.
type OrderRow struct {
	ID                int       `json:"id"`
	DocumentID        string    `json:"documentId"`
	Quantity          int       `json:"quantity"`
	Subtotal          float64   `json:"subtotal"`
	TaxesSubtotal     float64   `json:"taxesSubtotal"`
	OrderDocID        string    `json:"order_doc_id,omitempty"`
	ProductDocID      string    `json:"product_doc_id,omitempty"`
	CategoryDocID     string    `json:"category_doc_id,omitempty"`
	Status            RowStatus `json:"orderRowStatus"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	CreatedByUserName string    `json:"createdByUserName,omitempty"`
	UpdatedByUserName string    `json:"updatedByUserName,omitempty"`
}

// ActiveRows returns the rows that still count toward totals and status,
// i.e. everything not cancelled.
func (o *Order) ActiveRows() []OrderRow {
	active := make([]OrderRow, 0, len(o.Rows))
	for _, r := range o.Rows {
		if r.Status != RowCancelled {
			active = append(active, r)
		}
	}
	return active
}
