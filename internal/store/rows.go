package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kandalvillage/posflow/internal/orders"
)

// RowCreate is the writable field set for a new order-row record. Monetary
// fields carry 2-decimal precision at this boundary.
type RowCreate struct {
	Quantity          int              `json:"quantity"`
	Subtotal          float64          `json:"subtotal"`
	TaxesSubtotal     float64          `json:"taxesSubtotal"`
	OrderDocID        string           `json:"order_doc_id"`
	ProductDocID      string           `json:"product_doc_id"`
	CategoryDocID     string           `json:"category_doc_id"`
	Status            orders.RowStatus `json:"orderRowStatus"`
	CreatedByUserName string           `json:"createdByUserName,omitempty"`
	UpdatedByUserName string           `json:"updatedByUserName,omitempty"`
}

// RowPatch is a partial update of an order-row record.
type RowPatch struct {
	Status            *orders.RowStatus `json:"orderRowStatus,omitempty"`
	UpdatedByUserName *string           `json:"updatedByUserName,omitempty"`
}

// GetOrderRow fetches one row by document id. Returns (nil, nil) if missing.
func (c *Client) GetOrderRow(ctx context.Context, docID string) (*orders.OrderRow, error) {
	q := url.Values{}
	q.Set("populate", "*")
	var row orders.OrderRow
	err := c.do(ctx, http.MethodGet, "/api/order-rows/"+docID, q, nil, &row)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order row %s: %w", docID, err)
	}
	return &row, nil
}

// ListOrderRows returns the rows belonging to an order.
func (c *Client) ListOrderRows(ctx context.Context, orderDocID string) ([]orders.OrderRow, error) {
	q := url.Values{}
	q.Set("filters[order_doc_id][$eq]", orderDocID)
	q.Set("populate", "*")
	var rows []orders.OrderRow
	err := c.do(ctx, http.MethodGet, "/api/order-rows", q, nil, &rows)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list rows for order %s: %w", orderDocID, err)
	}
	return rows, nil
}

// CreateOrderRow persists a new row and returns the stored record.
func (c *Client) CreateOrderRow(ctx context.Context, in RowCreate) (*orders.OrderRow, error) {
	var row orders.OrderRow
	if err := c.do(ctx, http.MethodPost, "/api/order-rows", nil, in, &row); err != nil {
		return nil, fmt.Errorf("create order row: %w", err)
	}
	return &row, nil
}

// UpdateOrderRow applies a partial update to an order-row record.
func (c *Client) UpdateOrderRow(ctx context.Context, rowDocID string, patch RowPatch) error {
	if err := c.do(ctx, http.MethodPut, "/api/order-rows/"+rowDocID, nil, patch, nil); err != nil {
		return fmt.Errorf("update order row %s: %w", rowDocID, err)
	}
	return nil
}

// UpdateOrderRowStatus satisfies orders.RowUpdater.
func (c *Client) UpdateOrderRowStatus(ctx context.Context, rowDocID string, status orders.RowStatus, updatedBy string) error {
	patch := RowPatch{Status: &status}
	if updatedBy != "" {
		patch.UpdatedByUserName = &updatedBy
	}
	return c.UpdateOrderRow(ctx, rowDocID, patch)
}
