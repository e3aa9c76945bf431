package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kandalvillage/posflow/internal/orders"
)

// OrderCreate is the writable field set for a new order record.
type OrderCreate struct {
	CustomerName      string             `json:"customerName"`
	TableName         string             `json:"tableName"`
	OrderStatus       orders.OrderStatus `json:"orderStatus"`
	CreatedByUserName string             `json:"createdByUserName,omitempty"`
}

// OrderPatch is a partial update of an order record; nil fields are left
// untouched by the store.
type OrderPatch struct {
	OrderStatus         *orders.OrderStatus `json:"orderStatus,omitempty"`
	PaymentDaytime      *time.Time          `json:"paymentDaytime,omitempty"`
	PaymentMethod       *string             `json:"paymentMethod,omitempty"`
	PaidAmount          *float64            `json:"paidAmount,omitempty"`
	AppliedDiscount     *string             `json:"appliedDiscount,omitempty"`
	MergedWithOderDocID *string             `json:"mergedWithOderDocId,omitempty"`
	MergedToOderDocID   *string             `json:"mergedToOderDocId,omitempty"`
	ProcessedByUserName *string             `json:"processedByUserName,omitempty"`
}

// ListOrdersQuery narrows an order listing. Zero values mean "no filter".
type ListOrdersQuery struct {
	Status      orders.OrderStatus
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// GetOrder fetches one order by document id. Returns (nil, nil) if missing.
func (c *Client) GetOrder(ctx context.Context, docID string) (*orders.Order, error) {
	q := url.Values{}
	q.Set("populate", "*")
	var o orders.Order
	err := c.do(ctx, http.MethodGet, "/api/orders/"+docID, q, nil, &o)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", docID, err)
	}
	return &o, nil
}

// ListOrders returns the orders matching the query.
func (c *Client) ListOrders(ctx context.Context, query ListOrdersQuery) ([]orders.Order, error) {
	q := url.Values{}
	if query.Status != "" {
		q.Set("filters[orderStatus][$eq]", string(query.Status))
	}
	if !query.CreatedFrom.IsZero() {
		q.Set("filters[createdAt][$gte]", query.CreatedFrom.UTC().Format(time.RFC3339))
	}
	if !query.CreatedTo.IsZero() {
		q.Set("filters[createdAt][$lt]", query.CreatedTo.UTC().Format(time.RFC3339))
	}
	var out []orders.Order
	err := c.do(ctx, http.MethodGet, "/api/orders", q, nil, &out)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// CreateOrder persists a new order and returns the stored record.
func (c *Client) CreateOrder(ctx context.Context, in OrderCreate) (*orders.Order, error) {
	var o orders.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, in, &o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &o, nil
}

// UpdateOrder applies a partial update to an order record.
func (c *Client) UpdateOrder(ctx context.Context, docID string, patch OrderPatch) error {
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+docID, nil, patch, nil); err != nil {
		return fmt.Errorf("update order %s: %w", docID, err)
	}
	return nil
}

// UpdateOrderStatus satisfies orders.OrderStatusUpdater.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderDocID string, status orders.OrderStatus) error {
	return c.UpdateOrder(ctx, orderDocID, OrderPatch{OrderStatus: &status})
}
