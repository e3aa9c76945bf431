package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/orders"
)

// GetProduct fetches one product by document id. Returns (nil, nil) if missing.
func (c *Client) GetProduct(ctx context.Context, docID string) (*catalog.Product, error) {
	q := url.Values{}
	q.Set("populate", "*")
	var p catalog.Product
	err := c.do(ctx, http.MethodGet, "/api/products/"+docID, q, nil, &p)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", docID, err)
	}
	return &p, nil
}

// GetCategory fetches one category by document id. Returns (nil, nil) if
// missing; satisfies catalog.CategoryGetter.
func (c *Client) GetCategory(ctx context.Context, docID string) (*catalog.Category, error) {
	var cat catalog.Category
	err := c.do(ctx, http.MethodGet, "/api/categories/"+docID, nil, nil, &cat)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", docID, err)
	}
	return &cat, nil
}

// ListCategories returns the catalog with products populated, each category's
// products sorted by price, then by normalized name.
func (c *Client) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	q := url.Values{}
	q.Set("populate[products][populate]", "*")
	var cats []catalog.Category
	err := c.do(ctx, http.MethodGet, "/api/categories", q, nil, &cats)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for i := range cats {
		sortProducts(cats[i].Products)
	}
	return cats, nil
}

func sortProducts(products []catalog.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Price != products[j].Price {
			return products[i].Price < products[j].Price
		}
		return normalizeName(products[i].Name) < normalizeName(products[j].Name)
	})
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// LoadOrder fetches an order together with its rows and the products they
// reference. Products are fetched once per distinct document id; rows whose
// product no longer exists are kept with no catalog entry.
func (c *Client) LoadOrder(ctx context.Context, docID string) (*orders.Order, map[string]*catalog.Product, error) {
	order, err := c.GetOrder(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, nil
	}

	rows, err := c.ListOrderRows(ctx, order.DocumentID)
	if err != nil {
		return nil, nil, err
	}
	order.Rows = rows

	products := map[string]*catalog.Product{}
	for _, row := range rows {
		if row.ProductDocID == "" {
			continue
		}
		if _, seen := products[row.ProductDocID]; seen {
			continue
		}
		p, err := c.GetProduct(ctx, row.ProductDocID)
		if err != nil {
			return nil, nil, err
		}
		if p != nil {
			products[row.ProductDocID] = p
		}
	}
	return order, products, nil
}
