package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/orders"
)

// DefaultRielRate is the configured USD -> KHR exchange rate (1 USD = 4000 Riel).
var DefaultRielRate = decimal.NewFromInt(4000)

const beerCategory = "beer"

var (
	ten          = decimal.NewFromInt(10)
	hundred      = decimal.NewFromInt(100)
	one          = decimal.NewFromInt(1)
	beerThree    = decimal.NewFromInt(3)
	beerFive     = decimal.NewFromInt(5)
	khmerThree   = decimal.RequireFromString("1.75")
	khmerFive    = decimal.NewFromInt(3)
	friendFactor = decimal.RequireFromString("0.85")
)

// CategoryNamer resolves a category document id to its display name.
type CategoryNamer interface {
	Name(ctx context.Context, docID string) (string, error)
}

// PricedRow is an order row repriced under the active discounts. All amounts
// are VAT-inclusive unless stated otherwise.
type PricedRow struct {
	Row       orders.OrderRow
	UnitPrice decimal.Decimal // discounted unit price
	Subtotal  decimal.Decimal // UnitPrice x quantity
	Taxes     decimal.Decimal // VAT portion embedded in Subtotal
	Net       decimal.Decimal // Subtotal - Taxes
}

// Totals aggregates the active rows of an order and applies the order-wide
// custom discount plus the dual-currency rounding policy.
type Totals struct {
	Base        decimal.Decimal // sum of discounted line subtotals, VAT-inclusive
	Taxes       decimal.Decimal
	Net         decimal.Decimal
	Final       decimal.Decimal // Base after the custom discount
	RefinedUSD  decimal.Decimal // Final rounded UP to the nearest 0.1 USD
	Riel        decimal.Decimal // Final x exchange rate
	RefinedRiel decimal.Decimal // Riel rounded UP to the nearest 100 KHR
}

// Calculator computes per-line discounted prices and order totals. Pure given
// a category-name resolution; the resolver is the only collaborator.
type Calculator struct {
	categories CategoryNamer
	rielRate   decimal.Decimal
}

func NewCalculator(categories CategoryNamer, rielRate decimal.Decimal) *Calculator {
	if rielRate.IsZero() {
		rielRate = DefaultRielRate
	}
	return &Calculator{categories: categories, rielRate: rielRate}
}

// UnitPrice runs the discount pipeline over a VAT-inclusive unit price.
// Stage order is fixed regardless of toggle activation order:
// fixed-price remap -> flat amount off -> percentage off all items.
func (c *Calculator) UnitPrice(ctx context.Context, price decimal.Decimal, categoryDocID string, d DiscountSet) (decimal.Decimal, error) {
	var categoryName string
	if categoryDocID != "" && (d.KhmerCustomer || d.CBACMembers) {
		name, err := c.categories.Name(ctx, categoryDocID)
		if err != nil {
			return decimal.Zero, err
		}
		categoryName = strings.ToLower(name)
	}

	current := price

	// 1. Khmer Customer: beer-specific fixed price points.
	if d.KhmerCustomer && categoryName == beerCategory {
		switch {
		case current.Equal(beerThree):
			current = khmerThree
		case current.Equal(beerFive):
			current = khmerFive
		}
	}

	// 2. CBAC Members: beer-specific $1 off per unit, floored at zero.
	if d.CBACMembers && categoryName == beerCategory {
		current = current.Sub(one)
		if current.IsNegative() {
			current = decimal.Zero
		}
	}

	// 3. Kandal Village Friend: 15% off all items, applied after any
	// category-specific discounts.
	if d.KandalVillageFriend {
		current = current.Mul(friendFactor)
	}

	return current, nil
}

// PriceRow reprices a single row under the active discounts and decomposes the
// VAT embedded in the resulting subtotal.
func (c *Calculator) PriceRow(ctx context.Context, row orders.OrderRow, product *catalog.Product, d DiscountSet) (PricedRow, error) {
	var price, vat decimal.Decimal
	if product != nil {
		price = decimal.NewFromFloat(product.Price)
		vat = decimal.NewFromFloat(product.Vat)
	}

	unit, err := c.UnitPrice(ctx, price, row.CategoryDocID, d)
	if err != nil {
		return PricedRow{}, fmt.Errorf("price row %s: %w", row.DocumentID, err)
	}

	subtotal := unit.Mul(decimal.NewFromInt(int64(row.Quantity)))

	// Price includes VAT: net = subtotal / (1 + rate), taxes = subtotal - net.
	taxes := decimal.Zero
	if vat.IsPositive() {
		rate := vat.Div(hundred)
		taxes = subtotal.Sub(subtotal.Div(one.Add(rate)))
	}

	return PricedRow{
		Row:       row,
		UnitPrice: unit,
		Subtotal:  subtotal,
		Taxes:     taxes,
		Net:       subtotal.Sub(taxes),
	}, nil
}

// Totals reprices every non-cancelled row and aggregates order-level totals.
// products maps product document ids to catalog entries; rows referencing a
// missing product contribute a zero price rather than failing.
func (c *Calculator) Totals(ctx context.Context, rows []orders.OrderRow, products map[string]*catalog.Product, d DiscountSet) (Totals, []PricedRow, error) {
	var t Totals
	priced := make([]PricedRow, 0, len(rows))

	for _, row := range rows {
		if row.Status == orders.RowCancelled {
			continue
		}
		pr, err := c.PriceRow(ctx, row, products[row.ProductDocID], d)
		if err != nil {
			return Totals{}, nil, err
		}
		t.Base = t.Base.Add(pr.Subtotal)
		t.Taxes = t.Taxes.Add(pr.Taxes)
		t.Net = t.Net.Add(pr.Net)
		priced = append(priced, pr)
	}

	t.Final = applyCustomDiscount(t.Base, d.Custom)
	t.RefinedUSD = ceilToTenth(t.Final)
	t.Riel = t.Final.Mul(c.rielRate)
	t.RefinedRiel = ceilToHundred(t.Riel)
	return t, priced, nil
}

func applyCustomDiscount(base decimal.Decimal, d CustomDiscount) decimal.Decimal {
	if !d.Active() {
		return base
	}
	if d.Type == CustomPercentage {
		return base.Mul(one.Sub(d.Value.Div(hundred)))
	}
	final := base.Sub(d.Value)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

// ceilToTenth rounds up to the nearest 0.1; the refined total is never below
// the unrounded total.
func ceilToTenth(d decimal.Decimal) decimal.Decimal {
	return d.Mul(ten).Ceil().Div(ten)
}

// ceilToHundred rounds up to the nearest 100.
func ceilToHundred(d decimal.Decimal) decimal.Decimal {
	return d.Div(hundred).Ceil().Mul(hundred)
}
