package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CustomDiscountType selects how a custom discount is applied to the grand total.
type CustomDiscountType string

const (
	CustomDollar     CustomDiscountType = "dollar"
	CustomPercentage CustomDiscountType = "percentage"
)

// CustomDiscount is the one optional order-wide discount entered by the
// operator. Zero value means no custom discount.
type CustomDiscount struct {
	Value decimal.Decimal
	Type  CustomDiscountType
}

// Active reports whether the discount carries a positive value.
func (d CustomDiscount) Active() bool {
	return d.Value.IsPositive()
}

func (d CustomDiscount) describe() string {
	if d.Type == CustomPercentage {
		return fmt.Sprintf("Custom Discount: %s%% off", d.Value.StringFixed(1))
	}
	return fmt.Sprintf("Custom Discount: -$%s", d.Value.StringFixed(2))
}

// DiscountSet is the per-checkout selection of discount toggles. It lives
// only for the checkout session; at payment it is persisted as the summary
// string, never as structured data.
type DiscountSet struct {
	KhmerCustomer       bool // beer fixed-price remap ($3 -> $1.75, $5 -> $3)
	CBACMembers         bool // beer: -$1 per unit
	KandalVillageFriend bool // 15% off all items
	Custom              CustomDiscount
}

// Summary renders the human-readable discount annotation persisted on the
// order at payment time. Toggles are enumerated in fixed order; activation
// order never matters.
func (d DiscountSet) Summary() string {
	var parts []string
	if d.KhmerCustomer {
		parts = append(parts, "Khmer Customer Discount (Beer prices adjusted)")
	}
	if d.CBACMembers {
		parts = append(parts, "CBAC Members Discount (Beer: -$1 per item)")
	}
	if d.KandalVillageFriend {
		parts = append(parts, "Kandal Village Friend Discount (15% off total order row)")
	}
	if d.Custom.Active() {
		parts = append(parts, d.Custom.describe())
	}
	if len(parts) == 0 {
		return "No discounts applied"
	}
	return strings.Join(parts, "; ")
}
