package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a percentage discount above 100 would drive the total negative
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})
	v.RegisterStructValidation(quoteStructValidation, QuoteRequest{})

	return v
}

func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)
	validateDiscounts(sl, req.Discounts)
}

func quoteStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(QuoteRequest)
	validateDiscounts(sl, req.Discounts)
}

func validateDiscounts(sl validatorv10.StructLevel, d DiscountPayload) {
	if d.Custom == nil {
		return
	}
	if d.Custom.Type == "percentage" && d.Custom.Value > 100 {
		sl.ReportError(d.Custom.Value, "discounts.custom.value", "Value", "percentage_range", "percentage discount must not exceed 100")
	}
	if d.Custom.Value > 0 && d.Custom.Type == "" {
		sl.ReportError(d.Custom.Type, "discounts.custom.type", "Type", "type_required", "custom discount type required when value is set")
	}
}
