package services

import (
	domain "github.com/kalaghar/api/internal/domain"
)

const basisPointsDenominator = 10000

// PricingPolicy is the flat tax and shipping policy. Amounts are paise.
type PricingPolicy struct {
	TaxRateBasisPoints    int64
	FreeShippingThreshold int64
	FlatShipping          int64
}

// DefaultPricingPolicy is 8% tax with free shipping on subtotals above 100.00.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		TaxRateBasisPoints:    800,
		FreeShippingThreshold: 10000,
		FlatShipping:          1500,
	}
}

// IsDefault reports whether the policy still carries the legacy thresholds, which are
// far below typical INR prices.
func (p PricingPolicy) IsDefault() bool {
	return p == DefaultPricingPolicy()
}

// PricingCalculator derives order totals from line items. It holds no state besides the
// policy.
type PricingCalculator struct {
	policy PricingPolicy
}

// NewPricingCalculator builds a calculator; negative policy values fall back to defaults.
func NewPricingCalculator(policy PricingPolicy) PricingCalculator {
	def := DefaultPricingPolicy()
	if policy.TaxRateBasisPoints < 0 {
		policy.TaxRateBasisPoints = def.TaxRateBasisPoints
	}
	if policy.FreeShippingThreshold < 0 {
		policy.FreeShippingThreshold = def.FreeShippingThreshold
	}
	if policy.FlatShipping < 0 {
		policy.FlatShipping = def.FlatShipping
	}
	return PricingCalculator{policy: policy}
}

// Policy returns the effective policy.
func (c PricingCalculator) Policy() PricingPolicy {
	return c.policy
}

// Compute returns subtotal, tax, shipping and total. Total is always the exact sum of
// the other three.
func (c PricingCalculator) Compute(items []domain.OrderLineItem) domain.Pricing {
	var subtotal int64
	for _, item := range items {
		if item.Quantity <= 0 || item.PriceAtTime <= 0 {
			continue
		}
		subtotal += item.PriceAtTime * int64(item.Quantity)
	}

	tax := roundHalfUp(subtotal*c.policy.TaxRateBasisPoints, basisPointsDenominator)

	shipping := c.policy.FlatShipping
	if subtotal > c.policy.FreeShippingThreshold {
		shipping = 0
	}

	return domain.Pricing{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping,
	}
}

// roundHalfUp divides non-negative num by den rounding halves up.
func roundHalfUp(num, den int64) int64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	return (num + den/2) / den
}
