package x402

import (
	"context"
	"math/big"
)

// PricingContext carries the request attributes a dynamic price
// calculator may consider.
type PricingContext struct {
	Path       string
	Method     string
	ClientAddr string
	BodySize   int64
	Metadata   map[string]interface{}
}

// PriceBreakdown itemizes a dynamically computed price in the asset's
// smallest unit. Nil components count as zero.
type PriceBreakdown struct {
	Base     *big.Int `json:"base"`
	Size     *big.Int `json:"size,omitempty"`
	Compute  *big.Int `json:"compute,omitempty"`
	Surge    *big.Int `json:"surge,omitempty"`
	Discount *big.Int `json:"discount,omitempty"`
}

// Total sums the components (discount subtracts), floored at zero.
func (b PriceBreakdown) Total() *big.Int {
	total := new(big.Int)
	for _, c := range []*big.Int{b.Base, b.Size, b.Compute, b.Surge} {
		if c != nil {
			total.Add(total, c)
		}
	}
	if b.Discount != nil {
		total.Sub(total, b.Discount)
	}
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return total
}

// PriceCalculator computes a request-specific price for a route.
type PriceCalculator interface {
	Calculate(ctx context.Context, pricing PricingContext) (PriceBreakdown, error)
}

// ComponentFunc computes one breakdown component from the request context.
type ComponentFunc func(pricing PricingContext) *big.Int

// DynamicPricer is a configurable PriceCalculator: a base amount, an
// optional per-byte charge, and pluggable compute/surge/discount
// components, with the total clamped to [Min, Max].
type DynamicPricer struct {
	Base     *big.Int
	PerByte  *big.Int
	Compute  ComponentFunc
	Surge    ComponentFunc
	Discount ComponentFunc
	Min      *big.Int
	Max      *big.Int
}

// Calculate implements PriceCalculator.
func (p *DynamicPricer) Calculate(_ context.Context, pricing PricingContext) (PriceBreakdown, error) {
	breakdown := PriceBreakdown{Base: p.Base}

	if p.PerByte != nil && pricing.BodySize > 0 {
		breakdown.Size = new(big.Int).Mul(p.PerByte, big.NewInt(pricing.BodySize))
	}
	if p.Compute != nil {
		breakdown.Compute = p.Compute(pricing)
	}
	if p.Surge != nil {
		breakdown.Surge = p.Surge(pricing)
	}
	if p.Discount != nil {
		breakdown.Discount = p.Discount(pricing)
	}

	total := breakdown.Total()
	if p.Min != nil && total.Cmp(p.Min) < 0 {
		diff := new(big.Int).Sub(p.Min, total)
		breakdown.Surge = addComponent(breakdown.Surge, diff)
	}
	if p.Max != nil && total.Cmp(p.Max) > 0 {
		diff := new(big.Int).Sub(total, p.Max)
		breakdown.Discount = addComponent(breakdown.Discount, diff)
	}
	return breakdown, nil
}

func addComponent(c, delta *big.Int) *big.Int {
	if c == nil {
		return new(big.Int).Set(delta)
	}
	return new(big.Int).Add(c, delta)
}

// FixedPrice is a PriceCalculator returning a constant amount.
type FixedPrice struct {
	Amount *big.Int
}

// Calculate implements PriceCalculator.
func (p FixedPrice) Calculate(context.Context, PricingContext) (PriceBreakdown, error) {
	return PriceBreakdown{Base: p.Amount}, nil
}
