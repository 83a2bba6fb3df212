// Package totals computes a document's monetary breakdown.
//
// The computation is pure: identical inputs always produce identical
// outputs, with no store access. The same code backs both document
// persistence and the live preview endpoint, so stored amounts and
// previewed amounts can never diverge.
package totals

import (
	"facturio/internal/core/apperror"
	"facturio/internal/core/types"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage interprets Value as a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountAmount interprets Value as an absolute amount.
	DiscountAmount DiscountType = "amount"
)

// Line is one billable position: quantity times unit price.
type Line struct {
	Quantity  types.Money
	UnitPrice types.Money
}

// Discount describes an optional document-level discount.
type Discount struct {
	Type  DiscountType
	Value types.Money
}

// Input collects everything the breakdown depends on.
//
// TaxRate nil means the issuer is VAT-exempt ("TVA non applicable").
// A non-nil zero rate is a real configured rate and produces a zero tax
// line; the two cases are distinct and must stay distinct.
type Input struct {
	Lines    []Line
	TaxRate  *types.Money
	Discount *Discount
	Deposit  *types.Money
}

// Breakdown is the full monetary result, every field rounded to 2 decimals.
type Breakdown struct {
	Subtotal       types.Money `json:"subtotal"`
	DiscountAmount types.Money `json:"discountAmount"`
	NetHT          types.Money `json:"netHT"`
	TaxTotal       types.Money `json:"taxTotal"`
	TotalTTC       types.Money `json:"totalTTC"`
	DepositApplied types.Money `json:"depositApplied"`
	NetToPay       types.Money `json:"netToPay"`
}

// Compute derives the breakdown in a fixed order, rounding every
// intermediate to 2 decimals before it is used downstream:
//
//	subtotal -> discount (clamped) -> netHT -> taxTotal -> totalTTC
//	-> deposit (clamped) -> netToPay
//
// Clamps keep a discount from inverting sign or exceeding its base, and a
// deposit from exceeding the total it is applied against.
func Compute(in Input) (Breakdown, error) {
	if err := validate(in); err != nil {
		return Breakdown{}, err
	}

	subtotal := types.Zero()
	for _, line := range in.Lines {
		subtotal = subtotal.Add(types.Round2(line.Quantity.Mul(line.UnitPrice)))
	}
	subtotal = types.Round2(subtotal)

	discountAmount := types.Zero()
	if in.Discount != nil {
		switch in.Discount.Type {
		case DiscountPercentage:
			pct := types.Clamp(in.Discount.Value, types.Zero(), types.Hundred())
			discountAmount = types.Percent(subtotal, pct)
		case DiscountAmount:
			discountAmount = types.Round2(types.Clamp(in.Discount.Value, types.Zero(), subtotal))
		}
	}

	netHT := types.Round2(subtotal.Sub(discountAmount))

	taxTotal := types.Zero()
	if in.TaxRate != nil {
		taxTotal = types.Percent(netHT, *in.TaxRate)
	}

	totalTTC := types.Round2(netHT.Add(taxTotal))

	deposit := types.Zero()
	if in.Deposit != nil {
		deposit = types.Round2(types.Clamp(*in.Deposit, types.Zero(), totalTTC))
	}

	return Breakdown{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		NetHT:          netHT,
		TaxTotal:       taxTotal,
		TotalTTC:       totalTTC,
		DepositApplied: deposit,
		NetToPay:       types.Round2(totalTTC.Sub(deposit)),
	}, nil
}

// validate rejects malformed input before any computation, surfacing the
// first violated rule.
func validate(in Input) error {
	for i, line := range in.Lines {
		if line.Quantity.IsNegative() {
			return apperror.NewValidation("quantity must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	if in.TaxRate != nil && in.TaxRate.IsNegative() {
		return apperror.NewValidation("tax rate must not be negative").
			WithDetail("field", "taxRate")
	}

	if in.Discount != nil {
		switch in.Discount.Type {
		case DiscountPercentage, DiscountAmount:
		default:
			return apperror.NewValidation("unknown discount type").
				WithDetail("field", "discount.type").
				WithDetail("value", string(in.Discount.Type))
		}
		if in.Discount.Value.IsNegative() {
			return apperror.NewValidation("discount value must not be negative").
				WithDetail("field", "discount.value")
		}
	}

	if in.Deposit != nil && in.Deposit.IsNegative() {
		return apperror.NewValidation("deposit must not be negative").
			WithDetail("field", "deposit")
	}

	return nil
}
