package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturio/internal/core/apperror"
	"facturio/internal/core/types"
)

func money(s string) types.Money {
	return types.MustMoney(s)
}

func moneyPtr(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

func TestCompute_BaseScenario(t *testing.T) {
	// 2 x 100 at 20% VAT, no discount, no deposit.
	b, err := Compute(Input{
		Lines:   []Line{{Quantity: money("2"), UnitPrice: money("100")}},
		TaxRate: moneyPtr("20"),
	})
	require.NoError(t, err)

	assert.True(t, b.Subtotal.Equal(money("200")), "subtotal = %s", b.Subtotal)
	assert.True(t, b.TaxTotal.Equal(money("40")), "taxTotal = %s", b.TaxTotal)
	assert.True(t, b.TotalTTC.Equal(money("240")), "totalTTC = %s", b.TotalTTC)
	assert.True(t, b.NetToPay.Equal(money("240")), "netToPay = %s", b.NetToPay)
}

func TestCompute_TotalEqualsNetPlusTax(t *testing.T) {
	inputs := []Input{
		{Lines: []Line{{Quantity: money("3"), UnitPrice: money("19.99")}}, TaxRate: moneyPtr("20")},
		{Lines: []Line{{Quantity: money("1.5"), UnitPrice: money("33.33")}}, TaxRate: moneyPtr("5.5")},
		{
			Lines:    []Line{{Quantity: money("7"), UnitPrice: money("12.07")}},
			TaxRate:  moneyPtr("10"),
			Discount: &Discount{Type: DiscountPercentage, Value: money("12.5")},
		},
	}

	for _, in := range inputs {
		b, err := Compute(in)
		require.NoError(t, err)

		assert.True(t, b.TotalTTC.Equal(b.NetHT.Add(b.TaxTotal)),
			"totalTTC %s != netHT %s + taxTotal %s", b.TotalTTC, b.NetHT, b.TaxTotal)

		for _, v := range []types.Money{b.Subtotal, b.DiscountAmount, b.NetHT, b.TaxTotal, b.TotalTTC, b.NetToPay} {
			assert.LessOrEqual(t, int(-v.Exponent()), 2, "value %s has more than 2 decimals", v)
		}
	}
}

func TestCompute_PercentageDiscountClamped(t *testing.T) {
	b, err := Compute(Input{
		Lines:    []Line{{Quantity: money("1"), UnitPrice: money("100")}},
		Discount: &Discount{Type: DiscountPercentage, Value: money("150")},
	})
	require.NoError(t, err)

	// 150% is clamped to 100%: the discount eats the whole subtotal, not more.
	assert.True(t, b.DiscountAmount.Equal(money("100")), "discountAmount = %s", b.DiscountAmount)
	assert.True(t, b.NetHT.IsZero())
}

func TestCompute_AmountDiscountClamped(t *testing.T) {
	b, err := Compute(Input{
		Lines:    []Line{{Quantity: money("1"), UnitPrice: money("100")}},
		Discount: &Discount{Type: DiscountAmount, Value: money("500")},
	})
	require.NoError(t, err)

	assert.True(t, b.DiscountAmount.Equal(money("100")), "discountAmount = %s", b.DiscountAmount)
	assert.True(t, b.NetHT.IsZero())
	assert.True(t, b.TotalTTC.IsZero())
}

func TestCompute_DepositClamped(t *testing.T) {
	b, err := Compute(Input{
		Lines:   []Line{{Quantity: money("1"), UnitPrice: money("50")}},
		Deposit: moneyPtr("9999"),
	})
	require.NoError(t, err)

	assert.True(t, b.DepositApplied.Equal(money("50")), "depositApplied = %s", b.DepositApplied)
	assert.True(t, b.NetToPay.IsZero(), "netToPay = %s", b.NetToPay)
}

func TestCompute_ZeroLines(t *testing.T) {
	b, err := Compute(Input{TaxRate: moneyPtr("20")})
	require.NoError(t, err)

	assert.True(t, b.Subtotal.IsZero())
	assert.True(t, b.TaxTotal.IsZero())
	assert.True(t, b.TotalTTC.IsZero())
	assert.True(t, b.NetToPay.IsZero())
}

func TestCompute_ZeroRateIsNotExempt(t *testing.T) {
	zero := decimal.Zero
	withZeroRate, err := Compute(Input{
		Lines:   []Line{{Quantity: money("1"), UnitPrice: money("100")}},
		TaxRate: &zero,
	})
	require.NoError(t, err)

	exempt, err := Compute(Input{
		Lines: []Line{{Quantity: money("1"), UnitPrice: money("100")}},
	})
	require.NoError(t, err)

	// Both produce zero tax, but a configured zero rate must flow through
	// the same code path as any other rate.
	assert.True(t, withZeroRate.TaxTotal.IsZero())
	assert.True(t, exempt.TaxTotal.IsZero())
	assert.True(t, withZeroRate.TotalTTC.Equal(exempt.TotalTTC))
}

func TestCompute_RoundsIntermediates(t *testing.T) {
	// 3 x 0.333 = 0.999 -> line rounds to 1.00 before summation.
	b, err := Compute(Input{
		Lines:   []Line{{Quantity: money("3"), UnitPrice: money("0.333")}},
		TaxRate: moneyPtr("20"),
	})
	require.NoError(t, err)

	assert.True(t, b.Subtotal.Equal(money("1.00")), "subtotal = %s", b.Subtotal)
	assert.True(t, b.TaxTotal.Equal(money("0.20")), "taxTotal = %s", b.TaxTotal)
	assert.True(t, b.TotalTTC.Equal(money("1.20")), "totalTTC = %s", b.TotalTTC)
}

func TestCompute_Referential(t *testing.T) {
	in := Input{
		Lines:    []Line{{Quantity: money("4"), UnitPrice: money("25.45")}},
		TaxRate:  moneyPtr("20"),
		Discount: &Discount{Type: DiscountPercentage, Value: money("10")},
		Deposit:  moneyPtr("30"),
	}

	first, err := Compute(in)
	require.NoError(t, err)
	second, err := Compute(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompute_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		in   Input
	}{
		{"negative quantity", Input{Lines: []Line{{Quantity: money("-1"), UnitPrice: money("10")}}}},
		{"negative price", Input{Lines: []Line{{Quantity: money("1"), UnitPrice: money("-10")}}}},
		{"negative rate", Input{TaxRate: moneyPtr("-20")}},
		{"negative discount", Input{Discount: &Discount{Type: DiscountAmount, Value: money("-5")}}},
		{"unknown discount type", Input{Discount: &Discount{Type: "coupon", Value: money("5")}}},
		{"negative deposit", Input{Deposit: moneyPtr("-1")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.in)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}
