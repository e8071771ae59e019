package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name  string
		base  string
		kind  DiscountType
		value string
		want  string
		err   error
	}{
		{name: "none", base: "500", kind: DiscountNone, value: "10", want: "0"},
		{name: "empty type", base: "500", kind: "", value: "10", want: "0"},
		{name: "percentage", base: "500", kind: DiscountPercentage, value: "10", want: "50"},
		{name: "percentage rounds", base: "33.33", kind: DiscountPercentage, value: "15", want: "5"},
		{name: "fixed", base: "500", kind: DiscountFixed, value: "25.5", want: "25.5"},
		{name: "negative", base: "500", kind: DiscountFixed, value: "-1", err: ErrInvalidDiscount},
		{name: "over hundred percent", base: "500", kind: DiscountPercentage, value: "101", err: ErrInvalidDiscount},
		{name: "unknown type", base: "500", kind: "bogus", value: "1", err: ErrInvalidDiscountType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ComputeDiscount(d(tc.base), tc.kind, d(tc.value))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tc.want)), "got %s want %s", got, tc.want)
		})
	}
}

func TestComputeLineTotalProperty(t *testing.T) {
	prices := []string{"0", "0.01", "19.99", "250", "1234.567"}
	quantities := []string{"1", "2", "3.5", "10"}
	rates := []string{"0", "8", "16", "12.5"}

	for _, p := range prices {
		for _, q := range quantities {
			for _, r := range rates {
				line, err := ComputeLineTotal(d(p), d(q), d(r))
				require.NoError(t, err)

				wantSub := d(p).Mul(d(q)).Round(2)
				wantTax := wantSub.Mul(d(r)).Div(d("100")).Round(2)
				assert.True(t, line.Subtotal.Equal(wantSub))
				assert.True(t, line.TaxAmount.Equal(wantTax))
				assert.True(t, line.Total.Equal(line.Subtotal.Add(line.TaxAmount)))
			}
		}
	}
}

func TestComputeLineTotalRejectsInvalidInput(t *testing.T) {
	_, err := ComputeLineTotal(d("10"), d("0"), d("16"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ComputeLineTotal(d("-1"), d("1"), d("16"))
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, err = ComputeLineTotal(d("1"), d("1"), d("-16"))
	assert.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = ComputeDiscountedLineTotal(d("10"), d("1"), d("11"), d("0"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)
	assert.True(t, IsInvalidInput(err))
}

func TestComputeDocumentTotals(t *testing.T) {
	totals, err := ComputeDocumentTotals(DocumentInput{
		Subtotal: d("500"),
		TaxRate:  d("16"),
	})
	require.NoError(t, err)
	assert.True(t, totals.Tax.Equal(d("80")))
	assert.True(t, totals.Total.Equal(d("580")))
	assert.False(t, totals.Overridden)
}

func TestComputeDocumentTotalsWithDiscountAndShipping(t *testing.T) {
	totals, err := ComputeDocumentTotals(DocumentInput{
		Subtotal:      d("1000"),
		DiscountType:  DiscountPercentage,
		DiscountValue: d("10"),
		Shipping:      d("50"),
		TaxRate:       d("16"),
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(d("100")))
	assert.True(t, totals.Taxable.Equal(d("950")))
	assert.True(t, totals.Tax.Equal(d("152")))
	assert.True(t, totals.Total.Equal(d("1102")))
}

func TestComputeDocumentTotalsOverrides(t *testing.T) {
	totals, err := ComputeDocumentTotals(DocumentInput{
		Subtotal:    d("500"),
		TaxRate:     d("16"),
		TaxOverride: ptr(d("75")),
	})
	require.NoError(t, err)
	assert.True(t, totals.Tax.Equal(d("75")))
	assert.True(t, totals.Total.Equal(d("575")))
	assert.True(t, totals.ComputedTax.Equal(d("80")))
	assert.True(t, totals.Overridden)

	totals, err = ComputeDocumentTotals(DocumentInput{
		Subtotal:      d("500"),
		TaxRate:       d("16"),
		TotalOverride: ptr(d("600")),
	})
	require.NoError(t, err)
	assert.True(t, totals.Total.Equal(d("600")))
	assert.True(t, totals.ComputedTotal.Equal(d("580")))
	assert.True(t, totals.Overridden)
}

func TestComputeDocumentTotalsMatchingOverrideIsNotFlagged(t *testing.T) {
	totals, err := ComputeDocumentTotals(DocumentInput{
		Subtotal:      d("1000"),
		TaxRate:       d("16"),
		TaxOverride:   ptr(d("160")),
		TotalOverride: ptr(d("1160.00")),
	})
	require.NoError(t, err)
	assert.False(t, totals.Overridden)
}

func TestComputeDocumentTotalsRejectsDiscountAboveSubtotal(t *testing.T) {
	_, err := ComputeDocumentTotals(DocumentInput{
		Subtotal:      d("100"),
		DiscountType:  DiscountFixed,
		DiscountValue: d("150"),
	})
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestBalanceDue(t *testing.T) {
	assert.True(t, BalanceDue(d("580"), d("300")).Equal(d("280")))
	assert.True(t, BalanceDue(d("580"), d("580")).IsZero())
	assert.True(t, BalanceDue(d("580"), d("600")).IsZero())
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, WithinTolerance(d("1160"), d("1160.01")))
	assert.False(t, WithinTolerance(d("1160"), d("1160.02")))
}

func TestParseDiscountType(t *testing.T) {
	kind, err := ParseDiscountType(" Percentage ")
	require.NoError(t, err)
	assert.Equal(t, DiscountPercentage, kind)

	kind, err = ParseDiscountType("")
	require.NoError(t, err)
	assert.Equal(t, DiscountNone, kind)

	_, err = ParseDiscountType("bogo")
	assert.ErrorIs(t, err, ErrInvalidDiscountType)
}
