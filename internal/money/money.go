// Package money implements the document pricing rules shared by quotations
// and invoices. All amounts are decimal and rounded half away from zero to
// two fraction digits.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale int32 = 2

var (
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrInvalidUnitPrice    = errors.New("invalid_unit_price")
	ErrInvalidTaxRate      = errors.New("invalid_tax_rate")
	ErrInvalidDiscount     = errors.New("invalid_discount")
	ErrInvalidDiscountType = errors.New("invalid_discount_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

var hundred = decimal.NewFromInt(100)

// IsInvalidInput reports whether err is one of the calculator's input errors.
func IsInvalidInput(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitPrice),
		errors.Is(err, ErrInvalidTaxRate),
		errors.Is(err, ErrInvalidDiscount),
		errors.Is(err, ErrInvalidDiscountType),
		errors.Is(err, ErrInvalidAmount):
		return true
	default:
		return false
	}
}

type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ParseDiscountType normalizes user input; empty means none.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(strings.ToLower(strings.TrimSpace(value))) {
	case "", DiscountNone:
		return DiscountNone, nil
	case DiscountPercentage:
		return DiscountPercentage, nil
	case DiscountFixed:
		return DiscountFixed, nil
	default:
		return "", ErrInvalidDiscountType
	}
}

func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ComputeDiscount returns the discount amount for base.
func ComputeDiscount(base decimal.Decimal, kind DiscountType, value decimal.Decimal) (decimal.Decimal, error) {
	if value.IsNegative() {
		return decimal.Zero, ErrInvalidDiscount
	}
	switch kind {
	case "", DiscountNone:
		return decimal.Zero, nil
	case DiscountPercentage:
		if value.GreaterThan(hundred) {
			return decimal.Zero, ErrInvalidDiscount
		}
		return Round(base.Mul(value).Div(hundred)), nil
	case DiscountFixed:
		return Round(value), nil
	default:
		return decimal.Zero, ErrInvalidDiscountType
	}
}

type LineTotal struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

func ComputeLineTotal(unitPrice, quantity, taxRate decimal.Decimal) (LineTotal, error) {
	return ComputeDiscountedLineTotal(unitPrice, quantity, decimal.Zero, taxRate)
}

// ComputeDiscountedLineTotal applies a flat per-line discount before tax.
func ComputeDiscountedLineTotal(unitPrice, quantity, discount, taxRate decimal.Decimal) (LineTotal, error) {
	if !quantity.IsPositive() {
		return LineTotal{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return LineTotal{}, ErrInvalidUnitPrice
	}
	if taxRate.IsNegative() {
		return LineTotal{}, ErrInvalidTaxRate
	}
	if discount.IsNegative() {
		return LineTotal{}, ErrInvalidDiscount
	}

	gross := unitPrice.Mul(quantity)
	if discount.GreaterThan(gross) {
		return LineTotal{}, ErrInvalidDiscount
	}
	subtotal := Round(gross.Sub(discount))
	tax := Round(subtotal.Mul(taxRate).Div(hundred))
	return LineTotal{
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}, nil
}

type DocumentInput struct {
	Subtotal      decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	Shipping      decimal.Decimal
	TaxRate       decimal.Decimal

	// Caller-supplied figures that replace the computed ones.
	TaxOverride   *decimal.Decimal
	TotalOverride *decimal.Decimal
}

type DocumentTotals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal

	// Overridden is set when a supplied figure differs from the computed one.
	Overridden    bool
	ComputedTax   decimal.Decimal
	ComputedTotal decimal.Decimal
}

// ComputeDocumentTotals evaluates
//
//	taxable = subtotal - discount + shipping
//	tax     = taxable * rate / 100
//	total   = taxable + tax
func ComputeDocumentTotals(in DocumentInput) (DocumentTotals, error) {
	if in.Subtotal.IsNegative() || in.Shipping.IsNegative() {
		return DocumentTotals{}, ErrInvalidAmount
	}
	if in.TaxRate.IsNegative() {
		return DocumentTotals{}, ErrInvalidTaxRate
	}

	subtotal := Round(in.Subtotal)
	discount, err := ComputeDiscount(subtotal, in.DiscountType, in.DiscountValue)
	if err != nil {
		return DocumentTotals{}, err
	}
	if discount.GreaterThan(subtotal) {
		return DocumentTotals{}, ErrInvalidDiscount
	}
	shipping := Round(in.Shipping)

	taxable := subtotal.Sub(discount).Add(shipping)
	tax := Round(taxable.Mul(in.TaxRate).Div(hundred))
	total := taxable.Add(tax)

	out := DocumentTotals{
		Subtotal:      subtotal,
		Discount:      discount,
		Shipping:      shipping,
		Taxable:       taxable,
		Tax:           tax,
		Total:         total,
		ComputedTax:   tax,
		ComputedTotal: total,
	}

	if in.TaxOverride != nil {
		if in.TaxOverride.IsNegative() {
			return DocumentTotals{}, ErrInvalidAmount
		}
		out.Tax = Round(*in.TaxOverride)
		out.Total = taxable.Add(out.Tax)
	}
	if in.TotalOverride != nil {
		if in.TotalOverride.IsNegative() {
			return DocumentTotals{}, ErrInvalidAmount
		}
		out.Total = Round(*in.TotalOverride)
	}
	out.Overridden = !out.Tax.Equal(out.ComputedTax) || !out.Total.Equal(out.ComputedTotal)

	return out, nil
}

// BalanceDue never goes below zero.
func BalanceDue(total, paid decimal.Decimal) decimal.Decimal {
	balance := Round(total.Sub(paid))
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// Sum adds the values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, values...)
}

// WithinTolerance reports whether a and b differ by at most one cent.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -Scale))
}
