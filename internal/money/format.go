package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Format renders d with two decimals and thousands separators, prefixed
// by the currency code when one is given: "KES 1,160.00".
func Format(currency string, d decimal.Decimal) string {
	raw := d.StringFixed(Scale)
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign = "-"
		raw = raw[1:]
	}
	whole, frac, _ := strings.Cut(raw, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := sign + b.String() + "." + frac
	if currency = strings.TrimSpace(currency); currency != "" {
		return currency + " " + out
	}
	return out
}

// FormatQuantity trims trailing zeros: 2.500 renders as 2.5.
func FormatQuantity(d decimal.Decimal) string {
	return d.String()
}
