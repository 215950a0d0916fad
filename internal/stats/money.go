package stats

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount as "R$ 1.234,56" using symbol as the prefix.
func FormatMoney(amount decimal.Decimal, symbol string) string {
	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	if symbol == "" {
		return out
	}
	return symbol + " " + out
}
