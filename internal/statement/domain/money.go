package statement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a value as "#.###,##": dot thousands, comma decimals, no symbol.
func FormatAmount(value decimal.Decimal) string {
	rounded := value.Round(2)
	negative := rounded.IsNegative()
	fixed := rounded.Abs().StringFixed(2)

	intPart, fracPart := fixed, "00"
	if dot := strings.IndexByte(fixed, '.'); dot >= 0 {
		intPart, fracPart = fixed[:dot], fixed[dot+1:]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte('.')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}
