package notify

import (
	"strings"

	"github.com/shopspring/decimal"
)

// formatAmount renders a money amount with two decimals and thousand separators
func formatAmount(amount decimal.Decimal) string {
	str := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(str, ".")

	var result strings.Builder
	if amount.IsNegative() {
		result.WriteRune('-')
	}

	n := len(whole)
	for i, digit := range whole {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	result.WriteRune('.')
	result.WriteString(frac)

	return result.String()
}
