// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referendum

import (
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatBalance renders a planck amount in whole tokens with thousands
// separators, afterComma truncated decimals and an optional unit:
// FormatBalance(12345678900000, 10, 2, "DOT") == "1,234.56 DOT".
func FormatBalance(amount *big.Int, decimals, afterComma int, unit string) string {
	if amount == nil {
		amount = zero
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))

	var b strings.Builder
	b.WriteString(humanize.BigComma(whole))

	if afterComma > 0 && decimals > 0 {
		digits := frac.String()
		if len(digits) < decimals {
			digits = strings.Repeat("0", decimals-len(digits)) + digits
		}
		if afterComma < len(digits) {
			digits = digits[:afterComma]
		}
		b.WriteByte('.')
		b.WriteString(digits)
	}

	if unit != "" {
		b.WriteByte(' ')
		b.WriteString(unit)
	}
	return b.String()
}
