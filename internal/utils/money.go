package utils

import (
	"fmt"
	"strings"
)

// currencySymbols maps lowercase ISO codes to display symbols. Unknown codes
// fall back to the upper-cased code itself.
var currencySymbols = map[string]string{
	"brl": "R$",
	"usd": "$",
	"eur": "€",
}

// FormatMinorUnits renders an integer minor-unit amount as a display price.
// Brazilian real uses a decimal comma, everything else a decimal point.
//
// Example:
//
//	utils.FormatMinorUnits(5000, "brl") // "R$ 50,00"
//	utils.FormatMinorUnits(1999, "usd") // "$ 19.99"
func FormatMinorUnits(amount int64, currency string) string {
	currency = strings.ToLower(currency)
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = strings.ToUpper(currency)
	}
	neg := ""
	if amount < 0 {
		neg = "-"
		amount = -amount
	}
	sep := "."
	if currency == "brl" {
		sep = ","
	}
	return fmt.Sprintf("%s%s %d%s%02d", neg, symbol, amount/100, sep, amount%100)
}
