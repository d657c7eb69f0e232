package menu

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when a workspace has no valid output currency.
const DefaultCurrency = "USD"

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"CAD": "CA$",
	"AUD": "A$",
	"NZD": "NZ$",
}

// FormatAmount renders a balance held in minor units, e.g. 123456 USD as
// "$1,234.56". The number of minor digits follows the currency's standard
// rounding.
func FormatAmount(minor int64, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.MustParseISO(DefaultCurrency)
	}
	scale, _ := currency.Standard.Rounding(unit)

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	value := float64(minor) / math.Pow10(scale)

	format := "#,###."
	if scale > 0 {
		format += strings.Repeat("#", scale)
	}
	return sign + symbol(unit) + humanize.FormatFloat(format, value)
}

func symbol(unit currency.Unit) string {
	if s, ok := symbols[unit.String()]; ok {
		return s
	}
	return unit.String() + " "
}
