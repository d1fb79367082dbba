package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Format renders d as US dollars with thousands grouping and two decimals,
// e.g. "$1,234.56". Negative values keep their sign in front of the symbol.
func Format(d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()
	return printer.Sprintf("%s$%d.%02d", sign, whole.IntPart(), cents)
}
