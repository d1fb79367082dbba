// Package money extracts dollar amounts from free-form chat text and formats
// amounts for display.
//
// Amount grammar accepted by Extract:
//
//	"$" [whitespace] ( d{1,3} ("," ddd)+ | d+ ) [ "." d{1,2} ]
//
// Matching is leftmost-first and characters following a match are not
// examined, so "$1.500" reads as 1.50 and "$0.001" reads as 0.00.
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountRE captures the numeric part of a "$"-prefixed amount.
var amountRE = regexp.MustCompile(`\$\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?)`)

// Extract returns the sum of every dollar amount found in text, rounded to
// cents. It returns zero when text is empty or carries no amount. Tokens that
// fail to parse are skipped individually.
func Extract(text string) decimal.Decimal {
	if text == "" {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, m := range amountRE.FindAllStringSubmatch(text, -1) {
		v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		sum = sum.Add(v)
	}
	return sum.Round(2)
}

// Matches returns the raw amount tokens found in text, in order of
// appearance. Useful for logging what Extract summed.
func Matches(text string) []string {
	found := amountRE.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(found))
	for _, m := range found {
		out = append(out, m[1])
	}
	return out
}
