package payment

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ParseAmount converts a decimal amount string ("60", "60.5", "60.00",
// "-3.25") to cents exactly, without ever touching floating point. At most
// two fraction digits are accepted; a payment granularity below one cent
// has no representation in the ledger.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty string")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse amount: %q is not a number", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse amount: %q has more than two fraction digits", s)
	}
	// 15 whole digits keep the cents total well inside int64; anything
	// longer would overflow the accumulation below.
	if len(strings.TrimLeft(whole, "0")) > 15 {
		return 0, fmt.Errorf("parse amount: %q is out of range", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	cents := int64(0)
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("parse amount: %q is not a number", s)
			}
			cents = cents*10 + int64(r-'0')
		}
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

// FormatCents renders cents as a localized decimal amount, for example
// "1,234.50" under English locales. Display only - the engine itself
// never formats amounts.
func FormatCents(cents int64, tag language.Tag) string {
	p := message.NewPrinter(tag)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return p.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
