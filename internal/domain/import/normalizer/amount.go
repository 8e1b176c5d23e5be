package normalizer

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencyTokens = []string{"R$", "US$", "BRL", "USD", "EUR", "$", "€", "£"}

// ParseAmount coerces a monetary string into a number. It accepts Brazilian
// ("R$ 1.234,56"), plain ("1234.56") and accounting ("(12,50)", "12,50-")
// notations. The sign is preserved; the caller decides what it means.
func ParseAmount(raw string) (float64, bool) {
	d, ok := ParseDecimal(raw)
	if !ok {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseDecimal is ParseAmount without the float conversion.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}

	upper := strings.ToUpper(s)
	for _, tok := range currencyTokens {
		upper = strings.ReplaceAll(upper, tok, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, upper)

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else {
		s = strings.TrimPrefix(s, "+")
	}
	if s == "" {
		return decimal.Zero, false
	}

	s = normalizeSeparators(s)
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// normalizeSeparators rewrites s so that '.' is the only, decimal, separator.
func normalizeSeparators(s string) string {
	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			// 1.234,56
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case dot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
		// A lone dot followed by exactly three digits is a thousands
		// separator in pt-BR ("1.234"), unless the integer part is zero.
		if len(s)-dot-1 == 3 && dot > 0 && strings.Trim(s[:dot], "0") != "" {
			return strings.Replace(s, ".", "", 1)
		}
	}
	return s
}
