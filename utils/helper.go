package utils

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// CentsToDecimal converts a minor-unit amount to display units.
// All ledger storage is minor-unit integers; division by 100 happens
// only at the presentation boundary.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// FormatCents renders a minor-unit amount as a fixed two-decimal string.
func FormatCents(cents int64) string {
	return CentsToDecimal(cents).StringFixed(2)
}

// RoundToOneDecimal rounds a percentage the way the dashboard reports it.
func RoundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

func NormalizeCurrency(code string, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fallback
	}
	return code
}

// Truncate clips a string to at most max bytes, for columns fed from
// uncontrolled request headers. The cut lands on a rune boundary so the
// result is always valid UTF-8.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
