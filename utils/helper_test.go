package utils_test

import (
	"testing"
	"unicode/utf8"

	"github.com/tichlabs/tichpay_backend/utils"
)

func TestCentsFormatting(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		500:    "5.00",
		1210:   "12.10",
		123456: "1234.56",
		-250:   "-2.50",
	}
	for cents, want := range cases {
		if got := utils.FormatCents(cents); got != want {
			t.Errorf("FormatCents(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestRoundToOneDecimal(t *testing.T) {
	cases := map[float64]float64{
		50.0:      50.0,
		33.333333: 33.3,
		66.666666: 66.7,
		0:         0,
	}
	for in, want := range cases {
		if got := utils.RoundToOneDecimal(in); got != want {
			t.Errorf("RoundToOneDecimal(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got := utils.NormalizeCurrency(" usd ", "EUR"); got != "USD" {
		t.Errorf("got %q", got)
	}
	if got := utils.NormalizeCurrency("", "EUR"); got != "EUR" {
		t.Errorf("fallback: got %q", got)
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "client.name+tag@example.com"}
	invalid := []string{"", "plain", "a@b", "@example.com", "a b@example.com"}
	for _, e := range valid {
		if !utils.IsValidEmail(e) {
			t.Errorf("%q should be valid", e)
		}
	}
	for _, e := range invalid {
		if utils.IsValidEmail(e) {
			t.Errorf("%q should be invalid", e)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := utils.Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := utils.Truncate("hello world", 5); got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// "héllo" is 6 bytes; cutting at 2 would split the é.
	if got := utils.Truncate("héllo", 2); got != "h" {
		t.Errorf("got %q, want %q", got, "h")
	}
	s := "привет мир browser agent"
	for max := 0; max <= len(s); max++ {
		got := utils.Truncate(s, max)
		if len(got) > max {
			t.Fatalf("max %d: result is %d bytes", max, len(got))
		}
		if !utf8.ValidString(got) {
			t.Fatalf("max %d: invalid UTF-8 %q", max, got)
		}
	}
}
