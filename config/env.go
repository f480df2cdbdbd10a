package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Application settings read from the environment. godotenv.Load runs from the
// database init so a local .env is always honored.

func AppURL() string {
	if v := strings.TrimSpace(os.Getenv("APP_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:3000"
}

func StripeSecretKey() string {
	return os.Getenv("STRIPE_SECRET_KEY")
}

func StripeWebhookSecret() string {
	return os.Getenv("STRIPE_WEBHOOK_SECRET")
}

func ResendAPIKey() string {
	return os.Getenv("RESEND_API_KEY")
}

func FromEmail() string {
	if v := strings.TrimSpace(os.Getenv("FROM_EMAIL")); v != "" {
		return v
	}
	return "noreply@tichpay.app"
}

func SupportEmail() string {
	if v := strings.TrimSpace(os.Getenv("SUPPORT_EMAIL")); v != "" {
		return v
	}
	return "support@tichpay.app"
}

// TaxEstimateRate is the flat rate applied to quarterly net income when a tax
// report snapshot is generated. Default 25%.
func TaxEstimateRate() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("TAX_ESTIMATE_RATE"))
	if v == "" {
		return decimal.NewFromFloat(0.25)
	}
	rate, err := decimal.NewFromString(v)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromFloat(0.25)
	}
	return rate
}
