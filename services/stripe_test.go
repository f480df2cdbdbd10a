package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
	"github.com/tichlabs/tichpay_backend/utils"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a stripe-signature header the way Stripe does: HMAC
// SHA-256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	provider := services.NewStripeProvider("sk_test_x", testWebhookSecret)

	payload := []byte(`{
		"id": "evt_sig_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "amount_total": 500, "currency": "usd"}}
	}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	event, err := provider.VerifyWebhookSignature(payload, header)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "evt_sig_1" {
		t.Fatalf("event id = %q", event.ID)
	}
	if event.Kind != models.WebhookEventKindCheckoutSessionCompleted {
		t.Fatalf("kind = %s", event.Kind)
	}
	if len(event.Object) == 0 {
		t.Fatal("data.object not extracted")
	}
}

func TestVerifyWebhookSignature_UnknownTypeStillVerifies(t *testing.T) {
	provider := services.NewStripeProvider("sk_test_x", testWebhookSecret)

	payload := []byte(`{"id": "evt_sig_2", "type": "invoice.finalized", "data": {"object": {}}}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	event, err := provider.VerifyWebhookSignature(payload, header)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.Kind != models.WebhookEventKindUnrecognized {
		t.Fatalf("kind = %s, want unrecognized", event.Kind)
	}
}

func TestVerifyWebhookSignature_Invalid(t *testing.T) {
	provider := services.NewStripeProvider("sk_test_x", testWebhookSecret)
	payload := []byte(`{"id": "evt_sig_3", "type": "checkout.session.completed", "data": {"object": {}}}`)

	cases := map[string]string{
		"wrong secret":  signPayload(payload, "whsec_other", time.Now()),
		"stale payload": signPayload([]byte(`{"tampered": true}`), testWebhookSecret, time.Now()),
		"expired":       signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)),
		"garbage":       "t=abc,v1=zzz",
		"empty":         "",
	}
	for name, header := range cases {
		_, err := provider.VerifyWebhookSignature(payload, header)
		var sigErr *utils.InvalidSignatureError
		if !errors.As(err, &sigErr) {
			t.Errorf("%s: got %v, want InvalidSignatureError", name, err)
		}
	}
}
