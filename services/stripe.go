package services

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
)

// ProviderLink is the provider-side half of a payment link.
type ProviderLink struct {
	ID        string
	ProductID string
	PriceID   string
	URL       string
}

// ProviderSession is one single-use checkout session.
type ProviderSession struct {
	ID  string
	URL string
}

// ProviderPayment is the provider's view of one payment attempt.
type ProviderPayment struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentProvider is the slice of the payment platform this service needs.
// Handlers depend on this interface so tests can substitute a fake without a
// network.
type PaymentProvider interface {
	CreatePaymentLink(ctx context.Context, title string, amountCents int64, currency string, metadata map[string]string) (*ProviderLink, error)
	CreateCheckoutSession(ctx context.Context, title string, amountCents int64, currency string, successURL string, cancelURL string, metadata map[string]string) (*ProviderSession, error)
	GetPayment(ctx context.Context, paymentIntentId string) (*ProviderPayment, error)
	VerifyWebhookSignature(payload []byte, signatureHeader string) (*models.ProviderEvent, error)
}

// StripeProvider implements PaymentProvider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey string, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreatePaymentLink(ctx context.Context, title string, amountCents int64, currency string, metadata map[string]string) (*ProviderLink, error) {
	product, err := p.api.Products.New(&stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(title),
	})
	if err != nil {
		return nil, &utils.UpstreamError{Provider: "stripe", Err: err}
	}

	price, err := p.api.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(product.ID),
		UnitAmount: stripe.Int64(amountCents),
		Currency:   stripe.String(strings.ToLower(currency)),
	})
	if err != nil {
		return nil, &utils.UpstreamError{Provider: "stripe", Err: err}
	}

	link, err := p.api.PaymentLinks.New(&stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.PaymentLinkLineItemParams{{
			Price:    stripe.String(price.ID),
			Quantity: stripe.Int64(1),
		}},
		Metadata: metadata,
	})
	if err != nil {
		return nil, &utils.UpstreamError{Provider: "stripe", Err: err}
	}
	return &ProviderLink{ID: link.ID, ProductID: product.ID, PriceID: price.ID, URL: link.URL}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, title string, amountCents int64, currency string, successURL string, cancelURL string, metadata map[string]string) (*ProviderSession, error) {
	session, err := p.api.CheckoutSessions.New(&stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(currency)),
				UnitAmount: stripe.Int64(amountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(title),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata:   metadata,
	})
	if err != nil {
		return nil, &utils.UpstreamError{Provider: "stripe", Err: err}
	}
	return &ProviderSession{ID: session.ID, URL: session.URL}, nil
}

// GetPayment looks up a payment intent's current state at the provider.
func (p *StripeProvider) GetPayment(ctx context.Context, paymentIntentId string) (*ProviderPayment, error) {
	intent, err := p.api.PaymentIntents.Get(paymentIntentId, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, &utils.UpstreamError{Provider: "stripe", Err: err}
	}
	return &ProviderPayment{
		ID:       intent.ID,
		Status:   string(intent.Status),
		Amount:   intent.Amount,
		Currency: string(intent.Currency),
	}, nil
}

// VerifyWebhookSignature checks the signature over the raw body and converts
// the event into our provider-neutral form. The event type stays a string
// through the parse so unknown types verify fine and land on the
// unrecognized kind.
func (p *StripeProvider) VerifyWebhookSignature(payload []byte, signatureHeader string) (*models.ProviderEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, &utils.InvalidSignatureError{Err: err}
	}
	eventType := string(event.Type)
	return &models.ProviderEvent{
		ID:      event.ID,
		Type:    eventType,
		Kind:    models.ParseWebhookEventKind(eventType),
		Object:  event.Data.Raw,
		Payload: payload,
	}, nil
}
