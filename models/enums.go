package models

type PaymentLinkStatus string

const (
	PaymentLinkStatusActive   PaymentLinkStatus = "active"
	PaymentLinkStatusArchived PaymentLinkStatus = "archived"
)

func (s PaymentLinkStatus) Valid() bool {
	return s == PaymentLinkStatusActive || s == PaymentLinkStatusArchived
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// CanTransitionTo encodes the forward-only invoice state machine:
// draft -> sent -> paid, with overdue reachable from sent and still payable.
// Backward moves and draft -> paid shortcuts are rejected.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return next == InvoiceStatusSent
	case InvoiceStatusSent:
		return next == InvoiceStatusPaid || next == InvoiceStatusOverdue
	case InvoiceStatusOverdue:
		return next == InvoiceStatusPaid
	}
	return false
}

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

type TaxReportStatus string

const (
	TaxReportStatusDraft     TaxReportStatus = "draft"
	TaxReportStatusFinalized TaxReportStatus = "finalized"
)

// WebhookEventKind is the closed set of provider event types this system
// reacts to. Anything else is WebhookEventKindUnrecognized: acknowledged and
// logged, never a failure (the provider keeps adding event types).
type WebhookEventKind string

const (
	WebhookEventKindCheckoutSessionCompleted WebhookEventKind = "checkout.session.completed"
	WebhookEventKindPaymentIntentSucceeded   WebhookEventKind = "payment_intent.succeeded"
	WebhookEventKindPaymentIntentFailed      WebhookEventKind = "payment_intent.payment_failed"
	WebhookEventKindUnrecognized             WebhookEventKind = "unrecognized"
)

func ParseWebhookEventKind(eventType string) WebhookEventKind {
	switch eventType {
	case "checkout.session.completed":
		return WebhookEventKindCheckoutSessionCompleted
	case "payment_intent.succeeded":
		return WebhookEventKindPaymentIntentSucceeded
	case "payment_intent.payment_failed":
		return WebhookEventKindPaymentIntentFailed
	}
	return WebhookEventKindUnrecognized
}

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending OutboxPublishStatus = "PENDING"
	OutboxPublishStatusSent    OutboxPublishStatus = "SENT"
	OutboxPublishStatusSkipped OutboxPublishStatus = "SKIPPED"
	OutboxPublishStatusFailed  OutboxPublishStatus = "FAILED"
)
