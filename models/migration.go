package models

import "gorm.io/gorm"

// MigrateTable creates or updates every table this service owns. Parents
// migrate before children so foreign keys resolve.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&PaymentLink{},
		&PaymentLinkClick{},
		&Invoice{},
		&InvoiceItem{},
		&Transaction{},
		&WebhookEvent{},
		&TaxReport{},
		&OutboxMessage{},
	)
}
