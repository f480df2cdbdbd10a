package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
)

// Rebuilds the cached clicks / successful_payments / total_revenue columns on
// payment_links from the click and transaction tables. Run after manual data
// repairs or when the cached counters are suspected to have drifted.
func main() {
	linkID := flag.String("link-id", "", "Optional: refresh only one payment link (uuid string). If empty, refreshes all links.")
	flag.Parse()

	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (ConnectDatabaseWithRetry returned nil)")
		os.Exit(1)
	}

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	var ids []uuid.UUID
	query := db.WithContext(ctx).Model(&models.PaymentLink{})
	if strings.TrimSpace(*linkID) != "" {
		query = query.Where("id = ?", strings.TrimSpace(*linkID))
	}
	if err := query.Pluck("id", &ids).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list payment links: %v\n", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "no payment links found to refresh")
		return
	}

	failed := 0
	for _, id := range ids {
		if err := models.RefreshPaymentLinkCounters(db, ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "link %s refresh failed: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("Refreshed counters link=%s\n", id)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d links failed\n", failed, len(ids))
		os.Exit(1)
	}
	fmt.Println("Refresh complete")
}
