package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
)

// One-shot overdue sweep for cron-style deployments where the API server's
// background sweeper is disabled.
func main() {
	asOfArg := flag.String("as-of", "", "Optional: sweep cutoff date (YYYY-MM-DD). Defaults to now (UTC).")
	flag.Parse()

	asOf := time.Now().UTC()
	if strings.TrimSpace(*asOfArg) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*asOfArg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -as-of date: %v\n", err)
			os.Exit(1)
		}
		asOf = parsed
	}

	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (ConnectDatabaseWithRetry returned nil)")
		os.Exit(1)
	}

	flipped, err := models.MarkOverdueInvoices(db, ctx, asOf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "overdue sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sweep complete asOf=%s flipped=%d\n", asOf.Format("2006-01-02"), flipped)
}
