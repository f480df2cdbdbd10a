package main

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
)

const (
	overdueSweepInterval = time.Hour
	overdueSweepLockKey  = "lock:overdue-sweep"
	overdueSweepLockTTL  = 5 * time.Minute
)

// runOverdueSweeper periodically flips sent invoices past their due date to
// overdue. A Redis lock keeps multiple replicas from sweeping at once; with
// no Redis configured the sweep runs unguarded, which is safe (the UPDATE is
// idempotent) just wasteful.
func (app *application) runOverdueSweeper(ctx context.Context) {
	ticker := time.NewTicker(overdueSweepInterval)
	defer ticker.Stop()

	app.sweepOverdue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweepOverdue(ctx)
		}
	}
}

func (app *application) sweepOverdue(ctx context.Context) {
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, overdueSweepLockKey, overdueSweepLockTTL, nil)
		if err != nil {
			if !errors.Is(err, redislock.ErrNotObtained) && app.logger != nil {
				app.logger.WithError(err).Warn("overdue sweep lock error")
			}
			return
		}
		defer lock.Release(ctx)
	}

	flipped, err := models.MarkOverdueInvoices(app.db, ctx, time.Now().UTC())
	if err != nil {
		if app.logger != nil {
			app.logger.WithError(err).Error("overdue sweep failed")
		}
		return
	}
	if flipped > 0 && app.logger != nil {
		app.logger.WithFields(logrus.Fields{"count": flipped}).Info("invoices marked overdue")
	}
}
