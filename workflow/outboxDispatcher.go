package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher drains the outbox table: it claims unprocessed rows with a
// lock lease and publishes them to Pub/Sub. Rows whose lease has gone stale
// (a crashed worker) are reclaimable, so delivery is at-least-once and
// consumers must dedupe on outbox id.
type OutboxDispatcher struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:        db,
		Logger:    logger,
		WorkerID:  "dispatcher-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.DB == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.Interval):
		}
	}
}

func (d *OutboxDispatcher) processOnce(ctx context.Context) {
	claimed, err := d.claim(ctx)
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithError(err).Error("outbox claim failed")
		}
		return
	}

	for _, rec := range claimed {
		d.dispatch(ctx, rec)
	}
}

// claim selects a batch of unprocessed rows whose lease is free or stale and
// stamps them with this worker's lease, all in one transaction. SKIP LOCKED
// keeps concurrent dispatchers from serializing on the same rows.
func (d *OutboxDispatcher) claim(ctx context.Context) ([]models.OutboxMessage, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTTL)

	var claimed []models.OutboxMessage
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ?", false).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.WorkerID
			err := tx.Model(&models.OutboxMessage{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": now,
					"locked_by": d.WorkerID,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, rec models.OutboxMessage) {
	if !config.PubSubConfigured() {
		// No broker in this environment; mark the row handled so the table
		// does not grow without bound.
		d.finish(ctx, rec.ID, models.OutboxPublishStatusSkipped, nil)
		return
	}

	msg := config.LedgerEventMessage{
		OutboxId:      rec.ID,
		EventType:     rec.EventType,
		ReferenceId:   rec.ReferenceId,
		OccurredAt:    rec.CreatedAt,
		Payload:       json.RawMessage(rec.Payload),
		CorrelationId: rec.CorrelationId,
	}
	if _, err := config.PublishLedgerEvent(ctx, msg); err != nil {
		if d.Logger != nil {
			config.LogError(d.Logger, "workflow", "dispatch", "publish outbox message", logrus.Fields{
				"outbox_id":  rec.ID,
				"event_type": rec.EventType,
			}, err)
		}
		d.fail(ctx, rec.ID, err)
		return
	}
	d.finish(ctx, rec.ID, models.OutboxPublishStatusSent, nil)
}

func (d *OutboxDispatcher) finish(ctx context.Context, id int, status models.OutboxPublishStatus, lastError *string) {
	err := d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_processed":   true,
			"publish_status": status,
			"last_error":     lastError,
			"locked_at":      nil,
			"locked_by":      nil,
		}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithField("outbox_id", id).WithError(err).Error("outbox finish failed")
	}
}

// fail releases the lease so the row is retried after the interval; the
// status records the failure for operators.
func (d *OutboxDispatcher) fail(ctx context.Context, id int, cause error) {
	msg := cause.Error()
	err := d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"publish_status": models.OutboxPublishStatusFailed,
			"last_error":     &msg,
			"locked_at":      nil,
			"locked_by":      nil,
		}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithField("outbox_id", id).WithError(err).Error("outbox fail-mark failed")
	}
}
