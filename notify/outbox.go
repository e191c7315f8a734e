package notify

import (
	"context"
	"time"

	"rider-payments-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultInterval    = 5 * time.Second
	defaultMaxAttempts = 3
	sendTimeout        = 10 * time.Second
	batchSize          = 50
)

// Dispatcher drains pending outbox rows in the background. Delivery failures
// are logged and retried up to maxAttempts; they never surface to any
// request path.
type Dispatcher struct {
	db          *gorm.DB
	sender      Sender
	logger      *zap.Logger
	interval    time.Duration
	maxAttempts int
}

func NewDispatcher(db *gorm.DB, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		db:          db,
		sender:      sender,
		logger:      logger,
		interval:    defaultInterval,
		maxAttempts: defaultMaxAttempts,
	}
}

// Start runs the polling loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.DispatchPending(ctx)
			}
		}
	}()
}

// DispatchPending delivers one batch of pending rows. Exported so tests and
// shutdown hooks can drain synchronously.
func (d *Dispatcher) DispatchPending(ctx context.Context) {
	var batch []models.Notification
	err := d.db.
		Where("status = ? AND attempts < ?", models.NotifyPending, d.maxAttempts).
		Order("created_at asc").
		Limit(batchSize).
		Find(&batch).Error
	if err != nil {
		d.logger.Warn("outbox query failed", zap.Error(err))
		return
	}

	for _, n := range batch {
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n models.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := d.sender.Send(sendCtx, n.Recipient, n.Message)
	attempts := n.Attempts + 1

	if err != nil {
		status := models.NotifyPending
		if attempts >= d.maxAttempts {
			status = models.NotifyFailed
		}
		d.logger.Warn("sms delivery failed",
			zap.Uint("notification_id", n.ID),
			zap.String("kind", n.Kind),
			zap.Int("attempts", attempts),
			zap.Error(err))
		d.db.Model(&models.Notification{}).Where("id = ?", n.ID).
			Updates(map[string]interface{}{
				"status":     status,
				"attempts":   attempts,
				"last_error": err.Error(),
			})
		return
	}

	now := time.Now()
	d.db.Model(&models.Notification{}).Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"status":   models.NotifySent,
			"attempts": attempts,
			"sent_at":  now,
		})
}
