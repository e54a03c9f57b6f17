// Package dispatch emails supplier orders to suppliers and records the outcome on each
// supplier_orders row.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supplai-io/supplai/internal/email"
	"github.com/supplai-io/supplai/internal/fflags"
	"github.com/supplai-io/supplai/internal/models"
	"github.com/supplai-io/supplai/internal/queue"
	"github.com/supplai-io/supplai/internal/signalbus"
	"github.com/supplai-io/supplai/internal/util"
)

var tracer trace.Tracer

func init() {
	tracer = otel.Tracer("github.com/supplai-io/supplai/internal/dispatch")
}

type Config struct {
	// From is the envelope sender address of supplier emails
	From string
	// MaxAttempts bounds how many times a supplier order is handed to the sender
	MaxAttempts int
	// SendRetries and RetryWait control the retries within one attempt
	SendRetries int
	RetryWait   time.Duration
	// StaleAfter is how long a row may stay in sending before recovery hands it out again
	StaleAfter time.Duration
	// RecoverEvery is the period of the recovery pass that requeues failed and stale rows
	RecoverEvery time.Duration
}

func DefaultConfig() Config {
	return Config{
		From:         "orders@supplai.local",
		MaxAttempts:  5,
		SendRetries:  3,
		RetryWait:    2 * time.Second,
		StaleAfter:   10 * time.Minute,
		RecoverEvery: time.Minute,
	}
}

// Dispatcher works through dispatch jobs.  It uses the admin database client since jobs of
// every organization go through the same worker.
type Dispatcher struct {
	logger    *zap.SugaredLogger
	db        *gorm.DB
	sender    email.Sender
	signalBus signalbus.SignalBus
	queue     queue.Queue
	fflags    *fflags.FFlags
	cfg       Config
	now       func() time.Time
}

func New(logger *zap.SugaredLogger, db *gorm.DB, sender email.Sender, signalBus signalbus.SignalBus, q queue.Queue, flags *fflags.FFlags, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Dispatcher{
		logger:    logger,
		db:        db,
		sender:    sender,
		signalBus: signalBus,
		queue:     q,
		fflags:    flags,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run consumes jobs until ctx is done.  Interrupted work is requeued by a recovery pass at
// startup and every RecoverEvery, next to the consumer so a large backlog can't hold it up.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	util.GoWithWaitGroup(wg, func() {
		d.recoverPass(ctx)
		util.RunPeriodically(ctx, d.cfg.RecoverEvery, func() { d.recoverPass(ctx) })
	})
	defer wg.Wait()
	defer cancel()

	d.logger.Info("dispatcher started")
	return d.queue.Consume(ctx, d.Handle)
}

func (d *Dispatcher) recoverPass(ctx context.Context) {
	if _, err := d.Recover(ctx); err != nil && ctx.Err() == nil {
		d.logger.Warnw("recovery pass failed", "error", err)
	}
}

// Recover puts back on the queue the rows no worker is going to finish on its own: pending rows
// whose job may have been lost, rows stuck in sending after a crash, and failed rows with
// attempts left.  It returns how many jobs were published.
func (d *Dispatcher) Recover(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Recover")
	defer span.End()

	db := d.db.WithContext(ctx)
	now := d.now()
	err := db.Model(&models.SupplierOrder{}).
		Where("status = ? AND updated_at < ?", models.SupplierOrderSending, now.Add(-d.cfg.StaleAfter)).
		Updates(map[string]interface{}{"status": models.SupplierOrderPending, "updated_at": now}).Error
	if err != nil {
		return 0, err
	}

	var rows []models.SupplierOrder
	err = db.Select("id", "order_id").
		Where("status = ? OR (status = ? AND attempts < ?)", models.SupplierOrderPending, models.SupplierOrderFailed, d.cfg.MaxAttempts).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	published := 0
	for _, row := range rows {
		err := d.queue.Publish(ctx, queue.Job{SupplierOrderID: row.ID, OrderID: row.OrderID})
		if errors.Is(err, queue.ErrFull) {
			// the next pass publishes the rest
			d.logger.Infow("queue full, recovery deferred", "waiting", len(rows)-published)
			break
		}
		if err != nil {
			return published, err
		}
		published++
	}
	requeuedTotal.Add(float64(published))
	span.SetAttributes(attribute.Int("requeued", published))
	d.logger.Infow("requeued supplier orders", "count", published)
	return published, nil
}

// Handle emails one supplier order.  Losing the claim race is not an error.
func (d *Dispatcher) Handle(ctx context.Context, job queue.Job) error {
	ctx, span := tracer.Start(ctx, "Handle", trace.WithAttributes(
		attribute.String("supplier_order_id", job.SupplierOrderID.String()),
	))
	defer span.End()
	logger := util.WithTrace(ctx, d.logger).With("supplier_order_id", job.SupplierOrderID)

	if !d.fflags.IsEnabled(fflags.SupplierEmails) {
		emailsTotal.WithLabelValues(resultDisabled).Inc()
		return nil
	}

	claimed, err := d.claim(ctx, job.SupplierOrderID)
	if err != nil {
		return err
	}
	if !claimed {
		emailsTotal.WithLabelValues(resultSkipped).Inc()
		logger.Debug("supplier order already claimed or done")
		return nil
	}

	data, err := d.load(ctx, job.SupplierOrderID)
	if err != nil {
		d.finish(ctx, job.SupplierOrderID, job.OrderID, err)
		return err
	}
	d.signalBus.Notify(signalbus.OrderSignal(data.Order.ID))

	start := d.now()
	err = util.RetryOperation(ctx, d.cfg.RetryWait, d.cfg.SendRetries, func() error {
		// the attachment readers are consumed by a send, compose a fresh message every try
		message, err := composeSupplierOrderEmail(d.cfg.From, data, d.now())
		if err != nil {
			return backoff.Permanent(err)
		}
		err = d.sender.Send(ctx, message)
		if email.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	sendDuration.Observe(d.now().Sub(start).Seconds())

	d.finish(ctx, job.SupplierOrderID, data.Order.ID, err)
	if err != nil {
		logger.Warnw("supplier order email failed", "error", err)
		return err
	}
	logger.Infow("supplier order email sent", "to", data.SupplierOrder.Supplier.Email)
	return nil
}

// claim moves the row to sending.  The conditional update lets exactly one worker win.
func (d *Dispatcher) claim(ctx context.Context, id uuid.UUID) (bool, error) {
	result := d.db.WithContext(ctx).Model(&models.SupplierOrder{}).
		Where("id = ? AND attempts < ?", id, d.cfg.MaxAttempts).
		Where("status IN ?", []string{string(models.SupplierOrderPending), string(models.SupplierOrderFailed)}).
		Updates(map[string]interface{}{"status": models.SupplierOrderSending, "updated_at": d.now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (d *Dispatcher) load(ctx context.Context, id uuid.UUID) (supplierOrderEmail, error) {
	db := d.db.WithContext(ctx)
	var data supplierOrderEmail
	// suppliers removed after the order was placed still get their order
	err := db.Preload("Supplier", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		First(&data.SupplierOrder, "id = ?", id).Error
	if err != nil {
		return data, err
	}
	if err := db.First(&data.Order, "id = ?", data.SupplierOrder.OrderID).Error; err != nil {
		return data, err
	}
	if err := db.First(&data.Organization, "id = ?", data.SupplierOrder.OrganizationID).Error; err != nil {
		return data, err
	}
	err = db.Unscoped().First(&data.PlacedBy, "id = ?", data.Order.CreatedByID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return data, err
	}
	return data, nil
}

// finish records the outcome of an attempt and signals the order's subscribers.
func (d *Dispatcher) finish(ctx context.Context, id uuid.UUID, orderID uuid.UUID, sendErr error) {
	now := d.now()
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"updated_at": now,
	}
	if sendErr == nil {
		updates["status"] = models.SupplierOrderSent
		updates["sent_at"] = now
		updates["last_error"] = ""
		emailsTotal.WithLabelValues(resultSent).Inc()
	} else {
		updates["status"] = models.SupplierOrderFailed
		updates["last_error"] = truncate(sendErr.Error(), 500)
		emailsTotal.WithLabelValues(resultFailed).Inc()
	}
	// a cancelled ctx must not leave the row in sending
	err := d.db.WithContext(context.WithoutCancel(ctx)).Model(&models.SupplierOrder{}).
		Where("id = ? AND status = ?", id, models.SupplierOrderSending).
		Updates(updates).Error
	if err != nil {
		d.logger.Errorw("could not record supplier order outcome", "supplier_order_id", id, "error", err)
	}
	if orderID != uuid.Nil {
		d.signalBus.Notify(signalbus.OrderSignal(orderID))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
