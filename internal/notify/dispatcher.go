package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

// DispatcherConfig controls delivery of queued notifications.
type DispatcherConfig struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	PollInterval time.Duration
	BatchSize    int
	// Lease is how long a claimed notification stays invisible to other
	// claims while it is being delivered.
	Lease time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize < 1 {
		c.BatchSize = 20
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
}

// Dispatcher delivers notifications from the outbox table. A failed
// delivery never affects the assignment that queued it.
type Dispatcher struct {
	db       *sql.DB
	notifier Notifier
	log      *zap.Logger
	cfg      DispatcherConfig
	wake     chan struct{}
	now      func() time.Time
}

func NewDispatcher(db *sql.DB, notifier Notifier, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		db:       db,
		notifier: notifier,
		log:      log.Named("dispatcher"),
		cfg:      cfg,
		wake:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Wake asks the dispatcher to run before the next poll. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run delivers due notifications until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.log.Info("dispatcher started",
		zap.String("notifier", d.notifier.Name()),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)

	for {
		if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("dispatching notifications", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchDue claims one batch of due notifications and attempts each.
// It returns how many were delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := store.ClaimDueNotifications(ctx, d.db, d.now(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range due {
		if ctx.Err() != nil {
			break
		}
		if d.deliver(ctx, n) {
			sent++
		}
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification) (ok bool) {
	log := d.log.With(zap.String("notification_id", n.ID), zap.String("to", n.RecipientEmail))

	defer func() {
		if r := recover(); r != nil {
			log.Error("notifier panicked", zap.Any("panic", r))
			d.fail(ctx, log, n, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	err := d.send(ctx, n)
	if err == nil {
		if err := store.MarkNotificationSent(ctx, d.db, n.ID, d.now()); err != nil {
			log.Error("recording delivery", zap.Error(err))
		}
		return true
	}
	d.fail(ctx, log, n, err)
	return false
}

var errPermanent = errors.New("permanent failure")

func (d *Dispatcher) send(ctx context.Context, n model.Notification) error {
	switch n.Kind {
	case model.NotificationAssignmentCreated:
		var notice model.AssignmentNotice
		if err := json.Unmarshal([]byte(n.Payload), &notice); err != nil {
			return fmt.Errorf("%w: decoding payload: %v", errPermanent, err)
		}
		return d.notifier.NotifyAssignment(ctx, notice)
	default:
		return fmt.Errorf("%w: unknown notification kind %q", errPermanent, n.Kind)
	}
}

func (d *Dispatcher) fail(ctx context.Context, log *zap.Logger, n model.Notification, cause error) {
	attempts := n.Attempts + 1
	if attempts >= d.cfg.MaxAttempts || errors.Is(cause, errPermanent) {
		log.Error("notification failed", zap.Int("attempts", attempts), zap.Error(cause))
		if err := store.MarkNotificationFailed(ctx, d.db, n.ID, cause.Error()); err != nil {
			log.Error("recording failure", zap.Error(err))
		}
		return
	}

	next := d.now().Add(d.cfg.RetryDelay)
	log.Warn("notification delivery failed, will retry",
		zap.Int("attempts", attempts),
		zap.Time("next_attempt", next),
		zap.Error(cause),
	)
	if err := store.RescheduleNotification(ctx, d.db, n.ID, cause.Error(), next); err != nil {
		log.Error("rescheduling notification", zap.Error(err))
	}
}
