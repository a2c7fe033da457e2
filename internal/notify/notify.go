// Package notify delivers assignment notifications to employees and runs
// the outbox dispatcher that feeds them.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/model"
)

// Notifier delivers notifications through one transport.
type Notifier interface {
	// Name identifies the transport in logs.
	Name() string
	// Verify checks that the transport is reachable and accepts our
	// credentials.
	Verify(ctx context.Context) error
	// NotifyAssignment tells an employee about equipment assigned to them.
	NotifyAssignment(ctx context.Context, notice model.AssignmentNotice) error
	// SendTest sends a diagnostic message to the given address.
	SendTest(ctx context.Context, to string) error
}

// Retry calls fn up to attempts times, waiting delay between failed
// attempts. It returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// VerifyOnStartup runs the notifier's self-check once and logs the result.
// A failure is not fatal: notifications stay queued until the transport
// recovers.
func VerifyOnStartup(ctx context.Context, n Notifier, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := n.Verify(ctx); err != nil {
		log.Warn("notifier verification failed", zap.String("notifier", n.Name()), zap.Error(err))
		return
	}
	log.Info("notifier ready", zap.String("notifier", n.Name()))
}

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Verify(context.Context) error { return nil }

func (n *LogNotifier) NotifyAssignment(_ context.Context, notice model.AssignmentNotice) error {
	n.log.Info("assignment notification",
		zap.String("assignment_id", notice.AssignmentID),
		zap.String("to", notice.Employee.Email),
		zap.String("asset", notice.Asset.Name),
		zap.String("asset_type", notice.Asset.Type),
		zap.String("serial_number", notice.Asset.SerialNumber),
		zap.Time("assigned_date", notice.AssignedDate),
	)
	return nil
}

func (n *LogNotifier) SendTest(_ context.Context, to string) error {
	n.log.Info("test notification", zap.String("to", to))
	return nil
}
