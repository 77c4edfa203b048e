package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/finey-app/finey/internal/models"
)

// Notifier delivers a fired reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, r models.Reminder) error
}

// LogNotifier delivers reminders as log records.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, r models.Reminder) error {
	n.Logger.InfoContext(ctx, r.Title,
		slog.String("reminder_id", r.ID),
		slog.String("body", r.Body),
		slog.Time("fire_at", r.FireAt),
	)
	return nil
}

// Dispatcher polls for due reminders and fires each one once.
type Dispatcher struct {
	store    Store
	notifier Notifier
	config   *Config
	logger   *slog.Logger
	now      func() time.Time

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(s Store, n Notifier, cfg *Config, logger *slog.Logger) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		store:    s,
		notifier: n,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.loop()
	d.logger.Info("reminder dispatcher started", slog.Duration("poll_interval", d.config.PollInterval))
}

// Stop gracefully stops the dispatch loop.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info("reminder dispatcher stopped")
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.DispatchDue(d.ctx)
		}
	}
}

// DispatchDue fires every reminder that is due now and returns how many
// were delivered.
func (d *Dispatcher) DispatchDue(ctx context.Context) int {
	now := d.now()

	due, err := d.store.DueReminders(ctx, now)
	if err != nil {
		d.logger.Error("failed to query due reminders", slog.Any("error", err))
		return 0
	}

	fired := 0
	for _, r := range due {
		// Claim before delivery so a reminder is never shown twice
		claimed, err := d.store.MarkReminderFired(ctx, r.ID, now)
		if err != nil {
			d.logger.Error("failed to mark reminder fired", slog.String("reminder_id", r.ID), slog.Any("error", err))
			continue
		}
		if !claimed {
			continue
		}
		if err := d.notifier.Notify(ctx, r); err != nil {
			d.logger.Warn("reminder delivery failed", slog.String("reminder_id", r.ID), slog.Any("error", err))
			continue
		}
		fired++
	}

	if d.config.Retention > 0 {
		if n, err := d.store.PruneFiredReminders(ctx, now.Add(-d.config.Retention)); err != nil {
			d.logger.Warn("failed to prune reminders", slog.Any("error", err))
		} else if n > 0 {
			d.logger.Debug("pruned fired reminders", slog.Int64("count", n))
		}
	}

	return fired
}
