// Package reconcile keeps the local task cache, the remote record and the
// scheduled reminders consistent with each other. The remote record is the
// source of truth; the cache converges to it on every Load.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
	"github.com/finey-app/finey/internal/telemetry"
)

var tracer = otel.Tracer("github.com/finey-app/finey/internal/reconcile")

// Local cache keys. OwnerKey holds the user id the cached task list belongs
// to.
const (
	CacheKey = "tasks"
	OwnerKey = "tasks.owner"
)

// DefaultReminderTitle is used when no title is configured.
const DefaultReminderTitle = "Deadline approaching"

// Cache is the device-local key/value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

// RecordStore holds one task record per user.
type RecordStore interface {
	Get(ctx context.Context, userID string) (*models.Record, error)
	Set(ctx context.Context, userID string, rec *models.Record) error
}

// Reminders schedules one-shot notifications.
type Reminders interface {
	Schedule(ctx context.Context, title, body string, fireAt time.Time) (string, error)
	Cancel(ctx context.Context, id string) error
}

// Options configures an Engine.
type Options struct {
	Logger        *slog.Logger
	Metrics       *telemetry.Metrics
	ReminderTitle string
	// Now overrides the clock used to decide whether a reminder is due.
	Now func() time.Time
}

// Engine reconciles the local cache with the remote record.
type Engine struct {
	cache     Cache
	remote    RecordStore
	reminders Reminders

	logger        *slog.Logger
	metrics       *telemetry.Metrics
	reminderTitle string
	now           func() time.Time
}

// New creates an Engine.
func New(cache Cache, remote RecordStore, reminders Reminders, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NopMetrics()
	}
	if opts.ReminderTitle == "" {
		opts.ReminderTitle = DefaultReminderTitle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		cache:         cache,
		remote:        remote,
		reminders:     reminders,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		reminderTitle: opts.ReminderTitle,
		now:           opts.Now,
	}
}

// Load returns the reconciled task list for the session's user. When the
// remote record is empty or unreachable the local cache is returned as is.
func (e *Engine) Load(ctx context.Context, s *auth.Session) ([]models.Task, error) {
	if s == nil {
		return nil, auth.ErrNoSession
	}

	ctx, span := tracer.Start(ctx, "Engine.Load",
		trace.WithAttributes(attribute.String("user.id", s.UserID)),
	)
	defer span.End()
	defer telemetry.ObserveDuration(ctx, e.metrics.ReconcileDuration, time.Now())

	rec, err := e.remote.Get(ctx, s.UserID)
	if err != nil {
		e.logger.WarnContext(ctx, "remote record unavailable, using local cache", slog.Any("error", err))
		span.SetAttributes(attribute.Bool("reconcile.fallback", true))
		return e.Cached(ctx, s)
	}
	if rec == nil || len(rec.Data) == 0 {
		span.SetAttributes(attribute.Bool("reconcile.fallback", true))
		return e.Cached(ctx, s)
	}

	local, err := e.Cached(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read local cache")
		return nil, err
	}

	remoteByID := make(map[string]models.Task, len(rec.Data))
	remoteOrder := make([]string, 0, len(rec.Data))
	for _, rt := range rec.Data {
		if _, dup := remoteByID[rt.ID]; dup {
			continue
		}
		remoteByID[rt.ID] = rt.Task()
		remoteOrder = append(remoteOrder, rt.ID)
	}

	seen := make(map[string]bool, len(local))
	tasks := make([]models.Task, 0, len(remoteOrder))
	var added, removed int

	for _, lt := range local {
		if seen[lt.ID] {
			continue
		}
		seen[lt.ID] = true

		rt, ok := remoteByID[lt.ID]
		if !ok {
			// Deleted remotely
			if err := e.Disarm(ctx, &lt); err != nil {
				e.logger.WarnContext(ctx, "failed to cancel reminder of removed task",
					slog.String("task_id", lt.ID), slog.Any("error", err))
			}
			removed++
			continue
		}
		tasks = append(tasks, e.adopt(ctx, lt, rt))
	}

	for _, id := range remoteOrder {
		if seen[id] {
			continue
		}
		t := remoteByID[id]
		e.armLogged(ctx, &t)
		tasks = append(tasks, t)
		added++
	}

	span.SetAttributes(
		attribute.Int("reconcile.added", added),
		attribute.Int("reconcile.removed", removed),
		attribute.Int("reconcile.total", len(tasks)),
	)

	if err := e.writeCache(ctx, s.UserID, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write local cache")
		return nil, err
	}
	return tasks, nil
}

// adopt applies the remote fields of a task present on both sides and keeps
// its reminder in step. It issues no scheduler calls when nothing changed, so
// a task whose reminder was rejected stays without one until its reminder
// time moves.
func (e *Engine) adopt(ctx context.Context, local, remote models.Task) models.Task {
	merged := remote
	merged.NotificationID = local.NotificationID

	switch {
	case merged.IsCompleted:
		if merged.NotificationID != "" {
			if err := e.Disarm(ctx, &merged); err != nil {
				e.logger.WarnContext(ctx, "failed to cancel reminder of completed task",
					slog.String("task_id", merged.ID), slog.Any("error", err))
				merged.NotificationID = ""
			}
		}
	case local.IsCompleted || !merged.ReminderAt().Equal(local.ReminderAt()):
		if merged.NotificationID != "" {
			if err := e.Disarm(ctx, &merged); err != nil {
				e.logger.WarnContext(ctx, "failed to cancel stale reminder",
					slog.String("task_id", merged.ID), slog.Any("error", err))
				merged.NotificationID = ""
			}
		}
		e.armLogged(ctx, &merged)
	}
	return merged
}

// armLogged arms t and treats a scheduler rejection as a non-fatal anomaly.
func (e *Engine) armLogged(ctx context.Context, t *models.Task) {
	if err := e.Arm(ctx, t); err != nil {
		e.logger.WarnContext(ctx, "reminder rejected, keeping task without reminder",
			slog.String("task_id", t.ID), slog.Any("error", err))
		t.NotificationID = ""
	}
}

// Arm schedules the task's reminder and stores its id on t. Completed tasks
// and tasks whose reminder time has passed are left without a reminder.
func (e *Engine) Arm(ctx context.Context, t *models.Task) error {
	if t.IsCompleted || !t.ReminderAt().After(e.now()) {
		return nil
	}
	id, err := e.reminders.Schedule(ctx, e.reminderTitle, t.Name, t.ReminderAt())
	if err != nil {
		return fmt.Errorf("schedule reminder for task %s: %w", t.ID, err)
	}
	t.NotificationID = id
	e.metrics.RemindersScheduled.Add(ctx, 1)
	return nil
}

// Disarm cancels the task's reminder, if any, and clears its id.
func (e *Engine) Disarm(ctx context.Context, t *models.Task) error {
	if t.NotificationID == "" {
		return nil
	}
	if err := e.reminders.Cancel(ctx, t.NotificationID); err != nil {
		return fmt.Errorf("cancel reminder for task %s: %w", t.ID, err)
	}
	t.NotificationID = ""
	e.metrics.RemindersCancelled.Add(ctx, 1)
	return nil
}

// Save writes tasks to the local cache and then replaces the remote record.
// A local failure is returned; a remote failure is logged and counted.
func (e *Engine) Save(ctx context.Context, s *auth.Session, tasks []models.Task) error {
	if s == nil {
		return auth.ErrNoSession
	}

	ctx, span := tracer.Start(ctx, "Engine.Save",
		trace.WithAttributes(attribute.Int("tasks.count", len(tasks))),
	)
	defer span.End()

	if err := e.writeCache(ctx, s.UserID, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write local cache")
		return err
	}

	if err := e.Push(ctx, s, tasks); err != nil {
		span.RecordError(err)
		e.logger.WarnContext(ctx, "remote record write failed", slog.Any("error", err))
	}
	return nil
}

// Sync writes tasks to the local cache and then to the remote record, and
// reports a failure of either. The local write stands when the remote write
// fails.
func (e *Engine) Sync(ctx context.Context, s *auth.Session, tasks []models.Task) error {
	if s == nil {
		return auth.ErrNoSession
	}

	ctx, span := tracer.Start(ctx, "Engine.Sync",
		trace.WithAttributes(attribute.Int("tasks.count", len(tasks))),
	)
	defer span.End()

	if err := e.writeCache(ctx, s.UserID, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write local cache")
		return err
	}
	if err := e.Push(ctx, s, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write remote record")
		return err
	}
	return nil
}

// Commit replaces the remote record with tasks and writes the local cache
// only once the remote write succeeded. A remote failure leaves the cache
// untouched.
func (e *Engine) Commit(ctx context.Context, s *auth.Session, tasks []models.Task) error {
	if s == nil {
		return auth.ErrNoSession
	}

	ctx, span := tracer.Start(ctx, "Engine.Commit",
		trace.WithAttributes(attribute.Int("tasks.count", len(tasks))),
	)
	defer span.End()

	if err := e.Push(ctx, s, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write remote record")
		return err
	}
	if err := e.writeCache(ctx, s.UserID, tasks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write local cache")
		return err
	}
	return nil
}

// Push replaces the remote record with tasks and reports the outcome.
func (e *Engine) Push(ctx context.Context, s *auth.Session, tasks []models.Task) error {
	if s == nil {
		return auth.ErrNoSession
	}
	if err := e.remote.Set(ctx, s.UserID, models.NewRecord(tasks)); err != nil {
		e.metrics.RemoteSyncFailures.Add(ctx, 1)
		return fmt.Errorf("write remote record: %w", err)
	}
	return nil
}

// Cached returns the task list stored in the local cache for the session's
// user. A cache left behind by another user is reset first.
func (e *Engine) Cached(ctx context.Context, s *auth.Session) ([]models.Task, error) {
	if s == nil {
		return nil, auth.ErrNoSession
	}

	owner, err := e.cache.Get(ctx, OwnerKey)
	if err != nil {
		return nil, fmt.Errorf("read local cache owner: %w", err)
	}
	if len(owner) > 0 && string(owner) != s.UserID {
		e.logger.InfoContext(ctx, "discarding local cache of another user")
		if err := e.Reset(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return e.readCache(ctx)
}

func (e *Engine) readCache(ctx context.Context) ([]models.Task, error) {
	data, err := e.cache.Get(ctx, CacheKey)
	if err != nil {
		return nil, fmt.Errorf("read local cache: %w", err)
	}
	tasks, err := models.DecodeCache(data)
	if err != nil {
		return nil, fmt.Errorf("read local cache: %w", err)
	}
	return tasks, nil
}

// Reset cancels every cached reminder and clears the local cache.
func (e *Engine) Reset(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Engine.Reset")
	defer span.End()

	tasks, err := e.readCache(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "clearing unreadable local cache", slog.Any("error", err))
	}
	for i := range tasks {
		if err := e.Disarm(ctx, &tasks[i]); err != nil {
			e.logger.WarnContext(ctx, "failed to cancel reminder",
				slog.String("task_id", tasks[i].ID), slog.Any("error", err))
		}
	}

	if err := e.cache.Clear(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear local cache: %w", err)
	}
	return nil
}

// writeCache stores tasks and then their owner. A failed owner write leaves a
// mismatched owner behind, which only costs a reload from the remote record.
func (e *Engine) writeCache(ctx context.Context, userID string, tasks []models.Task) error {
	data, err := models.EncodeCache(tasks)
	if err != nil {
		return fmt.Errorf("encode local cache: %w", err)
	}
	if err := e.cache.Set(ctx, CacheKey, data); err != nil {
		return fmt.Errorf("write local cache: %w", err)
	}
	if err := e.cache.Set(ctx, OwnerKey, []byte(userID)); err != nil {
		return fmt.Errorf("write local cache owner: %w", err)
	}
	return nil
}
