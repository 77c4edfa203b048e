// Package lifecycle implements the user-facing task operations. Each one is a
// fixed sequence of persistence and payment steps with explicit rollback when
// a payment step fails.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finey-app/finey/internal/audit"
	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
	"github.com/finey-app/finey/internal/reconcile"
	"github.com/finey-app/finey/internal/telemetry"
)

var tracer = otel.Tracer("github.com/finey-app/finey/internal/lifecycle")

// Payments is the backend that moves deposits.
type Payments interface {
	AuthorizeDeposit(ctx context.Context, s *auth.Session, id string) error
	MarkTaskComplete(ctx context.Context, s *auth.Session, id string) error
	RefundOrForfeit(ctx context.Context, s *auth.Session, id string) error
	PaymentProvider(ctx context.Context, s *auth.Session) (models.PaymentProvider, error)
	SetPaymentProvider(ctx context.Context, s *auth.Session, p models.PaymentProvider) error
	PaymentMethodsCount(ctx context.Context, s *auth.Session) (int, error)
}

// ProofUploader stores completion proofs.
type ProofUploader interface {
	Upload(ctx context.Context, userID string, task models.Task, proof models.Proof) (string, error)
}

// Options configures a Controller.
type Options struct {
	Policy  Policy
	Proofs  ProofUploader
	Audit   *audit.Recorder
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Now     func() time.Time
}

// Controller runs task lifecycle operations for a session.
type Controller struct {
	engine   *reconcile.Engine
	payments Payments
	proofs   ProofUploader
	audit    *audit.Recorder
	policy   Policy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// New creates a Controller.
func New(engine *reconcile.Engine, payments Payments, opts Options) *Controller {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NopMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		engine:   engine,
		payments: payments,
		proofs:   opts.Proofs,
		audit:    opts.Audit,
		policy:   opts.Policy,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

// Policy returns the rules the controller enforces.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Tasks returns the reconciled task list.
func (c *Controller) Tasks(ctx context.Context, s *auth.Session) ([]models.Task, error) {
	return c.engine.Load(ctx, s)
}

// Overview groups tasks for display at the current time.
func (c *Controller) Overview(tasks []models.Task) Overview {
	return BuildOverview(tasks, c.now(), c.policy)
}

// DefaultDraft returns the starting values for a new task.
func (c *Controller) DefaultDraft() models.TaskDraft {
	return DefaultDraft(c.now(), c.policy.DepositFloor)
}

// CanDelete reports whether t may be deleted now.
func (c *Controller) CanDelete(t models.Task) bool {
	return c.policy.CanDelete(t, c.now())
}

// AddTask creates a task and authorizes its deposit. The task is recorded
// remotely before the payment call and removed again if the payment fails.
func (c *Controller) AddTask(ctx context.Context, s *auth.Session, draft models.TaskDraft) (models.Task, error) {
	ctx, span := tracer.Start(ctx, "Controller.AddTask")
	defer span.End()

	if s == nil {
		return models.Task{}, auth.ErrNoSession
	}
	if err := c.policy.Validate(draft, c.now()); err != nil {
		c.record(ctx, "task.add", draft, audit.OutcomeRejected, "", err.Error())
		return models.Task{}, err
	}

	prior, err := c.engine.Cached(ctx, s)
	if err != nil {
		c.record(ctx, "task.add", draft, audit.OutcomeError, "", err.Error())
		return models.Task{}, err
	}

	task := models.Task{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(draft.Name),
		Deposit:      draft.Deposit,
		DueDate:      models.NormalizeTime(draft.DueDate),
		NotifyBefore: draft.NotifyBefore,
	}
	span.SetAttributes(attribute.String("task.id", task.ID))

	tasks := append(append([]models.Task(nil), prior...), task)
	if err := c.engine.Commit(ctx, s, tasks); err != nil {
		c.record(ctx, "task.add", draft, audit.OutcomeError, task.ID, err.Error())
		return models.Task{}, fmt.Errorf("save new task: %w", err)
	}

	if err := c.payments.AuthorizeDeposit(ctx, s, task.ID); err != nil {
		span.RecordError(err)
		c.metrics.PaymentFailures.Add(ctx, 1)
		c.logger.WarnContext(ctx, "deposit authorization failed, rolling back",
			slog.String("task_id", task.ID), slog.Any("error", err))

		payErr := fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		if rbErr := c.engine.Sync(ctx, s, prior); rbErr != nil {
			payErr = errors.Join(payErr, fmt.Errorf("roll back new task: %w", rbErr))
		}
		c.record(ctx, "task.add", draft, audit.OutcomePaymentFailed, task.ID, err.Error())
		return models.Task{}, payErr
	}

	if err := c.engine.Arm(ctx, &task); err != nil {
		c.logger.WarnContext(ctx, "reminder rejected for new task",
			slog.String("task_id", task.ID), slog.Any("error", err))
	}
	tasks[len(tasks)-1] = task
	if err := c.engine.Save(ctx, s, tasks); err != nil {
		c.record(ctx, "task.add", draft, audit.OutcomeError, task.ID, err.Error())
		return models.Task{}, fmt.Errorf("save reminder id: %w", err)
	}

	c.metrics.TasksAdded.Add(ctx, 1)
	c.record(ctx, "task.add", draft, audit.OutcomeSuccess, task.ID, "")
	c.logger.InfoContext(ctx, "task added",
		slog.String("task_id", task.ID), slog.Int64("deposit", task.Deposit))
	return task, nil
}

// CompleteTask marks a task complete after the backend accepts it. The
// backend performs the refund. proof may be nil.
func (c *Controller) CompleteTask(ctx context.Context, s *auth.Session, id string, proof *models.Proof) (models.Task, error) {
	ctx, span := tracer.Start(ctx, "Controller.CompleteTask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if s == nil {
		return models.Task{}, auth.ErrNoSession
	}
	inputs := map[string]any{"id": id, "proof": proof != nil}

	tasks, i, err := c.find(ctx, s, id)
	if err != nil {
		c.record(ctx, "task.complete", inputs, outcomeFor(err), id, err.Error())
		return models.Task{}, err
	}
	t := tasks[i]

	switch {
	case t.IsCompleted:
		err = ErrAlreadyCompleted
	case t.IsOutdated(c.now()):
		err = ErrTaskOutdated
	case proof != nil && c.proofs == nil:
		err = ErrProofUnsupported
	}
	if err != nil {
		c.record(ctx, "task.complete", inputs, audit.OutcomeRejected, id, err.Error())
		return models.Task{}, err
	}

	var ref string
	if proof != nil {
		ref, err = c.proofs.Upload(ctx, s.UserID, t, *proof)
		if err != nil {
			c.record(ctx, "task.complete", inputs, audit.OutcomeError, id, err.Error())
			return models.Task{}, fmt.Errorf("%w: upload proof: %w", ErrCompletionFailed, err)
		}
	}

	if err := c.payments.MarkTaskComplete(ctx, s, id); err != nil {
		span.RecordError(err)
		c.metrics.PaymentFailures.Add(ctx, 1)
		c.record(ctx, "task.complete", inputs, audit.OutcomePaymentFailed, id, err.Error())
		return models.Task{}, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	armed := t
	t.IsCompleted = true
	t.NotificationID = ""
	if ref != "" {
		t.ProofFileRef = ref
	}
	tasks[i] = t

	if err := c.engine.Commit(ctx, s, tasks); err != nil {
		c.record(ctx, "task.complete", inputs, audit.OutcomeError, id, err.Error())
		return models.Task{}, fmt.Errorf("%w: save completed task: %w", ErrCompletionFailed, err)
	}
	if err := c.engine.Disarm(ctx, &armed); err != nil {
		c.logger.WarnContext(ctx, "failed to cancel reminder", slog.String("task_id", id), slog.Any("error", err))
	}

	c.record(ctx, "task.complete", inputs, audit.OutcomeSuccess, id, ref)
	c.logger.InfoContext(ctx, "task completed", slog.String("task_id", id))
	return t, nil
}

// MarkIncomplete reverts a completion. The reminder is rescheduled only if
// its time is still ahead.
func (c *Controller) MarkIncomplete(ctx context.Context, s *auth.Session, id string) (models.Task, error) {
	ctx, span := tracer.Start(ctx, "Controller.MarkIncomplete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if s == nil {
		return models.Task{}, auth.ErrNoSession
	}
	inputs := map[string]string{"id": id}

	tasks, i, err := c.find(ctx, s, id)
	if err != nil {
		c.record(ctx, "task.incomplete", inputs, outcomeFor(err), id, err.Error())
		return models.Task{}, err
	}
	t := tasks[i]
	if !t.IsCompleted {
		c.record(ctx, "task.incomplete", inputs, audit.OutcomeRejected, id, ErrNotCompleted.Error())
		return models.Task{}, ErrNotCompleted
	}

	t.IsCompleted = false
	t.NotificationID = ""
	if err := c.engine.Arm(ctx, &t); err != nil {
		c.logger.WarnContext(ctx, "reminder rejected", slog.String("task_id", id), slog.Any("error", err))
	}
	tasks[i] = t

	if err := c.engine.Commit(ctx, s, tasks); err != nil {
		if dErr := c.engine.Disarm(ctx, &t); dErr != nil {
			c.logger.WarnContext(ctx, "failed to cancel reminder", slog.String("task_id", id), slog.Any("error", dErr))
		}
		c.record(ctx, "task.incomplete", inputs, audit.OutcomeError, id, err.Error())
		return models.Task{}, fmt.Errorf("save task: %w", err)
	}

	c.record(ctx, "task.incomplete", inputs, audit.OutcomeSuccess, id, "")
	return t, nil
}

// DeleteTask settles the task's deposit and removes it. Nothing changes
// locally unless the backend accepts the settlement and the remote record
// drops the task.
func (c *Controller) DeleteTask(ctx context.Context, s *auth.Session, id string) error {
	ctx, span := tracer.Start(ctx, "Controller.DeleteTask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if s == nil {
		return auth.ErrNoSession
	}
	inputs := map[string]string{"id": id}

	tasks, i, err := c.find(ctx, s, id)
	if err != nil {
		c.record(ctx, "task.delete", inputs, outcomeFor(err), id, err.Error())
		return err
	}
	t := tasks[i]

	if !c.policy.CanDelete(t, c.now()) {
		c.record(ctx, "task.delete", inputs, audit.OutcomeRejected, id, ErrDeletionLocked.Error())
		return ErrDeletionLocked
	}

	if err := c.payments.RefundOrForfeit(ctx, s, id); err != nil {
		span.RecordError(err)
		c.metrics.PaymentFailures.Add(ctx, 1)
		c.record(ctx, "task.delete", inputs, audit.OutcomePaymentFailed, id, err.Error())
		return fmt.Errorf("%w: %w", ErrDeletionFailed, err)
	}

	remaining := append(append([]models.Task(nil), tasks[:i]...), tasks[i+1:]...)
	if err := c.engine.Commit(ctx, s, remaining); err != nil {
		c.record(ctx, "task.delete", inputs, audit.OutcomeError, id, err.Error())
		return fmt.Errorf("%w: save after settlement: %w", ErrDeletionFailed, err)
	}

	if err := c.engine.Disarm(ctx, &t); err != nil {
		c.logger.WarnContext(ctx, "failed to cancel reminder", slog.String("task_id", id), slog.Any("error", err))
	}

	c.record(ctx, "task.delete", inputs, audit.OutcomeSuccess, id, "")
	c.logger.InfoContext(ctx, "task deleted", slog.String("task_id", id))
	return nil
}

// AccountStatus describes the user's payment setup.
type AccountStatus struct {
	Provider models.PaymentProvider `json:"provider"`
	// PaymentMethods is only queried for Stripe.
	PaymentMethods int  `json:"payment_methods"`
	IsNewUser      bool `json:"is_new_user"`
}

// AccountStatus reports whether the user still has to set up payment: no
// provider chosen, or Stripe without a saved payment method.
func (c *Controller) AccountStatus(ctx context.Context, s *auth.Session) (AccountStatus, error) {
	if s == nil {
		return AccountStatus{}, auth.ErrNoSession
	}

	provider, err := c.payments.PaymentProvider(ctx, s)
	if err != nil {
		return AccountStatus{}, fmt.Errorf("get payment provider: %w", err)
	}
	status := AccountStatus{Provider: provider}

	switch provider {
	case models.PaymentProviderNone:
		status.IsNewUser = true
	case models.PaymentProviderStripe:
		status.PaymentMethods, err = c.payments.PaymentMethodsCount(ctx, s)
		if err != nil {
			return AccountStatus{}, fmt.Errorf("get payment methods count: %w", err)
		}
		status.IsNewUser = status.PaymentMethods == 0
	}
	return status, nil
}

// PaymentProvider returns the user's payment provider.
func (c *Controller) PaymentProvider(ctx context.Context, s *auth.Session) (models.PaymentProvider, error) {
	if s == nil {
		return models.PaymentProviderNone, auth.ErrNoSession
	}
	return c.payments.PaymentProvider(ctx, s)
}

// SetPaymentProvider selects the user's payment provider.
func (c *Controller) SetPaymentProvider(ctx context.Context, s *auth.Session, p models.PaymentProvider) error {
	if s == nil {
		return auth.ErrNoSession
	}
	if !p.Valid() {
		return &ValidationError{Field: "provider", Reason: fmt.Sprintf("unsupported provider %q", p)}
	}
	return c.payments.SetPaymentProvider(ctx, s, p)
}

// SignOut cancels local reminders and clears the local cache.
func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.engine.Reset(ctx); err != nil {
		return err
	}
	c.record(ctx, "session.reset", nil, audit.OutcomeSuccess, "", "")
	return nil
}

// find returns the cached task list and the index of id in it.
func (c *Controller) find(ctx context.Context, s *auth.Session, id string) ([]models.Task, int, error) {
	tasks, err := c.engine.Cached(ctx, s)
	if err != nil {
		return nil, -1, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return tasks, i, nil
		}
	}
	return nil, -1, ErrTaskNotFound
}

func (c *Controller) record(ctx context.Context, action string, inputs any, outcome, taskID, details string) {
	if _, err := c.audit.Record(ctx, action, inputs, outcome, taskID, details); err != nil {
		c.logger.WarnContext(ctx, "failed to write audit entry",
			slog.String("action", action), slog.Any("error", err))
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrTaskNotFound) {
		return audit.OutcomeRejected
	}
	return audit.OutcomeError
}
