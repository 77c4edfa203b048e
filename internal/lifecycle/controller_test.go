package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/finey-app/finey/internal/audit"
	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
	"github.com/finey-app/finey/internal/reconcile"
	"github.com/finey-app/finey/internal/remote"
	"github.com/finey-app/finey/internal/store"
	"github.com/finey-app/finey/internal/telemetry"
)

// 2026-03-01 12:00 in Tokyo
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))

type harness struct {
	ctrl      *Controller
	engine    *reconcile.Engine
	store     *store.Store
	remote    *remote.Memory
	reminders *fakeReminders
	payments  *fakePayments
	proofs    *fakeProofs
	session   *auth.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	h := &harness{
		store:     s,
		remote:    remote.NewMemory(),
		reminders: newFakeReminders(),
		payments:  &fakePayments{},
		proofs:    &fakeProofs{},
		session:   auth.StaticSession("user-1", "tok"),
	}
	clock := func() time.Time { return testNow }
	logger := telemetry.Discard()

	h.engine = reconcile.New(s, h.remote, h.reminders, reconcile.Options{Logger: logger, Now: clock})
	h.ctrl = New(h.engine, h.payments, Options{
		Policy: DefaultPolicy(),
		Proofs: h.proofs,
		Audit:  audit.NewRecorder(s),
		Logger: logger,
		Now:    clock,
	})
	return h
}

func (h *harness) seed(t *testing.T, tasks ...models.Task) {
	t.Helper()
	if err := h.engine.Save(context.Background(), h.session, tasks); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func (h *harness) cached(t *testing.T) []models.Task {
	t.Helper()
	tasks, err := h.engine.Cached(context.Background(), h.session)
	if err != nil {
		t.Fatalf("Cached failed: %v", err)
	}
	return tasks
}

func (h *harness) lastAudit(t *testing.T) models.AuditEntry {
	t.Helper()
	entries, err := h.store.ListAudit(context.Background(), "", 1)
	if err != nil || len(entries) == 0 {
		t.Fatalf("ListAudit failed: %v (%d entries)", err, len(entries))
	}
	return entries[0]
}

func task(id string, due time.Duration) models.Task {
	return models.Task{
		ID:           id,
		Name:         "task " + id,
		Deposit:      1000,
		DueDate:      models.NormalizeTime(testNow.Add(due)),
		NotifyBefore: 30 * time.Minute,
	}
}

func TestAddTaskCleanRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	y, m, d := testNow.Date()
	due := time.Date(y, m, d+1, 23, 59, 0, 0, testNow.Location())

	got, err := h.ctrl.AddTask(ctx, h.session, models.TaskDraft{
		Name:         "Clean room",
		DueDate:      due,
		NotifyBefore: 30 * time.Minute,
		Deposit:      1000,
	})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	if got.IsCompleted {
		t.Error("Expected new task to be pending")
	}
	if got.NotificationID == "" {
		t.Fatal("Expected a reminder id")
	}
	wantFire := time.Date(y, m, d+1, 23, 29, 0, 0, testNow.Location())
	if fire := h.reminders.fireAt[got.NotificationID]; !fire.Equal(wantFire) {
		t.Errorf("Expected reminder at %v, got %v", wantFire, fire)
	}
	if !reflect.DeepEqual(h.payments.authorized, []string{got.ID}) {
		t.Errorf("Expected deposit authorized for %s, got %v", got.ID, h.payments.authorized)
	}

	cached := h.cached(t)
	if len(cached) != 1 || cached[0].NotificationID != got.NotificationID {
		t.Errorf("Expected cached task with reminder id, got %+v", cached)
	}
	rec, _ := h.remote.Get(ctx, "user-1")
	if rec == nil || len(rec.Data) != 1 || rec.Data[0].ID != got.ID {
		t.Errorf("Expected remote record with the new task, got %+v", rec)
	}
	if e := h.lastAudit(t); e.Action != "task.add" || e.Outcome != audit.OutcomeSuccess {
		t.Errorf("Expected successful task.add audit, got %+v", e)
	}
}

func TestAddTaskRollsBackOnPaymentFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	existing := task("existing", 72*time.Hour)
	h.seed(t, existing)
	before := h.cached(t)

	declined := errors.New("card declined")
	h.payments.authorizeErr = declined

	_, err := h.ctrl.AddTask(ctx, h.session, models.TaskDraft{
		Name:         "Gym",
		DueDate:      testNow.Add(48 * time.Hour),
		NotifyBefore: time.Hour,
		Deposit:      2000,
	})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("Expected ErrPaymentFailed, got %v", err)
	}
	if !errors.Is(err, declined) {
		t.Errorf("Expected backend cause to be kept, got %v", err)
	}

	if after := h.cached(t); !reflect.DeepEqual(after, before) {
		t.Errorf("Expected cache unchanged:\nbefore: %+v\nafter:  %+v", before, after)
	}
	rec, _ := h.remote.Get(ctx, "user-1")
	if len(rec.Data) != 1 || rec.Data[0].ID != "existing" {
		t.Errorf("Expected remote record without orphan, got %+v", rec.Data)
	}
	if len(h.reminders.scheduled) != 0 {
		t.Errorf("Expected no reminder, got %v", h.reminders.scheduled)
	}
	if e := h.lastAudit(t); e.Outcome != audit.OutcomePaymentFailed {
		t.Errorf("Expected payment_failed audit, got %+v", e)
	}
}

func TestAddTaskValidation(t *testing.T) {
	valid := models.TaskDraft{
		Name:         "Read",
		DueDate:      testNow.Add(48 * time.Hour),
		NotifyBefore: 30 * time.Minute,
		Deposit:      1000,
	}

	cases := []struct {
		name   string
		mutate func(d *models.TaskDraft)
		field  string
	}{
		{"blank name", func(d *models.TaskDraft) { d.Name = "   " }, "name"},
		{"deposit below floor", func(d *models.TaskDraft) { d.Deposit = 999 }, "deposit"},
		{"due in past", func(d *models.TaskDraft) { d.DueDate = testNow.Add(-time.Minute) }, "due_date"},
		{"due now", func(d *models.TaskDraft) { d.DueDate = testNow }, "due_date"},
		{"negative lead", func(d *models.TaskDraft) { d.NotifyBefore = -time.Minute }, "notify_before"},
		{"reminder in past", func(d *models.TaskDraft) {
			d.DueDate = testNow.Add(20 * time.Minute)
			d.NotifyBefore = 30 * time.Minute
		}, "notify_before"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			draft := valid
			tc.mutate(&draft)

			_, err := h.ctrl.AddTask(context.Background(), h.session, draft)
			if !errors.Is(err, ErrInvalidTask) {
				t.Fatalf("Expected ErrInvalidTask, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Errorf("Expected field %s, got %v", tc.field, err)
			}
			if len(h.payments.authorized) != 0 {
				t.Error("Expected no backend call")
			}
			if len(h.cached(t)) != 0 {
				t.Error("Expected nothing persisted")
			}
		})
	}
}

func TestCompleteTaskClearsReminder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	added, err := h.ctrl.AddTask(ctx, h.session, models.TaskDraft{
		Name:         "Write report",
		DueDate:      testNow.Add(48 * time.Hour),
		NotifyBefore: time.Hour,
		Deposit:      1500,
	})
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	got, err := h.ctrl.CompleteTask(ctx, h.session, added.ID, nil)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if !got.IsCompleted || got.NotificationID != "" {
		t.Errorf("Expected completed task without reminder, got %+v", got)
	}
	if !reflect.DeepEqual(h.reminders.cancelled, []string{added.NotificationID}) {
		t.Errorf("Expected cancel of %s, got %v", added.NotificationID, h.reminders.cancelled)
	}
	if !reflect.DeepEqual(h.payments.completed, []string{added.ID}) {
		t.Errorf("Expected mark-complete call, got %v", h.payments.completed)
	}

	cached := h.cached(t)
	if !cached[0].IsCompleted || cached[0].NotificationID != "" {
		t.Errorf("Expected persisted completion, got %+v", cached[0])
	}
}

func TestCompleteTaskWithProof(t *testing.T) {
	h := newHarness(t)
	h.seed(t, task("a", 48*time.Hour))

	proof := &models.Proof{Filename: "room.jpg", ContentType: "image/jpeg", Content: []byte{0xff}, Description: "tidy"}
	got, err := h.ctrl.CompleteTask(context.Background(), h.session, "a", proof)
	if err != nil {
		t.Fatalf("CompleteTask failed: %v", err)
	}
	if got.ProofFileRef != "user-1/room.jpg" {
		t.Errorf("Expected proof ref, got %q", got.ProofFileRef)
	}
	if len(h.proofs.uploads) != 1 {
		t.Errorf("Expected one upload, got %d", len(h.proofs.uploads))
	}
}

func TestCompleteTaskFailureLeavesTaskPending(t *testing.T) {
	h := newHarness(t)
	a := task("a", 48*time.Hour)
	a.NotificationID = "reminder-a"
	h.seed(t, a)
	h.payments.completeErr = errors.New("timeout")

	_, err := h.ctrl.CompleteTask(context.Background(), h.session, "a", nil)
	if !errors.Is(err, ErrCompletionFailed) {
		t.Fatalf("Expected ErrCompletionFailed, got %v", err)
	}
	cached := h.cached(t)
	if cached[0].IsCompleted || cached[0].NotificationID != "reminder-a" {
		t.Errorf("Expected task untouched, got %+v", cached[0])
	}
	if len(h.reminders.cancelled) != 0 {
		t.Errorf("Expected reminder kept, got cancels %v", h.reminders.cancelled)
	}
}

func TestCompleteTaskRejections(t *testing.T) {
	done := task("done", 48*time.Hour)
	done.IsCompleted = true
	late := task("late", -time.Hour)

	cases := []struct {
		name   string
		id     string
		proof  *models.Proof
		noStor bool
		want   error
	}{
		{"not found", "missing", nil, false, ErrTaskNotFound},
		{"already completed", "done", nil, false, ErrAlreadyCompleted},
		{"outdated", "late", nil, false, ErrTaskOutdated},
		{"proof without store", "open", &models.Proof{Filename: "x.jpg", Content: []byte{1}}, true, ErrProofUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if tc.noStor {
				h.ctrl.proofs = nil
			}
			h.seed(t, done, late, task("open", 48*time.Hour))

			if _, err := h.ctrl.CompleteTask(context.Background(), h.session, tc.id, tc.proof); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if len(h.payments.completed) != 0 {
				t.Error("Expected no backend call")
			}
		})
	}
}

func TestMarkIncompleteWithPastReminder(t *testing.T) {
	h := newHarness(t)

	a := task("a", 10*time.Minute) // reminder was 20 minutes ago
	a.IsCompleted = true
	h.seed(t, a)

	got, err := h.ctrl.MarkIncomplete(context.Background(), h.session, "a")
	if err != nil {
		t.Fatalf("MarkIncomplete failed: %v", err)
	}
	if got.IsCompleted || got.NotificationID != "" {
		t.Errorf("Expected pending task without reminder, got %+v", got)
	}
	if len(h.reminders.scheduled) != 0 {
		t.Errorf("Expected no scheduling attempt, got %v", h.reminders.scheduled)
	}
}

func TestMarkIncompleteReschedules(t *testing.T) {
	h := newHarness(t)

	a := task("a", 48*time.Hour)
	a.IsCompleted = true
	h.seed(t, a, task("b", 48*time.Hour))

	got, err := h.ctrl.MarkIncomplete(context.Background(), h.session, "a")
	if err != nil {
		t.Fatalf("MarkIncomplete failed: %v", err)
	}
	if got.NotificationID == "" {
		t.Fatal("Expected reminder to be rescheduled")
	}
	if fire := h.reminders.fireAt[got.NotificationID]; !fire.Equal(a.ReminderAt()) {
		t.Errorf("Expected fire at %v, got %v", a.ReminderAt(), fire)
	}

	if _, err := h.ctrl.MarkIncomplete(context.Background(), h.session, "b"); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("Expected ErrNotCompleted for pending task, got %v", err)
	}
}

func TestDeleteTaskGuard(t *testing.T) {
	cases := []struct {
		name      string
		due       time.Duration
		completed bool
		wantErr   error
	}{
		{"pending, 2h left", 2 * time.Hour, false, ErrDeletionLocked},
		{"pending, exactly 24h left", 24 * time.Hour, false, ErrDeletionLocked},
		{"pending, 25h left", 25 * time.Hour, false, nil},
		{"completed, 2h left", 2 * time.Hour, true, nil},
		{"outdated", -time.Hour, false, nil},
		{"due exactly now", 0, false, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			a := task("a", tc.due)
			a.IsCompleted = tc.completed
			if !tc.completed {
				a.NotificationID = "reminder-a"
			}
			h.seed(t, a, task("b", 72*time.Hour))

			err := h.ctrl.DeleteTask(context.Background(), h.session, "a")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected %v, got %v", tc.wantErr, err)
				}
				if len(h.payments.settled) != 0 {
					t.Error("Expected no backend call for locked task")
				}
				if len(h.cached(t)) != 2 {
					t.Error("Expected task kept")
				}
				return
			}

			if err != nil {
				t.Fatalf("DeleteTask failed: %v", err)
			}
			if !reflect.DeepEqual(h.payments.settled, []string{"a"}) {
				t.Errorf("Expected refund call for a, got %v", h.payments.settled)
			}
			cached := h.cached(t)
			if len(cached) != 1 || cached[0].ID != "b" {
				t.Errorf("Expected only b to remain, got %+v", cached)
			}
			if !tc.completed && !reflect.DeepEqual(h.reminders.cancelled, []string{"reminder-a"}) {
				t.Errorf("Expected reminder cancelled, got %v", h.reminders.cancelled)
			}
		})
	}
}

func TestDeleteTaskFailureLeavesTask(t *testing.T) {
	h := newHarness(t)
	h.seed(t, task("a", 72*time.Hour))
	h.payments.settleErr = errors.New("connection reset")

	err := h.ctrl.DeleteTask(context.Background(), h.session, "a")
	if !errors.Is(err, ErrDeletionFailed) {
		t.Fatalf("Expected ErrDeletionFailed, got %v", err)
	}
	if len(h.cached(t)) != 1 {
		t.Error("Expected task untouched")
	}
	if e := h.lastAudit(t); e.Action != "task.delete" || e.Outcome != audit.OutcomePaymentFailed {
		t.Errorf("Expected failed task.delete audit, got %+v", e)
	}
}

var errRemoteDown = errors.New("remote unavailable")

// failRemoteOn makes every remote write fail once the backend sees path.
func (h *harness) failRemoteOn(path string) {
	h.payments.onCall = func(p string) {
		if p == path {
			h.remote.FailWith(nil, errRemoteDown)
		}
	}
}

func TestAddTaskRemoteFailureBeforePayment(t *testing.T) {
	h := newHarness(t)
	h.seed(t, task("existing", 72*time.Hour))
	before := h.cached(t)
	h.remote.FailWith(nil, errRemoteDown)

	_, err := h.ctrl.AddTask(context.Background(), h.session, models.TaskDraft{
		Name:         "Gym",
		DueDate:      testNow.Add(48 * time.Hour),
		NotifyBefore: time.Hour,
		Deposit:      2000,
	})
	if !errors.Is(err, errRemoteDown) {
		t.Fatalf("Expected remote failure, got %v", err)
	}
	if len(h.payments.authorized) != 0 {
		t.Errorf("Expected no deposit authorization, got %v", h.payments.authorized)
	}
	if after := h.cached(t); !reflect.DeepEqual(after, before) {
		t.Errorf("Expected cache unchanged, got %+v", after)
	}
}

func TestAddTaskRollbackRemoteFailureIsReported(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, task("existing", 72*time.Hour))
	before := h.cached(t)

	declined := errors.New("card declined")
	h.payments.authorizeErr = declined
	h.failRemoteOn("/add-task")

	_, err := h.ctrl.AddTask(ctx, h.session, models.TaskDraft{
		Name:         "Gym",
		DueDate:      testNow.Add(48 * time.Hour),
		NotifyBefore: time.Hour,
		Deposit:      2000,
	})
	if !errors.Is(err, ErrPaymentFailed) || !errors.Is(err, declined) {
		t.Fatalf("Expected payment failure with cause, got %v", err)
	}
	if !errors.Is(err, errRemoteDown) {
		t.Errorf("Expected failed rollback to be reported, got %v", err)
	}
	if after := h.cached(t); !reflect.DeepEqual(after, before) {
		t.Errorf("Expected local rollback to stand, got %+v", after)
	}
	if len(h.reminders.scheduled) != 0 {
		t.Errorf("Expected no reminder, got %v", h.reminders.scheduled)
	}
	if e := h.lastAudit(t); e.Outcome != audit.OutcomePaymentFailed {
		t.Errorf("Expected payment_failed audit, got %+v", e)
	}
}

func TestCompleteTaskRemoteFailureLeavesTaskPending(t *testing.T) {
	h := newHarness(t)
	a := task("a", 48*time.Hour)
	a.NotificationID = "reminder-a"
	h.seed(t, a)
	h.failRemoteOn("/mark-task-as-completed")

	_, err := h.ctrl.CompleteTask(context.Background(), h.session, "a", nil)
	if !errors.Is(err, ErrCompletionFailed) || !errors.Is(err, errRemoteDown) {
		t.Fatalf("Expected ErrCompletionFailed from remote write, got %v", err)
	}
	cached := h.cached(t)
	if cached[0].IsCompleted || cached[0].NotificationID != "reminder-a" {
		t.Errorf("Expected task untouched, got %+v", cached[0])
	}
	if len(h.reminders.cancelled) != 0 {
		t.Errorf("Expected reminder kept, got cancels %v", h.reminders.cancelled)
	}
}

func TestMarkIncompleteRemoteFailure(t *testing.T) {
	h := newHarness(t)
	a := task("a", 48*time.Hour)
	a.IsCompleted = true
	h.seed(t, a)
	h.remote.FailWith(nil, errRemoteDown)

	if _, err := h.ctrl.MarkIncomplete(context.Background(), h.session, "a"); !errors.Is(err, errRemoteDown) {
		t.Fatalf("Expected remote failure, got %v", err)
	}
	if cached := h.cached(t); !cached[0].IsCompleted || cached[0].NotificationID != "" {
		t.Errorf("Expected task still completed, got %+v", cached[0])
	}
	if !reflect.DeepEqual(h.reminders.cancelled, h.reminders.scheduled) || len(h.reminders.scheduled) != 1 {
		t.Errorf("Expected the new reminder withdrawn, scheduled %v cancelled %v",
			h.reminders.scheduled, h.reminders.cancelled)
	}
}

func TestDeleteTaskRemoteFailureKeepsTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := task("a", 72*time.Hour)
	a.NotificationID = "reminder-a"
	h.seed(t, a, task("b", 72*time.Hour))
	h.failRemoteOn("/refund-task")

	err := h.ctrl.DeleteTask(ctx, h.session, "a")
	if !errors.Is(err, ErrDeletionFailed) || !errors.Is(err, errRemoteDown) {
		t.Fatalf("Expected ErrDeletionFailed from remote write, got %v", err)
	}
	if got := h.cached(t); len(got) != 2 || got[0].NotificationID != "reminder-a" {
		t.Errorf("Expected task and reminder kept, got %+v", got)
	}
	if len(h.reminders.cancelled) != 0 {
		t.Errorf("Expected no cancels, got %v", h.reminders.cancelled)
	}
	if e := h.lastAudit(t); e.Action != "task.delete" || e.Outcome != audit.OutcomeError {
		t.Errorf("Expected errored task.delete audit, got %+v", e)
	}

	// Retry once the remote is back
	h.payments.onCall = nil
	h.remote.FailWith(nil, nil)
	if err := h.ctrl.DeleteTask(ctx, h.session, "a"); err != nil {
		t.Fatalf("DeleteTask retry failed: %v", err)
	}
	tasks, err := h.ctrl.Tasks(ctx, h.session)
	if err != nil {
		t.Fatalf("Tasks failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "b" {
		t.Errorf("Expected only b after reload, got %+v", tasks)
	}
	if !reflect.DeepEqual(h.reminders.cancelled, []string{"reminder-a"}) {
		t.Errorf("Expected reminder-a cancelled, got %v", h.reminders.cancelled)
	}
}

func TestAccountStatus(t *testing.T) {
	cases := []struct {
		name     string
		provider models.PaymentProvider
		methods  int
		want     bool
	}{
		{"no provider", models.PaymentProviderNone, 0, true},
		{"stripe without methods", models.PaymentProviderStripe, 0, true},
		{"stripe with methods", models.PaymentProviderStripe, 1, false},
		{"paypay", models.PaymentProviderPayPay, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.payments.provider = tc.provider
			h.payments.methods = tc.methods

			got, err := h.ctrl.AccountStatus(context.Background(), h.session)
			if err != nil {
				t.Fatalf("AccountStatus failed: %v", err)
			}
			if got.IsNewUser != tc.want {
				t.Errorf("Expected IsNewUser=%v, got %+v", tc.want, got)
			}
		})
	}
}

func TestSetPaymentProvider(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.ctrl.SetPaymentProvider(ctx, h.session, "bank"); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if err := h.ctrl.SetPaymentProvider(ctx, h.session, models.PaymentProviderPayPay); err != nil {
		t.Fatalf("SetPaymentProvider failed: %v", err)
	}
	if h.payments.provider != models.PaymentProviderPayPay {
		t.Errorf("Expected paypay, got %q", h.payments.provider)
	}
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)
	a := task("a", 48*time.Hour)
	a.NotificationID = "reminder-a"
	h.seed(t, a)

	if err := h.ctrl.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if len(h.cached(t)) != 0 {
		t.Error("Expected local cache cleared")
	}
	if !reflect.DeepEqual(h.reminders.cancelled, []string{"reminder-a"}) {
		t.Errorf("Expected reminder cancelled, got %v", h.reminders.cancelled)
	}
}

func TestOperationsRequireSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.ctrl.AddTask(ctx, nil, models.TaskDraft{}); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("AddTask: expected ErrNoSession, got %v", err)
	}
	if _, err := h.ctrl.CompleteTask(ctx, nil, "a", nil); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("CompleteTask: expected ErrNoSession, got %v", err)
	}
	if err := h.ctrl.DeleteTask(ctx, nil, "a"); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("DeleteTask: expected ErrNoSession, got %v", err)
	}
}
