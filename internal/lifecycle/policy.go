package lifecycle

import (
	"strings"
	"time"

	"github.com/finey-app/finey/internal/models"
)

// Policy holds the client-enforced task rules.
type Policy struct {
	// DepositFloor is the smallest accepted deposit.
	DepositFloor int64
	// DeletionGrace is how long before the due date a pending task locks.
	DeletionGrace time.Duration
}

// DefaultPolicy returns the default rules.
func DefaultPolicy() Policy {
	return Policy{
		DepositFloor:  1000,
		DeletionGrace: 24 * time.Hour,
	}
}

// DefaultNotifyBefore is the reminder lead time offered for new tasks.
const DefaultNotifyBefore = 30 * time.Minute

// DefaultDraft returns the values a new task starts from: due at the end of
// tomorrow in now's location, reminded 30 minutes before, with the floor
// deposit.
func DefaultDraft(now time.Time, floor int64) models.TaskDraft {
	y, m, d := now.Date()
	return models.TaskDraft{
		DueDate:      time.Date(y, m, d+1, 23, 59, 59, 0, now.Location()),
		NotifyBefore: DefaultNotifyBefore,
		Deposit:      floor,
	}
}

// Validate checks a draft against the policy at now.
func (p Policy) Validate(draft models.TaskDraft, now time.Time) error {
	if strings.TrimSpace(draft.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if draft.Deposit < p.DepositFloor {
		return &ValidationError{Field: "deposit", Reason: "below the minimum deposit"}
	}
	if !draft.DueDate.After(now) {
		return &ValidationError{Field: "due_date", Reason: "must be in the future"}
	}
	if draft.NotifyBefore < 0 {
		return &ValidationError{Field: "notify_before", Reason: "must not be negative"}
	}
	if !draft.DueDate.Add(-draft.NotifyBefore).After(now) {
		return &ValidationError{Field: "notify_before", Reason: "reminder would fire in the past"}
	}
	return nil
}

// CanDelete reports whether t may be deleted at now. Pending tasks lock
// once the remaining time drops to the grace period; completed and overdue
// tasks can always be deleted.
func (p Policy) CanDelete(t models.Task, now time.Time) bool {
	if t.IsCompleted {
		return true
	}
	remaining := t.DueDate.Sub(now)
	if remaining <= 0 {
		return true
	}
	return remaining > p.DeletionGrace
}
