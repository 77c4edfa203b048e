package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finey-app/finey/internal/models"
)

// ErrFireTimeInPast is returned when a reminder would fire at or before now.
var ErrFireTimeInPast = errors.New("reminder fire time is not in the future")

// Store persists reminders.
type Store interface {
	CreateReminder(ctx context.Context, title, body string, fireAt time.Time) (*models.Reminder, error)
	DeleteReminder(ctx context.Context, id string) (bool, error)
	DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkReminderFired(ctx context.Context, id string, at time.Time) (bool, error)
	PruneFiredReminders(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler creates and cancels reminders.
type Scheduler struct {
	store Store
	now   func() time.Time
}

// NewScheduler creates a scheduler persisting to s.
func NewScheduler(s Store) *Scheduler {
	return &Scheduler{store: s, now: time.Now}
}

// Schedule registers a reminder firing at fireAt and returns its id.
func (s *Scheduler) Schedule(ctx context.Context, title, body string, fireAt time.Time) (string, error) {
	if !fireAt.After(s.now()) {
		return "", fmt.Errorf("%w: %s", ErrFireTimeInPast, fireAt.UTC().Format(time.RFC3339))
	}
	r, err := s.store.CreateReminder(ctx, title, body, fireAt)
	if err != nil {
		return "", fmt.Errorf("schedule reminder: %w", err)
	}
	return r.ID, nil
}

// Cancel removes a reminder. Unknown or already-fired ids are ignored.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.store.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("cancel reminder: %w", err)
	}
	return nil
}
