// Package models defines the core domain types for Finey.
package models

import "time"

// TaskState is the derived display state of a task.
type TaskState string

const (
	TaskStatePending   TaskState = "pending"
	TaskStateCompleted TaskState = "completed"
	TaskStateOutdated  TaskState = "outdated"
)

// Task is a deposit-backed commitment owned by a single user.
type Task struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	IsCompleted    bool          `json:"is_completed"`
	Deposit        int64         `json:"deposit"`
	DueDate        time.Time     `json:"due_date"`
	NotifyBefore   time.Duration `json:"notify_before"`
	NotificationID string        `json:"notification_id,omitempty"`
	ProofFileRef   string        `json:"proof_file_ref,omitempty"`
}

// ReminderAt returns the instant the task's reminder should fire.
func (t Task) ReminderAt() time.Time {
	return t.DueDate.Add(-t.NotifyBefore)
}

// IsOutdated reports whether the task is pending and past its due date.
func (t Task) IsOutdated(now time.Time) bool {
	return !t.IsCompleted && t.DueDate.Before(now)
}

// State derives the task's display state at now.
func (t Task) State(now time.Time) TaskState {
	switch {
	case t.IsCompleted:
		return TaskStateCompleted
	case t.IsOutdated(now):
		return TaskStateOutdated
	default:
		return TaskStatePending
	}
}

// TaskDraft holds the user-supplied fields of a task before creation.
type TaskDraft struct {
	Name         string        `json:"name"`
	DueDate      time.Time     `json:"due_date"`
	NotifyBefore time.Duration `json:"notify_before"`
	Deposit      int64         `json:"deposit"`
}

// Proof is an artifact submitted when completing a task.
type Proof struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"content"`
	Description string `json:"description,omitempty"`
}

// PaymentProvider identifies how the user's deposits are charged.
type PaymentProvider string

const (
	PaymentProviderNone   PaymentProvider = ""
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPayPay PaymentProvider = "paypay"
)

// Valid reports whether p names a supported provider.
func (p PaymentProvider) Valid() bool {
	return p == PaymentProviderStripe || p == PaymentProviderPayPay
}

// Reminder is a one-shot local notification.
type Reminder struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Body    string     `json:"body"`
	FireAt  time.Time  `json:"fire_at"`
	FiredAt *time.Time `json:"fired_at,omitempty"`
}

// AuditEntry records the outcome of a lifecycle decision.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
