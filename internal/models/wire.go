package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// maxEpochMillis bounds numeric dates to the range a JavaScript Date can hold.
const maxEpochMillis = 8.64e15

// NormalizeTime reduces t to the precision every store can round-trip.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// CachedTask is the local-cache form of a task. Keys match the records the
// mobile client has always written, so dueDate may be an RFC 3339 string or
// epoch milliseconds and notifyBefore is in milliseconds.
type CachedTask struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	IsCompleted    bool            `json:"isCompleted"`
	Deposit        int64           `json:"deposit"`
	DueDate        json.RawMessage `json:"dueDate"`
	NotifyBefore   int64           `json:"notifyBefore"`
	NotificationID string          `json:"notificationId"`
	ProofFileRef   string          `json:"proofFileRef,omitempty"`
}

// NewCachedTask converts t into its cache form.
func NewCachedTask(t Task) CachedTask {
	due, _ := json.Marshal(NormalizeTime(t.DueDate).Format(time.RFC3339Nano))
	return CachedTask{
		ID:             t.ID,
		Name:           t.Name,
		IsCompleted:    t.IsCompleted,
		Deposit:        t.Deposit,
		DueDate:        due,
		NotifyBefore:   t.NotifyBefore.Milliseconds(),
		NotificationID: t.NotificationID,
		ProofFileRef:   t.ProofFileRef,
	}
}

// Task converts the cache form back into a Task.
func (c CachedTask) Task() (Task, error) {
	if c.ID == "" {
		return Task{}, fmt.Errorf("cached task: missing id")
	}
	due, err := parseWireTime(c.DueDate)
	if err != nil {
		return Task{}, fmt.Errorf("cached task %s: %w", c.ID, err)
	}
	return Task{
		ID:             c.ID,
		Name:           c.Name,
		IsCompleted:    c.IsCompleted,
		Deposit:        c.Deposit,
		DueDate:        due,
		NotifyBefore:   time.Duration(c.NotifyBefore) * time.Millisecond,
		NotificationID: c.NotificationID,
		ProofFileRef:   c.ProofFileRef,
	}, nil
}

func parseWireTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing dueDate")
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("decode dueDate: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse dueDate: %w", err)
		}
		return NormalizeTime(t), nil
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("decode dueDate: %w", err)
	}
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, fmt.Errorf("dueDate %v out of range", ms)
	}
	return NormalizeTime(time.UnixMilli(int64(ms))), nil
}

// EncodeCache serializes a task list for the local cache.
func EncodeCache(tasks []Task) ([]byte, error) {
	cached := make([]CachedTask, 0, len(tasks))
	for _, t := range tasks {
		cached = append(cached, NewCachedTask(t))
	}
	return json.Marshal(cached)
}

// DecodeCache parses a cached task list. Nil or empty input yields no tasks.
func DecodeCache(data []byte) ([]Task, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var cached []CachedTask
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("decode cached tasks: %w", err)
	}

	tasks := make([]Task, 0, len(cached))
	for _, c := range cached {
		t, err := c.Task()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Record is the remote per-user document.
type Record struct {
	Data []RecordTask
}

// RecordTask is the remote form of a task. Reminder ids are device-local and
// never leave the device.
type RecordTask struct {
	ID           string
	Name         string
	IsCompleted  bool
	Deposit      int64
	DueDate      time.Time
	NotifyBefore time.Duration
	ProofFileRef string
}

// NewRecordTask converts t into its remote form.
func NewRecordTask(t Task) RecordTask {
	return RecordTask{
		ID:           t.ID,
		Name:         t.Name,
		IsCompleted:  t.IsCompleted,
		Deposit:      t.Deposit,
		DueDate:      NormalizeTime(t.DueDate),
		NotifyBefore: t.NotifyBefore,
		ProofFileRef: t.ProofFileRef,
	}
}

// Task converts the remote form into a Task with no active reminder.
func (r RecordTask) Task() Task {
	return Task{
		ID:           r.ID,
		Name:         r.Name,
		IsCompleted:  r.IsCompleted,
		Deposit:      r.Deposit,
		DueDate:      NormalizeTime(r.DueDate),
		NotifyBefore: r.NotifyBefore,
		ProofFileRef: r.ProofFileRef,
	}
}

// NewRecord builds the remote document for a task list.
func NewRecord(tasks []Task) *Record {
	rec := &Record{Data: make([]RecordTask, 0, len(tasks))}
	for _, t := range tasks {
		rec.Data = append(rec.Data, NewRecordTask(t))
	}
	return rec
}
