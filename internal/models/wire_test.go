package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCachedTaskDueDateForms(t *testing.T) {
	want := time.Date(2026, 3, 1, 14, 59, 59, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{"rfc3339 string", `"2026-03-01T23:59:59+09:00"`},
		{"epoch millis", `1772377199000`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CachedTask{ID: "t1", Name: "Run", DueDate: json.RawMessage(tt.raw), NotifyBefore: 1800000}
			task, err := c.Task()
			if err != nil {
				t.Fatalf("Task failed: %v", err)
			}
			if !task.DueDate.Equal(want) {
				t.Errorf("Expected due %v, got %v", want, task.DueDate)
			}
			if task.NotifyBefore != 30*time.Minute {
				t.Errorf("Expected 30m notify before, got %v", task.NotifyBefore)
			}
		})
	}
}

func TestCachedTaskInvalid(t *testing.T) {
	tests := []struct {
		name string
		c    CachedTask
	}{
		{"missing id", CachedTask{DueDate: json.RawMessage(`"2026-03-01T00:00:00Z"`)}},
		{"missing due", CachedTask{ID: "t1"}},
		{"null due", CachedTask{ID: "t1", DueDate: json.RawMessage(`null`)}},
		{"garbage due", CachedTask{ID: "t1", DueDate: json.RawMessage(`"next tuesday"`)}},
		{"wrong type", CachedTask{ID: "t1", DueDate: json.RawMessage(`{}`)}},
		{"millis beyond int64", CachedTask{ID: "t1", DueDate: json.RawMessage(`1e300`)}},
		{"millis beyond date range", CachedTask{ID: "t1", DueDate: json.RawMessage(`-8.7e15`)}},
		{"millis overflow float", CachedTask{ID: "t1", DueDate: json.RawMessage(`1e999`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.c.Task(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCachedTaskDateRangeEdges(t *testing.T) {
	c := CachedTask{ID: "t1", DueDate: json.RawMessage(`8640000000000000`)}
	got, err := c.Task()
	if err != nil {
		t.Fatalf("Task failed at the range limit: %v", err)
	}
	if got.DueDate.UnixMilli() != 8640000000000000 {
		t.Errorf("Expected limit preserved, got %d", got.DueDate.UnixMilli())
	}

	c.DueDate = json.RawMessage(`8640000000000001`)
	if _, err := c.Task(); err == nil {
		t.Error("Expected error past the range limit")
	}
}

func TestCacheRoundTripKeepsOrderAndReminder(t *testing.T) {
	due := time.Date(2026, 3, 2, 8, 30, 0, 123456789, time.FixedZone("JST", 9*3600))
	tasks := []Task{
		{ID: "b", Name: "Second", Deposit: 1000, DueDate: due, NotifyBefore: time.Hour, NotificationID: "r1"},
		{ID: "a", Name: "First", Deposit: 2000, DueDate: due, IsCompleted: true, ProofFileRef: "u/a.jpg"},
	}

	data, err := EncodeCache(tasks)
	if err != nil {
		t.Fatalf("EncodeCache failed: %v", err)
	}
	got, err := DecodeCache(data)
	if err != nil {
		t.Fatalf("DecodeCache failed: %v", err)
	}

	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("Expected order preserved, got %+v", got)
	}
	if got[0].NotificationID != "r1" {
		t.Errorf("Expected cache to keep reminder id, got %q", got[0].NotificationID)
	}
	if !got[0].DueDate.Equal(NormalizeTime(due)) || got[0].DueDate.Location() != time.UTC {
		t.Errorf("Expected normalized UTC due date, got %v", got[0].DueDate)
	}
	if got[1].ProofFileRef != "u/a.jpg" || !got[1].IsCompleted {
		t.Errorf("Expected completed task with proof, got %+v", got[1])
	}
}

func TestDecodeCacheEmpty(t *testing.T) {
	for _, in := range [][]byte{nil, []byte(""), []byte("  \n")} {
		tasks, err := DecodeCache(in)
		if err != nil {
			t.Fatalf("DecodeCache(%q) failed: %v", in, err)
		}
		if tasks != nil {
			t.Errorf("Expected no tasks for %q, got %v", in, tasks)
		}
	}

	if _, err := DecodeCache([]byte(`{not json`)); err == nil {
		t.Error("Expected error for corrupt cache")
	}
}

func TestNewRecordDropsReminderIDs(t *testing.T) {
	due := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rec := NewRecord([]Task{{ID: "a", Name: "Run", DueDate: due, NotificationID: "r1"}})

	if len(rec.Data) != 1 {
		t.Fatalf("Expected 1 record task, got %d", len(rec.Data))
	}
	back := rec.Data[0].Task()
	if back.NotificationID != "" {
		t.Errorf("Expected remote task without reminder id, got %q", back.NotificationID)
	}
	if back.ID != "a" || !back.DueDate.Equal(due) {
		t.Errorf("Unexpected task %+v", back)
	}
}

func TestTaskState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want TaskState
	}{
		{"pending", Task{DueDate: now.Add(time.Hour)}, TaskStatePending},
		{"outdated", Task{DueDate: now.Add(-time.Hour)}, TaskStateOutdated},
		{"completed past due", Task{DueDate: now.Add(-time.Hour), IsCompleted: true}, TaskStateCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.task.State(now); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	task := Task{DueDate: now, NotifyBefore: 30 * time.Minute}
	if !task.ReminderAt().Equal(now.Add(-30 * time.Minute)) {
		t.Errorf("Unexpected reminder time %v", task.ReminderAt())
	}
}

func TestPaymentProviderValid(t *testing.T) {
	if !PaymentProviderStripe.Valid() || !PaymentProviderPayPay.Valid() {
		t.Error("Expected stripe and paypay to be valid")
	}
	if PaymentProviderNone.Valid() || PaymentProvider("visa").Valid() {
		t.Error("Expected empty and unknown providers to be invalid")
	}
}
