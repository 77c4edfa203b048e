package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// memCache is an in-memory Cache.
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
	setErr error
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.values[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string][]byte)
	return nil
}

type scheduledReminder struct {
	title, body string
	fireAt      time.Time
}

// fakeReminders records scheduler calls.
type fakeReminders struct {
	mu          sync.Mutex
	next        int
	active      map[string]scheduledReminder
	scheduled   []string
	cancelled   []string
	attempts    int
	scheduleErr error
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{active: make(map[string]scheduledReminder)}
}

func (f *fakeReminders) Schedule(ctx context.Context, title, body string, fireAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	f.next++
	id := fmt.Sprintf("reminder-%d", f.next)
	f.active[id] = scheduledReminder{title: title, body: body, fireAt: fireAt}
	f.scheduled = append(f.scheduled, id)
	return id, nil
}

func (f *fakeReminders) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, id)
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeReminders) calls() (scheduled, cancelled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled), len(f.cancelled)
}

var errUnreachable = errors.New("remote unreachable")
