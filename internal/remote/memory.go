package remote

import (
	"context"
	"sync"

	"github.com/finey-app/finey/internal/models"
)

// Memory is an in-process record store used when no project is configured.
type Memory struct {
	mu      sync.Mutex
	records map[string][]models.RecordTask
	getErr  error
	setErr  error
	writes  int
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string][]models.RecordTask)}
}

// FailWith makes subsequent Get and Set calls return the given errors.
// Nil clears the failure.
func (m *Memory) FailWith(getErr, setErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = getErr
	m.setErr = setErr
}

// Writes returns how many successful Set calls were made.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Get returns a copy of the user's record, or nil when none exists.
func (m *Memory) Get(ctx context.Context, userID string) (*models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return &models.Record{Data: append([]models.RecordTask(nil), data...)}, nil
}

// Set replaces the user's record.
func (m *Memory) Set(ctx context.Context, userID string, rec *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	var data []models.RecordTask
	if rec != nil {
		data = append(data, rec.Data...)
	}
	m.records[userID] = data
	m.writes++
	return nil
}
