// Package audit records lifecycle decisions for Finey so that every money
// movement the client requested can be traced afterwards.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/finey-app/finey/internal/models"
)

// Outcomes recorded for lifecycle actions.
const (
	OutcomeSuccess       = "success"
	OutcomePaymentFailed = "payment_failed"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// Sink persists audit entries.
type Sink interface {
	WriteAudit(ctx context.Context, action, inputsHash, outcome, taskID, details string) (*models.AuditEntry, error)
}

// Recorder writes audit entries for state-mutating actions.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a new Recorder. A nil sink disables recording.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record writes an audit entry for an action.
func (r *Recorder) Record(ctx context.Context, action string, inputs any, outcome, taskID, details string) (*models.AuditEntry, error) {
	if r == nil || r.sink == nil {
		return nil, nil
	}
	return r.sink.WriteAudit(ctx, action, hashInputs(inputs), outcome, taskID, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
