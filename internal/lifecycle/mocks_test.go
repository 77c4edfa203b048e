package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
)

// fakePayments records backend calls and fails on demand.
type fakePayments struct {
	mu sync.Mutex

	authorized []string
	completed  []string
	settled    []string

	authorizeErr error
	completeErr  error
	settleErr    error

	// onCall runs before each task call returns, with the backend path.
	onCall func(path string)

	provider    models.PaymentProvider
	methods     int
	providerErr error
}

func (f *fakePayments) AuthorizeDeposit(ctx context.Context, s *auth.Session, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCall != nil {
		f.onCall("/add-task")
	}
	f.authorized = append(f.authorized, id)
	return f.authorizeErr
}

func (f *fakePayments) MarkTaskComplete(ctx context.Context, s *auth.Session, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCall != nil {
		f.onCall("/mark-task-as-completed")
	}
	f.completed = append(f.completed, id)
	return f.completeErr
}

func (f *fakePayments) RefundOrForfeit(ctx context.Context, s *auth.Session, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCall != nil {
		f.onCall("/refund-task")
	}
	f.settled = append(f.settled, id)
	return f.settleErr
}

func (f *fakePayments) PaymentProvider(ctx context.Context, s *auth.Session) (models.PaymentProvider, error) {
	return f.provider, f.providerErr
}

func (f *fakePayments) SetPaymentProvider(ctx context.Context, s *auth.Session, p models.PaymentProvider) error {
	f.provider = p
	return f.providerErr
}

func (f *fakePayments) PaymentMethodsCount(ctx context.Context, s *auth.Session) (int, error) {
	return f.methods, nil
}

// fakeReminders records scheduler calls.
type fakeReminders struct {
	mu        sync.Mutex
	next      int
	fireAt    map[string]time.Time
	scheduled []string
	cancelled []string
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{fireAt: make(map[string]time.Time)}
}

func (f *fakeReminders) Schedule(ctx context.Context, title, body string, fireAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("reminder-%d", f.next)
	f.fireAt[id] = fireAt
	f.scheduled = append(f.scheduled, id)
	return id, nil
}

func (f *fakeReminders) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

// fakeProofs stores proofs in memory.
type fakeProofs struct {
	uploads []models.Proof
	err     error
}

func (f *fakeProofs) Upload(ctx context.Context, userID string, task models.Task, proof models.Proof) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, proof)
	return userID + "/" + proof.Filename, nil
}
