package controlplane

import (
	"context"

	"github.com/finey-app/finey/internal/auth"
	"github.com/finey-app/finey/internal/models"
)

// fakePayments is a backend that accepts everything unless told otherwise.
type fakePayments struct {
	authorizeErr error
	settleErr    error
	provider     models.PaymentProvider
	methods      int
}

func (f *fakePayments) AuthorizeDeposit(ctx context.Context, s *auth.Session, id string) error {
	return f.authorizeErr
}

func (f *fakePayments) MarkTaskComplete(ctx context.Context, s *auth.Session, id string) error {
	return nil
}

func (f *fakePayments) RefundOrForfeit(ctx context.Context, s *auth.Session, id string) error {
	return f.settleErr
}

func (f *fakePayments) PaymentProvider(ctx context.Context, s *auth.Session) (models.PaymentProvider, error) {
	return f.provider, nil
}

func (f *fakePayments) SetPaymentProvider(ctx context.Context, s *auth.Session, p models.PaymentProvider) error {
	f.provider = p
	return nil
}

func (f *fakePayments) PaymentMethodsCount(ctx context.Context, s *auth.Session) (int, error) {
	return f.methods, nil
}
