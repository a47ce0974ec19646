package billing

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	VisitID   uuid.UUID
	BranchID  uuid.UUID
	Status    string
}

type Repository interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ReplaceItems(ctx context.Context, inv *Invoice) error
	ListInvoices(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error)

	CreatePayment(ctx context.Context, p *Payment) error
	GetPaymentByReference(ctx context.Context, reference string) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}
