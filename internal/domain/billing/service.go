package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/patient"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/internal/platform/gateway"
)

// Verifier is the slice of the payment gateway the billing flow uses.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error)
}

type Service struct {
	repo            Repository
	patients        patient.Repository
	gateway         Verifier
	tx              db.TxStarter
	consultationFee float64
	taxRate         float64
	log             zerolog.Logger
}

func NewService(repo Repository, patients patient.Repository, gw Verifier, tx db.TxStarter,
	consultationFee, taxRate float64, log zerolog.Logger) *Service {
	return &Service{
		repo: repo, patients: patients, gateway: gw, tx: tx,
		consultationFee: consultationFee, taxRate: taxRate, log: log,
	}
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.tx, fn)
}

type CreateInvoiceInput struct {
	PatientID      uuid.UUID     `json:"patient_id"`
	VisitID        *uuid.UUID    `json:"visit_id,omitempty"`
	BranchID       uuid.UUID     `json:"branch_id"`
	Items          []InvoiceItem `json:"items"`
	Discount       float64       `json:"discount"`
	TaxRate        *float64      `json:"tax_rate,omitempty"`
	ApplyInsurance bool          `json:"apply_insurance"`
	Notes          *string       `json:"notes,omitempty"`
}

// CreateInvoice computes the totals for a new invoice. With ApplyInsurance
// set and an insured patient, the covered share of the subtotal is folded
// into the discount and a PENDING claim is attached.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput, createdBy uuid.UUID) (*Invoice, error) {
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range in.Items {
		if item.Description == "" {
			return nil, fmt.Errorf("invoice item description is required")
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("invoice item unit_price cannot be negative")
		}
	}
	if in.Discount < 0 {
		return nil, fmt.Errorf("discount cannot be negative")
	}

	p, err := s.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("patient not found")
	}

	taxRate := s.taxRate
	if in.TaxRate != nil {
		taxRate = *in.TaxRate
	}

	inv := &Invoice{
		PatientID: in.PatientID,
		VisitID:   in.VisitID,
		BranchID:  in.BranchID,
		Items:     in.Items,
		Discount:  in.Discount,
		TaxRate:   taxRate,
		Notes:     in.Notes,
		CreatedBy: createdBy,
	}
	inv.Recompute()

	if in.ApplyInsurance && p.HasInsurance() && p.InsuranceCoverage != nil {
		covered := inv.Subtotal * (*p.InsuranceCoverage / 100)
		claim := ClaimPending
		inv.InsuranceProvider = p.InsuranceProvider
		inv.InsurancePolicy = p.InsurancePolicy
		inv.InsuranceCovered = &covered
		inv.ClaimStatus = &claim
		inv.Discount += covered
		inv.Recompute()
	}

	if err := s.runInTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateInvoice(ctx, inv)
	}); err != nil {
		return nil, err
	}
	return inv, nil
}

type UpdateInvoiceInput struct {
	Items    []InvoiceItem `json:"items,omitempty"`
	Discount *float64      `json:"discount,omitempty"`
	TaxRate  *float64      `json:"tax_rate,omitempty"`
	Notes    *string       `json:"notes,omitempty"`
}

// UpdateInvoice recomputes totals when items change, falling back to the
// stored discount and tax rate for omitted fields.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, in UpdateInvoiceInput) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, ErrInvoiceCancelled
	}

	itemsChanged := len(in.Items) > 0
	if itemsChanged {
		inv.Items = in.Items
	}
	if in.Discount != nil {
		if *in.Discount < 0 {
			return nil, fmt.Errorf("discount cannot be negative")
		}
		inv.Discount = *in.Discount
	}
	if in.TaxRate != nil {
		inv.TaxRate = *in.TaxRate
	}
	if in.Notes != nil {
		inv.Notes = in.Notes
	}
	inv.Recompute()

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if itemsChanged {
			if err := s.repo.ReplaceItems(ctx, inv); err != nil {
				return err
			}
		}
		return s.repo.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.ListInvoices(ctx, f, limit, offset)
}

// CancelInvoice is a soft cancel; rows are never deleted.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, ErrInvoiceCancelled
	}
	inv.Status = InvoiceCancelled
	if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

type CreatePaymentInput struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
}

// CreatePayment opens a PENDING payment attempt against an invoice. The
// unique reference is handed to the gateway for the charge.
func (s *Service) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("payment amount must be positive")
	}
	inv, err := s.repo.GetInvoice(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == InvoiceCancelled {
		return nil, ErrInvoiceCancelled
	}
	p := &Payment{
		InvoiceID: inv.ID,
		Amount:    in.Amount,
		Method:    in.Method,
		Status:    PaymentPending,
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// VerifyPayment asks the gateway for the verdict on a reference and applies
// it. The call is idempotent: an already SUCCESSFUL payment short-circuits
// without touching the invoice again.
func (s *Service) VerifyPayment(ctx context.Context, reference string) (*Payment, error) {
	p, err := s.repo.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if p.Status == PaymentSuccessful {
		return p, nil
	}

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("gateway verification: %w", err)
	}

	switch res.Status {
	case gateway.StatusSuccess:
		err = s.runInTx(ctx, func(ctx context.Context) error {
			p.Status = PaymentSuccessful
			p.GatewayRef = &res.Reference
			if res.PaidAt != "" {
				paidAt := res.PaidAt
				p.PaidAt = &paidAt
			}
			if res.Amount > 0 {
				p.Amount = res.Amount
			}
			if err := s.repo.UpdatePayment(ctx, p); err != nil {
				return err
			}
			inv, err := s.repo.GetInvoice(ctx, p.InvoiceID)
			if err != nil {
				return err
			}
			inv.PaidAmount += p.Amount
			inv.Recompute()
			return s.repo.UpdateInvoice(ctx, inv)
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case gateway.StatusFailed:
		p.Status = PaymentFailed
		if err := s.repo.UpdatePayment(ctx, p); err != nil {
			return nil, err
		}
		return nil, ErrPaymentFailed
	default:
		return nil, ErrPaymentUnverified
	}
}

func (s *Service) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	return s.repo.ListPayments(ctx, invoiceID)
}

// ConsultationFee raises the standard consultation invoice line at
// front-desk clock-in.
func (s *Service) ConsultationFee(ctx context.Context, patientID, visitID, branchID uuid.UUID) error {
	_, err := s.CreateInvoice(ctx, CreateInvoiceInput{
		PatientID: patientID,
		VisitID:   &visitID,
		BranchID:  branchID,
		Items: []InvoiceItem{
			{Description: "Consultation fee", Quantity: 1, UnitPrice: s.consultationFee},
		},
	}, uuid.Nil) // system-raised, no human creator
	return err
}
