package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Invoice status values.
const (
	InvoicePending       = "PENDING"
	InvoicePartiallyPaid = "PARTIALLY_PAID"
	InvoicePaid          = "PAID"
	InvoiceCancelled     = "CANCELLED"
)

// Payment status values.
const (
	PaymentPending    = "PENDING"
	PaymentSuccessful = "SUCCESSFUL"
	PaymentFailed     = "FAILED"
)

// Claim status values. Claims are created PENDING and settled offline.
const (
	ClaimPending = "PENDING"
)

// Invoice maps to the invoice table.
type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID       *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	BranchID      uuid.UUID  `db:"branch_id" json:"branch_id"`

	Subtotal   float64 `db:"subtotal" json:"subtotal"`
	TaxRate    float64 `db:"tax_rate" json:"tax_rate"`
	Tax        float64 `db:"tax" json:"tax"`
	Discount   float64 `db:"discount" json:"discount"`
	GrandTotal float64 `db:"grand_total" json:"grand_total"`
	PaidAmount float64 `db:"paid_amount" json:"paid_amount"`
	Balance    float64 `db:"balance" json:"balance"`
	Status     string  `db:"status" json:"status"`

	InsuranceProvider *string  `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsurancePolicy   *string  `db:"insurance_policy" json:"insurance_policy,omitempty"`
	InsuranceCovered  *float64 `db:"insurance_covered" json:"insurance_covered,omitempty"`
	ClaimStatus       *string  `db:"claim_status" json:"claim_status,omitempty"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Items []InvoiceItem `db:"-" json:"items,omitempty"`
}

// InvoiceItem maps to the invoice_item table.
type InvoiceItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Category    *string   `db:"category" json:"category,omitempty"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Amount      float64   `db:"amount" json:"amount"`
}

// Payment maps to the payment table. Reference is the unique token handed
// to the gateway; GatewayRef is what the processor echoes back.
type Payment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Reference  string    `db:"reference" json:"reference"`
	InvoiceID  uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	Status     string    `db:"status" json:"status"`
	GatewayRef *string   `db:"gateway_ref" json:"gateway_ref,omitempty"`
	PaidAt     *string   `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StatusFor derives the invoice status from what has been paid. It is a
// pure function of (paid, total); cancellation is handled separately.
func StatusFor(paid, total float64) string {
	switch {
	case paid <= 0:
		return InvoicePending
	case paid < total:
		return InvoicePartiallyPaid
	default:
		return InvoicePaid
	}
}

// Recompute re-derives the money fields from the items and the stored
// discount and tax rate. Balance and status follow the paid amount.
func (inv *Invoice) Recompute() {
	inv.Subtotal = 0
	for i := range inv.Items {
		item := &inv.Items[i]
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		item.Amount = float64(item.Quantity) * item.UnitPrice
		inv.Subtotal += item.Amount
	}
	// insurance-covered amounts are folded into Discount at creation
	inv.Tax = (inv.Subtotal - inv.Discount) * inv.TaxRate
	inv.GrandTotal = inv.Subtotal - inv.Discount + inv.Tax
	if inv.GrandTotal < 0 {
		inv.GrandTotal = 0
	}
	inv.Balance = inv.GrandTotal - inv.PaidAmount
	if inv.Status != InvoiceCancelled {
		inv.Status = StatusFor(inv.PaidAmount, inv.GrandTotal)
	}
}

// FormatInvoiceNumber renders a sequence value as INV{000001}.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV%06d", seq)
}

// FormatPaymentReference renders a unique gateway reference.
func FormatPaymentReference(seq int64, suffix string) string {
	return fmt.Sprintf("PAY%06d-%s", seq, suffix)
}
