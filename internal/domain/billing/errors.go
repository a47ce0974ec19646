package billing

import "errors"

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvoiceCancelled  = errors.New("invoice is cancelled")
	ErrNoItems           = errors.New("invoice requires at least one item")
	ErrPaymentFailed     = errors.New("gateway reported the payment as failed")
	ErrPaymentUnverified = errors.New("gateway has not confirmed the payment yet")
)
