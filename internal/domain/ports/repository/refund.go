package repository

import (
	"context"

	"jobhunt-billing/internal/domain/model"
)

// RefundRepository is the single-use log for receipt refunds.
type RefundRepository interface {
	// Insert records a receipt as refunded. It returns
	// domain.ErrDuplicateRefund when the receipt was refunded before,
	// aborting the enclosing transaction before any balance change.
	Insert(ctx context.Context, tx Tx, r *model.Refund) error
	FindByReceiptID(ctx context.Context, tx Tx, receiptID string) (*model.Refund, error)
}
