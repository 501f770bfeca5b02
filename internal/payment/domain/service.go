package domain

import (
	"context"

	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
)

type RecordPaymentRequest struct {
	SubscriberID string          `validate:"required"`
	Period       string          `validate:"required"`
	Amount       decimal.Decimal `validate:"-"`
	Method       string          `validate:"required,oneof=cash upi card bank_transfer cheque other"`
}

type RecordPaymentResponse struct {
	Record      ledgerdomain.LedgerRecord `json:"record"`
	ResidualDue decimal.Decimal           `json:"residual_due"`
	Payment     Payment                   `json:"payment"`
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (RecordPaymentResponse, error)
}

var (
	ErrInvalidMethod  = errs.Validation("invalid_payment_method")
	ErrInvalidRequest = errs.Validation("invalid_payment_request")
)
