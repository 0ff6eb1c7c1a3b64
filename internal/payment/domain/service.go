package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/pkg/money"
)

var (
	ErrAlreadyPaid       = errors.New("already_paid")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrNotClientReported = errors.New("not_client_reported")
)

type RecordPaymentRequest struct {
	ObligationID snowflake.ID `json:"obligation_id"`
	Amount       money.Amount `json:"amount"`
	Method       string       `json:"method"`
	Reference    string       `json:"reference,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	RecordedBy   string       `json:"recorded_by,omitempty"`
}

type RecordPaymentResponse struct {
	Obligation        obligationdomain.Obligation `json:"obligation"`
	ContractCompleted bool                        `json:"contract_completed"`
}

type Service interface {
	// Record applies a payment to an obligation: full settlement moves it to
	// paid, a smaller amount to partial. Partial obligations accept further
	// top-up payments that sum toward the full amount. When the contract's
	// final obligation settles, the contract completes and
	// ContractCompleted is returned true so callers can trigger downstream
	// actions; Record itself performs no external calls.
	Record(ctx context.Context, req RecordPaymentRequest) (RecordPaymentResponse, error)
	// ReportClientPayment marks an obligation client_reported, awaiting
	// staff confirmation.
	ReportClientPayment(ctx context.Context, obligationID snowflake.ID, method string) (obligationdomain.Obligation, error)
	// ConfirmClientReport settles or rejects a client report. Rejection
	// returns the obligation to the status the due date dictates.
	ConfirmClientReport(ctx context.Context, obligationID snowflake.ID, approve bool) (RecordPaymentResponse, error)
	// Fail marks a non-terminal obligation failed after a processor
	// rejection or reversal. A failed obligation remains payable.
	Fail(ctx context.Context, obligationID snowflake.ID, reference string) (obligationdomain.Obligation, error)
}
