package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/pkg/money"
)

var (
	ErrUnknownContract = errors.New("unknown_contract")
	ErrInvalidTerms    = errors.New("invalid_contract_terms")
	ErrNotActive       = errors.New("contract_not_active")
)

type ActivateContractRequest struct {
	ClientID      snowflake.ID `json:"client_id"`
	PropertyID    snowflake.ID `json:"property_id"`
	Principal     money.Amount `json:"principal"`
	MonthlyAmount money.Amount `json:"monthly_amount"`
	TermMonths    int          `json:"term_months"`
	StartDate     time.Time    `json:"start_date"`
}

type ActivateContractResponse struct {
	Contract   Contract `json:"contract"`
	Commission bool     `json:"commission_created"`
}

type Service interface {
	// Activate approves a contract: persists it, generates its installment
	// schedule and emits the one-time sale commission.
	Activate(ctx context.Context, req ActivateContractRequest) (ActivateContractResponse, error)
	// Cancel marks the contract cancelled and waives every non-terminal
	// obligation. Obligations are never deleted.
	Cancel(ctx context.Context, contractID snowflake.ID) (Contract, error)
	GetByID(ctx context.Context, contractID snowflake.ID) (Contract, error)
}
