package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/pkg/money"
)

type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
)

// Commission is the one-time sale commission emitted when a rent-to-own
// contract activates. Commissions never touch the obligation ledger.
type Commission struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	ContractID snowflake.ID     `gorm:"not null;uniqueIndex" json:"contract_id"`
	Amount     money.Amount     `gorm:"not null" json:"amount"`
	Status     CommissionStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Commission) TableName() string { return "commissions" }

type Service interface {
	// EnsureForContract creates the contract's commission record if it does
	// not already exist. Idempotent: re-activation paths cannot double-pay.
	EnsureForContract(ctx context.Context, contractID snowflake.ID) (Commission, bool, error)
	ListByContract(ctx context.Context, contractID snowflake.ID) ([]Commission, error)
}
