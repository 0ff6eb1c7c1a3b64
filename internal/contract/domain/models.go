package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/pkg/money"
)

// ContractStatus tracks a rent-to-own agreement through its lifetime.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

// Contract is an approved rent-to-own agreement. The financed principal is
// paid down through TermMonths monthly obligations; the contract completes
// when the final obligation is paid and is immutable afterwards.
type Contract struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClientID      snowflake.ID   `gorm:"not null;index" json:"client_id"`
	PropertyID    snowflake.ID   `gorm:"not null;index" json:"property_id"`
	Principal     money.Amount   `gorm:"not null" json:"principal"`
	MonthlyAmount money.Amount   `gorm:"not null" json:"monthly_amount"`
	TermMonths    int            `gorm:"not null" json:"term_months"`
	StartDate     time.Time      `gorm:"not null" json:"start_date"`
	Status        ContractStatus `gorm:"type:text;not null;default:'active'" json:"status"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Contract) TableName() string { return "contracts" }
