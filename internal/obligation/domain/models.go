package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/pkg/money"
)

// ObligationStatus is the closed set of installment states. Status is never
// inferred from free text; every mutation goes through the transition rules
// below.
type ObligationStatus string

const (
	StatusScheduled      ObligationStatus = "scheduled"       // future due date, nothing owed yet
	StatusPending        ObligationStatus = "pending"         // past due, inside the grace period
	StatusLate           ObligationStatus = "late"            // past the grace period, unpaid
	StatusClientReported ObligationStatus = "client_reported" // client asserts payment, awaiting staff review
	StatusPartial        ObligationStatus = "partial"         // paid less than the scheduled amount
	StatusPaid           ObligationStatus = "paid"            // settled in full
	StatusWaived         ObligationStatus = "waived"          // forgiven by staff or contract cancellation
	StatusFailed         ObligationStatus = "failed"          // payment attempt rejected or reversed
)

// Terminal reports whether the reconciler must leave the status alone.
// A failed obligation is terminal for reconciliation but still payable.
func (s ObligationStatus) Terminal() bool {
	switch s {
	case StatusPaid, StatusWaived, StatusFailed:
		return true
	}
	return false
}

// Payable reports whether recordPayment may act on an obligation in this state.
func (s ObligationStatus) Payable() bool {
	return !s.Terminal() || s == StatusFailed
}

// Open reports whether the reconciler owns this status. The reconciler only
// ever moves obligations among scheduled, pending and late.
func (s ObligationStatus) Open() bool {
	switch s {
	case StatusScheduled, StatusPending, StatusLate:
		return true
	}
	return false
}

// Overdue reports whether the status counts toward mora aggregation.
func (s ObligationStatus) Overdue() bool {
	switch s {
	case StatusPending, StatusLate, StatusPartial:
		return true
	}
	return false
}

// Obligation is one scheduled monthly installment of a contract. Sequence
// numbers are contiguous 1..term and due dates rise by exactly one calendar
// month per sequence. Version backs the optimistic lock on every write.
type Obligation struct {
	ID              snowflake.ID     `gorm:"primaryKey" json:"id"`
	ContractID      snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_obligation_seq,priority:1" json:"contract_id"`
	ClientID        snowflake.ID     `gorm:"not null;index" json:"client_id"`
	Sequence        int              `gorm:"not null;uniqueIndex:ux_obligation_seq,priority:2" json:"sequence"`
	DueDate         time.Time        `gorm:"not null;index" json:"due_date"`
	ScheduledAmount money.Amount     `gorm:"not null" json:"scheduled_amount"`
	Status          ObligationStatus `gorm:"type:text;not null;default:'scheduled';index" json:"status"`
	PaidAmount      money.Amount     `gorm:"not null;default:0" json:"paid_amount"`
	PaidAt          *time.Time       `json:"paid_at,omitempty"`
	Method          string           `json:"method,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	LateFee         money.Amount     `gorm:"not null;default:0" json:"late_fee"`
	Notes           string           `json:"notes,omitempty"`
	Version         int64            `gorm:"not null;default:0" json:"-"`
	CreatedAt       time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Obligation) TableName() string { return "obligations" }

// Outstanding is what remains collectible: the scheduled gap plus the accrued
// late fee. Overpayments do not drive it negative.
func (o Obligation) Outstanding() money.Amount {
	owed := o.ScheduledAmount.Sub(o.PaidAmount).Add(o.LateFee)
	if owed < 0 {
		return money.Zero
	}
	return owed
}
