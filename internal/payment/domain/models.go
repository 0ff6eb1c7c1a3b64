package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/pkg/money"
	"gorm.io/datatypes"
)

// PaymentEventKind classifies entries in the immutable payment audit trail.
type PaymentEventKind string

const (
	EventRecorded       PaymentEventKind = "recorded"        // staff recorded a payment
	EventClientReported PaymentEventKind = "client_reported" // client self-service report
	EventConfirmed      PaymentEventKind = "confirmed"       // staff approved a client report
	EventRejected       PaymentEventKind = "rejected"        // staff rejected a client report
	EventFailed         PaymentEventKind = "failed"          // processor rejection or reversal
)

// PaymentEvent is the immutable record of one payment action against an
// obligation. Events are only ever inserted, never updated.
type PaymentEvent struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	ObligationID snowflake.ID      `gorm:"not null;index" json:"obligation_id"`
	ContractID   snowflake.ID      `gorm:"not null;index" json:"contract_id"`
	Kind         PaymentEventKind  `gorm:"type:text;not null" json:"kind"`
	Amount       money.Amount      `gorm:"not null;default:0" json:"amount"`
	Method       string            `json:"method,omitempty"`
	Reference    string            `json:"reference,omitempty"`
	RecordedBy   string            `json:"recorded_by,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (PaymentEvent) TableName() string { return "payment_events" }
