package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrUnknownObligation = errors.New("unknown_obligation")
	ErrAlreadyScheduled  = errors.New("already_scheduled")
	ErrScheduleMismatch  = errors.New("schedule_sum_mismatch")
	// ErrConcurrentModification reports a lost optimistic-lock race on an
	// obligation write.
	ErrConcurrentModification = errors.New("concurrent_modification")
)

type Service interface {
	// Generate creates the full installment schedule for an approved
	// contract. It runs exactly once per contract lifetime; a second call
	// fails with ErrAlreadyScheduled.
	Generate(ctx context.Context, contractID snowflake.ID) ([]Obligation, error)
	// GenerateWithin is Generate running inside the caller's transaction,
	// for flows that must commit the contract and its schedule atomically.
	GenerateWithin(ctx context.Context, tx *gorm.DB, contractID snowflake.ID) ([]Obligation, error)
	// GetSchedule returns the contract's obligations ordered by sequence.
	GetSchedule(ctx context.Context, contractID snowflake.ID) ([]Obligation, error)
	GetByID(ctx context.Context, obligationID snowflake.ID) (Obligation, error)
}
