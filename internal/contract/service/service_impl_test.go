package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	commissiondomain "github.com/casaflow/casaflow/internal/commission/domain"
	commissionservice "github.com/casaflow/casaflow/internal/commission/service"
	"github.com/casaflow/casaflow/internal/config"
	"github.com/casaflow/casaflow/internal/contract/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	obligationservice "github.com/casaflow/casaflow/internal/obligation/service"
	"github.com/casaflow/casaflow/pkg/money"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(
		&domain.Contract{},
		&obligationdomain.Obligation{},
		&commissiondomain.Commission{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	cfg := config.Config{Ledger: config.LedgerConfig{CommissionAmount: 50000}}
	obligationSvc := obligationservice.NewService(obligationservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk,
	})
	commissionSvc := commissionservice.NewService(commissionservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: clk, Config: cfg,
	})
	return NewService(ServiceParam{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		ObligationSvc: obligationSvc,
		CommissionSvc: commissionSvc,
	}).(*Service)
}

func TestActivate(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	start := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	resp, err := svc.Activate(context.Background(), domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(6000),
		MonthlyAmount: money.FromMajor(500),
		TermMonths:    12,
		StartDate:     start,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ContractStatusActive, resp.Contract.Status)
	assert.NotNil(t, resp.Contract.ScheduledAt)
	assert.True(t, resp.Commission)

	var count int64
	require.NoError(t, db.Model(&obligationdomain.Obligation{}).
		Where("contract_id = ?", resp.Contract.ID).
		Count(&count).Error)
	assert.Equal(t, int64(12), count)

	var commission commissiondomain.Commission
	require.NoError(t, db.First(&commission, "contract_id = ?", resp.Contract.ID).Error)
	assert.Equal(t, money.Amount(50000), commission.Amount)
	assert.Equal(t, commissiondomain.CommissionStatusPending, commission.Status)
}

func TestActivateCommissionIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	resp, err := svc.Activate(context.Background(), domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(6000),
		MonthlyAmount: money.FromMajor(500),
		TermMonths:    12,
		StartDate:     now,
	})
	require.NoError(t, err)

	_, created, err := svc.commissionSvc.EnsureForContract(context.Background(), resp.Contract.ID)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&commissiondomain.Commission{}).
		Where("contract_id = ?", resp.Contract.ID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActivateRejectsInvalidTerms(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	base := domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(6000),
		MonthlyAmount: money.FromMajor(500),
		TermMonths:    12,
		StartDate:     now,
	}

	bad := base
	bad.TermMonths = 0
	_, err := svc.Activate(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTerms)

	bad = base
	bad.MonthlyAmount = money.Zero
	_, err = svc.Activate(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTerms)

	bad = base
	bad.StartDate = time.Time{}
	_, err = svc.Activate(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTerms)
}

func TestActivateRefusedScheduleLeavesNothingBehind(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	// Passes the request-level checks but the final installment would be
	// negative, so generation refuses the schedule.
	_, err := svc.Activate(context.Background(), domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(1000),
		MonthlyAmount: money.FromMajor(600),
		TermMonths:    3,
		StartDate:     now,
	})
	assert.ErrorIs(t, err, obligationdomain.ErrScheduleMismatch)

	var contracts int64
	require.NoError(t, db.Model(&domain.Contract{}).Count(&contracts).Error)
	assert.Zero(t, contracts)

	var obligations int64
	require.NoError(t, db.Model(&obligationdomain.Obligation{}).Count(&obligations).Error)
	assert.Zero(t, obligations)

	var commissions int64
	require.NoError(t, db.Model(&commissiondomain.Commission{}).Count(&commissions).Error)
	assert.Zero(t, commissions)
}

func TestCancelWaivesOpenObligations(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	resp, err := svc.Activate(context.Background(), domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(3000),
		MonthlyAmount: money.FromMajor(500),
		TermMonths:    6,
		StartDate:     now,
	})
	require.NoError(t, err)

	// Pay the first installment before cancelling; it must survive the waive.
	var first obligationdomain.Obligation
	require.NoError(t, db.Where("contract_id = ? AND sequence = 1", resp.Contract.ID).First(&first).Error)
	require.NoError(t, db.Model(&obligationdomain.Obligation{}).
		Where("id = ?", first.ID).
		Updates(map[string]any{
			"status":      obligationdomain.StatusPaid,
			"paid_amount": first.ScheduledAmount,
		}).Error)

	cancelled, err := svc.Cancel(context.Background(), resp.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContractStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	var obligations []obligationdomain.Obligation
	require.NoError(t, db.Where("contract_id = ?", resp.Contract.ID).
		Order("sequence ASC").Find(&obligations).Error)
	require.Len(t, obligations, 6)
	assert.Equal(t, obligationdomain.StatusPaid, obligations[0].Status)
	for _, o := range obligations[1:] {
		assert.Equal(t, obligationdomain.StatusWaived, o.Status)
		assert.Equal(t, int64(1), o.Version)
	}
}

func TestCancelNonActiveFails(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(now))

	resp, err := svc.Activate(context.Background(), domain.ActivateContractRequest{
		ClientID:      snowflake.ID(1001),
		PropertyID:    snowflake.ID(2001),
		Principal:     money.FromMajor(3000),
		MonthlyAmount: money.FromMajor(500),
		TermMonths:    6,
		StartDate:     now,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), resp.Contract.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), resp.Contract.ID)
	assert.ErrorIs(t, err, domain.ErrNotActive)
}

func TestCancelUnknownContract(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	_, err := svc.Cancel(context.Background(), snowflake.ID(999))
	assert.ErrorIs(t, err, domain.ErrUnknownContract)
}
