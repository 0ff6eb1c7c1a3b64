package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/mora/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
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
	if err := db.AutoMigrate(&obligationdomain.Obligation{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) *Service {
	t.Helper()
	return NewService(ServiceParam{DB: db, Log: zap.NewNop(), Clock: clk}).(*Service)
}

type seed struct {
	client   snowflake.ID
	contract snowflake.ID
	due      time.Time
	status   obligationdomain.ObligationStatus
	amount   money.Amount
	paid     money.Amount
	paidAt   *time.Time
	lateFee  money.Amount
}

func insertObligation(t *testing.T, db *gorm.DB, node *snowflake.Node, s seed) obligationdomain.Obligation {
	t.Helper()
	var existing int64
	require.NoError(t, db.Model(&obligationdomain.Obligation{}).Where("contract_id = ?", s.contract).Count(&existing).Error)
	o := obligationdomain.Obligation{
		ID:              node.Generate(),
		ContractID:      s.contract,
		ClientID:        s.client,
		Sequence:        int(existing) + 1,
		DueDate:         s.due,
		ScheduledAmount: s.amount,
		Status:          s.status,
		PaidAmount:      s.paid,
		PaidAt:          s.paidAt,
		LateFee:         s.lateFee,
		CreatedAt:       s.due.AddDate(0, -1, 0),
		UpdatedAt:       s.due.AddDate(0, -1, 0),
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		daysLate int
		want     domain.AgingBucket
	}{
		{1, domain.Bucket0To30},
		{30, domain.Bucket0To30},
		{31, domain.Bucket31To60},
		{60, domain.Bucket31To60},
		{61, domain.Bucket61To90},
		{90, domain.Bucket61To90},
		{91, domain.Bucket90Plus},
		{400, domain.Bucket90Plus},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.BucketFor(tt.daysLate), "daysLate=%d", tt.daysLate)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		maxDaysLate int
		want        domain.RiskTier
	}{
		{1, domain.TierLow},
		{30, domain.TierLow},
		{31, domain.TierMedium},
		{60, domain.TierMedium},
		{61, domain.TierHigh},
		{90, domain.TierHigh},
		{91, domain.TierCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.TierFor(tt.maxDaysLate), "maxDaysLate=%d", tt.maxDaysLate)
	}
}

func TestListOverdue(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	client := node.Generate()
	contract := node.Generate()
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500), lateFee: money.FromMajor(25),
	})
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -45), status: obligationdomain.StatusPartial,
		amount: money.FromMajor(500), paid: money.FromMajor(200),
	})
	// Future and terminal rows must never appear.
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 1, 0), status: obligationdomain.StatusScheduled,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -60), status: obligationdomain.StatusPaid,
		amount: money.FromMajor(500), paid: money.FromMajor(500),
	})

	resp, err := svc.ListOverdue(context.Background(), domain.ListOverdueRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	first := resp.Items[0]
	assert.Equal(t, 10, first.DaysLate)
	assert.Equal(t, domain.Bucket0To30, first.Bucket)
	assert.Equal(t, money.FromMajor(525), first.Outstanding)

	second := resp.Items[1]
	assert.Equal(t, 45, second.DaysLate)
	assert.Equal(t, domain.Bucket31To60, second.Bucket)
	assert.Equal(t, money.FromMajor(300), second.Outstanding)
}

func TestListOverdueMinDaysFilter(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	client := node.Generate()
	contract := node.Generate()
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -5), status: obligationdomain.StatusPending,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -40), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})

	resp, err := svc.ListOverdue(context.Background(), domain.ListOverdueRequest{MinDays: 30})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 40, resp.Items[0].DaysLate)
}

func TestListOverdueMinDaysPagesStayFull(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	client := node.Generate()
	contract := node.Generate()
	// Lowest ID is under the threshold; it must not eat the first page.
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -5), status: obligationdomain.StatusPending,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -30), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: asOf.AddDate(0, 0, -40), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})

	req := domain.ListOverdueRequest{MinDays: 30}
	req.PageSize = 1

	first, err := svc.ListOverdue(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, 30, first.Items[0].DaysLate)
	assert.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.ListOverdue(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 40, second.Items[0].DaysLate)
	assert.False(t, second.HasMore)
}

func TestListOverdueFiltersByClient(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	clientA := node.Generate()
	clientB := node.Generate()
	insertObligation(t, db, node, seed{
		client: clientA, contract: node.Generate(),
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: clientB, contract: node.Generate(),
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})

	resp, err := svc.ListOverdue(context.Background(), domain.ListOverdueRequest{ClientID: clientA})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, clientA, resp.Items[0].Obligation.ClientID)
}

func TestSummary(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	clientA := node.Generate()
	contractA1 := node.Generate()
	contractA2 := node.Generate()
	clientB := node.Generate()
	contractB1 := node.Generate()

	insertObligation(t, db, node, seed{
		client: clientA, contract: contractA1,
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500), lateFee: money.FromMajor(25),
	})
	insertObligation(t, db, node, seed{
		client: clientA, contract: contractA2,
		due: asOf.AddDate(0, 0, -70), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500), lateFee: money.FromMajor(25),
	})
	insertObligation(t, db, node, seed{
		client: clientB, contract: contractB1,
		due: asOf.AddDate(0, 0, -5), status: obligationdomain.StatusPending,
		amount: money.FromMajor(300),
	})

	summary, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, asOf, summary.AsOf)
	require.Len(t, summary.Clients, 2)

	byClient := map[snowflake.ID]domain.ClientMora{}
	for _, c := range summary.Clients {
		byClient[c.ClientID] = c
	}

	a := byClient[clientA]
	assert.Equal(t, 2, a.OverdueCount)
	assert.Equal(t, money.FromMajor(1050), a.OverdueAmount)
	assert.Equal(t, 70, a.MaxDaysLate)
	assert.Equal(t, domain.TierHigh, a.Tier)
	assert.Equal(t, 1, a.Buckets[domain.Bucket0To30])
	assert.Equal(t, 1, a.Buckets[domain.Bucket61To90])
	require.Len(t, a.Contracts, 2)

	b := byClient[clientB]
	assert.Equal(t, 1, b.OverdueCount)
	assert.Equal(t, money.FromMajor(300), b.OverdueAmount)
	assert.Equal(t, domain.TierLow, b.Tier)
}

func TestSummarySingleClient(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	clientA := node.Generate()
	clientB := node.Generate()
	insertObligation(t, db, node, seed{
		client: clientA, contract: node.Generate(),
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})
	insertObligation(t, db, node, seed{
		client: clientB, contract: node.Generate(),
		due: asOf.AddDate(0, 0, -10), status: obligationdomain.StatusLate,
		amount: money.FromMajor(500),
	})

	summary, err := svc.Summary(context.Background(), clientA)
	require.NoError(t, err)
	require.Len(t, summary.Clients, 1)
	assert.Equal(t, clientA, summary.Clients[0].ClientID)
}

func TestPortfolio(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	asOf := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	periodStart := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	client := node.Generate()
	contract := node.Generate()

	// Due and paid inside the period.
	paidAt := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC),
		status: obligationdomain.StatusPaid,
		amount: money.FromMajor(500), paid: money.FromMajor(500), paidAt: &paidAt,
	})
	// Due inside the period, never paid.
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC),
		status: obligationdomain.StatusLate,
		amount: money.FromMajor(500), lateFee: money.FromMajor(25),
	})
	// Waived rows never count as expected.
	insertObligation(t, db, node, seed{
		client: client, contract: contract,
		due: time.Date(2025, time.June, 25, 0, 0, 0, 0, time.UTC),
		status: obligationdomain.StatusWaived,
		amount: money.FromMajor(500),
	})

	metrics, err := svc.Portfolio(context.Background(), periodStart, periodEnd)
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(1000), metrics.ExpectedAmount)
	assert.Equal(t, money.FromMajor(500), metrics.PaidAmount)
	assert.Equal(t, money.FromMajor(525), metrics.OverdueAmount)
	assert.Equal(t, money.FromMajor(1000), metrics.TotalExpected)
	assert.InDelta(t, 50.0, metrics.CollectionRate, 0.001)
	assert.InDelta(t, 52.5, metrics.DelinquencyRate, 0.001)
}

func TestPortfolioEmpty(t *testing.T) {
	db := setupTestDB(t)
	asOf := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	svc := newTestService(t, db, clock.NewFakeClock(asOf))

	metrics, err := svc.Portfolio(context.Background(),
		time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, money.Zero, metrics.ExpectedAmount)
	assert.Equal(t, float64(0), metrics.CollectionRate)
	assert.Equal(t, float64(0), metrics.DelinquencyRate)
}
