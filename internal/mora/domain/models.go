package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/pkg/db/pagination"
	"github.com/casaflow/casaflow/pkg/money"
)

// AgingBucket classifies how overdue an obligation is. Boundaries are
// inclusive on the lower end, exclusive on the upper: exactly 30 days late is
// 0-30, 31 days is 31-60.
type AgingBucket string

const (
	Bucket0To30  AgingBucket = "0-30"
	Bucket31To60 AgingBucket = "31-60"
	Bucket61To90 AgingBucket = "61-90"
	Bucket90Plus AgingBucket = "90+"
)

// BucketFor places a days-late count into exactly one aging bucket.
func BucketFor(daysLate int) AgingBucket {
	switch {
	case daysLate <= 30:
		return Bucket0To30
	case daysLate <= 60:
		return Bucket31To60
	case daysLate <= 90:
		return Bucket61To90
	default:
		return Bucket90Plus
	}
}

// RiskTier ranks a delinquent client by their worst overdue obligation.
type RiskTier string

const (
	TierLow      RiskTier = "low"      // <= 30 days
	TierMedium   RiskTier = "medium"   // 31-60 days
	TierHigh     RiskTier = "high"     // 61-90 days
	TierCritical RiskTier = "critical" // > 90 days
)

// TierFor maps max days-late to a risk tier. Total: every overdue client
// lands in exactly one tier.
func TierFor(maxDaysLate int) RiskTier {
	switch {
	case maxDaysLate <= 30:
		return TierLow
	case maxDaysLate <= 60:
		return TierMedium
	case maxDaysLate <= 90:
		return TierHigh
	default:
		return TierCritical
	}
}

// OverdueItem is one overdue obligation annotated with the derived
// delinquency figures used by collections views.
type OverdueItem struct {
	Obligation  obligationdomain.Obligation `json:"obligation"`
	DaysLate    int                         `json:"days_late"`
	Outstanding money.Amount                `json:"outstanding"`
	Bucket      AgingBucket                 `json:"bucket"`
}

type ListOverdueRequest struct {
	ClientID   snowflake.ID `form:"client_id"`
	ContractID snowflake.ID `form:"contract_id"`
	MinDays    int          `form:"min_days"`
	pagination.Pagination
}

type ListOverdueResponse struct {
	pagination.PageInfo
	Items []OverdueItem `json:"items"`
}

// ContractMora is the per-contract delinquency rollup.
type ContractMora struct {
	ContractID    snowflake.ID `json:"contract_id"`
	OverdueCount  int          `json:"overdue_count"`
	OverdueAmount money.Amount `json:"overdue_amount"`
	MaxDaysLate   int          `json:"max_days_late"`
}

// ClientMora aggregates a client's overdue position across contracts.
type ClientMora struct {
	ClientID      snowflake.ID        `json:"client_id"`
	OverdueCount  int                 `json:"overdue_count"`
	OverdueAmount money.Amount        `json:"overdue_amount"`
	MaxDaysLate   int                 `json:"max_days_late"`
	Tier          RiskTier            `json:"tier"`
	Buckets       map[AgingBucket]int `json:"buckets"`
	Contracts     []ContractMora      `json:"contracts"`
}

// MoraSummary is a point-in-time snapshot, recomputed on every read. It is
// never persisted as a source of truth.
type MoraSummary struct {
	AsOf    time.Time    `json:"as_of"`
	Clients []ClientMora `json:"clients"`
}

// PortfolioMetrics carries the portfolio-wide collection figures. Rates are
// percentages; a zero denominator yields 0, not an error.
type PortfolioMetrics struct {
	PeriodStart     time.Time    `json:"period_start"`
	PeriodEnd       time.Time    `json:"period_end"`
	ExpectedAmount  money.Amount `json:"expected_amount"`
	PaidAmount      money.Amount `json:"paid_amount"`
	OverdueAmount   money.Amount `json:"overdue_amount"`
	TotalExpected   money.Amount `json:"total_expected"`
	CollectionRate  float64      `json:"collection_rate"`
	DelinquencyRate float64      `json:"delinquency_rate"`
}

type Service interface {
	ListOverdue(ctx context.Context, req ListOverdueRequest) (ListOverdueResponse, error)
	// Summary aggregates overdue obligations per client (optionally one
	// client) as of now.
	Summary(ctx context.Context, clientID snowflake.ID) (MoraSummary, error)
	// Portfolio computes collection and delinquency rates for a period.
	Portfolio(ctx context.Context, periodStart, periodEnd time.Time) (PortfolioMetrics, error)
}
