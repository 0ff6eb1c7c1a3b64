package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/mora/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/pkg/dateutil"
	"github.com/casaflow/casaflow/pkg/db/pagination"
	"github.com/casaflow/casaflow/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var overdueStatuses = []obligationdomain.ObligationStatus{
	obligationdomain.StatusPending,
	obligationdomain.StatusLate,
	obligationdomain.StatusPartial,
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

// Service is the only place delinquency math lives: days-late, aging buckets,
// risk tiers and portfolio rates are all derived here so dashboards and
// collections views cannot drift apart.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("mora.service"),
		clock: p.Clock,
	}
}

func (s *Service) ListOverdue(ctx context.Context, req domain.ListOverdueRequest) (domain.ListOverdueResponse, error) {
	asOf := s.clock.Now()
	limit := req.PageSize
	if limit <= 0 {
		limit = 50
	}

	stmt := s.db.WithContext(ctx).
		Where("status IN ?", overdueStatuses).
		Where("due_date < ?", dateutil.Truncate(asOf)).
		Order("id ASC").
		Limit(limit + 1)
	if req.MinDays > 0 {
		// Filter in SQL so cursor pages stay full; a post-slice filter
		// would return short pages with matches left on later ones.
		stmt = stmt.Where("due_date <= ?", dateutil.Truncate(asOf).AddDate(0, 0, -req.MinDays))
	}
	if req.ClientID != 0 {
		stmt = stmt.Where("client_id = ?", req.ClientID)
	}
	if req.ContractID != 0 {
		stmt = stmt.Where("contract_id = ?", req.ContractID)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListOverdueResponse{}, err
		}
		stmt = stmt.Where("id > ?", cursor.ID)
	}

	var rows []*obligationdomain.Obligation
	if err := stmt.Find(&rows).Error; err != nil {
		return domain.ListOverdueResponse{}, err
	}

	rows, pageInfo := pagination.BuildCursorPageInfo(rows, limit, func(o *obligationdomain.Obligation) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: o.ID.String()})
		return token
	})

	items := make([]domain.OverdueItem, 0, len(rows))
	for _, o := range rows {
		daysLate := dateutil.DaysLate(o.DueDate, asOf)
		if daysLate == 0 {
			continue
		}
		items = append(items, domain.OverdueItem{
			Obligation:  *o,
			DaysLate:    daysLate,
			Outstanding: o.Outstanding(),
			Bucket:      domain.BucketFor(daysLate),
		})
	}

	return domain.ListOverdueResponse{PageInfo: *pageInfo, Items: items}, nil
}

func (s *Service) Summary(ctx context.Context, clientID snowflake.ID) (domain.MoraSummary, error) {
	asOf := s.clock.Now()

	stmt := s.db.WithContext(ctx).
		Where("status IN ?", overdueStatuses).
		Where("due_date < ?", dateutil.Truncate(asOf))
	if clientID != 0 {
		stmt = stmt.Where("client_id = ?", clientID)
	}

	var rows []obligationdomain.Obligation
	if err := stmt.Find(&rows).Error; err != nil {
		return domain.MoraSummary{}, err
	}

	type contractKey struct {
		client   snowflake.ID
		contract snowflake.ID
	}
	clients := map[snowflake.ID]*domain.ClientMora{}
	contracts := map[contractKey]*domain.ContractMora{}

	for _, o := range rows {
		daysLate := dateutil.DaysLate(o.DueDate, asOf)
		if daysLate == 0 {
			continue
		}
		outstanding := o.Outstanding()

		client, ok := clients[o.ClientID]
		if !ok {
			client = &domain.ClientMora{
				ClientID: o.ClientID,
				Buckets:  map[domain.AgingBucket]int{},
			}
			clients[o.ClientID] = client
		}
		client.OverdueCount++
		client.OverdueAmount = client.OverdueAmount.Add(outstanding)
		client.Buckets[domain.BucketFor(daysLate)]++
		if daysLate > client.MaxDaysLate {
			client.MaxDaysLate = daysLate
		}

		key := contractKey{client: o.ClientID, contract: o.ContractID}
		contract, ok := contracts[key]
		if !ok {
			contract = &domain.ContractMora{ContractID: o.ContractID}
			contracts[key] = contract
		}
		contract.OverdueCount++
		contract.OverdueAmount = contract.OverdueAmount.Add(outstanding)
		if daysLate > contract.MaxDaysLate {
			contract.MaxDaysLate = daysLate
		}
	}

	for key, contract := range contracts {
		clients[key.client].Contracts = append(clients[key.client].Contracts, *contract)
	}

	out := domain.MoraSummary{AsOf: asOf}
	for _, client := range clients {
		client.Tier = domain.TierFor(client.MaxDaysLate)
		sort.Slice(client.Contracts, func(i, j int) bool {
			return client.Contracts[i].ContractID < client.Contracts[j].ContractID
		})
		out.Clients = append(out.Clients, *client)
	}
	sort.Slice(out.Clients, func(i, j int) bool {
		return out.Clients[i].ClientID < out.Clients[j].ClientID
	})
	return out, nil
}

func (s *Service) Portfolio(ctx context.Context, periodStart, periodEnd time.Time) (domain.PortfolioMetrics, error) {
	asOf := s.clock.Now()
	periodStart = dateutil.Truncate(periodStart)
	periodEnd = dateutil.Truncate(periodEnd)

	var expected int64
	if err := s.db.WithContext(ctx).Model(&obligationdomain.Obligation{}).
		Where("due_date >= ? AND due_date < ?", periodStart, periodEnd).
		Where("status <> ?", obligationdomain.StatusWaived).
		Select("COALESCE(SUM(scheduled_amount), 0)").
		Scan(&expected).Error; err != nil {
		return domain.PortfolioMetrics{}, err
	}

	var paid int64
	if err := s.db.WithContext(ctx).Model(&obligationdomain.Obligation{}).
		Where("paid_at >= ? AND paid_at < ?", periodStart, periodEnd).
		Select("COALESCE(SUM(paid_amount), 0)").
		Scan(&paid).Error; err != nil {
		return domain.PortfolioMetrics{}, err
	}

	// Everything that has come due so far, across the whole portfolio.
	var totalExpected int64
	if err := s.db.WithContext(ctx).Model(&obligationdomain.Obligation{}).
		Where("due_date < ?", dateutil.Truncate(asOf)).
		Where("status <> ?", obligationdomain.StatusWaived).
		Select("COALESCE(SUM(scheduled_amount), 0)").
		Scan(&totalExpected).Error; err != nil {
		return domain.PortfolioMetrics{}, err
	}

	var rows []obligationdomain.Obligation
	if err := s.db.WithContext(ctx).
		Where("status IN ?", overdueStatuses).
		Where("due_date < ?", dateutil.Truncate(asOf)).
		Find(&rows).Error; err != nil {
		return domain.PortfolioMetrics{}, err
	}
	var overdue money.Amount
	for _, o := range rows {
		if dateutil.DaysLate(o.DueDate, asOf) == 0 {
			continue
		}
		overdue = overdue.Add(o.Outstanding())
	}

	return domain.PortfolioMetrics{
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		ExpectedAmount:  money.Amount(expected),
		PaidAmount:      money.Amount(paid),
		OverdueAmount:   overdue,
		TotalExpected:   money.Amount(totalExpected),
		CollectionRate:  rate(paid, expected),
		DelinquencyRate: rate(int64(overdue), totalExpected),
	}, nil
}

// rate returns numerator/denominator as a percentage, 0 when the denominator
// is zero.
func rate(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator) * 100
}
