package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	"github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/pkg/dateutil"
	"github.com/casaflow/casaflow/pkg/money"
	"github.com/casaflow/casaflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	obligations repository.Repository[domain.Obligation]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("obligation.service"),
		genID: p.GenID,
		clock: p.Clock,

		obligations: repository.ProvideStore[domain.Obligation](p.DB),
	}
}

func (s *Service) Generate(ctx context.Context, contractID snowflake.ID) ([]domain.Obligation, error) {
	var generated []domain.Obligation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		generated, err = s.generate(ctx, tx, contractID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("schedule generated",
		zap.String("contract_id", contractID.String()),
		zap.Int("obligations", len(generated)),
	)
	return generated, nil
}

// GenerateWithin runs schedule generation inside the caller's transaction so
// contract creation and its schedule commit or roll back together.
func (s *Service) GenerateWithin(ctx context.Context, tx *gorm.DB, contractID snowflake.ID) ([]domain.Obligation, error) {
	return s.generate(ctx, tx, contractID)
}

func (s *Service) generate(ctx context.Context, tx *gorm.DB, contractID snowflake.ID) ([]domain.Obligation, error) {
	var contract contractdomain.Contract
	if err := tx.Where("id = ?", contractID).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contractdomain.ErrUnknownContract
		}
		return nil, err
	}

	if contract.ScheduledAt != nil {
		return nil, domain.ErrAlreadyScheduled
	}
	if contract.Status != contractdomain.ContractStatusActive {
		return nil, contractdomain.ErrNotActive
	}

	obligations, err := s.buildSchedule(contract)
	if err != nil {
		return nil, err
	}

	if err := s.obligations.WithTrx(tx).BatchCreate(ctx, obligations); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := tx.Model(&contractdomain.Contract{}).
		Where("id = ?", contract.ID).
		Updates(map[string]any{"scheduled_at": now, "updated_at": now}).Error; err != nil {
		return nil, err
	}

	generated := make([]domain.Obligation, 0, len(obligations))
	for _, o := range obligations {
		generated = append(generated, *o)
	}
	return generated, nil
}

// buildSchedule produces the term obligations. Every installment carries the
// flat monthly amount except the last, which absorbs the rounding remainder so
// the scheduled amounts sum to the financed principal exactly. A schedule that
// cannot satisfy that invariant is refused outright.
func (s *Service) buildSchedule(contract contractdomain.Contract) ([]*domain.Obligation, error) {
	if contract.TermMonths < 1 || !contract.MonthlyAmount.IsPositive() || !contract.Principal.IsPositive() || contract.StartDate.IsZero() {
		return nil, contractdomain.ErrInvalidTerms
	}

	last := contract.Principal.Sub(contract.MonthlyAmount.MulInt(contract.TermMonths - 1))
	if !last.IsPositive() {
		return nil, domain.ErrScheduleMismatch
	}

	now := s.clock.Now()
	obligations := make([]*domain.Obligation, 0, contract.TermMonths)
	var sum money.Amount
	for seq := 1; seq <= contract.TermMonths; seq++ {
		amount := contract.MonthlyAmount
		if seq == contract.TermMonths {
			amount = last
		}
		sum = sum.Add(amount)

		obligations = append(obligations, &domain.Obligation{
			ID:              s.genID.Generate(),
			ContractID:      contract.ID,
			ClientID:        contract.ClientID,
			Sequence:        seq,
			DueDate:         dateutil.AddMonths(contract.StartDate, seq),
			ScheduledAmount: amount,
			Status:          domain.StatusScheduled,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	if sum != contract.Principal {
		return nil, domain.ErrScheduleMismatch
	}
	return obligations, nil
}

func (s *Service) GetSchedule(ctx context.Context, contractID snowflake.ID) ([]domain.Obligation, error) {
	var obligations []domain.Obligation
	err := s.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("sequence ASC").
		Find(&obligations).Error
	if err != nil {
		return nil, err
	}
	if len(obligations) == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&contractdomain.Contract{}).
			Where("id = ?", contractID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, contractdomain.ErrUnknownContract
		}
	}
	return obligations, nil
}

func (s *Service) GetByID(ctx context.Context, obligationID snowflake.ID) (domain.Obligation, error) {
	found, err := s.obligations.FindOne(ctx, &domain.Obligation{ID: obligationID})
	if err != nil {
		return domain.Obligation{}, err
	}
	if found == nil {
		return domain.Obligation{}, domain.ErrUnknownObligation
	}
	return *found, nil
}
