package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/commission/domain"
	"github.com/casaflow/casaflow/internal/config"
	"github.com/casaflow/casaflow/pkg/db"
	"github.com/casaflow/casaflow/pkg/money"
	"github.com/casaflow/casaflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	amount money.Amount

	commissions repository.Repository[domain.Commission]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("commission.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		amount: money.Amount(p.Config.Ledger.CommissionAmount),

		commissions: repository.ProvideStore[domain.Commission](p.DB),
	}
}

func (s *Service) EnsureForContract(ctx context.Context, contractID snowflake.ID) (domain.Commission, bool, error) {
	existing, err := s.commissions.FindOne(ctx, &domain.Commission{ContractID: contractID})
	if err != nil {
		return domain.Commission{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	now := s.clock.Now()
	commission := domain.Commission{
		ID:         s.genID.Generate(),
		ContractID: contractID,
		Amount:     s.amount,
		Status:     domain.CommissionStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.commissions.Create(ctx, &commission); err != nil {
		// The unique index on contract_id makes concurrent activation a
		// no-op rather than a double commission.
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.commissions.FindOne(ctx, &domain.Commission{ContractID: contractID})
			if findErr != nil {
				return domain.Commission{}, false, findErr
			}
			if existing != nil {
				return *existing, false, nil
			}
		}
		return domain.Commission{}, false, err
	}

	s.log.Info("commission created",
		zap.String("contract_id", contractID.String()),
		zap.String("amount", commission.Amount.String()),
	)
	return commission, true, nil
}

func (s *Service) ListByContract(ctx context.Context, contractID snowflake.ID) ([]domain.Commission, error) {
	found, err := s.commissions.Find(ctx, &domain.Commission{ContractID: contractID})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Commission, 0, len(found))
	for _, c := range found {
		out = append(out, *c)
	}
	return out, nil
}
