package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	commissiondomain "github.com/casaflow/casaflow/internal/commission/domain"
	"github.com/casaflow/casaflow/internal/contract/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/pkg/dateutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	ObligationSvc obligationdomain.Service
	CommissionSvc commissiondomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	obligationSvc obligationdomain.Service
	commissionSvc commissiondomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("contract.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		obligationSvc: p.ObligationSvc,
		commissionSvc: p.CommissionSvc,
	}
}

func (s *Service) Activate(ctx context.Context, req domain.ActivateContractRequest) (domain.ActivateContractResponse, error) {
	if req.TermMonths < 1 || !req.MonthlyAmount.IsPositive() || !req.Principal.IsPositive() || req.StartDate.IsZero() {
		return domain.ActivateContractResponse{}, domain.ErrInvalidTerms
	}

	now := s.clock.Now()
	contract := domain.Contract{
		ID:            s.genID.Generate(),
		ClientID:      req.ClientID,
		PropertyID:    req.PropertyID,
		Principal:     req.Principal,
		MonthlyAmount: req.MonthlyAmount,
		TermMonths:    req.TermMonths,
		StartDate:     dateutil.Truncate(req.StartDate),
		Status:        domain.ContractStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Contract and schedule commit together: a refused schedule must not
	// leave an active, never-schedulable contract behind.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		_, err := s.obligationSvc.GenerateWithin(ctx, tx, contract.ID)
		return err
	})
	if err != nil {
		return domain.ActivateContractResponse{}, err
	}

	_, created, err := s.commissionSvc.EnsureForContract(ctx, contract.ID)
	if err != nil {
		// The sale stands even if the commission insert fails; staff can
		// re-trigger it from the commissions view.
		s.log.Error("commission creation failed",
			zap.String("contract_id", contract.ID.String()),
			zap.Error(err),
		)
		created = false
	}

	refreshed, err := s.GetByID(ctx, contract.ID)
	if err != nil {
		return domain.ActivateContractResponse{}, err
	}

	s.log.Info("contract activated",
		zap.String("contract_id", contract.ID.String()),
		zap.String("client_id", contract.ClientID.String()),
		zap.Int("term_months", contract.TermMonths),
	)
	return domain.ActivateContractResponse{Contract: refreshed, Commission: created}, nil
}

func (s *Service) Cancel(ctx context.Context, contractID snowflake.ID) (domain.Contract, error) {
	var out domain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract domain.Contract
		if err := tx.Where("id = ?", contractID).First(&contract).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUnknownContract
			}
			return err
		}
		if contract.Status != domain.ContractStatusActive {
			return domain.ErrNotActive
		}

		now := s.clock.Now()

		// Obligations are marked waived, never deleted; version bumps keep
		// a racing reconciler or payment write from resurrecting them.
		if err := tx.Model(&obligationdomain.Obligation{}).
			Where("contract_id = ? AND status NOT IN ?", contractID, []obligationdomain.ObligationStatus{
				obligationdomain.StatusPaid,
				obligationdomain.StatusWaived,
				obligationdomain.StatusFailed,
			}).
			Updates(map[string]any{
				"status":     obligationdomain.StatusWaived,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&domain.Contract{}).
			Where("id = ?", contractID).
			Updates(map[string]any{
				"status":       domain.ContractStatusCancelled,
				"cancelled_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		contract.Status = domain.ContractStatusCancelled
		contract.CancelledAt = &now
		contract.UpdatedAt = now
		out = contract
		return nil
	})
	if err != nil {
		return domain.Contract{}, err
	}

	s.log.Info("contract cancelled", zap.String("contract_id", contractID.String()))
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, contractID snowflake.ID) (domain.Contract, error) {
	var contract domain.Contract
	if err := s.db.WithContext(ctx).Where("id = ?", contractID).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Contract{}, domain.ErrUnknownContract
		}
		return domain.Contract{}, err
	}
	return contract, nil
}
