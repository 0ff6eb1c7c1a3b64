package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/config"
	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	"github.com/casaflow/casaflow/internal/payment/domain"
	"github.com/casaflow/casaflow/internal/reconciler"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
	policy reconciler.FeePolicy
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payment.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		policy: reconciler.PolicyFromConfig(p.Config.Ledger),
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordPaymentRequest) (domain.RecordPaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return domain.RecordPaymentResponse{}, domain.ErrInvalidAmount
	}

	var resp domain.RecordPaymentResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadObligation(tx, req.ObligationID)
		if err != nil {
			return err
		}
		if !o.Status.Payable() {
			return domain.ErrAlreadyPaid
		}

		now := s.clock.Now()
		reference := strings.TrimSpace(req.Reference)
		if reference == "" {
			reference = uuid.NewString()
		}

		// Overpayment is recorded verbatim; the remainder of a partial
		// payment stays on this obligation as scheduled - paid.
		newPaid := o.PaidAmount.Add(req.Amount)
		owed := o.ScheduledAmount.Add(o.LateFee)
		status := obligationdomain.StatusPartial
		if newPaid >= owed {
			status = obligationdomain.StatusPaid
		}

		updates := map[string]any{
			"status":      status,
			"paid_amount": newPaid,
			"paid_at":     now,
			"method":      req.Method,
			"reference":   reference,
			"version":     o.Version + 1,
			"updated_at":  now,
		}
		if req.Notes != "" {
			updates["notes"] = appendNote(o.Notes, req.Notes)
		}
		if err := s.casUpdate(tx, o, updates); err != nil {
			return err
		}

		if err := s.insertEvent(tx, domain.PaymentEvent{
			ID:           s.genID.Generate(),
			ObligationID: o.ID,
			ContractID:   o.ContractID,
			Kind:         domain.EventRecorded,
			Amount:       req.Amount,
			Method:       req.Method,
			Reference:    reference,
			RecordedBy:   req.RecordedBy,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = status
		o.PaidAmount = newPaid
		o.PaidAt = &now
		o.Method = req.Method
		o.Reference = reference
		o.Version++
		o.UpdatedAt = now

		completed := false
		if status == obligationdomain.StatusPaid {
			completed, err = s.completeContractIfFinal(tx, o, now)
			if err != nil {
				return err
			}
		}

		resp = domain.RecordPaymentResponse{Obligation: o, ContractCompleted: completed}
		return nil
	})
	if err != nil {
		return domain.RecordPaymentResponse{}, err
	}

	s.log.Info("payment recorded",
		zap.String("obligation_id", resp.Obligation.ID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("status", string(resp.Obligation.Status)),
		zap.Bool("contract_completed", resp.ContractCompleted),
	)
	return resp, nil
}

func (s *Service) ReportClientPayment(ctx context.Context, obligationID snowflake.ID, method string) (obligationdomain.Obligation, error) {
	var out obligationdomain.Obligation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadObligation(tx, obligationID)
		if err != nil {
			return err
		}
		if !o.Status.Payable() {
			return domain.ErrAlreadyPaid
		}

		now := s.clock.Now()
		if err := s.casUpdate(tx, o, map[string]any{
			"status":     obligationdomain.StatusClientReported,
			"method":     method,
			"version":    o.Version + 1,
			"updated_at": now,
		}); err != nil {
			return err
		}

		if err := s.insertEvent(tx, domain.PaymentEvent{
			ID:           s.genID.Generate(),
			ObligationID: o.ID,
			ContractID:   o.ContractID,
			Kind:         domain.EventClientReported,
			Method:       method,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = obligationdomain.StatusClientReported
		o.Method = method
		o.Version++
		o.UpdatedAt = now
		out = o
		return nil
	})
	return out, err
}

func (s *Service) ConfirmClientReport(ctx context.Context, obligationID snowflake.ID, approve bool) (domain.RecordPaymentResponse, error) {
	var resp domain.RecordPaymentResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadObligation(tx, obligationID)
		if err != nil {
			return err
		}
		if o.Status != obligationdomain.StatusClientReported {
			return domain.ErrNotClientReported
		}

		now := s.clock.Now()
		if approve {
			settled := o.ScheduledAmount.Add(o.LateFee)
			if err := s.casUpdate(tx, o, map[string]any{
				"status":      obligationdomain.StatusPaid,
				"paid_amount": settled,
				"paid_at":     now,
				"version":     o.Version + 1,
				"updated_at":  now,
			}); err != nil {
				return err
			}
			if err := s.insertEvent(tx, domain.PaymentEvent{
				ID:           s.genID.Generate(),
				ObligationID: o.ID,
				ContractID:   o.ContractID,
				Kind:         domain.EventConfirmed,
				Amount:       settled.Sub(o.PaidAmount),
				Method:       o.Method,
				Metadata:     datatypes.JSONMap{},
				CreatedAt:    now,
			}); err != nil {
				return err
			}

			o.Status = obligationdomain.StatusPaid
			o.PaidAmount = settled
			o.PaidAt = &now
			o.Version++
			o.UpdatedAt = now

			completed, err := s.completeContractIfFinal(tx, o, now)
			if err != nil {
				return err
			}
			resp = domain.RecordPaymentResponse{Obligation: o, ContractCompleted: completed}
			return nil
		}

		// Rejected: the obligation falls back to whatever the due date
		// dictates right now.
		status, fee := reconciler.Evaluate(o, now, s.policy)
		if err := s.casUpdate(tx, o, map[string]any{
			"status":     status,
			"late_fee":   fee,
			"version":    o.Version + 1,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if err := s.insertEvent(tx, domain.PaymentEvent{
			ID:           s.genID.Generate(),
			ObligationID: o.ID,
			ContractID:   o.ContractID,
			Kind:         domain.EventRejected,
			Method:       o.Method,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = status
		o.LateFee = fee
		o.Version++
		o.UpdatedAt = now
		resp = domain.RecordPaymentResponse{Obligation: o}
		return nil
	})
	return resp, err
}

func (s *Service) Fail(ctx context.Context, obligationID snowflake.ID, reference string) (obligationdomain.Obligation, error) {
	var out obligationdomain.Obligation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.loadObligation(tx, obligationID)
		if err != nil {
			return err
		}
		if o.Status.Terminal() {
			return domain.ErrAlreadyPaid
		}

		now := s.clock.Now()
		if err := s.casUpdate(tx, o, map[string]any{
			"status":     obligationdomain.StatusFailed,
			"version":    o.Version + 1,
			"updated_at": now,
		}); err != nil {
			return err
		}
		if err := s.insertEvent(tx, domain.PaymentEvent{
			ID:           s.genID.Generate(),
			ObligationID: o.ID,
			ContractID:   o.ContractID,
			Kind:         domain.EventFailed,
			Reference:    reference,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		o.Status = obligationdomain.StatusFailed
		o.Version++
		o.UpdatedAt = now
		out = o
		return nil
	})
	return out, err
}

func (s *Service) loadObligation(tx *gorm.DB, id snowflake.ID) (obligationdomain.Obligation, error) {
	var o obligationdomain.Obligation
	if err := tx.Where("id = ?", id).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return o, obligationdomain.ErrUnknownObligation
		}
		return o, err
	}
	return o, nil
}

func (s *Service) casUpdate(tx *gorm.DB, o obligationdomain.Obligation, updates map[string]any) error {
	res := tx.Model(&obligationdomain.Obligation{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return obligationdomain.ErrConcurrentModification
	}
	return nil
}

func (s *Service) insertEvent(tx *gorm.DB, event domain.PaymentEvent) error {
	return tx.Create(&event).Error
}

// completeContractIfFinal transitions the contract to completed when its
// highest-sequence obligation has just been paid.
func (s *Service) completeContractIfFinal(tx *gorm.DB, o obligationdomain.Obligation, now time.Time) (bool, error) {
	var maxSeq int
	if err := tx.Model(&obligationdomain.Obligation{}).
		Where("contract_id = ?", o.ContractID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return false, err
	}
	if o.Sequence != maxSeq {
		return false, nil
	}

	res := tx.Model(&contractdomain.Contract{}).
		Where("id = ? AND status = ?", o.ContractID, contractdomain.ContractStatusActive).
		Updates(map[string]any{
			"status":       contractdomain.ContractStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
