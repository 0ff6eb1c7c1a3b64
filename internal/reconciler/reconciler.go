package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casaflow/casaflow/internal/config"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	obsmetrics "github.com/casaflow/casaflow/internal/observability/metrics"
	"github.com/casaflow/casaflow/pkg/dateutil"
	"github.com/casaflow/casaflow/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBatchSize = 200

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
}

// Engine recomputes obligation statuses and late fees from an evaluation
// date. Runs are idempotent: the outcome is a pure function of each
// obligation's due date, the asOf instant and the fee policy, so re-running
// with the same asOf produces no further changes.
type Engine struct {
	db        *gorm.DB
	log       *zap.Logger
	policy    FeePolicy
	batchSize int
}

// Result reports each obligation's outcome independently; one malformed row
// never blocks the rest of the portfolio.
type Result struct {
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Errored   int `json:"errored"`
}

func New(p Params) *Engine {
	batch := p.Config.Scheduler.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Engine{
		db:        p.DB,
		log:       p.Log.Named("reconciler"),
		policy:    PolicyFromConfig(p.Config.Ledger),
		batchSize: batch,
	}
}

// NewWithPolicy builds an engine with an explicit policy and batch size.
func NewWithPolicy(db *gorm.DB, log *zap.Logger, policy FeePolicy, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{db: db, log: log.Named("reconciler"), policy: policy, batchSize: batchSize}
}

func (e *Engine) Policy() FeePolicy { return e.policy }

// Evaluate derives the status and late fee an open obligation should carry as
// of the given date. Pure; shared by the batch run and the payment service's
// client-report rejection path.
func Evaluate(o obligationdomain.Obligation, asOf time.Time, policy FeePolicy) (obligationdomain.ObligationStatus, money.Amount) {
	daysLate := dateutil.DaysLate(o.DueDate, asOf)
	fee := policy.LateFee(o.ScheduledAmount, daysLate)
	switch {
	case daysLate == 0:
		return obligationdomain.StatusScheduled, money.Zero
	case daysLate <= policy.GraceDays:
		return obligationdomain.StatusPending, fee
	default:
		return obligationdomain.StatusLate, fee
	}
}

// Reconcile walks every open obligation in id-ordered batches and applies
// Evaluate under the per-obligation optimistic lock. Terminal and
// staff-owned states are never selected, so they can never be overwritten.
// Processing is chunked: cancellation between batches loses progress only,
// never correctness, and the whole run is safe to repeat from scratch.
func (e *Engine) Reconcile(ctx context.Context, asOf time.Time) (Result, error) {
	start := time.Now()
	m := obsmetrics.Reconciler()
	m.IncRun()

	var (
		result  Result
		runErr  error
		afterID int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(runErr, err)
		}

		batch, err := e.fetchOpenBatch(ctx, afterID)
		if err != nil {
			return result, errors.Join(runErr, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, o := range batch {
			afterID = int64(o.ID)
			changed, err := e.reconcileOne(ctx, o, asOf)
			switch {
			case err != nil:
				result.Errored++
				runErr = errors.Join(runErr, fmt.Errorf("obligation %s: %w", o.ID, err))
				e.log.Warn("obligation reconciliation failed",
					zap.String("obligation_id", o.ID.String()),
					zap.Error(err),
				)
			case changed:
				result.Updated++
			default:
				result.Unchanged++
			}
		}
	}

	m.AddUpdated(result.Updated)
	m.AddErrored(result.Errored)
	m.ObserveDuration(time.Since(start))

	e.log.Info("reconciliation run finished",
		zap.Time("as_of", asOf),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("errored", result.Errored),
	)
	return result, runErr
}

func (e *Engine) fetchOpenBatch(ctx context.Context, afterID int64) ([]obligationdomain.Obligation, error) {
	var batch []obligationdomain.Obligation
	err := e.db.WithContext(ctx).
		Where("status IN ?", []obligationdomain.ObligationStatus{
			obligationdomain.StatusScheduled,
			obligationdomain.StatusPending,
			obligationdomain.StatusLate,
		}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(e.batchSize).
		Find(&batch).Error
	return batch, err
}

func (e *Engine) reconcileOne(ctx context.Context, o obligationdomain.Obligation, asOf time.Time) (bool, error) {
	status, fee := Evaluate(o, asOf, e.policy)
	if status == o.Status && fee == o.LateFee {
		return false, nil
	}

	res := e.db.WithContext(ctx).
		Model(&obligationdomain.Obligation{}).
		Where("id = ? AND version = ?", o.ID, o.Version).
		Updates(map[string]any{
			"status":     status,
			"late_fee":   fee,
			"version":    o.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent payment or staff action won the race. The next run
		// re-evaluates from the stored row, so skipping is safe.
		return false, obligationdomain.ErrConcurrentModification
	}
	return true, nil
}
