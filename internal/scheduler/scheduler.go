package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casaflow/casaflow/internal/clock"
	"github.com/casaflow/casaflow/internal/reconciler"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log    *zap.Logger
	Engine *reconciler.Engine
	Clock  clock.Clock
	Config Config `optional:"true"`
}

// Scheduler drives the status reconciler on a fixed interval. Every pass is
// idempotent, so an overlapping or repeated run is wasted work, not
// corruption.
type Scheduler struct {
	log    *zap.Logger
	engine *reconciler.Engine
	clock  clock.Clock
	cfg    Config
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Engine == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		engine: p.Engine,
		clock:  p.Clock,
		cfg:    p.Config.withDefaults(),
	}, nil
}

// RunOnce performs a single reconciliation pass as of the current clock time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	asOf := s.clock.Now()
	start := time.Now()
	result, err := s.engine.Reconcile(ctx, asOf)

	log := s.log.With(
		zap.Time("as_of", asOf),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("errored", result.Errored),
		zap.Duration("took", time.Since(start)),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn("reconcile pass timed out", zap.Error(err))
			return nil
		}
		log.Warn("reconcile pass finished with errors", zap.Error(err))
		return fmt.Errorf("reconcile: %w", err)
	}
	log.Info("reconcile pass finished")
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
