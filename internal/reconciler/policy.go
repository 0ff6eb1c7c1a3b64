package reconciler

import (
	"github.com/casaflow/casaflow/internal/config"
	"github.com/casaflow/casaflow/pkg/money"
)

type FeeMode string

const (
	FeeModeFlat    FeeMode = "flat"
	FeeModePercent FeeMode = "percent"
)

// FeePolicy is the collection policy the reconciler applies: how many days of
// grace an unpaid installment gets, and the late fee owed once the grace
// period is exceeded. The fee is re-derived on every run, never accumulated,
// so it is always a pure function of days late.
type FeePolicy struct {
	GraceDays  int
	Mode       FeeMode
	Flat       money.Amount
	PercentBps int64
}

func PolicyFromConfig(cfg config.LedgerConfig) FeePolicy {
	mode := FeeModePercent
	if cfg.LateFeeMode == string(FeeModeFlat) {
		mode = FeeModeFlat
	}
	return FeePolicy{
		GraceDays:  cfg.GraceDays,
		Mode:       mode,
		Flat:       money.Amount(cfg.LateFeeFlat),
		PercentBps: cfg.LateFeePercentBps,
	}
}

// LateFee returns the fee owed on an installment that is daysLate days
// overdue. Zero inside the grace period.
func (p FeePolicy) LateFee(scheduled money.Amount, daysLate int) money.Amount {
	if daysLate <= p.GraceDays {
		return money.Zero
	}
	if p.Mode == FeeModeFlat {
		return p.Flat
	}
	return scheduled.Percent(p.PercentBps)
}
