package ledger

import (
	"math"

	"main/pkg/exception"
)

const tradingDaysPerYear = 252

// EquityCurve returns the equity of every snapshot as float64, oldest
// first. Performance math tolerates float precision; the books do not.
func (r *TradeRecord) EquityCurve() []float64 {
	out := make([]float64, 0, len(r.Snapshots))
	for _, snap := range r.Snapshots {
		out = append(out, snap.Equity.InexactFloat64())
	}
	return out
}

// SharpeRatio computes the annualized Sharpe ratio over the snapshot
// history, assuming one snapshot per trading day.
func (r *TradeRecord) SharpeRatio() (float64, error) {
	curve := r.EquityCurve()
	if len(curve) < 3 {
		return 0, exception.ErrNoSnapshot
	}

	rets := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		rets = append(rets, curve[i]/curve[i-1]-1)
	}
	if len(rets) < 2 {
		return 0, exception.ErrNoSnapshot
	}

	mean := 0.0
	for _, ret := range rets {
		mean += ret
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, ret := range rets {
		diff := ret - mean
		variance += diff * diff
	}
	variance /= float64(len(rets) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, nil
	}
	return mean / std * math.Sqrt(tradingDaysPerYear), nil
}
