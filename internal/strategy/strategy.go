package strategy

import (
	"github.com/shopspring/decimal"

	"main/internal/market"
)

// Strategy turns the visible slice of a data cursor into per-ticker
// signed target weights. Implementations never mutate the cursor; the
// session loop owns stepping.
type Strategy interface {
	// Name identifies the strategy in logs and session records.
	Name() string
	// Lookback is the number of trailing bars the strategy needs before
	// its first decision.
	Lookback() int
	// Alphas computes the target weights for the cursor's current bar.
	Alphas(cursor market.Cursor) (map[string]decimal.Decimal, error)
}
