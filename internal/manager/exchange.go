package manager

import (
	"github.com/shopspring/decimal"

	"main/internal/market"
	"main/internal/schema"
	"main/pkg/exception"
)

// SimulatedExchange fills every order leg at the account cursor's current
// close, charging a proportional commission on the traded notional.
type SimulatedExchange struct {
	commissionRate decimal.Decimal
}

// NewSimulatedExchange creates an exchange with the given commission
// rate. A zero rate means free execution.
func NewSimulatedExchange(commissionRate decimal.Decimal) *SimulatedExchange {
	return &SimulatedExchange{commissionRate: commissionRate}
}

// Execute fills the order batch in leg order against cursor.
func (e *SimulatedExchange) Execute(order schema.Order, cursor market.Cursor) (schema.Fill, error) {
	if e == nil || cursor == nil {
		return schema.Fill{}, exception.ErrNilInstance
	}

	fill := schema.Fill{Session: order.Session, Ts: order.Ts}
	for _, leg := range order.Legs {
		price, err := cursor.CloseOf(leg.Ticker)
		if err != nil {
			return schema.Fill{}, err
		}
		notional := price.Mul(decimal.NewFromInt(leg.Qty)).Abs()
		fill.Legs = append(fill.Legs, schema.FillLeg{
			Ticker:     leg.Ticker,
			Qty:        leg.Qty,
			Price:      price,
			Commission: e.commissionRate.Mul(notional),
		})
	}
	return fill, nil
}
