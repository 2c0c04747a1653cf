package exception

import "errors"

// Accounting errors. Any of these is fatal to the affected account's
// further processing, not to the process.
var (
	ErrCashNegative       = errors.New("ledger: fill would drive cash negative")
	ErrSnapshotOutOfOrder = errors.New("ledger: snapshot timestamp regressed")
	ErrNoSnapshot         = errors.New("ledger: no snapshot taken yet")
	ErrUnknownPosition    = errors.New("ledger: ticker not tracked")
)
