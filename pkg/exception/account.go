package exception

import "errors"

// Account protocol errors. These are replied to the caller and never
// terminate the manager.
var (
	ErrDuplicateAccount = errors.New("account: session already exists")
	ErrUnknownAccount   = errors.New("account: session not found")
	ErrAccountClosed    = errors.New("account: session already closed")
	ErrZeroAlpha        = errors.New("account: signal alphas sum to zero")
)
