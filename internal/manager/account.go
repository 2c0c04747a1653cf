package manager

import (
	"sync"

	"main/internal/bus"
	"main/internal/ledger"
	"main/internal/market"
	"main/internal/schema"
	"main/pkg/exception"
)

// AccountState tracks the lifecycle of an account.
type AccountState uint16

const (
	AccountStateUnknown AccountState = iota
	AccountStateRequested
	AccountStateOpen
	AccountStateClosed
)

func (s AccountState) String() string {
	switch s {
	case AccountStateRequested:
		return "requested"
	case AccountStateOpen:
		return "open"
	case AccountStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// execResult is the execution task's answer to one order batch.
type execResult struct {
	fill schema.Fill
	err  error
}

// Account is the manager's view of one session: its ledger, its
// authoritative cursor, and the mailbox that serializes its messages.
// The account loop is the only goroutine that touches Record and Cursor
// after the account opens.
type Account struct {
	Session string
	State   AccountState
	Broker  schema.BrokerKind
	Record  *ledger.TradeRecord
	Cursor  market.Cursor

	mailbox  *bus.Queue
	feedback chan execResult
}

// Registry holds every live account, keyed by session.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{accounts: make(map[string]*Account)}
}

// Create registers a new account in the requested state. A session that
// already exists is rejected and the existing account is untouched.
func (r *Registry) Create(session string, broker schema.BrokerKind, mailboxSize int) (*Account, error) {
	if session == "" {
		return nil, exception.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[session]; ok {
		return nil, exception.ErrDuplicateAccount
	}
	a := &Account{
		Session:  session,
		State:    AccountStateRequested,
		Broker:   broker,
		mailbox:  bus.NewQueue(mailboxSize),
		feedback: make(chan execResult, 1),
	}
	r.accounts[session] = a
	return a, nil
}

// Get returns the account for session.
func (r *Registry) Get(session string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[session]
	if !ok {
		return nil, exception.ErrUnknownAccount
	}
	return a, nil
}

// Open transitions the account from requested to open once its cursor
// and ledger are seeded.
func (r *Registry) Open(a *Account, record *ledger.TradeRecord, cursor market.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.State != AccountStateRequested {
		return exception.ErrAccountClosed
	}
	a.Record = record
	a.Cursor = cursor
	a.State = AccountStateOpen
	return nil
}

// Remove closes the account's mailbox and drops it from the registry.
// Idempotent: removing an already-removed session is a no-op.
func (r *Registry) Remove(session string) {
	r.mu.Lock()
	a, ok := r.accounts[session]
	if ok {
		a.State = AccountStateClosed
		delete(r.accounts, session)
	}
	r.mu.Unlock()
	if ok {
		a.mailbox.Close()
	}
}

// Sessions lists the live sessions.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.accounts))
	for session := range r.accounts {
		out = append(out, session)
	}
	return out
}

// Len returns the number of live accounts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}
