package manager

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/agent"
	"main/internal/bus"
	"main/internal/codec"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/schema"
	"main/internal/transport"
	"main/pkg/exception"
)

const (
	defaultMailboxSize    = 64
	defaultOrderQueueSize = 256
	defaultRequestTimeout = 10 * time.Second
)

// Config controls the portfolio manager.
type Config struct {
	// ListenPath is the Unix socket traders connect to.
	ListenPath string
	// DataAddr is the Unix socket of the data server.
	DataAddr string
	// CommissionRate is the proportional commission charged per fill leg.
	CommissionRate decimal.Decimal
	// MailboxSize bounds each account's message queue.
	MailboxSize int
	// RequestTimeout bounds the dispatcher request to the data server.
	RequestTimeout time.Duration
}

// Manager multiplexes concurrent account lifecycles: it routes inbound
// messages to per-account loops, synchronizes each simulated account's
// cursor with strategy time, sizes signals into sell-before-buy order
// batches, and books the resulting fills.
type Manager struct {
	cfg      Config
	srv      *transport.Server
	data     *transport.Client
	registry *Registry
	exchange *SimulatedExchange
	orders   *bus.Queue
	metrics  *obs.Metrics
}

// openTicket defers the dispatcher round trip into the account's own
// loop, so a stalled data server never blocks the router.
type openTicket struct {
	open  schema.AccountOpen
	ts    time.Time
	reply func(codec.Envelope) error
}

// signalTicket carries a signal together with the way back to its
// originator, so typed rejections reach the right connection.
type signalTicket struct {
	sig   schema.Signal
	reply func(codec.Envelope) error
}

// closeTicket asks the account loop to finalize and reply with the
// ledger.
type closeTicket struct {
	reply func(codec.Envelope) error
}

// orderTicket is one order batch queued for simulated execution.
type orderTicket struct {
	order   schema.Order
	account *Account
	issued  time.Time
}

// New creates a manager listening on cfg.ListenPath, using the data
// server at cfg.DataAddr.
func New(cfg Config) (*Manager, error) {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaultMailboxSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	srv, err := transport.NewServer(cfg.ListenPath, 0)
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}
	data, err := transport.Dial(cfg.DataAddr)
	if err != nil {
		_ = srv.Close()
		return nil, errors.Wrap(err, "dial data server")
	}
	return &Manager{
		cfg:      cfg,
		srv:      srv,
		data:     data,
		registry: NewRegistry(),
		exchange: NewSimulatedExchange(cfg.CommissionRate),
		orders:   bus.NewQueue(defaultOrderQueueSize),
		metrics:  obs.NewMetrics(),
	}, nil
}

// Registry exposes the account registry, mainly for tests and ops.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Metrics exposes the manager's counters.
func (m *Manager) Metrics() *obs.Metrics {
	return m.metrics
}

// Run starts the transport, the request router, and the simulated
// execution loop under a. Account loops start on demand.
func (m *Manager) Run(a *agent.Agent) {
	m.srv.Serve(a)

	a.RunTask("manager-router", func(ctx context.Context) (agent.Step, error) {
		select {
		case <-ctx.Done():
			return agent.StepStop, nil
		case req, ok := <-m.srv.Requests():
			if !ok {
				return agent.StepStop, nil
			}
			m.route(a, req)
			return agent.StepContinue, nil
		}
	})

	a.RunTask("manager-exchange", func(ctx context.Context) (agent.Step, error) {
		ev, err := m.orders.Get(ctx)
		if err != nil {
			return agent.StepStop, nil
		}
		ticket, ok := ev.Payload.(orderTicket)
		if !ok {
			return agent.StepContinue, errors.New("unexpected order queue payload")
		}
		fill, execErr := m.exchange.Execute(ticket.order, ticket.account.Cursor)
		select {
		case ticket.account.feedback <- execResult{fill: fill, err: execErr}:
		case <-ctx.Done():
			return agent.StepStop, nil
		}
		return agent.StepContinue, nil
	})
}

// Close tears the transport down, unblocking the router and every
// connection read loop.
func (m *Manager) Close() error {
	m.orders.Close()
	err := m.srv.Close()
	if cerr := m.data.Close(); err == nil {
		err = cerr
	}
	return err
}

func (m *Manager) route(a *agent.Agent, req transport.Request) {
	header := req.Env.Header
	m.metrics.ObserveEvent(header.Type)

	switch header.Type {
	case schema.EventAccountOpen:
		open, ok := codec.DecodeAccountOpen(req.Env.Payload)
		if !ok {
			m.replyErr(req.Reply, header.Session, schema.ErrCodeBadRequest, "malformed account open")
			return
		}
		m.handleOpen(a, req, open)

	case schema.EventSignal:
		sig, ok := codec.DecodeSignal(req.Env.Payload)
		if !ok {
			m.replyErr(req.Reply, header.Session, schema.ErrCodeBadRequest, "malformed signal")
			return
		}
		m.deliver(req, sig.Session, sig.Ts, signalTicket{sig: sig, reply: req.Reply})

	case schema.EventAccountClose:
		ac, ok := codec.DecodeAccountClose(req.Env.Payload)
		if !ok {
			m.replyErr(req.Reply, header.Session, schema.ErrCodeBadRequest, "malformed account close")
			return
		}
		m.deliver(req, ac.Session, header.Ts, closeTicket{reply: req.Reply})

	default:
		m.replyErr(req.Reply, header.Session, schema.ErrCodeBadRequest, "unsupported event "+header.Type.String())
	}
}

// deliver routes a decoded message into the session's mailbox.
func (m *Manager) deliver(req transport.Request, session string, ts time.Time, payload any) {
	account, err := m.registry.Get(session)
	if err != nil {
		m.replyErr(req.Reply, session, schema.ErrCodeUnknownAccount, "no such account "+session)
		return
	}
	ev := bus.Event{
		Header:  schema.NewHeader(req.Env.Header.Type, session, ts),
		Payload: payload,
	}
	if err := account.mailbox.TryPublish(ev); err != nil {
		if err == bus.ErrQueueClosed {
			m.metrics.IncQueueClosed()
			m.replyErr(req.Reply, session, schema.ErrCodeUnknownAccount, "account closing")
			return
		}
		m.metrics.IncQueueDrop()
		logs.Errorf("account %s mailbox full, %s dropped", session, ev.Header.Type)
	}
}

// handleOpen registers the session and defers the rest of the open into
// the account's own loop. The router only pays for the registry insert.
func (m *Manager) handleOpen(a *agent.Agent, req transport.Request, open schema.AccountOpen) {
	account, err := m.registry.Create(open.Session, open.Request.Broker, m.cfg.MailboxSize)
	if err != nil {
		code := schema.ErrCodeBadRequest
		if err == exception.ErrDuplicateAccount {
			code = schema.ErrCodeDuplicateAccount
		}
		m.replyErr(req.Reply, open.Session, code, err.Error())
		return
	}

	m.startAccountLoop(a, account)

	ev := bus.Event{
		Header:  schema.NewHeader(schema.EventAccountOpen, open.Session, req.Env.Header.Ts),
		Payload: openTicket{open: open, ts: req.Env.Header.Ts, reply: req.Reply},
	}
	if err := account.mailbox.TryPublish(ev); err != nil {
		m.registry.Remove(open.Session)
		m.replyErr(req.Reply, open.Session, schema.ErrCodeBadRequest, err.Error())
	}
}

// finishOpen runs in the account loop: fetch the dispatcher descriptor,
// seed the ledger and cursor, then echo the descriptor to the trader.
// The mailbox guarantees it runs before any signal for the session.
func (m *Manager) finishOpen(ctx context.Context, account *Account, ticket openTicket) (agent.Step, error) {
	open := ticket.open

	rctx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()
	reqEnv := codec.Pack(schema.NewHeader(schema.EventDataRequest, open.Session, time.Now()), open.Request)
	reply, err := m.data.Request(rctx, reqEnv)
	if err != nil {
		m.registry.Remove(open.Session)
		logs.Errorf("dispatcher request for %s: %+v", open.Session, err)
		m.replyErr(ticket.reply, open.Session, schema.ErrCodeDataUnavailable, "data server unavailable")
		return agent.StepStop, nil
	}
	if reply.Header.Type == schema.EventError {
		m.registry.Remove(open.Session)
		if er, ok := codec.DecodeErrorReply(reply.Payload); ok {
			m.replyErr(ticket.reply, open.Session, er.Code, er.Message)
		} else {
			m.replyErr(ticket.reply, open.Session, schema.ErrCodeDataUnavailable, "data server rejected request")
		}
		return agent.StepStop, nil
	}
	dispatcher, ok := codec.DecodeDispatcher(reply.Payload)
	if !ok {
		m.registry.Remove(open.Session)
		m.replyErr(ticket.reply, open.Session, schema.ErrCodeDataUnavailable, "malformed dispatcher")
		return agent.StepStop, nil
	}

	cursor, err := dispatcher.Build()
	if err != nil {
		m.registry.Remove(open.Session)
		m.replyErr(ticket.reply, open.Session, schema.ErrCodeDataUnavailable, err.Error())
		return agent.StepStop, nil
	}

	// The ledger's zero snapshot anchors to strategy time: the requested
	// range start for a simulated account, the trader-stamped open time
	// for a live one. The server wall clock never seeds it.
	seedTs := open.Request.Start
	if seedTs.IsZero() {
		seedTs = ticket.ts
	}
	if seedTs.IsZero() {
		seedTs = time.Now()
	}
	record := ledger.New(seedTs, open.Capital, open.Request.Tickers)
	if err := m.registry.Open(account, record, cursor); err != nil {
		m.registry.Remove(open.Session)
		m.replyErr(ticket.reply, open.Session, schema.ErrCodeBadRequest, err.Error())
		return agent.StepStop, nil
	}

	m.metrics.IncAccountOpened()
	logs.Infof("account %s open: broker=%s capital=%s tickers=%v",
		open.Session, open.Request.Broker, open.Capital, open.Request.Tickers)

	out := codec.Pack(schema.NewHeader(schema.EventDispatcher, open.Session, time.Now()), dispatcher)
	if err := ticket.reply(out); err != nil {
		logs.Errorf("reply dispatcher to %s: %+v", open.Session, err)
	}
	return agent.StepContinue, nil
}

func (m *Manager) startAccountLoop(a *agent.Agent, account *Account) {
	a.RunTask("account-"+account.Session, func(ctx context.Context) (agent.Step, error) {
		ev, err := account.mailbox.Get(ctx)
		if err != nil {
			return agent.StepStop, nil
		}
		switch payload := ev.Payload.(type) {
		case openTicket:
			return m.finishOpen(ctx, account, payload)
		case signalTicket:
			return m.handleSignal(ctx, account, payload)
		case closeTicket:
			return m.handleClose(account, payload)
		default:
			return agent.StepContinue, errors.Errorf("account %s: unexpected mailbox payload", account.Session)
		}
	})
}

// handleSignal runs one signal end to end: sync the cursor to strategy
// time (marking to market along the way), size the order, hand it to the
// execution loop, book the fill, snapshot.
func (m *Manager) handleSignal(ctx context.Context, account *Account, ticket signalTicket) (agent.Step, error) {
	sig := ticket.sig
	started := time.Now()

	if account.Broker == schema.BrokerSimulated {
		var snapErr error
		syncStart := time.Now()
		err := account.Cursor.SyncTo(sig.Ts, func(ts time.Time, closes map[string]decimal.Decimal) {
			if snapErr == nil {
				snapErr = account.Record.TakeSnapshot(ts, closes)
			}
		})
		m.metrics.ObserveSync(time.Since(syncStart))
		if err == nil {
			err = snapErr
		}
		if err != nil {
			return m.accountingFailure(account, errors.Wrapf(err, "sync to %s", sig.Ts))
		}
	}

	order, err := BuildOrder(account.Record, account.Cursor, sig)
	if err != nil {
		switch err {
		case exception.ErrZeroAlpha:
			m.replyErr(ticket.reply, sig.Session, schema.ErrCodeZeroAlpha, "signal alphas sum to zero")
			return agent.StepContinue, nil
		case exception.ErrUnknownTicker, exception.ErrNoBarYet, exception.ErrDataUnavailable:
			m.replyErr(ticket.reply, sig.Session, schema.ErrCodeDataUnavailable, err.Error())
			return agent.StepContinue, nil
		default:
			return m.accountingFailure(account, err)
		}
	}
	if order.Empty() {
		return agent.StepContinue, nil
	}

	ev := bus.Event{
		Header:  schema.NewHeader(schema.EventOrder, sig.Session, sig.Ts),
		Payload: orderTicket{order: order, account: account, issued: started},
	}
	if err := m.orders.Publish(ctx, ev); err != nil {
		return agent.StepContinue, errors.Wrap(err, "queue order")
	}

	var res execResult
	select {
	case res = <-account.feedback:
	case <-ctx.Done():
		return agent.StepStop, nil
	}
	if res.err != nil {
		m.replyErr(ticket.reply, sig.Session, schema.ErrCodeDataUnavailable, res.err.Error())
		return agent.StepContinue, nil
	}

	if err := account.Record.ApplyFill(res.fill); err != nil {
		return m.accountingFailure(account, errors.Wrapf(err, "apply fill at %s", sig.Ts))
	}
	closes, err := account.Cursor.Closes()
	if err != nil {
		return m.accountingFailure(account, err)
	}
	if err := account.Record.TakeSnapshot(sig.Ts, closes); err != nil {
		return m.accountingFailure(account, err)
	}
	m.metrics.ObserveFill(time.Since(started))
	return agent.StepContinue, nil
}

// handleClose replies with the final ledger and retires the account.
func (m *Manager) handleClose(account *Account, ticket closeTicket) (agent.Step, error) {
	env := codec.Pack(
		schema.NewHeader(schema.EventRecord, account.Session, time.Now()),
		account.Record,
	)
	// Retire the account before the reply goes out so the session is gone
	// by the time the caller acts on the final ledger.
	m.registry.Remove(account.Session)
	m.metrics.IncAccountClosed()
	if err := ticket.reply(env); err != nil {
		logs.Errorf("reply record to %s: %+v", account.Session, err)
	}
	logs.Infof("account %s closed", account.Session)
	return agent.StepStop, nil
}

// accountingFailure force-closes the account. The ledger basis is no
// longer trustworthy, so no clean reply is attempted.
func (m *Manager) accountingFailure(account *Account, err error) (agent.Step, error) {
	logs.Errorf("account %s accounting failure, force closing: %+v", account.Session, err)
	m.registry.Remove(account.Session)
	m.metrics.IncAccountClosed()
	return agent.StepStop, nil
}

func (m *Manager) replyErr(reply func(codec.Envelope) error, session string, code schema.ErrorCode, msg string) {
	env := codec.Pack(
		schema.NewHeader(schema.EventError, session, time.Now()),
		schema.ErrorReply{Code: code, Message: msg},
	)
	if err := reply(env); err != nil {
		logs.Errorf("reply error to %s: %+v", session, err)
	}
}
