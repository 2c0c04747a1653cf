package trader

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/codec"
	"main/internal/feed"
	"main/internal/ledger"
	"main/internal/market"
	"main/internal/schema"
	"main/internal/strategy"
	"main/internal/transport"
	"main/pkg/exception"
)

// SessionConfig describes one trading session.
type SessionConfig struct {
	// Session is the account identifier, unique per manager.
	Session string
	// ManagerAddr is the Unix socket of the portfolio manager.
	ManagerAddr string
	// Capital is the starting cash.
	Capital decimal.Decimal
	// Request describes the data the session trades on.
	Request schema.DataRequest
	// OpenTimeout bounds the account open round trip.
	OpenTimeout time.Duration
}

// Session drives one account end to end: open, step the local cursor,
// emit signals, close, report the final ledger.
type Session struct {
	cfg    SessionConfig
	strat  strategy.Strategy
	client *transport.Client
}

// NewSession connects to the manager and prepares a session running
// strat.
func NewSession(cfg SessionConfig, strat strategy.Strategy) (*Session, error) {
	if cfg.Session == "" || strat == nil {
		return nil, exception.ErrInvalidArgument
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	client, err := transport.Dial(cfg.ManagerAddr)
	if err != nil {
		return nil, errors.Wrap(err, "dial manager")
	}
	return &Session{cfg: cfg, strat: strat, client: client}, nil
}

// Close drops the manager connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Run executes the whole session and returns the final ledger.
func (s *Session) Run(ctx context.Context) (*ledger.TradeRecord, error) {
	cursor, err := s.open(ctx)
	if err != nil {
		return nil, err
	}

	cursor.SetLookback(s.strat.Lookback())
	signals := 0
	for cursor.Advance(ctx) {
		alphas, err := s.strat.Alphas(cursor)
		if err != nil {
			return nil, errors.Wrap(err, "compute alphas")
		}
		if allZero(alphas) {
			continue
		}
		sig := schema.Signal{Session: s.cfg.Session, Ts: cursor.Now(), Alphas: alphas}
		env := codec.Pack(schema.NewHeader(schema.EventSignal, s.cfg.Session, time.Now()), sig)
		if err := s.client.Send(ctx, env); err != nil {
			return nil, errors.Wrap(err, "send signal")
		}
		signals++
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logs.Infof("session %s: data exhausted after %d signals, closing", s.cfg.Session, signals)

	record, err := s.close(ctx)
	if err != nil {
		return nil, err
	}

	if equity, eqErr := record.Equity(); eqErr == nil {
		sharpe, _ := record.SharpeRatio()
		logs.Infof("session %s: final equity %s, sharpe %.4f", s.cfg.Session, equity, sharpe)
	}
	return record, nil
}

// open requests the account and rebuilds the local cursor from the
// returned descriptor. Live descriptors also get a feed collector
// attached.
func (s *Session) open(ctx context.Context) (market.Cursor, error) {
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	defer cancel()

	open := schema.AccountOpen{Session: s.cfg.Session, Capital: s.cfg.Capital, Request: s.cfg.Request}
	env := codec.Pack(schema.NewHeader(schema.EventAccountOpen, s.cfg.Session, time.Now()), open)
	reply, err := s.client.Request(octx, env)
	if err != nil {
		return nil, errors.Wrap(err, "account open")
	}
	if reply.Header.Type == schema.EventError {
		if er, ok := codec.DecodeErrorReply(reply.Payload); ok {
			return nil, errors.Wrap(er, "account open rejected")
		}
		return nil, errors.New("account open rejected")
	}
	dispatcher, ok := codec.DecodeDispatcher(reply.Payload)
	if !ok {
		return nil, errors.New("malformed dispatcher reply")
	}

	cursor, err := dispatcher.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build cursor")
	}
	logs.Infof("session %s open: %d tickers, cursor kind %d",
		s.cfg.Session, len(dispatcher.Tickers), dispatcher.Kind)

	if live, isLive := cursor.(*market.LiveCursor); isLive {
		collector := feed.NewCollector(ctx, dispatcher.FeedAddr)
		if err := collector.Start(ctx); err != nil {
			return nil, errors.Wrap(err, "start feed")
		}
		if err := collector.Subscribe(ctx, dispatcher.Tickers); err != nil {
			collector.Close()
			return nil, errors.Wrap(err, "subscribe feed")
		}
		collector.Observe(ctx, live)
	}
	return cursor, nil
}

func (s *Session) close(ctx context.Context) (*ledger.TradeRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.OpenTimeout)
	defer cancel()

	env := codec.Pack(
		schema.NewHeader(schema.EventAccountClose, s.cfg.Session, time.Now()),
		schema.AccountClose{Session: s.cfg.Session},
	)
	reply, err := s.client.Request(cctx, env)
	if err != nil {
		return nil, errors.Wrap(err, "account close")
	}
	if reply.Header.Type == schema.EventError {
		if er, ok := codec.DecodeErrorReply(reply.Payload); ok {
			return nil, errors.Wrap(er, "account close rejected")
		}
		return nil, errors.New("account close rejected")
	}
	record, ok := codec.DecodeRecord(reply.Payload)
	if !ok {
		return nil, errors.New("malformed ledger reply")
	}
	return &record, nil
}

func allZero(alphas map[string]decimal.Decimal) bool {
	for _, alpha := range alphas {
		if !alpha.IsZero() {
			return false
		}
	}
	return true
}
