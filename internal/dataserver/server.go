package dataserver

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/agent"
	"main/internal/codec"
	"main/internal/market"
	"main/internal/schema"
	"main/internal/transport"
	"main/pkg/exception"
)

const defaultBarInterval = 5 * time.Second

// Server answers data requests with cursor descriptors. Simulated
// requests resolve to a historical descriptor embedding the bars from
// the store; live requests resolve to a live descriptor pointing the
// caller at the quote feed.
type Server struct {
	store       Store
	srv         *transport.Server
	feedAddr    string
	barInterval time.Duration
}

// NewServer creates a data server listening on the given socket path.
func NewServer(path string, store Store, feedAddr string, barInterval time.Duration) (*Server, error) {
	if store == nil {
		return nil, exception.ErrNilInstance
	}
	if barInterval <= 0 {
		barInterval = defaultBarInterval
	}
	srv, err := transport.NewServer(path, 0)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:       store,
		srv:         srv,
		feedAddr:    feedAddr,
		barInterval: barInterval,
	}, nil
}

// Run starts the transport and the request loop under a.
func (s *Server) Run(a *agent.Agent) {
	s.srv.Serve(a)
	a.RunTask("dataserver-requests", func(ctx context.Context) (agent.Step, error) {
		select {
		case <-ctx.Done():
			return agent.StepStop, nil
		case req, ok := <-s.srv.Requests():
			if !ok {
				return agent.StepStop, nil
			}
			s.handle(ctx, req)
			return agent.StepContinue, nil
		}
	})
}

// Close shuts the listener down, unblocking the accept loop.
func (s *Server) Close() error {
	return s.srv.Close()
}

func (s *Server) handle(ctx context.Context, req transport.Request) {
	header := req.Env.Header
	if header.Type != schema.EventDataRequest {
		s.replyErr(req, header.Session, schema.ErrCodeBadRequest, "unsupported event "+header.Type.String())
		return
	}
	dr, ok := codec.DecodeDataRequest(req.Env.Payload)
	if !ok {
		s.replyErr(req, header.Session, schema.ErrCodeBadRequest, "malformed data request")
		return
	}
	if len(dr.Tickers) == 0 {
		s.replyErr(req, header.Session, schema.ErrCodeBadRequest, "no tickers requested")
		return
	}

	var d market.Dispatcher
	switch dr.Broker {
	case schema.BrokerSimulated:
		if dr.Start.IsZero() || dr.End.IsZero() {
			s.replyErr(req, header.Session, schema.ErrCodeBadRequest, exception.ErrTimeRangeMissing.Error())
			return
		}
		series, err := s.store.Series(ctx, dr.Tickers, dr.Start, dr.End)
		if err != nil {
			logs.Errorf("series %v [%s, %s]: %+v", dr.Tickers, dr.Start, dr.End, err)
			s.replyErr(req, header.Session, schema.ErrCodeDataUnavailable, err.Error())
			return
		}
		d = market.HistoricalDispatcher(series)
	case schema.BrokerLive:
		d = market.LiveDispatcher(dr.Tickers, s.feedAddr, s.barInterval)
	default:
		s.replyErr(req, header.Session, schema.ErrCodeBadRequest, "unknown broker")
		return
	}

	env := codec.Pack(schema.NewHeader(schema.EventDispatcher, header.Session, time.Now()), d)
	if err := req.Reply(env); err != nil {
		logs.Errorf("reply dispatcher to %s: %+v", header.Session, err)
	}
}

func (s *Server) replyErr(req transport.Request, session string, code schema.ErrorCode, msg string) {
	env := codec.Pack(
		schema.NewHeader(schema.EventError, session, time.Now()),
		schema.ErrorReply{Code: code, Message: msg},
	)
	if err := req.Reply(env); err != nil {
		logs.Errorf("reply error to %s: %+v", session, err)
	}
}
