package transport

import (
	stderrors "errors"
	"net"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/agent"
	"main/internal/codec"
	"main/pkg/exception"
)

// Request is one inbound envelope plus the way back to its originator.
// One-way messages carry the same shape; the handler simply never
// replies.
type Request struct {
	Env  codec.Envelope
	conn *serverConn
}

// Reply sends env back to the request's originator, stamped with the
// request's correlation id so the peer can pair it.
func (r Request) Reply(env codec.Envelope) error {
	env.Header.Seq = r.Env.Header.Seq
	return r.conn.write(codec.EncodeEnvelope(env))
}

type serverConn struct {
	mu   sync.Mutex
	conn *net.UnixConn
}

func (c *serverConn) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.conn, payload)
}

// Server accepts point-to-point connections on a Unix socket and funnels
// every decoded inbound envelope into one bounded request channel. The
// accept and read loops block in syscalls, so they run on dedicated OS
// threads via agent.RunBlocking.
type Server struct {
	path     string
	maxFrame int

	ln       *net.UnixListener
	requests chan Request

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	// reqMu fences read-loop sends against the close of requests: senders
	// hold it shared for the non-blocking send, Close holds it exclusive
	// while closing the channel.
	reqMu     sync.RWMutex
	reqClosed bool

	closeOnce sync.Once
}

// NewServer creates a server for the given socket path.
func NewServer(path string, queueSize int) (*Server, error) {
	if queueSize <= 0 {
		queueSize = 256
	}
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	return &Server{
		path:     path,
		maxFrame: DefaultMaxFrame,
		ln:       ln,
		requests: make(chan Request, queueSize),
		conns:    make(map[*serverConn]struct{}),
	}, nil
}

// Requests returns the inbound request channel. It closes on shutdown.
func (s *Server) Requests() <-chan Request {
	return s.requests
}

// Serve runs the accept loop under a. Each accepted connection gets its
// own read loop. Close unblocks everything.
func (s *Server) Serve(a *agent.Agent) {
	a.RunBlocking("transport-accept", func() (agent.Step, error) {
		conn, err := s.ln.AcceptUnix()
		if err != nil {
			// Listener closed means shutdown; anything else is transient.
			if isClosedErr(err) {
				return agent.StepStop, nil
			}
			return agent.StepContinue, errors.Wrap(err, "accept")
		}

		sc := &serverConn{conn: conn}
		s.mu.Lock()
		s.conns[sc] = struct{}{}
		s.mu.Unlock()

		a.RunBlocking("transport-read", func() (agent.Step, error) {
			payload, err := ReadFrame(conn, s.maxFrame)
			if err != nil {
				// A failed checksum still consumed a whole frame, so the
				// stream stays aligned; drop the message, keep the
				// connection. Anything else loses framing.
				if err == exception.ErrFrameChecksum {
					return agent.StepContinue, errors.New("corrupt frame dropped")
				}
				s.dropConn(sc)
				if isClosedErr(err) {
					return agent.StepStop, nil
				}
				logs.Infof("connection closed: %v", err)
				return agent.StepStop, nil
			}
			env, ok := codec.DecodeEnvelope(payload)
			if !ok {
				// Malformed single message: drop it, keep the connection.
				return agent.StepContinue, errors.New("malformed envelope")
			}
			if err := s.enqueue(Request{Env: env, conn: sc}); err != nil {
				if err == exception.ErrConnectionClose {
					return agent.StepStop, nil
				}
				return agent.StepContinue, err
			}
			return agent.StepContinue, nil
		})
		return agent.StepContinue, nil
	})
}

// enqueue routes one decoded request into the bounded channel without
// blocking the read loop.
func (s *Server) enqueue(req Request) error {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()
	if s.reqClosed {
		return exception.ErrConnectionClose
	}
	select {
	case s.requests <- req:
		return nil
	default:
		return errors.New("request queue full, message dropped")
	}
}

func (s *Server) dropConn(sc *serverConn) {
	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
}

// Close shuts the listener and every open connection, unblocking all
// read loops. Idempotent.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ln.Close()
		s.mu.Lock()
		for sc := range s.conns {
			_ = sc.conn.Close()
		}
		s.conns = map[*serverConn]struct{}{}
		s.mu.Unlock()
		s.reqMu.Lock()
		s.reqClosed = true
		close(s.requests)
		s.reqMu.Unlock()
	})
	return err
}

func isClosedErr(err error) bool {
	return stderrors.Is(err, net.ErrClosed)
}
