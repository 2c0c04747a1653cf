package transport

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/pkg/exception"
)

// Client is a point-to-point Unix socket client. At most one request is
// in flight at a time; its reply is paired by the correlation id in the
// header, so unsolicited pushes arriving mid-request cannot be mistaken
// for it.
type Client struct {
	mu       sync.Mutex
	conn     *net.UnixConn
	maxFrame int
	seq      uint64

	// pending receives every inbound frame. Capacity one: the server
	// side answers at most one outstanding request, and anything not
	// ours is skipped by correlation id.
	pending chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the Unix socket at path.
func Dial(path string) (*Client, error) {
	conn, err := dialUnix(path)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:     conn,
		maxFrame: DefaultMaxFrame,
		pending:  make(chan []byte, 1),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	for {
		payload, err := ReadFrame(c.conn, c.maxFrame)
		if err != nil {
			_ = c.Close()
			return
		}
		select {
		case c.pending <- payload:
		case <-c.closed:
			return
		default:
			// Overwrite a stale unread reply rather than stall the loop.
			select {
			case <-c.pending:
			default:
			}
			select {
			case c.pending <- payload:
			default:
			}
		}
	}
}

// Send writes env without waiting for a reply.
func (c *Client) Send(ctx context.Context, env codec.Envelope) error {
	if c == nil {
		return exception.ErrNilClientUDS
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.conn, codec.EncodeEnvelope(env))
}

// Request writes env stamped with a fresh correlation id and waits for
// the reply carrying the same id. Stale or unsolicited envelopes that
// arrive in between are discarded.
func (c *Client) Request(ctx context.Context, env codec.Envelope) (codec.Envelope, error) {
	if c == nil {
		return codec.Envelope{}, exception.ErrNilClientUDS
	}
	id := atomic.AddUint64(&c.seq, 1)
	env.Header.Seq = id

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteFrame(c.conn, codec.EncodeEnvelope(env)); err != nil {
		return codec.Envelope{}, errors.Wrap(err, "write request")
	}

	for {
		select {
		case payload := <-c.pending:
			reply, ok := codec.DecodeEnvelope(payload)
			if !ok {
				return codec.Envelope{}, errors.New("malformed reply envelope")
			}
			if reply.Header.Seq != id {
				continue
			}
			return reply, nil
		case <-c.closed:
			return codec.Envelope{}, errors.Wrap(io.EOF, "connection closed awaiting reply")
		case <-ctx.Done():
			return codec.Envelope{}, ctx.Err()
		}
	}
}

// Recv waits for the next inbound envelope that is not consumed by a
// Request. Useful for one-way flows where the peer may push an error.
func (c *Client) Recv(ctx context.Context) (codec.Envelope, error) {
	if c == nil {
		return codec.Envelope{}, exception.ErrNilClientUDS
	}
	select {
	case payload := <-c.pending:
		env, ok := codec.DecodeEnvelope(payload)
		if !ok {
			return codec.Envelope{}, errors.New("malformed envelope")
		}
		return env, nil
	case <-c.closed:
		return codec.Envelope{}, exception.ErrConnectionClose
	case <-ctx.Done():
		return codec.Envelope{}, ctx.Err()
	}
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() error {
	if c == nil {
		return exception.ErrNilClientUDS
	}
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
