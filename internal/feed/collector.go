package feed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/market"
)

// Tick is one quote feed message: last traded price of a ticker at an
// exchange timestamp (unix milliseconds).
type Tick struct {
	Ticker string `json:"ticker"`
	TsMs   int64  `json:"ts"`
	Price  string `json:"price"`
}

// SubscribeRequest asks the feed for tick streams of the given tickers.
type SubscribeRequest struct {
	Method  string   `json:"method"`
	Tickers []string `json:"tickers"`
	ID      int64    `json:"id"`
}

// SubscribeResponse acknowledges a subscribe request. A non-nil Result
// carries the rejection reason.
type SubscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// Collector bridges a websocket quote feed into live cursors. One
// collector serves one feed connection; each observing cursor gets every
// tick of its subscribed tickers.
type Collector struct {
	wss *ws.WebSocket
}

// NewCollector creates a collector for the feed at url.
func NewCollector(ctx context.Context, url string) *Collector {
	return &Collector{wss: ws.New(ctx, url)}
}

// Start opens the feed connection.
func (c *Collector) Start(ctx context.Context) error {
	if err := c.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start feed connection")
	}
	return nil
}

// Close drops the feed connection.
func (c *Collector) Close() {
	c.wss.Close()
}

// Subscribe asks the feed for the given tickers and waits for the ack.
func (c *Collector) Subscribe(ctx context.Context, tickers []string) error {
	const requestID = 1
	if err := c.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, wss *ws.WebSocket) error {
			payload := SubscribeRequest{
				Method:  "SUBSCRIBE",
				Tickers: tickers,
				ID:      requestID,
			}
			if err := wss.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp SubscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != requestID {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe rejected: %+v", resp.Result)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// Observe feeds every inbound tick into cursor until the context is done
// or the process shuts down.
func (c *Collector) Observe(ctx context.Context, cursor *market.LiveCursor) (unsubscribe func()) {
	ch, cancel := c.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				tick, ok := ws.ReadMessage[Tick](m)
				if !ok || tick.Ticker == "" {
					continue
				}
				price, err := decimal.NewFromString(tick.Price)
				if err != nil {
					logs.Errorf("drop tick %s: bad price %q", tick.Ticker, tick.Price)
					continue
				}
				cursor.AddTick(tick.Ticker, time.UnixMilli(tick.TsMs).UTC(), price)
			}
		}
	}()

	return cancel
}
