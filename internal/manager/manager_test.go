package manager

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/agent"
	"main/internal/codec"
	"main/internal/dataserver"
	"main/internal/market"
	"main/internal/schema"
	"main/internal/transport"
)

type stack struct {
	manager *Manager
	agent   *agent.Agent
	addr    string
	ts      []time.Time
}

// startStack runs a memstore-backed data server and a manager on temp
// sockets, serving a two-bar series: A closes [10, 11], B closes [20, 22].
func startStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.sock")
	mgrPath := filepath.Join(dir, "mgr.sock")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Hour)}
	rows := func(a, b string) []decimal.Decimal { return []decimal.Decimal{d(a), d(b)} }
	series := &market.Series{
		Tickers:    []string{"A", "B"},
		Timestamps: ts,
		Open:       [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		High:       [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		Low:        [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
		Close:      [][]decimal.Decimal{rows("10", "20"), rows("11", "22")},
	}
	store, err := dataserver.NewMemStore(series)
	require.NoError(t, err)

	a := agent.New(context.Background())

	ds, err := dataserver.NewServer(dataPath, store, "", 5*time.Second)
	require.NoError(t, err)
	ds.Run(a)

	m, err := New(Config{ListenPath: mgrPath, DataAddr: dataPath})
	require.NoError(t, err)
	m.Run(a)

	t.Cleanup(func() {
		_ = m.Close()
		_ = ds.Close()
		a.Shutdown()
		a.Wait()
	})
	return &stack{manager: m, agent: a, addr: mgrPath, ts: ts}
}

func openAccount(t *testing.T, s *stack, client *transport.Client, session, capital string) codec.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	open := schema.AccountOpen{
		Session: session,
		Capital: d(capital),
		Request: schema.DataRequest{
			Broker:  schema.BrokerSimulated,
			Tickers: []string{"A", "B"},
			Start:   s.ts[0],
			End:     s.ts[1],
		},
	}
	env := codec.Pack(schema.NewHeader(schema.EventAccountOpen, session, time.Now()), open)
	reply, err := client.Request(ctx, env)
	require.NoError(t, err)
	return reply
}

func TestEndToEndScenario(t *testing.T) {
	s := startStack(t)
	client, err := transport.Dial(s.addr)
	require.NoError(t, err)
	defer client.Close()

	reply := openAccount(t, s, client, "s1", "10000")
	require.Equal(t, schema.EventDispatcher, reply.Header.Type)
	dispatcher, ok := codec.DecodeDispatcher(reply.Payload)
	require.True(t, ok)
	assert.Equal(t, market.CursorHistorical, dispatcher.Kind)
	require.NotNil(t, dispatcher.Series)
	assert.Equal(t, 2, dispatcher.Series.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sig := schema.Signal{
		Session: "s1",
		Ts:      s.ts[1],
		Alphas:  map[string]decimal.Decimal{"A": d("1"), "B": d("-1")},
	}
	require.NoError(t, client.Send(ctx, codec.Pack(
		schema.NewHeader(schema.EventSignal, "s1", time.Now()), sig)))

	closeEnv := codec.Pack(
		schema.NewHeader(schema.EventAccountClose, "s1", time.Now()),
		schema.AccountClose{Session: "s1"},
	)
	finalReply, err := client.Request(ctx, closeEnv)
	require.NoError(t, err)
	require.Equal(t, schema.EventRecord, finalReply.Header.Type)

	record, ok := codec.DecodeRecord(finalReply.Payload)
	require.True(t, ok)

	// unitCapital 5000: buy 454 A at 11, sell 227 B at 22, sells first,
	// cash lands back on exactly 10000.
	assert.Equal(t, int64(454), record.Positions["A"])
	assert.Equal(t, int64(-227), record.Positions["B"])
	assert.True(t, record.Cash.Equal(d("10000")), "cash %s", record.Cash)

	equity, err := record.Equity()
	require.NoError(t, err)
	// mtm at bar 2: 454*11 - 227*22 = 0, so equity is all cash.
	assert.True(t, equity.Equal(d("10000")), "equity %s", equity)

	last := record.Snapshots[len(record.Snapshots)-1]
	assert.True(t, last.Ts.Equal(s.ts[1]))

	assert.Equal(t, 0, s.manager.Registry().Len())
}

func TestDuplicateOpenLeavesOriginalUntouched(t *testing.T) {
	s := startStack(t)
	client, err := transport.Dial(s.addr)
	require.NoError(t, err)
	defer client.Close()

	first := openAccount(t, s, client, "s1", "10000")
	require.Equal(t, schema.EventDispatcher, first.Header.Type)

	second := openAccount(t, s, client, "s1", "99999")
	require.Equal(t, schema.EventError, second.Header.Type)
	er, ok := codec.DecodeErrorReply(second.Payload)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeDuplicateAccount, er.Code)

	// The original account still closes with its own capital.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	closeEnv := codec.Pack(
		schema.NewHeader(schema.EventAccountClose, "s1", time.Now()),
		schema.AccountClose{Session: "s1"},
	)
	finalReply, err := client.Request(ctx, closeEnv)
	require.NoError(t, err)
	require.Equal(t, schema.EventRecord, finalReply.Header.Type)

	record, ok := codec.DecodeRecord(finalReply.Payload)
	require.True(t, ok)
	equity, err := record.Equity()
	require.NoError(t, err)
	assert.True(t, equity.Equal(d("10000")), "equity %s", equity)
}

func TestUnknownSessionGetsTypedError(t *testing.T) {
	s := startStack(t)
	client, err := transport.Dial(s.addr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sig := schema.Signal{
		Session: "ghost",
		Ts:      s.ts[0],
		Alphas:  map[string]decimal.Decimal{"A": d("1")},
	}
	require.NoError(t, client.Send(ctx, codec.Pack(
		schema.NewHeader(schema.EventSignal, "ghost", time.Now()), sig)))

	env, err := client.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventError, env.Header.Type)
	er, ok := codec.DecodeErrorReply(env.Payload)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeUnknownAccount, er.Code)
}

func TestOpenInFlightDoesNotBlockRouting(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "data.sock")
	mgrPath := filepath.Join(dir, "mgr.sock")

	a := agent.New(context.Background())

	// A data server that withholds its reply until released, pinning one
	// account's open mid-flight.
	ds, err := transport.NewServer(dataPath, 8)
	require.NoError(t, err)
	ds.Serve(a)
	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseData := func() { releaseOnce.Do(func() { close(release) }) }
	go func() {
		for req := range ds.Requests() {
			<-release
			_ = req.Reply(codec.Pack(
				schema.NewHeader(schema.EventError, req.Env.Header.Session, time.Now()),
				schema.ErrorReply{Code: schema.ErrCodeDataUnavailable, Message: "no data"},
			))
		}
	}()

	m, err := New(Config{ListenPath: mgrPath, DataAddr: dataPath})
	require.NoError(t, err)
	m.Run(a)
	t.Cleanup(func() {
		releaseData()
		_ = m.Close()
		_ = ds.Close()
		a.Shutdown()
		a.Wait()
	})

	opener, err := transport.Dial(mgrPath)
	require.NoError(t, err)
	defer opener.Close()

	openDone := make(chan codec.Envelope, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		open := schema.AccountOpen{
			Session: "slow",
			Capital: d("1000"),
			Request: schema.DataRequest{
				Broker:  schema.BrokerSimulated,
				Tickers: []string{"A"},
				Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			},
		}
		reply, err := opener.Request(ctx, codec.Pack(
			schema.NewHeader(schema.EventAccountOpen, "slow", time.Now()), open))
		if err == nil {
			openDone <- reply
		}
	}()

	// While the open waits on the data server, other sessions' traffic
	// still routes: an unknown session gets its typed rejection promptly.
	other, err := transport.Dial(mgrPath)
	require.NoError(t, err)
	defer other.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sig := schema.Signal{
		Session: "ghost",
		Ts:      time.Now(),
		Alphas:  map[string]decimal.Decimal{"A": d("1")},
	}
	require.NoError(t, other.Send(ctx, codec.Pack(
		schema.NewHeader(schema.EventSignal, "ghost", time.Now()), sig)))
	env, err := other.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventError, env.Header.Type)
	er, ok := codec.DecodeErrorReply(env.Payload)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeUnknownAccount, er.Code)

	releaseData()
	select {
	case reply := <-openDone:
		assert.Equal(t, schema.EventError, reply.Header.Type)
	case <-time.After(5 * time.Second):
		t.Fatalf("stalled open never completed")
	}
	assert.Equal(t, 0, m.Registry().Len())
}

func TestLiveOpenSeedsLedgerFromRequestTime(t *testing.T) {
	s := startStack(t)
	client, err := transport.Dial(s.addr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A live account carries no time range, so the ledger's zero snapshot
	// anchors to the trader-stamped open time, not the server clock.
	opened := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	open := schema.AccountOpen{
		Session: "live1",
		Capital: d("5000"),
		Request: schema.DataRequest{Broker: schema.BrokerLive, Tickers: []string{"A"}},
	}
	reply, err := client.Request(ctx, codec.Pack(
		schema.NewHeader(schema.EventAccountOpen, "live1", opened), open))
	require.NoError(t, err)
	require.Equal(t, schema.EventDispatcher, reply.Header.Type)

	closeEnv := codec.Pack(
		schema.NewHeader(schema.EventAccountClose, "live1", time.Now()),
		schema.AccountClose{Session: "live1"},
	)
	finalReply, err := client.Request(ctx, closeEnv)
	require.NoError(t, err)
	require.Equal(t, schema.EventRecord, finalReply.Header.Type)

	record, ok := codec.DecodeRecord(finalReply.Payload)
	require.True(t, ok)
	require.NotEmpty(t, record.Snapshots)
	assert.True(t, record.Snapshots[0].Ts.Equal(opened), "seed ts %s", record.Snapshots[0].Ts)
}

func TestOpenWithoutTimeRangeRejected(t *testing.T) {
	s := startStack(t)
	client, err := transport.Dial(s.addr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	open := schema.AccountOpen{
		Session: "s2",
		Capital: d("1000"),
		Request: schema.DataRequest{Broker: schema.BrokerSimulated, Tickers: []string{"A"}},
	}
	reply, err := client.Request(ctx, codec.Pack(
		schema.NewHeader(schema.EventAccountOpen, "s2", time.Now()), open))
	require.NoError(t, err)
	require.Equal(t, schema.EventError, reply.Header.Type)

	// The half-made account is rolled back.
	assert.Equal(t, 0, s.manager.Registry().Len())
}
