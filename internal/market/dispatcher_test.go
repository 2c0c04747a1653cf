package market

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"main/pkg/exception"
)

func TestDispatcherBuildHistorical(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"10", "11"}})
	d := HistoricalDispatcher(s)

	cursor, err := d.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := cursor.(*HistoricalCursor); !ok {
		t.Fatalf("expected *HistoricalCursor, got %T", cursor)
	}
}

func TestDispatcherBuildLive(t *testing.T) {
	d := LiveDispatcher([]string{"A", "B"}, "/tmp/feed.sock", 5*time.Second)

	cursor, err := d.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	live, ok := cursor.(*LiveCursor)
	if !ok {
		t.Fatalf("expected *LiveCursor, got %T", cursor)
	}
	live.Close()
}

func TestDispatcherBuildRejectsBadDescriptors(t *testing.T) {
	if _, err := (Dispatcher{Kind: CursorHistorical}).Build(); err != exception.ErrMissingSeries {
		t.Fatalf("historical without series: expected ErrMissingSeries, got %v", err)
	}
	if _, err := (Dispatcher{}).Build(); err != exception.ErrUnknownCursor {
		t.Fatalf("unknown kind: expected ErrUnknownCursor, got %v", err)
	}
}

// A descriptor shipped to a remote process must rebuild a cursor that
// walks the same bars.
func TestDispatcherRemoteRebuild(t *testing.T) {
	s := testSeries(t, map[string][]string{"A": {"10", "11"}, "B": {"20", "22"}})
	encoded, err := json.Marshal(HistoricalDispatcher(s))
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}

	var remote Dispatcher
	if err := json.Unmarshal(encoded, &remote); err != nil {
		t.Fatalf("unmarshal descriptor: %v", err)
	}
	cursor, err := remote.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx := context.Background()
	steps := 0
	for cursor.Advance(ctx) {
		steps++
	}
	if steps != 2 {
		t.Fatalf("rebuilt cursor walked %d bars, want 2", steps)
	}
	got, err := cursor.CloseOf("B")
	if err != nil {
		t.Fatalf("CloseOf: %v", err)
	}
	if !got.Equal(d("22")) {
		t.Fatalf("final close mismatch: %s", got)
	}
}
