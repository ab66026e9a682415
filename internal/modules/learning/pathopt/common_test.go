package pathopt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

// observedLogger records every entry at debug and above.
func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func danglingWarnings(logs *observer.ObservedLogs) []observer.LoggedEntry {
	return logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("dropping dangling prerequisite").All()
}

func lo(id string, minutes int, prereqs ...string) metadata.Record {
	return metadata.Record{ID: id, EstimatedTime: minutes, Prerequisites: prereqs}
}

func mustStore(tb testing.TB, records ...metadata.Record) *metadata.Store {
	tb.Helper()
	s, err := metadata.NewStoreFromRecords(records, nil)
	if err != nil {
		tb.Fatalf("store: %v", err)
	}
	return s
}

func mustGraph(tb testing.TB, selection []string, records ...metadata.Record) *Graph {
	tb.Helper()
	g, err := BuildGraph(context.Background(), mustStore(tb, records...), selection, nil)
	if err != nil {
		tb.Fatalf("BuildGraph: %v", err)
	}
	return g
}

// rootLeaves is root(10) -> leaf1(5), leaf2(5).
func rootLeaves() []metadata.Record {
	return []metadata.Record{
		lo("root", 10, "leaf1", "leaf2"),
		lo("leaf1", 5),
		lo("leaf2", 5),
	}
}

// diamond is top -> l, r; l -> base; r -> base.
func diamond() []metadata.Record {
	return []metadata.Record{
		lo("top", 1, "l", "r"),
		lo("l", 1, "base"),
		lo("r", 1, "base"),
		lo("base", 1),
	}
}

// countingProvider wraps a provider, counting lookups and optionally failing.
type countingProvider struct {
	inner metadata.Provider

	mu    sync.Mutex
	gets  map[string]int
	fail  map[string]error
	lists int
}

func newCountingProvider(inner metadata.Provider) *countingProvider {
	return &countingProvider{inner: inner, gets: map[string]int{}, fail: map[string]error{}}
}

func (c *countingProvider) Get(ctx context.Context, id string) (metadata.Record, error) {
	c.mu.Lock()
	c.gets[id]++
	err := c.fail[id]
	c.mu.Unlock()
	if err != nil {
		return metadata.Record{}, err
	}
	return c.inner.Get(ctx, id)
}

func (c *countingProvider) List(ctx context.Context, fn func(metadata.Record) error) error {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.inner.List(ctx, fn)
}

func (c *countingProvider) totalGets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.gets {
		n += v
	}
	return n
}

var errBoom = errors.New("boom")

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexOf(ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = i
	}
	return out
}
