package pathopt

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
)

func newTestOptimizer(t *testing.T, records ...metadata.Record) *Optimizer {
	t.Helper()
	return New(mustStore(t, records...), DefaultConfig(), nil)
}

func TestOptimize_RootAndLeaves(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	cases := []struct {
		budget int
		want   []string
		time   int
		value  int
	}{
		{budget: 20, want: []string{"leaf1", "leaf2", "root"}, time: 20, value: 11},
		{budget: 8, want: []string{"leaf1"}, time: 5, value: 5},
		{budget: 0, want: []string{}, time: 0, value: 0},
	}
	for _, tc := range cases {
		res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: tc.budget})
		if err != nil {
			t.Fatalf("budget %d: %v", tc.budget, err)
		}
		if res.OrderedIDs == nil {
			t.Fatalf("budget %d: ordered ids must be non-nil", tc.budget)
		}
		if !equalIDs(res.OrderedIDs, tc.want) {
			t.Fatalf("budget %d: got %v want %v", tc.budget, res.OrderedIDs, tc.want)
		}
		if res.TotalTime != tc.time || res.TotalValue != tc.value {
			t.Fatalf("budget %d: time/value %d/%d want %d/%d", tc.budget, res.TotalTime, res.TotalValue, tc.time, tc.value)
		}
		if !equalIDs(res.Closure, []string{"root", "leaf1", "leaf2"}) {
			t.Fatalf("unexpected closure %v", res.Closure)
		}
		if !equalIDs(res.TopologicalOrder, []string{"leaf1", "leaf2", "root"}) {
			t.Fatalf("unexpected order %v", res.TopologicalOrder)
		}
		if res.CallID == "" {
			t.Fatalf("expected a call id")
		}
	}
}

func TestOptimize_ChainsSatisfied(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: 20})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(res.Chains) != 2 {
		t.Fatalf("expected 2 chains, got %+v", res.Chains)
	}
	for _, c := range res.Chains {
		if !c.Satisfied || c.Time != 15 || c.Value != 1 {
			t.Fatalf("unexpected chain report %+v", c)
		}
	}
}

func TestOptimize_KnownTopicsExcluded(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	res, err := o.Optimize(context.Background(), Request{
		InitialSelection: []string{"root"},
		TimeBudget:       20,
		KnownTopics:      []string{"leaf1", "not-in-closure"},
	})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !equalIDs(res.OrderedIDs, []string{"leaf2", "root"}) {
		t.Fatalf("unexpected selection %v", res.OrderedIDs)
	}
	if res.TotalTime != 15 || res.TotalValue != 6 {
		t.Fatalf("unexpected totals %d/%d", res.TotalTime, res.TotalValue)
	}
}

func TestOptimize_SelectionDeduplicated(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	a, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root", " root", "root"}, TimeBudget: 20})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	b, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: 20})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !equalIDs(a.OrderedIDs, b.OrderedIDs) || len(a.Chains) != len(b.Chains) {
		t.Fatalf("duplicate selection changed result: %v vs %v", a.OrderedIDs, b.OrderedIDs)
	}
	if a.CallID == b.CallID {
		t.Fatalf("call ids should differ per call")
	}
}

func TestOptimize_EmptySelection(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	res, err := o.Optimize(context.Background(), Request{TimeBudget: 100})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(res.OrderedIDs) != 0 || res.TotalTime != 0 || res.TotalValue != 0 || len(res.Closure) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestOptimize_InvalidBudgetRejectedBeforeLookup(t *testing.T) {
	p := newCountingProvider(mustStore(t, rootLeaves()...))
	o := New(p, Config{MaxTimeBudget: 100}, nil)
	for _, budget := range []int{-1, 101} {
		_, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: budget})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("budget %d: expected invalid input, got %v", budget, err)
		}
	}
	if p.totalGets() != 0 {
		t.Fatalf("expected no lookups, got %d", p.totalGets())
	}
	if _, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: 100}); err != nil {
		t.Fatalf("budget at limit: %v", err)
	}
}

func TestOptimize_UnknownSelection(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"ghost"}, TimeBudget: 20})
	if res != nil {
		t.Fatalf("expected no result")
	}
	if !errors.Is(err, ErrUnknownLearningObject) {
		t.Fatalf("expected unknown learning object, got %v", err)
	}
}

func TestOptimize_CycleFailsWholeCall(t *testing.T) {
	o := newTestOptimizer(t, lo("A", 1, "B"), lo("B", 1, "A"))
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"A"}, TimeBudget: 10})
	if res != nil {
		t.Fatalf("expected no partial result, got %+v", res)
	}
	if !errors.Is(err, ErrCyclicPrerequisiteGraph) {
		t.Fatalf("expected cyclic graph error, got %v", err)
	}
}

func TestOptimize_DanglingPrerequisiteIgnored(t *testing.T) {
	o := newTestOptimizer(t, lo("a", 4, "ghost"))
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"a"}, TimeBudget: 4})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// a is foundational once the dangling edge is gone.
	if !equalIDs(res.OrderedIDs, []string{"a"}) || res.TotalValue != 5 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOptimize_CustomValues(t *testing.T) {
	o := New(mustStore(t, rootLeaves()...), Config{FoundationalValue: 1, DefaultValue: 10}, nil)
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: 10})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !equalIDs(res.OrderedIDs, []string{"root"}) || res.TotalValue != 10 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	o := newTestOptimizer(t, diamond()...)
	first, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"top", "r"}, TimeBudget: 3})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	for i := 0; i < 10; i++ {
		res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"top", "r"}, TimeBudget: 3})
		if err != nil {
			t.Fatalf("Optimize: %v", err)
		}
		if !equalIDs(res.OrderedIDs, first.OrderedIDs) || !equalIDs(res.TopologicalOrder, first.TopologicalOrder) {
			t.Fatalf("run %d differs: %v vs %v", i, res.OrderedIDs, first.OrderedIDs)
		}
	}
}

func TestOptimize_ConcurrentCalls(t *testing.T) {
	o := newTestOptimizer(t, rootLeaves()...)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"root"}, TimeBudget: 20})
			if err != nil {
				errs <- err
				return
			}
			if res.TotalValue != 11 {
				errs <- errors.New("unexpected total value")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent optimize: %v", err)
	}
}

type snapshotCounter struct {
	*metadata.Store
	mu    sync.Mutex
	calls int
}

func (s *snapshotCounter) Snapshot(ctx context.Context) (metadata.Provider, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.Store.Snapshot(ctx)
}

func TestPlan_UsesSnapshot(t *testing.T) {
	sc := &snapshotCounter{Store: mustStore(t, rootLeaves()...)}
	o := New(sc, DefaultConfig(), nil)
	plan, err := o.Plan(context.Background(), []string{"root"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if sc.calls != 1 {
		t.Fatalf("expected one snapshot, got %d", sc.calls)
	}
	if plan.Graph.Len() != 3 || len(plan.Chains) != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestPlanFromGraph_SharedFullGraph(t *testing.T) {
	g, err := BuildFullGraph(context.Background(), mustStore(t, append(rootLeaves(), diamond()...)...), nil)
	if err != nil {
		t.Fatalf("BuildFullGraph: %v", err)
	}
	plan, err := PlanFromGraph(g, []string{"top"})
	if err != nil {
		t.Fatalf("PlanFromGraph: %v", err)
	}
	if !equalIDs(plan.TopologicalOrder, []string{"base", "l", "r", "top"}) {
		t.Fatalf("unexpected order %v", plan.TopologicalOrder)
	}
	if _, err := PlanFromGraph(g, []string{"missing"}); !IsCode(err, CodeUnknownLearningObject) {
		t.Fatalf("expected unknown learning object, got %v", err)
	}
}

func TestOptimize_DanglingWarningCarriesCallID(t *testing.T) {
	log, logs := observedLogger()
	o := New(mustStore(t, lo("a", 5, "ghost")), DefaultConfig(), log)
	res, err := o.Optimize(context.Background(), Request{InitialSelection: []string{"a"}, TimeBudget: 10})
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	warns := danglingWarnings(logs)
	if len(warns) != 1 {
		t.Fatalf("expected one dangling warning, got %d", len(warns))
	}
	if got := warns[0].ContextMap()["call_id"]; got != res.CallID {
		t.Fatalf("warning call_id = %v, want %s", got, res.CallID)
	}
}
