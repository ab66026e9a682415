package pathopt

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
)

func TestClosure_BreadthFirstOrder(t *testing.T) {
	g := mustGraph(t, []string{"root"}, rootLeaves()...)
	if got := Closure(g, []string{"root"}); !equalIDs(got, []string{"root", "leaf1", "leaf2"}) {
		t.Fatalf("unexpected closure: %v", got)
	}
}

func TestClosure_IsFixedPoint(t *testing.T) {
	records := randomDAG(rand.New(rand.NewSource(7)), 40, 3)
	sel := []string{"lo0", "lo5", "lo11"}
	g := mustGraph(t, sel, records...)

	c := Closure(g, sel)
	if again := Closure(g, c); len(again) != len(c) {
		t.Fatalf("closure not closed: %d vs %d", len(again), len(c))
	}
	in := toSet(c)
	for _, id := range c {
		for _, pre := range g.Prerequisites(id) {
			if !in[pre] {
				t.Fatalf("%s requires %s which is missing from closure", id, pre)
			}
		}
	}
	for _, id := range sel {
		if !in[id] {
			t.Fatalf("selected %s missing from closure", id)
		}
	}
}

func TestClosure_SkipsUnknown(t *testing.T) {
	g := mustGraph(t, []string{"leaf1"}, rootLeaves()...)
	if got := Closure(g, []string{"nope", "leaf1"}); !equalIDs(got, []string{"leaf1"}) {
		t.Fatalf("unexpected closure: %v", got)
	}
}

func TestTopologicalOrder_PrerequisitesFirst(t *testing.T) {
	g := mustGraph(t, []string{"root"}, rootLeaves()...)
	order, err := TopologicalOrder(g, Closure(g, []string{"root"}))
	if err != nil {
		t.Fatalf("TopologicalOrder: %v", err)
	}
	if !equalIDs(order, []string{"leaf1", "leaf2", "root"}) {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestTopologicalOrder_RandomDAGs(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		records := randomDAG(rng, 30, 4)
		sel := []string{"lo0", fmt.Sprintf("lo%d", rng.Intn(30))}
		g := mustGraph(t, sel, records...)
		closure := Closure(g, sel)

		order, err := TopologicalOrder(g, closure)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if len(order) != len(closure) {
			t.Fatalf("seed %d: order has %d ids, closure %d", seed, len(order), len(closure))
		}
		pos := indexOf(order)
		if len(pos) != len(order) {
			t.Fatalf("seed %d: order has repeats: %v", seed, order)
		}
		for _, id := range order {
			for _, pre := range g.Prerequisites(id) {
				if pos[pre] >= pos[id] {
					t.Fatalf("seed %d: %s placed before its prerequisite %s", seed, id, pre)
				}
			}
		}

		again, _ := TopologicalOrder(g, closure)
		if !equalIDs(order, again) {
			t.Fatalf("seed %d: order not deterministic", seed)
		}
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	g := mustGraph(t, []string{"A"}, lo("A", 1, "B"), lo("B", 1, "A"))
	order, err := TopologicalOrder(g, Closure(g, []string{"A"}))
	if order != nil {
		t.Fatalf("expected no partial order, got %v", order)
	}
	if !errors.Is(err, ErrCyclicPrerequisiteGraph) {
		t.Fatalf("expected cyclic graph error, got %v", err)
	}
	if ids := IDsOf(err); !equalIDs(ids, []string{"A", "B"}) {
		t.Fatalf("unexpected stuck ids: %v", ids)
	}
	if !strings.Contains(err.Error(), "A -> B -> A") {
		t.Fatalf("expected cycle path in message, got %q", err.Error())
	}
}

func TestTopologicalOrder_SelfLoop(t *testing.T) {
	g := mustGraph(t, []string{"a"}, lo("a", 1, "a"), lo("b", 1))
	_, err := TopologicalOrder(g, Closure(g, []string{"a"}))
	if !IsCode(err, CodeCyclicPrerequisiteGraph) {
		t.Fatalf("expected cyclic graph error, got %v", err)
	}
}

func TestTopologicalOrder_CycleBelowAcyclicPart(t *testing.T) {
	g := mustGraph(t, []string{"top"},
		lo("top", 1, "x"),
		lo("x", 1, "y"),
		lo("y", 1, "x"),
	)
	_, err := TopologicalOrder(g, Closure(g, []string{"top"}))
	if !IsCode(err, CodeCyclicPrerequisiteGraph) {
		t.Fatalf("expected cyclic graph error, got %v", err)
	}
	// top is blocked by the cycle but is not on it.
	if !strings.Contains(err.Error(), "x -> y -> x") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

// randomDAG builds n records where lo<i> only requires lo<j> with j > i.
func randomDAG(rng *rand.Rand, n, maxPrereqs int) []metadata.Record {
	out := make([]metadata.Record, 0, n)
	for i := 0; i < n; i++ {
		var prereqs []string
		if i < n-1 {
			for k := rng.Intn(maxPrereqs + 1); k > 0; k-- {
				j := i + 1 + rng.Intn(n-i-1)
				prereqs = append(prereqs, fmt.Sprintf("lo%d", j))
			}
		}
		out = append(out, lo(fmt.Sprintf("lo%d", i), 1+rng.Intn(30), prereqs...))
	}
	return out
}
