package pathopt

import (
	"fmt"
	"strings"
)

// Closure returns the selection plus every learning object reachable from it
// through prerequisite edges, in breadth-first discovery order. Ids absent
// from the graph are skipped.
func Closure(g *Graph, selection []string) []string {
	seen := make(map[string]bool, len(selection))
	out := make([]string, 0, len(selection))
	queue := make([]string, 0, len(selection))
	for _, id := range selection {
		if seen[id] || !g.Has(id) {
			continue
		}
		seen[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, pre := range g.Prerequisites(id) {
			if !seen[pre] {
				seen[pre] = true
				queue = append(queue, pre)
			}
		}
	}
	return out
}

// TopologicalOrder orders closure so that every learning object follows its
// in-closure prerequisites (Kahn's algorithm). Ties are broken by position in
// closure, then by the order objects become ready. A cycle is reported as a
// CodeCyclicPrerequisiteGraph error and no partial order is returned.
func TopologicalOrder(g *Graph, closure []string) ([]string, error) {
	inClosure := make(map[string]bool, len(closure))
	for _, id := range closure {
		inClosure[id] = true
	}

	inDegree := make(map[string]int, len(closure))
	dependents := make(map[string][]string, len(closure))
	for _, id := range closure {
		for _, pre := range g.Prerequisites(id) {
			if !inClosure[pre] {
				continue
			}
			inDegree[id]++
			dependents[pre] = append(dependents[pre], id)
		}
	}

	queue := make([]string, 0, len(closure))
	for _, id := range closure {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(closure))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) < len(closure) {
		var stuck []string
		for _, id := range closure {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		stuckSet := make(map[string]bool, len(stuck))
		for _, id := range stuck {
			stuckSet[id] = true
		}
		msg := fmt.Sprintf("%d of %d learning objects ordered", len(order), len(closure))
		if cycle := g.FindCycle(func(id string) bool { return stuckSet[id] }); cycle != nil {
			msg += "; cycle " + strings.Join(cycle, " -> ")
		}
		return nil, NewError(CodeCyclicPrerequisiteGraph, "pathopt.TopologicalOrder", msg, nil, stuck...)
	}
	return order, nil
}
