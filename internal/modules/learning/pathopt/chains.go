package pathopt

import "sort"

// Chain is a prerequisite path from a selected learning object down to a
// foundational one (no direct prerequisites). Chain[0] is the selected
// object and Chain[len-1] the foundational one.
type Chain []string

func (c Chain) Terminal() string {
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// IdentifyChains walks prerequisite edges depth-first from every selected
// learning object and records the path each time a foundational object is
// reached. The visited set is per root: a node shared by two branches under
// the same root is expanded once, but each root is walked independently.
func IdentifyChains(g *Graph, selection []string) []Chain {
	type frame struct {
		id   string
		next int
	}
	var chains []Chain

	for _, root := range selection {
		if !g.Has(root) {
			continue
		}
		visited := map[string]bool{}
		var path []string
		var stack []frame

		enter := func(id string) {
			visited[id] = true
			path = append(path, id)
			if len(g.Prerequisites(id)) == 0 {
				chains = append(chains, append(Chain(nil), path...))
			}
			stack = append(stack, frame{id: id})
		}

		enter(root)
		for len(stack) > 0 {
			top := len(stack) - 1
			pres := g.Prerequisites(stack[top].id)
			if stack[top].next >= len(pres) {
				stack = stack[:top]
				path = path[:len(path)-1]
				continue
			}
			next := pres[stack[top].next]
			stack[top].next++
			if !visited[next] {
				enter(next)
			}
		}
	}
	return chains
}

// FoundationalSet returns the terminals of chains.
func FoundationalSet(chains []Chain) map[string]bool {
	out := make(map[string]bool, len(chains))
	for _, c := range chains {
		if t := c.Terminal(); t != "" {
			out[t] = true
		}
	}
	return out
}

// ChainReport summarizes how well a chain is covered by a selection.
type ChainReport struct {
	IDs []string `json:"ids"`
	// Total minutes of every object on the chain.
	Time int `json:"time"`
	// Number of chain members that were in the caller's initial selection.
	Value     int  `json:"value"`
	Satisfied bool `json:"satisfied"`
}

// ReportChains scores chains against the final selection, ordered by
// value per minute, highest first. Equal ratios keep discovery order.
func ReportChains(g *Graph, chains []Chain, selection, selected []string) []ChainReport {
	inSelection := toSet(selection)
	inResult := toSet(selected)

	reports := make([]ChainReport, 0, len(chains))
	for _, c := range chains {
		r := ChainReport{IDs: append([]string(nil), c...), Satisfied: true}
		for _, id := range c {
			r.Time += g.Time(id)
			if inSelection[id] {
				r.Value++
			}
			if !inResult[id] {
				r.Satisfied = false
			}
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		// value_i/time_i > value_j/time_j without division
		return reports[i].Value*max1(reports[j].Time) > reports[j].Value*max1(reports[i].Time)
	})
	return reports
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
