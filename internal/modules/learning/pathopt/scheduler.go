package pathopt

// Item is one learning object as seen by the budget scheduler.
type Item struct {
	ID    string
	Time  int
	Value int
	// Known items are never selected.
	Known bool
}

type Schedule struct {
	Selected   []string
	TotalTime  int
	TotalValue int
}

// BuildItems assigns values over a topological order: foundational objects
// get cfg.FoundationalValue, everything else cfg.DefaultValue.
func BuildItems(g *Graph, order []string, foundational, known map[string]bool, cfg Config) []Item {
	items := make([]Item, 0, len(order))
	for _, id := range order {
		v := cfg.DefaultValue
		if foundational[id] {
			v = cfg.FoundationalValue
		}
		items = append(items, Item{ID: id, Time: g.Time(id), Value: v, Known: known[id]})
	}
	return items
}

// Knapsack picks the subset of items with maximum total value whose total
// time fits budget (0/1 knapsack, O(n*budget)). Items are treated as
// independent; prerequisite coverage is only encouraged through values.
// The selection keeps the input order. Backtracking includes an item only
// when it strictly raised the table value, so ties resolve toward earlier
// items.
func Knapsack(items []Item, budget int) Schedule {
	if budget <= 0 || len(items) == 0 {
		return Schedule{}
	}
	n := len(items)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, budget+1)
	}

	for i := 1; i <= n; i++ {
		it := items[i-1]
		prev, cur := dp[i-1], dp[i]
		for t := 0; t <= budget; t++ {
			cur[t] = prev[t]
			if it.Known || it.Time > t {
				continue
			}
			if v := prev[t-it.Time] + it.Value; v > cur[t] {
				cur[t] = v
			}
		}
	}

	var picked []string
	total := 0
	t := budget
	for i := n; i >= 1; i-- {
		if dp[i][t] != dp[i-1][t] {
			it := items[i-1]
			picked = append(picked, it.ID)
			total += it.Time
			t -= it.Time
		}
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}

	return Schedule{
		Selected:   picked,
		TotalTime:  total,
		TotalValue: dp[n][budget],
	}
}
