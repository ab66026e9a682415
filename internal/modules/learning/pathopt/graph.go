package pathopt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	pkgerrors "github.com/yungbote/neurobridge-pathopt/internal/pkg/errors"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

// Graph maps learning-object ids to their direct prerequisites. Every edge
// points at a node that is present in the graph.
type Graph struct {
	prereqs map[string][]string
	times   map[string]int
	order   []string
}

func newGraph() *Graph {
	return &Graph{
		prereqs: map[string][]string{},
		times:   map[string]int{},
	}
}

func (g *Graph) add(id string, minutes int, prereqs []string) {
	if _, ok := g.times[id]; !ok {
		g.order = append(g.order, id)
	}
	g.times[id] = minutes
	g.prereqs[id] = prereqs
}

func (g *Graph) Has(id string) bool {
	_, ok := g.times[id]
	return ok
}

func (g *Graph) Len() int { return len(g.order) }

// Prerequisites returns id's direct prerequisites in provider order. The
// slice must not be modified.
func (g *Graph) Prerequisites(id string) []string { return g.prereqs[id] }

// Time returns id's estimated study time in minutes.
func (g *Graph) Time(id string) int { return g.times[id] }

// IDs returns every node in insertion order.
func (g *Graph) IDs() []string {
	return append([]string(nil), g.order...)
}

// BuildGraph looks up the selection and everything reachable from it through
// prerequisite edges. Unknown selected ids are a caller error; unknown
// prerequisite ids are dropped with a warning.
func BuildGraph(ctx context.Context, p metadata.Provider, selection []string, log *logger.Logger) (*Graph, error) {
	const op = "pathopt.BuildGraph"
	log = logger.OrNop(log)

	g := newGraph()
	fetched := map[string]metadata.Record{}
	missing := map[string]bool{}
	var unknown []string

	lookup := func(id string) (metadata.Record, bool, error) {
		if rec, ok := fetched[id]; ok {
			return rec, true, nil
		}
		if missing[id] {
			return metadata.Record{}, false, nil
		}
		rec, err := p.Get(ctx, id)
		if errors.Is(err, pkgerrors.ErrNotFound) {
			missing[id] = true
			return metadata.Record{}, false, nil
		}
		if err != nil {
			return metadata.Record{}, false, Wrap(CodeProvider, op, err)
		}
		if err := rec.Validate(); err != nil {
			return metadata.Record{}, false, NewError(CodeInvalidRecord, op, err.Error(), err, id)
		}
		fetched[id] = rec
		return rec, true, nil
	}

	queue := make([]string, 0, len(selection))
	queued := map[string]bool{}
	for _, id := range selection {
		_, ok, err := lookup(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		if !queued[id] {
			queued[id] = true
			queue = append(queue, id)
		}
	}
	if len(unknown) > 0 {
		return nil, NewError(CodeUnknownLearningObject, op,
			fmt.Sprintf("no metadata for %s", strings.Join(unknown, ", ")), nil, unknown...)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := queue[0]
		queue = queue[1:]
		rec := fetched[id]

		kept := make([]string, 0, len(rec.Prerequisites))
		seen := make(map[string]bool, len(rec.Prerequisites))
		for _, pre := range rec.Prerequisites {
			if seen[pre] {
				continue
			}
			seen[pre] = true
			_, ok, err := lookup(pre)
			if err != nil {
				return nil, err
			}
			if !ok {
				log.Warn("dropping dangling prerequisite", "lo_id", id, "prerequisite_id", pre)
				observability.Current().IncDanglingPrerequisite()
				continue
			}
			kept = append(kept, pre)
			if !queued[pre] {
				queued[pre] = true
				queue = append(queue, pre)
			}
		}
		g.add(id, rec.EstimatedTime, kept)
	}
	return g, nil
}

// DanglingRef is a prerequisite reference with no metadata record.
type DanglingRef struct {
	ID           string `json:"id"`
	Prerequisite string `json:"prerequisite"`
}

// BuildFullGraph loads the whole corpus once, for callers that run many
// queries against the same snapshot.
func BuildFullGraph(ctx context.Context, p metadata.Provider, log *logger.Logger) (*Graph, error) {
	g, _, err := buildFullGraph(ctx, p, log)
	return g, err
}

func buildFullGraph(ctx context.Context, p metadata.Provider, log *logger.Logger) (*Graph, []DanglingRef, error) {
	const op = "pathopt.BuildFullGraph"
	log = logger.OrNop(log)

	var records []metadata.Record
	known := map[string]bool{}
	err := p.List(ctx, func(rec metadata.Record) error {
		if err := rec.Validate(); err != nil {
			return NewError(CodeInvalidRecord, op, err.Error(), err, rec.ID)
		}
		if known[rec.ID] {
			return NewError(CodeInvalidRecord, op, fmt.Sprintf("duplicate id %q", rec.ID), nil, rec.ID)
		}
		known[rec.ID] = true
		records = append(records, rec)
		return nil
	})
	if err != nil {
		if CodeOf(err) != "" {
			return nil, nil, err
		}
		return nil, nil, Wrap(CodeProvider, op, err)
	}

	g := newGraph()
	var dangling []DanglingRef
	for _, rec := range records {
		kept := make([]string, 0, len(rec.Prerequisites))
		seen := make(map[string]bool, len(rec.Prerequisites))
		for _, pre := range rec.Prerequisites {
			if seen[pre] {
				continue
			}
			seen[pre] = true
			if !known[pre] {
				log.Warn("dropping dangling prerequisite", "lo_id", rec.ID, "prerequisite_id", pre)
				observability.Current().IncDanglingPrerequisite()
				dangling = append(dangling, DanglingRef{ID: rec.ID, Prerequisite: pre})
				continue
			}
			kept = append(kept, pre)
		}
		g.add(rec.ID, rec.EstimatedTime, kept)
	}
	return g, dangling, nil
}

// CorpusReport is the result of a whole-corpus health check.
type CorpusReport struct {
	Records  int           `json:"records"`
	Dangling []DanglingRef `json:"dangling,omitempty"`
	// Cycle is one prerequisite cycle, empty when the corpus is acyclic.
	Cycle []string `json:"cycle,omitempty"`
}

func (r *CorpusReport) Healthy() bool {
	return r != nil && len(r.Dangling) == 0 && len(r.Cycle) == 0
}

// ValidateCorpus reports dangling prerequisite references and the first
// cycle found across every record the provider lists.
func ValidateCorpus(ctx context.Context, p metadata.Provider, log *logger.Logger) (*CorpusReport, error) {
	g, dangling, err := buildFullGraph(ctx, p, log)
	if err != nil {
		return nil, err
	}
	return &CorpusReport{
		Records:  g.Len(),
		Dangling: dangling,
		Cycle:    g.FindCycle(nil),
	}, nil
}

// FindCycle returns one prerequisite cycle as a closed path (first id
// repeated at the end), or nil when the graph is acyclic. Only nodes for
// which include returns true are considered; a nil include covers all.
func (g *Graph) FindCycle(include func(id string) bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	in := func(id string) bool { return include == nil || include(id) }

	color := map[string]int{}
	type frame struct {
		id   string
		next int
	}
	for _, start := range g.order {
		if !in(start) || color[start] != white {
			continue
		}
		stack := []frame{{id: start}}
		color[start] = gray
		for len(stack) > 0 {
			top := len(stack) - 1
			pres := g.prereqs[stack[top].id]
			if stack[top].next >= len(pres) {
				color[stack[top].id] = black
				stack = stack[:top]
				continue
			}
			next := pres[stack[top].next]
			stack[top].next++
			if !in(next) {
				continue
			}
			switch color[next] {
			case gray:
				var cycle []string
				for i := range stack {
					if stack[i].id == next {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.id)
						}
						break
					}
				}
				return append(cycle, next)
			case white:
				color[next] = gray
				stack = append(stack, frame{id: next})
			}
		}
	}
	return nil
}
