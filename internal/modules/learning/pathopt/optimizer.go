// Package pathopt selects which learning objects go into a study plan: it
// expands a selection to its prerequisite closure, orders it topologically,
// weights foundational material and runs a 0/1 knapsack under a time budget.
package pathopt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
	"github.com/yungbote/neurobridge-pathopt/internal/observability"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

const tracerName = "github.com/yungbote/neurobridge-pathopt/pathopt"

type Request struct {
	InitialSelection []string `json:"initial_selection" yaml:"initial_selection"`
	// Minutes.
	TimeBudget  int      `json:"time_budget" yaml:"time_budget"`
	KnownTopics []string `json:"known_topics,omitempty" yaml:"known_topics"`
}

type SelectionResult struct {
	CallID     string   `json:"call_id"`
	OrderedIDs []string `json:"ordered_ids"`
	TotalTime  int      `json:"total_time"`
	TotalValue int      `json:"total_value"`

	Closure          []string      `json:"closure"`
	TopologicalOrder []string      `json:"topological_order"`
	Chains           []ChainReport `json:"chains"`
}

// Plan is everything the optimizer derives from a selection before the
// budget is applied.
type Plan struct {
	Graph            *Graph
	Selection        []string
	Closure          []string
	TopologicalOrder []string
	Chains           []Chain
}

// Optimizer is stateless between calls and safe for concurrent use.
type Optimizer struct {
	provider metadata.Provider
	cfg      Config
	log      *logger.Logger
	tracer   trace.Tracer
}

func New(provider metadata.Provider, cfg Config, log *logger.Logger) *Optimizer {
	return &Optimizer{
		provider: provider,
		cfg:      cfg.normalized(),
		log:      logger.OrNop(log).With("service", "PathOptimizer"),
		tracer:   otel.Tracer(tracerName),
	}
}

func (o *Optimizer) Config() Config { return o.cfg }

// Optimize runs one full selection. Caller input errors are reported before
// any metadata lookup; a prerequisite cycle fails the whole call.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*SelectionResult, error) {
	const op = "pathopt.Optimize"
	callID := uuid.NewString()
	log := o.log.With("call_id", callID)

	ctx, span := o.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("pathopt.call_id", callID),
		attribute.Int("pathopt.selection_size", len(req.InitialSelection)),
		attribute.Int("pathopt.time_budget", req.TimeBudget),
	))
	defer span.End()

	start := time.Now()
	res, err := o.optimize(ctx, log, callID, req)
	if err != nil {
		code := string(CodeOf(err))
		if code == "" {
			code = "internal"
		}
		observability.Current().ObserveOptimize(code, time.Since(start), 0, 0, 0, req.TimeBudget)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(CodeOf(err)))
		log.Warn("optimization failed", "code", CodeOf(err), "error", err)
		return nil, err
	}
	observability.Current().ObserveOptimize("", time.Since(start), len(res.Closure), len(res.OrderedIDs), res.TotalTime, req.TimeBudget)
	span.SetAttributes(
		attribute.Int("pathopt.closure_size", len(res.Closure)),
		attribute.Int("pathopt.selected", len(res.OrderedIDs)),
		attribute.Int("pathopt.total_time", res.TotalTime),
		attribute.Int("pathopt.total_value", res.TotalValue),
	)
	return res, nil
}

func (o *Optimizer) optimize(ctx context.Context, log *logger.Logger, callID string, req Request) (*SelectionResult, error) {
	const op = "pathopt.Optimize"
	if req.TimeBudget < 0 {
		return nil, NewError(CodeInvalidInput, op, fmt.Sprintf("time budget must be non-negative, got %d", req.TimeBudget), nil)
	}
	if req.TimeBudget > o.cfg.MaxTimeBudget {
		return nil, NewError(CodeInvalidInput, op, fmt.Sprintf("time budget %d exceeds limit %d", req.TimeBudget, o.cfg.MaxTimeBudget), nil)
	}

	plan, err := o.plan(ctx, log, req.InitialSelection)
	if err != nil {
		return nil, err
	}

	known := toSet(normalizeIDs(req.KnownTopics))
	items := BuildItems(plan.Graph, plan.TopologicalOrder, FoundationalSet(plan.Chains), known, o.cfg)
	sched := Knapsack(items, req.TimeBudget)

	ordered := sched.Selected
	if ordered == nil {
		ordered = []string{}
	}
	res := &SelectionResult{
		CallID:           callID,
		OrderedIDs:       ordered,
		TotalTime:        sched.TotalTime,
		TotalValue:       sched.TotalValue,
		Closure:          plan.Closure,
		TopologicalOrder: plan.TopologicalOrder,
		Chains:           ReportChains(plan.Graph, plan.Chains, plan.Selection, ordered),
	}

	for _, c := range res.Chains {
		if !c.Satisfied {
			log.Info("chain not satisfied", "start", c.IDs[0], "terminal", c.IDs[len(c.IDs)-1], "chain_time", c.Time)
		}
	}
	log.Info("optimization complete",
		"selection", len(plan.Selection),
		"closure", len(plan.Closure),
		"chains", len(plan.Chains),
		"budget", req.TimeBudget,
		"selected", len(res.OrderedIDs),
		"total_time", res.TotalTime,
		"total_value", res.TotalValue,
	)
	return res, nil
}

// Plan builds the prerequisite graph for selection and derives its closure,
// topological order and chains. An empty selection yields an empty plan.
func (o *Optimizer) Plan(ctx context.Context, selection []string) (*Plan, error) {
	return o.plan(ctx, o.log, selection)
}

func (o *Optimizer) plan(ctx context.Context, log *logger.Logger, selection []string) (*Plan, error) {
	selection = normalizeIDs(selection)

	provider := o.provider
	if s, ok := provider.(metadata.Snapshotter); ok {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, Wrap(CodeProvider, "pathopt.Plan", err)
		}
		provider = snap
	}

	g, err := BuildGraph(ctx, provider, selection, log)
	if err != nil {
		return nil, err
	}
	return PlanFromGraph(g, selection)
}

// PlanFromGraph derives a plan from an already built graph, e.g. one from
// BuildFullGraph shared across calls. Selected ids must be in g.
func PlanFromGraph(g *Graph, selection []string) (*Plan, error) {
	selection = normalizeIDs(selection)
	var unknown []string
	for _, id := range selection {
		if !g.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, NewError(CodeUnknownLearningObject, "pathopt.Plan",
			fmt.Sprintf("no metadata for %s", strings.Join(unknown, ", ")), nil, unknown...)
	}

	closure := Closure(g, selection)
	order, err := TopologicalOrder(g, closure)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Graph:            g,
		Selection:        selection,
		Closure:          closure,
		TopologicalOrder: order,
		Chains:           IdentifyChains(g, selection),
	}, nil
}

// normalizeIDs trims ids and drops blanks and repeats, keeping first
// occurrence order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
