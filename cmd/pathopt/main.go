package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-pathopt/internal/app"
	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/metadata"
	"github.com/yungbote/neurobridge-pathopt/internal/modules/learning/pathopt"
)

type rootFlags struct {
	config string
	source string
	path   string
	json   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		var perr *pathopt.Error
		if errors.As(err, &perr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:   "pathopt",
		Short: "Pick the learning objects that fit a study-time budget",
		Long: `pathopt expands a selection of learning objects to everything they
depend on, orders it so prerequisites come first and picks the most valuable
subset that fits the time budget. Foundational objects (ends of prerequisite
chains) are weighted higher.`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&flags.source, "source", "", "Metadata source: file, postgres, sqlite, neo4j")
	rootCmd.PersistentFlags().StringVar(&flags.path, "path", "", "Corpus file (file source) or database file (sqlite source)")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(optimizeCmd(flags))
	rootCmd.AddCommand(batchCmd(flags))
	rootCmd.AddCommand(inspectCmd(flags))
	rootCmd.AddCommand(validateCmd(flags))
	rootCmd.AddCommand(importCmd(flags))
	return rootCmd
}

// openApp loads config, applies command-line overrides and wires the app.
func openApp(ctx context.Context, flags *rootFlags) (*app.App, error) {
	cfg, err := app.LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}
	if s := strings.TrimSpace(flags.source); s != "" {
		cfg.Source.Kind = app.SourceKind(strings.ToLower(s))
	}
	if p := strings.TrimSpace(flags.path); p != "" {
		cfg.Source.Path = p
	}
	return app.New(ctx, cfg, nil)
}

func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, flags)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close: %v\n", cerr)
		}
	}()
	return fn(ctx, a)
}

func optimizeCmd(flags *rootFlags) *cobra.Command {
	var budget int
	var known []string
	cmd := &cobra.Command{
		Use:   "optimize <learning-object-id>...",
		Short: "Select learning objects for a time budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				res, err := a.Optimizer.Optimize(ctx, pathopt.Request{
					InitialSelection: args,
					TimeBudget:       budget,
					KnownTopics:      known,
				})
				if err != nil {
					return err
				}
				if flags.json {
					return outputJSON(cmd.OutOrStdout(), res)
				}
				printResult(cmd.OutOrStdout(), res, budget)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&budget, "budget", 0, "Time budget in minutes")
	cmd.Flags().StringSliceVar(&known, "known", nil, "Learning objects already mastered (repeatable or comma separated)")
	_ = cmd.MarkFlagRequired("budget")
	return cmd
}

type batchOutput struct {
	Result *pathopt.SelectionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func batchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <requests.yaml>",
		Short: "Run a YAML list of optimization requests concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := loadRequests(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				results := a.Optimizer.OptimizeBatch(ctx, reqs)
				failed := 0
				out := make([]batchOutput, len(results))
				for i, r := range results {
					out[i].Result = r.Result
					if r.Err != nil {
						out[i].Error = r.Err.Error()
						failed++
					}
				}
				if flags.json {
					if err := outputJSON(cmd.OutOrStdout(), out); err != nil {
						return err
					}
				} else {
					w := cmd.OutOrStdout()
					for i, r := range out {
						fmt.Fprintf(w, "request %d:\n", i+1)
						if r.Error != "" {
							fmt.Fprintf(w, "  error: %s\n", r.Error)
							continue
						}
						printResult(w, r.Result, reqs[i].TimeBudget)
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d requests failed", failed, len(reqs))
				}
				return nil
			})
		},
	}
}

func loadRequests(path string) ([]pathopt.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}
	var reqs []pathopt.Request
	if err := yaml.Unmarshal(raw, &reqs); err != nil {
		return nil, fmt.Errorf("parse requests %s: %w", path, err)
	}
	return reqs, nil
}

type inspectOutput struct {
	Closure          []string        `json:"closure"`
	TopologicalOrder []string        `json:"topological_order"`
	Chains           []pathopt.Chain `json:"chains"`
	Foundational     []string        `json:"foundational"`
}

func inspectCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <learning-object-id>...",
		Short: "Show closure, order and prerequisite chains without a budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				plan, err := a.Optimizer.Plan(ctx, args)
				if err != nil {
					return err
				}
				foundational := pathopt.FoundationalSet(plan.Chains)
				out := inspectOutput{
					Closure:          plan.Closure,
					TopologicalOrder: plan.TopologicalOrder,
					Chains:           plan.Chains,
				}
				for _, id := range plan.TopologicalOrder {
					if foundational[id] {
						out.Foundational = append(out.Foundational, id)
					}
				}
				if flags.json {
					return outputJSON(cmd.OutOrStdout(), out)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "closure (%d): %s\n", len(out.Closure), strings.Join(out.Closure, ", "))
				fmt.Fprintf(w, "order: %s\n", strings.Join(out.TopologicalOrder, " -> "))
				fmt.Fprintf(w, "foundational: %s\n", strings.Join(out.Foundational, ", "))
				fmt.Fprintf(w, "chains:\n")
				for _, c := range out.Chains {
					fmt.Fprintf(w, "  %s\n", strings.Join(c, " -> "))
				}
				return nil
			})
		},
	}
}

func validateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the whole corpus for dangling prerequisites and cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				report, err := pathopt.ValidateCorpus(ctx, a.Provider, a.Log)
				if err != nil {
					return err
				}
				if flags.json {
					if err := outputJSON(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					w := cmd.OutOrStdout()
					fmt.Fprintf(w, "records: %d\n", report.Records)
					for _, d := range report.Dangling {
						fmt.Fprintf(w, "dangling: %s requires missing %s\n", d.ID, d.Prerequisite)
					}
					if len(report.Cycle) > 0 {
						fmt.Fprintf(w, "cycle: %s\n", strings.Join(report.Cycle, " -> "))
					}
				}
				if !report.Healthy() {
					return errors.New("corpus has problems")
				}
				return nil
			})
		},
	}
}

func importCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <corpus-file>",
		Short: "Load a JSON or YAML corpus into the configured database or graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := metadata.LoadFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				n, err := a.Import(ctx, records)
				if err != nil {
					return err
				}
				if flags.json {
					return outputJSON(cmd.OutOrStdout(), map[string]int{"imported": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d learning objects into %s\n", n, a.Source.Kind)
				return nil
			})
		},
	}
}

func printResult(w io.Writer, res *pathopt.SelectionResult, budget int) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "selected %d of %d (time %d/%d, value %d)\n",
		len(res.OrderedIDs), len(res.Closure), res.TotalTime, budget, res.TotalValue)
	for i, id := range res.OrderedIDs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, id)
	}
	for _, c := range res.Chains {
		mark := " "
		if c.Satisfied {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s chain %s (time %d, value %d)\n", mark, strings.Join(c.IDs, " -> "), c.Time, c.Value)
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
