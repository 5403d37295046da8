package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-carbon-must-flow/internal/analytics"
	"github.com/Veraticus/the-carbon-must-flow/internal/cli"
	"github.com/Veraticus/the-carbon-must-flow/internal/common"
	"github.com/Veraticus/the-carbon-must-flow/internal/service"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the emissions ledger",
		Long: `Aggregate the ledger into summaries, trends, budgets, benchmarks,
reduction opportunities and carbon costs. All subcommands accept --json.`,
	}
	cmd.PersistentFlags().Bool("json", false, "print as JSON")

	cmd.AddCommand(
		analysisCmd("summary", "Totals by scope and category", true, nil,
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, p service.DateRange) (any, func() string, error) {
				s, err := a.Summary(ctx, currentUser(), p)
				return s, func() string { return cli.RenderSummary(s) }, err
			}),
		analysisCmd("trend", "Month-over-month emissions", false,
			func(cmd *cobra.Command) {
				cmd.Flags().Int("months", analytics.DefaultTrendPeriods, "number of months")
			},
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, _ service.DateRange) (any, func() string, error) {
				months, _ := cmd.Flags().GetInt("months")
				t, err := a.Trend(ctx, currentUser(), months)
				return t, func() string { return cli.RenderTrend(t) }, err
			}),
		analysisCmd("budget", "Year-to-date progress against an annual target (kg CO2e)", false,
			func(cmd *cobra.Command) {
				cmd.Flags().Float64("target", 0, "annual target in kg CO2e")
				_ = cmd.MarkFlagRequired("target")
			},
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, _ service.DateRange) (any, func() string, error) {
				target, _ := cmd.Flags().GetFloat64("target")
				b, err := a.Budget(ctx, currentUser(), target)
				return b, func() string { return cli.RenderBudget(b) }, err
			}),
		analysisCmd("benchmark", "Compare carbon intensity with a sector average", true,
			func(cmd *cobra.Command) {
				cmd.Flags().String("sector", "", "industry sector (e.g. technology, retail)")
				cmd.Flags().Float64("revenue", 0, "revenue in EUR for the period")
				_ = cmd.MarkFlagRequired("revenue")
			},
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, p service.DateRange) (any, func() string, error) {
				sector, _ := cmd.Flags().GetString("sector")
				revenue, _ := cmd.Flags().GetFloat64("revenue")
				if revenue <= 0 {
					return nil, nil, common.NewUserError("--revenue must be positive", common.ErrInvalidInput)
				}
				b, err := a.Benchmark(ctx, currentUser(), sector, revenue, p)
				return b, func() string { return cli.RenderBenchmark(b) }, err
			}),
		analysisCmd("opportunities", "Reduction opportunities ranked by ROI", true, nil,
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, p service.DateRange) (any, func() string, error) {
				o, err := a.Opportunities(ctx, currentUser(), p)
				return o, func() string { return cli.RenderOpportunities(o) }, err
			}),
		analysisCmd("cost", "Price emissions at a carbon price per tonne", true,
			func(cmd *cobra.Command) {
				cmd.Flags().Float64("price", 0, "carbon price in EUR per tonne (default analytics.carbon_price)")
			},
			func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, p service.DateRange) (any, func() string, error) {
				price, _ := cmd.Flags().GetFloat64("price")
				c, err := a.CarbonCost(ctx, currentUser(), price, p)
				return c, func() string { return cli.RenderCarbonCost(c) }, err
			}),
	)
	return cmd
}

type analysisFunc func(ctx context.Context, a *analytics.Service, cmd *cobra.Command, p service.DateRange) (any, func() string, error)

// analysisCmd builds one analyze subcommand: it opens the ledger, runs fn and
// prints either JSON or the rendered view.
func analysisCmd(use, short string, period bool, flags func(*cobra.Command), fn analysisFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := periodFromFlags(cmd)
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			a, err := newAnalytics(store)
			if err != nil {
				return err
			}

			value, render, err := fn(cmd.Context(), a, cmd, p)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), value)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render())
			return nil
		},
	}
	if period {
		addPeriodFlags(cmd)
	}
	if flags != nil {
		flags(cmd)
	}
	return cmd
}
