package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonzs/app"
	"gonzs/domain/association"
	"gonzs/internal"
	"gonzs/internal/config"
	"gonzs/internal/container"
	"gonzs/internal/report"
	"gonzs/internal/testkit"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gonzs",
		Short: "Permutation-based association with normalized z-scores",
		Long: `gonzs compares a query label set against a reference label set by permutation
testing and reports the z-score (ZS) and the size-normalized z-score (nZS).

Defaults come from the environment (ITERATIONS, FRACTIONS, REPLICATES, EVALUATOR,
SEED, WORKERS, STRICT_DEGENERATE, UNIVERSE_SIZE, DATABASE_URL); flags override them.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newTestCmd(),
		newSweepCmd(),
		newReplicateCmd(),
		newEvaluatorsCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// analysisFlags are shared by test, sweep and replicate
type analysisFlags struct {
	queryPath     string
	referencePath string
	scenario      string
	universeSize  int
	iterations    int
	fractions     string
	replicates    int
	evaluator     string
	seed          int64
	workers       int
	strict        bool
	asJSON        bool
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.queryPath, "query", "", "Query labels (.xlsx first column of Sheet1, or .csv)")
	cmd.Flags().StringVar(&f.referencePath, "reference", "", "Reference labels (.xlsx or .csv)")
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "Synthetic input instead of files: enriched|random|degenerate")
	cmd.Flags().IntVar(&f.universeSize, "universe", 0, "Universe size U; labels are drawn from [1, U]")
	cmd.Flags().IntVar(&f.iterations, "iterations", association.DefaultIterations, "Permutation draws per test")
	cmd.Flags().StringVar(&f.fractions, "fractions", "", "Comma separated sub-sample fractions in (0, 1]")
	cmd.Flags().IntVar(&f.replicates, "replicates", association.DefaultReplicates, "Independent sweep replicates")
	cmd.Flags().StringVar(&f.evaluator, "evaluator", association.DefaultEvaluator, "Evaluation function")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for deterministic operations")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Goroutines per level (0 = configured default)")
	cmd.Flags().BoolVar(&f.strict, "strict-degenerate", false, "Abort on a degenerate null distribution")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the raw result as JSON")
}

// session is the wired container plus the resolved request of one command
type session struct {
	container *container.Container
	request   app.AnalysisRequest
	label     string
}

func (f *analysisFlags) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	analysis := cfg.Analysis.Config
	flags := cmd.Flags()
	if flags.Changed("iterations") {
		analysis.Iterations = f.iterations
	}
	if flags.Changed("fractions") {
		fractions, err := config.ParseFractions(f.fractions)
		if err != nil {
			return nil, err
		}
		analysis.Fractions = fractions
	}
	if flags.Changed("replicates") {
		analysis.Replicates = f.replicates
	}
	if flags.Changed("evaluator") {
		analysis.Evaluator = f.evaluator
	}
	if flags.Changed("seed") {
		analysis.Seed = f.seed
	}
	if flags.Changed("strict-degenerate") {
		analysis.StrictDegenerate = f.strict
	}
	if f.workers > 0 {
		analysis.Workers = f.workers
	}
	cfg.Analysis.Config = analysis

	logger := internal.DefaultLogger
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Enabled() {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := c.InitWithDatabase(cmd.Context(), db); err != nil {
			db.Close()
			return nil, err
		}
	}

	req, label, err := f.inputs(cmd.Context(), c, cfg.Analysis.UniverseSize)
	if err != nil {
		c.Shutdown(cmd.Context())
		return nil, err
	}
	req.Config = analysis

	return &session{container: c, request: req, label: label}, nil
}

func (f *analysisFlags) inputs(ctx context.Context, c *container.Container, configuredUniverse int) (app.AnalysisRequest, string, error) {
	if f.scenario != "" {
		scenario, err := testkit.ScenarioByName(f.scenario, f.seed)
		if err != nil {
			return app.AnalysisRequest{}, "", err
		}
		return app.AnalysisRequest{
			Query:        scenario.Query,
			Reference:    scenario.Reference,
			UniverseSize: scenario.Universe,
		}, "scenario " + scenario.Name, nil
	}

	if f.queryPath == "" || f.referencePath == "" {
		return app.AnalysisRequest{}, "", fmt.Errorf("--query and --reference are required unless --scenario is set")
	}

	universe := f.universeSize
	if universe == 0 {
		universe = configuredUniverse
	}
	if universe == 0 {
		return app.AnalysisRequest{}, "", fmt.Errorf("--universe (or UNIVERSE_SIZE) is required with label files")
	}

	query, err := c.Reader.ReadLabelSet(ctx, f.queryPath)
	if err != nil {
		return app.AnalysisRequest{}, "", fmt.Errorf("failed to read query: %w", err)
	}
	reference, err := c.Reader.ReadLabelSet(ctx, f.referencePath)
	if err != nil {
		return app.AnalysisRequest{}, "", fmt.Errorf("failed to read reference: %w", err)
	}

	return app.AnalysisRequest{
		Query:        query,
		Reference:    reference,
		UniverseSize: universe,
	}, filepath.Base(f.queryPath) + " vs " + filepath.Base(f.referencePath), nil
}

func (s *session) close(ctx context.Context) {
	s.container.Shutdown(ctx)
}

func describeInputs(s *session) {
	fmt.Printf("🔬 %s: |query|=%d |reference|=%d U=%d evaluator=%s seed=%d\n",
		s.label, s.request.Query.Len(), s.request.Reference.Len(), s.request.UniverseSize,
		s.request.Config.Evaluator, s.request.Config.Seed)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func newTestCmd() *cobra.Command {
	flags := &analysisFlags{}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run one permutation test of the full query",
		Long: `Run one permutation test of the full query against the reference.

Example: gonzs test --scenario enriched --iterations 5000 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			result, err := s.container.Service.Test(cmd.Context(), s.request)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(result)
			}

			describeInputs(s)
			o := result.Outcome
			fmt.Printf("\n📊 PERMUTATION TEST (%d iterations)\n", o.Iterations)
			fmt.Printf("Observed:  %.4f\n", o.Observed)
			fmt.Printf("Null:      mean %.4f, sd %.4f\n", o.NullMean, o.NullStdDev)
			fmt.Printf("ZS:        %.4f\n", o.ZScore)
			fmt.Printf("nZS:       %.4f (sample size %d)\n", o.NormalizedZScore, o.SampleSize)
			if !o.Finite() {
				fmt.Printf("⚠️  degenerate null distribution: ZS is undefined\n")
			}
			printMeta(result.AnalysisMeta)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newSweepCmd() *cobra.Command {
	flags := &analysisFlags{}
	var substitute bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Test fresh sub-samples of the query at each fraction",
		Long: `Draw a fresh sub-sample of round(f * |query|) labels for every fraction f
and test it against the reference.

Example: gonzs sweep --query q.xlsx --reference r.csv --universe 100000 --fractions 0.1,0.5,1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			result, err := s.container.Service.Sweep(cmd.Context(), s.request)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(result)
			}

			table := result.Table
			policy := report.SubstitutionPolicy{
				Threshold: s.container.Config.Report.SubstituteThreshold,
				Value:     s.container.Config.Report.SubstituteValue,
			}
			if substitute {
				table, _ = policy.Apply(table)
			}

			describeInputs(s)
			fmt.Printf("\n📊 SWEEP\n")
			fmt.Printf("%-9s %-12s %-12s %-12s %s\n", "fraction", "sample size", "ZS", "nZS", "")
			for _, row := range table.Rows {
				flag := ""
				if row.Degenerate {
					flag = "degenerate"
				}
				fmt.Printf("%-9.3f %-12d %-12.4f %-12.4f %s\n", row.Fraction, row.SampleSize, row.ZScore, row.NormalizedZScore, flag)
			}
			if substitute {
				fmt.Printf("nZS substituted with %g where |ZS| < %g\n", policy.Value, policy.Threshold)
			}
			printMeta(result.AnalysisMeta)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&substitute, "substitute", false, "Apply the configured nZS substitution policy to the printed table")
	return cmd
}

func newReplicateCmd() *cobra.Command {
	flags := &analysisFlags{}
	var outPath string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Repeat the sweep and summarize ZS and nZS per sample size",
		Long: `Repeat the sweep with independent random streams and group the outcomes
by sample size. Non-finite values are kept and tagged; summaries use finite
values only.

Example: gonzs replicate --scenario enriched --replicates 20 --out replicates.xlsx --report summary.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			result, err := s.container.Service.Replicate(cmd.Context(), s.request)
			if err != nil {
				return err
			}
			summary := report.Summarize(result.Collection)

			if outPath != "" {
				if err := s.container.Writer.WriteReplicates(outPath, result.Collection); err != nil {
					return err
				}
			}
			if reportPath != "" {
				if err := writeReport(reportPath, s.label, summary); err != nil {
					return err
				}
			}
			if flags.asJSON {
				return printJSON(map[string]interface{}{"result": result, "summary": summary})
			}

			describeInputs(s)
			fmt.Println()
			fmt.Print(report.RenderMarkdown("Replicates of "+s.label, summary))
			printScaling(summary)
			if outPath != "" {
				fmt.Printf("\n💾 Workbook saved to: %s\n", outPath)
			}
			if reportPath != "" {
				fmt.Printf("💾 Report saved to: %s\n", reportPath)
			}
			printMeta(result.AnalysisMeta)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&outPath, "out", "", "Write the replicate workbook (.xlsx)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the summary as Markdown (.md) or HTML (.html)")
	return cmd
}

func newEvaluatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluators",
		Short: "List the registered evaluation functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c, err := container.New(cfg, nil)
			if err != nil {
				return err
			}
			for _, sense := range c.Senses.Senses() {
				fmt.Printf("%-14s %s\n", sense.Name(), sense.Description())
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result cache schema in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			db, err := sqlx.Connect("postgres", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			c, err := container.New(cfg, nil)
			if err != nil {
				db.Close()
				return err
			}
			defer c.Shutdown(cmd.Context())
			if err := c.InitWithDatabase(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Println("✅ association_results is up to date")
			return nil
		},
	}
}

func writeReport(path, title string, summary report.Summary) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		data = report.RenderHTML(title, summary)
	case ".md", ".markdown":
		data = []byte(report.RenderMarkdown(title, summary))
	default:
		return fmt.Errorf("unsupported report format %q (use .md or .html)", filepath.Ext(path))
	}
	return os.WriteFile(path, data, 0644)
}

// printScaling compares the smallest and largest sample sizes
func printScaling(summary report.Summary) {
	if len(summary.Sizes) < 2 {
		return
	}
	small := summary.Sizes[0].SampleSize
	large := summary.Sizes[len(summary.Sizes)-1].SampleSize
	result, err := report.ScalingCheck(summary, small, large, 0)
	if err != nil {
		return
	}
	fmt.Printf("\n📈 SCALING %d -> %d\n", small, large)
	fmt.Printf("|mean ZS| ratio:      %.3f\n", result.ZScoreRatio)
	fmt.Printf("mean nZS change:      %.1f%%\n", result.NormalizedChange*100)
	fmt.Printf("nZS stable:           %t\n", result.NormalizedStable)
}

func printMeta(meta app.AnalysisMeta) {
	cached := ""
	if meta.Cached {
		cached = " (cached)"
	}
	fmt.Printf("\nanalysis %s fingerprint %s%s, %dms\n", meta.AnalysisID, meta.Fingerprint.Short(), cached, meta.RuntimeMs)
}
