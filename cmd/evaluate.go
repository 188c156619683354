package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/evaluation"
	"github.com/newhook/plclog/internal/synthetic"
)

var (
	flagEvalCases       int
	flagEvalSeed        int64
	flagEvalWorkers     int
	flagEvalCaseTimeout time.Duration
	flagEvalOut         string
	flagEvalMinAccuracy float64
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the configured services against synthetic logs",
	Long: `Generate synthetic build logs with known labels, run them through the
parser and the configured classification and suggestion services, and write a
JSON report with per-case results and aggregate accuracy.

A case whose service call fails is recorded as failed and the run continues.
Interrupting the run stops new cases from starting; the report still covers
every case, with the ones that never started marked skipped.

Defaults come from the [evaluation] section of the config file.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().IntVarP(&flagEvalCases, "cases", "n", 0, "number of synthetic cases")
	evaluateCmd.Flags().Int64Var(&flagEvalSeed, "seed", 0, "base seed")
	evaluateCmd.Flags().IntVar(&flagEvalWorkers, "workers", 0, "cases evaluated concurrently")
	evaluateCmd.Flags().DurationVar(&flagEvalCaseTimeout, "case-timeout", 0, "bound on the service calls of one case")
	evaluateCmd.Flags().StringVarP(&flagEvalOut, "out", "o", "", "report path")
	evaluateCmd.Flags().Float64Var(&flagEvalMinAccuracy, "min-accuracy", 0, "exit non-zero when overall accuracy is below this fraction")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := GetContext()
	cfg := getConfig()

	n := cfg.Evaluation.GetCases()
	if flagEvalCases > 0 {
		n = flagEvalCases
	}
	seed := cfg.Evaluation.GetSeed()
	if cmd.Flags().Changed("seed") {
		seed = flagEvalSeed
	}
	opts := evaluation.Options{
		Workers:     cfg.Evaluation.GetWorkers(),
		CaseTimeout: cfg.Evaluation.GetCaseTimeout(),
		Parser:      newParser(cfg),
	}
	if flagEvalWorkers > 0 {
		opts.Workers = flagEvalWorkers
	}
	if flagEvalCaseTimeout > 0 {
		opts.CaseTimeout = flagEvalCaseTimeout
	}
	out := cfg.Evaluation.GetOutput()
	if flagEvalOut != "" {
		out = flagEvalOut
	}

	gen, err := synthetic.New()
	if err != nil {
		return err
	}
	cases, err := gen.GenerateN(seed, n)
	if err != nil {
		return fmt.Errorf("failed to generate cases: %w", err)
	}

	classifier, suggester, err := newServices(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Evaluating %d cases (%s mode, %d workers)...\n", n, cfg.Service.GetMode(), opts.Workers)
	report := evaluation.New(classifier, suggester, opts).Run(ctx, cases)

	evaluation.PrintReport(os.Stdout, report, 80)
	if err := evaluation.WriteReport(out, report); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", out)

	if ctx.Err() != nil {
		return fmt.Errorf("evaluation interrupted: %d cases skipped", report.Summary.Skipped)
	}
	if flagEvalMinAccuracy > 0 && report.Summary.OverallAccuracy < flagEvalMinAccuracy {
		return fmt.Errorf("overall accuracy %.2f%% below minimum %.2f%%",
			report.Summary.OverallAccuracy*100, flagEvalMinAccuracy*100)
	}
	return nil
}
