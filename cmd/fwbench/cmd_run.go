package main

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fwbench/cmd/fwbench/ui"
	"fwbench/internal/bench"
	"fwbench/internal/coordinate"
	"fwbench/internal/store"
	"fwbench/internal/subject"
)

var (
	runSubjects   []string
	runTypes      []string
	runExecutions int
	runBaseURL    string
	runHTML       bool
	runCleanup    bool
	runKeepLast   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full benchmark pipeline",
	Long: `Measures every selected subject with the selected test types, then
consolidates, compares, and writes the run report. The dev server named
by base_url must already be serving the subjects.

Exit code is 0 when at least one subject produced usable data.`,
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().StringSliceVar(&runSubjects, "subjects", nil, "subject ids to run (default: all)")
	runCmd.Flags().StringSliceVar(&runTypes, "types", nil, "test types: lighthouse, bundle, runtime (default: all)")
	runCmd.Flags().IntVar(&runExecutions, "executions", 0, "browser probe repetitions (median kept)")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "dev server base URL")
	runCmd.Flags().BoolVar(&runHTML, "html", false, "also render the report as HTML")
	runCmd.Flags().BoolVar(&runCleanup, "cleanup", false, "prune old runs after reporting")
	runCmd.Flags().IntVar(&runKeepLast, "keep-last", 0, "runs to keep with --cleanup (default: config keep_runs)")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	subjects, err := subject.LoadSubjects(cfg.SubjectsFile)
	if err != nil {
		return err
	}
	if len(runSubjects) > 0 {
		subjects, err = subject.Filter(subjects, runSubjects)
		if err != nil {
			return err
		}
	}
	types, err := bench.ParseTestTypes(runTypes)
	if err != nil {
		return err
	}

	if runBaseURL != "" {
		cfg.BaseURL = runBaseURL
	}
	if runExecutions > 0 {
		cfg.Runner.Executions = runExecutions
	}

	st, err := store.New(cfg.ResultsDir)
	if err != nil {
		return err
	}

	opts := coordinate.Options{
		Runner:     cfg.RunnerOptions(),
		Thresholds: cfg.Thresholds,
		Pacing:     cfg.Pacing(),
		HTML:       runHTML,
	}
	if runCleanup {
		opts.KeepRuns = cmp.Or(runKeepLast, cfg.KeepRuns)
	}

	logger.Info("starting benchmark run",
		zap.Int("subjects", len(subjects)),
		zap.Int("types", len(types)),
		zap.String("base_url", cfg.BaseURL))

	coord := coordinate.New(st, opts)
	out, err := coord.Run(cmd.Context(), subjects, types)
	if err != nil {
		return err
	}

	printOutcome(out)

	if !out.Report.Usable() {
		return fmt.Errorf("run %s produced no usable data", out.RunID)
	}
	logger.Info("benchmark run complete",
		zap.String("run_id", out.RunID),
		zap.Int("measurements", out.Measured))
	return nil
}

func printOutcome(out coordinate.RunOutcome) {
	styles := ui.DefaultStyles()

	table := ui.NewTable(
		fmt.Sprintf("Benchmark Run %s", out.RunID),
		"Subject", "Overall", "Loading", "Runtime", "Bundle", "Memory", "Tests",
	)
	for _, row := range out.Report.Table {
		name := row.Subject
		if row.Display != "" {
			name = row.Display
		}
		table.AddRow(name,
			scoreCell(styles, row.Scores.Overall),
			scoreCell(styles, row.Scores.Loading),
			scoreCell(styles, row.Scores.Runtime),
			scoreCell(styles, row.Scores.Bundle),
			scoreCell(styles, row.Scores.Memory),
			testStateCell(row.TestState),
		)
	}
	fmt.Println(table.View(styles))

	if len(out.Report.TopPerformers) > 0 {
		fmt.Println(styles.Bold.Render("Top performers:"))
		for _, tp := range out.Report.TopPerformers {
			line := fmt.Sprintf("  %s  %.1f", tp.Subject, tp.Overall)
			if len(tp.LeadingIn) > 0 {
				line += styles.Muted.Render("  leads: " + strings.Join(tp.LeadingIn, ", "))
			}
			fmt.Println(line)
		}
	}
	for _, note := range out.Report.Insights.Notable {
		fmt.Println(styles.Muted.Render("  note: " + note))
	}
	if len(out.Errors) > 0 {
		fmt.Println(styles.Bad.Render(fmt.Sprintf("%d error(s) during the run; see logs", len(out.Errors))))
	}
}

func scoreCell(styles ui.Styles, s bench.Score) string {
	if !s.Valid {
		return styles.Muted.Render("-")
	}
	return styles.ScoreStyle(s.Value).Render(fmt.Sprintf("%.1f", s.Value))
}

func testStateCell(states map[bench.TestType]bench.OutcomeStatus) string {
	parts := make([]string, 0, len(states))
	for _, tt := range bench.AllTestTypes() {
		st, ok := states[tt]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%s", tt, st))
	}
	return strings.Join(parts, " ")
}
