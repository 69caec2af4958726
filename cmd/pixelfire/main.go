package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
	"github.com/torosent/pixelfire/internal/logging"
	"github.com/torosent/pixelfire/internal/orchestrator"
	"github.com/torosent/pixelfire/internal/output"
	"github.com/torosent/pixelfire/internal/threshold"
)

const progressInterval = time.Second

// Process exit codes. 99 and 98 let CI tell a failed verdict apart from a
// broken run.
const (
	exitOK               = 0
	exitError            = 1
	exitThresholdsFailed = 99
	exitInconclusive     = 98
)

// verdictError carries a non-passing verdict out of the run command.
type verdictError struct {
	verdict threshold.Verdict
}

func (e *verdictError) Error() string {
	return fmt.Sprintf("thresholds %s", e.verdict)
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var verr *verdictError
	if errors.As(err, &verr) {
		if verr.verdict == threshold.VerdictInconclusive {
			return exitInconclusive
		}
		return exitThresholdsFailed
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "pixelfire",
		Short:         "Constant-arrival-rate load generator for image resizing services",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadTest(cmd, stdout)
		},
	}
	config.RegisterFlags(root)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured scenarios against the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoadTest(cmd, stdout)
		},
	}
	config.RegisterFlags(runCmd)

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration and fixtures without sending traffic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validate(cmd, stdout)
		},
	}
	config.RegisterFlags(validateCmd)

	root.AddCommand(runCmd, validateCmd)
	return root
}

func runLoadTest(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	orch, err := orchestrator.New(cfg, orchestrator.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.NoProgress {
		progress = output.NewProgressReporter(orch, progressInterval, stdout)
		progress.Start()
	}

	report, err := orch.Run(ctx)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stdout)
	}
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, *report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, *report)
	}

	if cfg.SummaryExport != "" {
		format := output.ResolveFormat(cfg.SummaryExport, cfg.SummaryFormat)
		if err := output.Export(cfg.SummaryExport, format, *report); err != nil {
			return err
		}
		logger.Info("summary exported", zap.String("path", cfg.SummaryExport), zap.String("format", string(format)))
	}

	if report.Verdict != threshold.VerdictPass {
		return &verdictError{verdict: report.Verdict}
	}
	return nil
}

func validate(cmd *cobra.Command, stdout io.Writer) error {
	cfg, err := config.NewLoader().LoadFlags(cmd.Flags())
	if err != nil {
		return err
	}
	plan, err := orchestrator.Prepare(cfg)
	if err != nil {
		return err
	}

	counts := plan.Fixtures.Counts()
	fmt.Fprintf(stdout, "Target:     %s%s\n", cfg.BaseURL, cfg.PathPrefix)
	fmt.Fprintf(stdout, "Fixtures:   large=%d medium=%d small=%d\n", counts[fixture.Large], counts[fixture.Medium], counts[fixture.Small])
	fmt.Fprintln(stdout, "\nScenarios:")
	for _, s := range plan.Registry.Specs() {
		fmt.Fprintf(stdout, "  %-28s rate=%g/%s duration=%s workers=%d..%d expected=%d\n",
			s.Name, s.Rate, s.TimeUnit, s.Duration, s.MinWorkers, s.MaxWorkers, s.ExpectedAttempts())
	}
	fmt.Fprintln(stdout, "\nThresholds:")
	for _, t := range plan.Thresholds {
		fmt.Fprintf(stdout, "  %s\n", t.Raw)
	}
	fmt.Fprintln(stdout, "\nConfiguration OK")
	return nil
}
