package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/montecarlo"
)

var (
	logLevel string // Log verbosity level

	// CLI flags for `run`
	runScenario  scenarioFlags
	replications int    // Number of Monte Carlo replications
	workers      int    // Concurrent replications
	keepSamples  bool   // Include per-replication KPIs in the output
	traceSummary bool   // Include order trace summaries in the output
	outputPath   string // Result file; stdout when empty
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "twin-sim",
	Short: "Discrete-event digital twin of a two-echelon inventory network",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// runCmd executes a single run or a Monte Carlo study and prints the outcome as JSON
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the inventory simulation",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := runScenario.resolve(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Failed to load scenario: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		outcome, err := montecarlo.Run(ctx, cfg, replications, montecarlo.Options{
			Workers:      workers,
			KeepSamples:  keepSamples,
			TraceSummary: traceSummary,
			Progress:     progressLogger(),
		})
		switch {
		case errors.Is(err, sim.ErrCancelled):
			logrus.Warn("Simulation cancelled.")
			os.Exit(130)
		case err != nil:
			logrus.Fatalf("Simulation failed: %v", err)
		}

		out := io.Writer(os.Stdout)
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				logrus.Fatalf("Failed to create output file: %v", err)
			}
			defer f.Close()
			out = f
		}
		if err := writeOutcome(out, outcome); err != nil {
			logrus.Fatalf("Failed to write result: %v", err)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// writeOutcome prints the outcome as indented JSON.
func writeOutcome(w io.Writer, outcome *montecarlo.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(outcome); err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	return nil
}

// progressLogger logs Monte Carlo progress once per additional 10%.
func progressLogger() montecarlo.ProgressFunc {
	lastDecile := 0
	return func(completed, total int) {
		decile := completed * 10 / total
		if decile > lastDecile {
			lastDecile = decile
			logrus.Infof("%d/%d replications complete", completed, total)
		}
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runScenario.register(runCmd.Flags())
	runCmd.Flags().IntVar(&replications, "replications", 1, "Number of replications (1 = single run with timeseries)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent replications (0 = GOMAXPROCS)")
	runCmd.Flags().BoolVar(&keepSamples, "samples", false, "Include per-replication KPIs in Monte Carlo output")
	runCmd.Flags().BoolVar(&traceSummary, "trace", false, "Include order trace summaries")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Write the result to this file instead of stdout")

	// Attach subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
}
