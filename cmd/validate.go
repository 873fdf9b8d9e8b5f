package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stochastix-twin/twin-sim/sim"
)

var validateScenario scenarioFlags

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario configuration and list every invalid field",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := validateScenario.resolve(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Failed to load scenario: %v", err)
		}
		if !reportValidation(cmd.OutOrStdout(), cfg) {
			os.Exit(1)
		}
	},
}

// reportValidation prints the validation outcome and reports whether cfg is valid.
func reportValidation(w io.Writer, cfg sim.SimulationConfig) bool {
	err := cfg.Validate()
	if err == nil {
		fmt.Fprintf(w, "configuration is valid: %d days, store (s=%d, S=%d), dc (s=%d, S=%d)\n",
			cfg.Days, cfg.StoreReorderPoint, cfg.StoreOrderUpTo, cfg.DCReorderPoint, cfg.DCOrderUpTo)
		return true
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			fmt.Fprintln(w, e)
		}
	} else {
		fmt.Fprintln(w, err)
	}
	return false
}

func init() {
	validateScenario.register(validateCmd.Flags())
}
