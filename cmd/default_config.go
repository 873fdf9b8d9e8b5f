package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/stochastix-twin/twin-sim/sim"
)

// scenarioFlags are per-field overrides applied on top of the scenario file.
// A flag only overrides the file when it was set explicitly (Changed), so
// flag defaults never clobber file values.
type scenarioFlags struct {
	configPath string

	days              int
	demandLambda      float64
	peaks             []string
	storeReorderPoint int
	storeOrderUpTo    int
	dcReorderPoint    int
	dcOrderUpTo       int
	initialStore      int
	initialDC         int
	leadTimeMean      float64
	leadTimeStd       float64
	disruptionProb    float64
	disruptionDelay   float64
	seed              int64
}

func (f *scenarioFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Scenario YAML file (built-in reference scenario when empty)")

	fs.IntVar(&f.days, "days", 365, "Simulation horizon in days")
	fs.Float64Var(&f.demandLambda, "demand-lambda", 20, "Mean Store demand arrivals per day")
	fs.StringSliceVar(&f.peaks, "peak", nil, "Demand peak as day:multiplier or first-last:multiplier (repeatable)")
	fs.IntVar(&f.storeReorderPoint, "store-reorder-point", 80, "Store reorder point s")
	fs.IntVar(&f.storeOrderUpTo, "store-order-up-to", 160, "Store order-up-to level S")
	fs.IntVar(&f.dcReorderPoint, "dc-reorder-point", 300, "DC reorder point s")
	fs.IntVar(&f.dcOrderUpTo, "dc-order-up-to", 600, "DC order-up-to level S")
	fs.IntVar(&f.initialStore, "initial-store", 120, "Initial Store on-hand units")
	fs.IntVar(&f.initialDC, "initial-dc", 500, "Initial DC on-hand units")
	fs.Float64Var(&f.leadTimeMean, "lead-time-mean", 7, "Mean shipment lead time in days")
	fs.Float64Var(&f.leadTimeStd, "lead-time-std", 2, "Lead time standard deviation in days")
	fs.Float64Var(&f.disruptionProb, "disruption-prob", 0, "Probability that a shipment is disrupted")
	fs.Float64Var(&f.disruptionDelay, "disruption-delay", 0, "Extra days added to a disrupted shipment")
	fs.Int64Var(&f.seed, "seed", 0, "Base seed (random when neither flag nor file sets one)")
}

// resolve loads the scenario file (or the reference scenario) and applies the
// explicitly set flags. The result is not validated.
func (f *scenarioFlags) resolve(fs *pflag.FlagSet) (sim.SimulationConfig, error) {
	cfg := sim.DefaultConfig()
	if f.configPath != "" {
		loaded, err := sim.LoadConfig(f.configPath)
		if err != nil {
			return sim.SimulationConfig{}, err
		}
		cfg = loaded
	}

	if fs.Changed("days") {
		cfg.Days = f.days
	}
	if fs.Changed("demand-lambda") {
		cfg.DemandLambdaPerDay = f.demandLambda
	}
	if fs.Changed("peak") {
		cfg.DemandPeaks = cfg.DemandPeaks[:0:0]
		for _, raw := range f.peaks {
			peak, err := parsePeak(raw)
			if err != nil {
				return sim.SimulationConfig{}, err
			}
			cfg.DemandPeaks = append(cfg.DemandPeaks, peak)
		}
	}
	if fs.Changed("store-reorder-point") {
		cfg.StoreReorderPoint = f.storeReorderPoint
	}
	if fs.Changed("store-order-up-to") {
		cfg.StoreOrderUpTo = f.storeOrderUpTo
	}
	if fs.Changed("dc-reorder-point") {
		cfg.DCReorderPoint = f.dcReorderPoint
	}
	if fs.Changed("dc-order-up-to") {
		cfg.DCOrderUpTo = f.dcOrderUpTo
	}
	if fs.Changed("initial-store") {
		cfg.InitialOnHandStore = f.initialStore
	}
	if fs.Changed("initial-dc") {
		cfg.InitialOnHandDC = f.initialDC
	}
	if fs.Changed("lead-time-mean") {
		cfg.LeadTimeMeanDays = f.leadTimeMean
	}
	if fs.Changed("lead-time-std") {
		cfg.LeadTimeStdDays = f.leadTimeStd
	}
	if fs.Changed("disruption-prob") {
		cfg.DisruptionProbabilityPerShipment = f.disruptionProb
	}
	if fs.Changed("disruption-delay") {
		cfg.DisruptionDelayDays = f.disruptionDelay
	}
	if fs.Changed("seed") {
		cfg = cfg.WithSeed(f.seed)
	}
	return cfg, nil
}

// parsePeak parses "day:multiplier" or "first-last:multiplier".
func parsePeak(raw string) (sim.DemandPeak, error) {
	days, mult, ok := strings.Cut(raw, ":")
	if !ok {
		return sim.DemandPeak{}, fmt.Errorf("peak %q: want day:multiplier", raw)
	}
	multiplier, err := strconv.ParseFloat(mult, 64)
	if err != nil {
		return sim.DemandPeak{}, fmt.Errorf("peak %q: bad multiplier: %w", raw, err)
	}

	first, last, isRange := strings.Cut(days, "-")
	day, err := strconv.Atoi(first)
	if err != nil {
		return sim.DemandPeak{}, fmt.Errorf("peak %q: bad day: %w", raw, err)
	}
	peak := sim.DemandPeak{Day: day, Multiplier: multiplier}
	if isRange {
		end, err := strconv.Atoi(last)
		if err != nil {
			return sim.DemandPeak{}, fmt.Errorf("peak %q: bad end day: %w", raw, err)
		}
		peak.EndDay = &end
	}
	return peak, nil
}
