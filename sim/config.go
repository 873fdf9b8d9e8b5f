package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxDays bounds the simulation horizon accepted by Validate.
const MaxDays = 3650

// DemandPeak scales the demand rate on one day, or on the inclusive range
// [Day, EndDay] when EndDay is set. Overlapping peaks multiply.
type DemandPeak struct {
	Day        int     `yaml:"day" json:"day"`
	EndDay     *int    `yaml:"end_day,omitempty" json:"end_day,omitempty"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// LastDay returns the final day covered by the peak.
func (p DemandPeak) LastDay() int {
	if p.EndDay == nil {
		return p.Day
	}
	return *p.EndDay
}

// Covers reports whether the peak is active on the given day.
func (p DemandPeak) Covers(day int) bool {
	return day >= p.Day && day <= p.LastDay()
}

// SimulationConfig is the immutable input of one simulation job. Field tags
// follow the external configuration contract (note s_store vs S_store).
type SimulationConfig struct {
	Days int `yaml:"days" json:"days"`

	DemandLambdaPerDay float64      `yaml:"demand_lambda_per_day" json:"demand_lambda_per_day"`
	DemandPeaks        []DemandPeak `yaml:"demand_peaks,omitempty" json:"demand_peaks,omitempty"`

	StoreReorderPoint int `yaml:"s_store" json:"s_store"`
	StoreOrderUpTo    int `yaml:"S_store" json:"S_store"`
	DCReorderPoint    int `yaml:"s_dc" json:"s_dc"`
	DCOrderUpTo       int `yaml:"S_dc" json:"S_dc"`

	InitialOnHandStore int `yaml:"initial_on_hand_store" json:"initial_on_hand_store"`
	InitialOnHandDC    int `yaml:"initial_on_hand_dc" json:"initial_on_hand_dc"`

	LeadTimeMeanDays float64 `yaml:"lead_time_mean_days" json:"lead_time_mean_days"`
	LeadTimeStdDays  float64 `yaml:"lead_time_std_days" json:"lead_time_std_days"`

	DisruptionProbabilityPerShipment float64 `yaml:"disruption_probability_per_shipment" json:"disruption_probability_per_shipment"`
	DisruptionDelayDays              float64 `yaml:"disruption_delay_days" json:"disruption_delay_days"`

	// Seed is nil for a nondeterministic run.
	Seed *int64 `yaml:"seed,omitempty" json:"seed"`
}

// DefaultConfig returns the reference scenario used when no file is given.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		Days:               365,
		DemandLambdaPerDay: 20,
		StoreReorderPoint:  80,
		StoreOrderUpTo:     160,
		DCReorderPoint:     300,
		DCOrderUpTo:        600,
		InitialOnHandStore: 120,
		InitialOnHandDC:    500,
		LeadTimeMeanDays:   7,
		LeadTimeStdDays:    2,
	}
}

// WithSeed returns a copy of the configuration pinned to seed.
func (c SimulationConfig) WithSeed(seed int64) SimulationConfig {
	c.Seed = &seed
	return c
}

// StorePolicy returns the Store's (s, S) policy.
func (c SimulationConfig) StorePolicy() Policy {
	return Policy{ReorderPoint: c.StoreReorderPoint, OrderUpTo: c.StoreOrderUpTo}
}

// DCPolicy returns the DC's (s, S) policy.
func (c SimulationConfig) DCPolicy() Policy {
	return Policy{ReorderPoint: c.DCReorderPoint, OrderUpTo: c.DCOrderUpTo}
}

// DemandMultiplier returns the product of the multipliers of every peak
// active on day.
func (c SimulationConfig) DemandMultiplier(day int) float64 {
	multiplier := 1.0
	for _, p := range c.DemandPeaks {
		if p.Covers(day) {
			multiplier *= p.Multiplier
		}
	}
	return multiplier
}

// Validate checks every invariant of the configuration and returns all
// violations joined, each as a *ConfigurationError. Zero demand and zero
// lead-time variability are valid.
func (c SimulationConfig) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, configErrorf(field, format, args...))
	}

	if c.Days <= 0 || c.Days > MaxDays {
		add("days", "must be in [1, %d], got %d", MaxDays, c.Days)
	}
	if !isFinite(c.DemandLambdaPerDay) || c.DemandLambdaPerDay < 0 {
		add("demand_lambda_per_day", "must be a finite value >= 0, got %v", c.DemandLambdaPerDay)
	}
	for i, p := range c.DemandPeaks {
		field := fmt.Sprintf("demand_peaks[%d]", i)
		// Days past the horizon are allowed and simply never reached.
		if p.Day < 0 {
			add(field+".day", "must be >= 0, got %d", p.Day)
		}
		if p.EndDay != nil && *p.EndDay < p.Day {
			add(field+".end_day", "must be >= day (%d), got %d", p.Day, *p.EndDay)
		}
		if !isFinite(p.Multiplier) || p.Multiplier <= 0 {
			add(field+".multiplier", "must be a finite value > 0, got %v", p.Multiplier)
		}
	}
	if err := c.StorePolicy().validate("s_store", "S_store"); err != nil {
		errs = append(errs, err)
	}
	if err := c.DCPolicy().validate("s_dc", "S_dc"); err != nil {
		errs = append(errs, err)
	}
	if c.InitialOnHandStore < 0 {
		add("initial_on_hand_store", "must be >= 0, got %d", c.InitialOnHandStore)
	}
	if c.InitialOnHandDC < 0 {
		add("initial_on_hand_dc", "must be >= 0, got %d", c.InitialOnHandDC)
	}
	if !isFinite(c.LeadTimeMeanDays) || c.LeadTimeMeanDays <= 0 {
		add("lead_time_mean_days", "must be a finite value > 0, got %v", c.LeadTimeMeanDays)
	}
	if !isFinite(c.LeadTimeStdDays) || c.LeadTimeStdDays < 0 {
		add("lead_time_std_days", "must be a finite value >= 0, got %v", c.LeadTimeStdDays)
	}
	if !isFinite(c.DisruptionProbabilityPerShipment) ||
		c.DisruptionProbabilityPerShipment < 0 || c.DisruptionProbabilityPerShipment > 1 {
		add("disruption_probability_per_shipment", "must be in [0, 1], got %v", c.DisruptionProbabilityPerShipment)
	}
	if !isFinite(c.DisruptionDelayDays) || c.DisruptionDelayDays < 0 {
		add("disruption_delay_days", "must be a finite value >= 0, got %v", c.DisruptionDelayDays)
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML scenario file. Unknown fields are rejected so that
// typos surface instead of silently falling back to zero values.
func LoadConfig(path string) (SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimulationConfig{}, fmt.Errorf("reading scenario config: %w", err)
	}
	return DecodeConfig(bytes.NewReader(data))
}

// DecodeConfig parses a YAML scenario document with strict field checking.
// The result is not validated.
func DecodeConfig(r io.Reader) (SimulationConfig, error) {
	var cfg SimulationConfig
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return SimulationConfig{}, fmt.Errorf("parsing scenario config: %w", err)
	}
	return cfg, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
