package montecarlo

import (
	"gonum.org/v1/gonum/stat"

	"github.com/stochastix-twin/twin-sim/sim"
)

// Summary is the element-wise aggregate of the KPISets of a Monte Carlo job.
type Summary struct {
	Replications int                `json:"replications"`
	KPIMean      map[string]float64 `json:"kpi_mean"`
	KPIStd       map[string]float64 `json:"kpi_std"`
}

// Summarize computes the mean and sample standard deviation (n-1) of every
// KPI across sets. The deviation is 0 for a single set.
func Summarize(sets []sim.KPISet) Summary {
	summary := Summary{
		Replications: len(sets),
		KPIMean:      make(map[string]float64, len(sim.KPINames)),
		KPIStd:       make(map[string]float64, len(sim.KPINames)),
	}
	if len(sets) == 0 {
		return summary
	}

	columns := make(map[string][]float64, len(sim.KPINames))
	for _, set := range sets {
		for name, v := range set.Values() {
			columns[name] = append(columns[name], v)
		}
	}
	for _, name := range sim.KPINames {
		values := columns[name]
		summary.KPIMean[name] = stat.Mean(values, nil)
		if len(values) > 1 {
			summary.KPIStd[name] = stat.StdDev(values, nil)
		} else {
			summary.KPIStd[name] = 0
		}
	}
	return summary
}
