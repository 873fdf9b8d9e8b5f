package sim

import (
	"math"
	"math/rand"
)

// DemandProcess generates Store arrivals as a Poisson process whose rate is
// constant within a day and may differ between days (demand peaks). Every
// arrival carries one unit; peaks scale the rate, never the size.
type DemandProcess struct {
	rates []float64 // arrivals per day, indexed by day
	rng   *rand.Rand
}

// NewDemandProcess precomputes the per-day rates of cfg.
func NewDemandProcess(cfg SimulationConfig, rng *rand.Rand) *DemandProcess {
	rates := make([]float64, cfg.Days)
	for day := range rates {
		rates[day] = cfg.DemandLambdaPerDay * cfg.DemandMultiplier(day)
	}
	return &DemandProcess{rates: rates, rng: rng}
}

// Rate returns the arrival rate in force on day, 0 outside the horizon.
func (p *DemandProcess) Rate(day int) float64 {
	if day < 0 || day >= len(p.rates) {
		return 0
	}
	return p.rates[day]
}

// Next returns the first arrival time after from. ok is false when no arrival
// happens before the horizon.
//
// One Exp(1) draw is consumed as integrated intensity across the day segments,
// which keeps the process exact when the rate changes at a day boundary.
func (p *DemandProcess) Next(from float64) (at float64, ok bool) {
	work := p.rng.ExpFloat64()
	t := from
	for {
		day := int(math.Floor(t))
		if day >= len(p.rates) {
			return 0, false
		}
		end := float64(day + 1)
		if rate := p.rates[day]; rate > 0 {
			if next := t + work/rate; next < end {
				return next, true
			}
			work = math.Max(0, work-rate*(end-t))
		}
		t = end
	}
}
