package sim

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stochastix-twin/twin-sim/sim/internal/testutil"
)

// scenarioA is the reference 30-day single-run configuration.
func scenarioA() SimulationConfig {
	cfg := DefaultConfig()
	cfg.Days = 30
	cfg.DemandLambdaPerDay = 15
	cfg.StoreReorderPoint = 80
	cfg.StoreOrderUpTo = 160
	cfg.InitialOnHandStore = 120
	cfg.LeadTimeMeanDays = 7
	cfg.LeadTimeStdDays = 2
	return cfg.WithSeed(123)
}

func mustRun(t *testing.T, cfg SimulationConfig, seed int64) *Result {
	t.Helper()
	s, err := NewSimulator(cfg, NewSimulationKey(seed))
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

// roundKPIs trims the float KPIs to nine decimals. The last bits of
// math.Exp and math.Log differ between architectures.
func roundKPIs(k KPISet) KPISet {
	round := func(v float64) float64 { return math.Round(v*1e9) / 1e9 }
	k.ServiceLevel = round(k.ServiceLevel)
	k.FillRate = round(k.FillRate)
	k.AvgInventory = round(k.AvgInventory)
	k.AvgOnHandStore = round(k.AvgOnHandStore)
	k.AvgOnHandDC = round(k.AvgOnHandDC)
	k.AvgBackorderStore = round(k.AvgBackorderStore)
	return k
}

func TestSimulator_ScenarioA_Golden(t *testing.T) {
	res := mustRun(t, scenarioA(), 123)

	require.Len(t, res.Timeseries, 30)
	for i, rec := range res.Timeseries {
		assert.Equal(t, i, rec.Day)
	}

	// Ratio KPIs are exact fractions of the integer counters.
	k := res.KPIs
	testutil.AssertFloat64Equal(t, "fill_rate", float64(k.FulfilledUnits)/float64(k.DemandUnits), k.FillRate, 1e-12)
	testutil.AssertFloat64Equal(t, "avg_inventory", k.AvgOnHandStore, k.AvgInventory, 1e-12)

	res.KPIs = roundKPIs(res.KPIs)
	testutil.AssertGoldenJSON(t, "scenario_a.json", res)
}

func TestSimulator_SameSeedIsByteIdentical(t *testing.T) {
	cfg := scenarioA()
	cfg.DisruptionProbabilityPerShipment = 0.3
	cfg.DisruptionDelayDays = 4

	a, err := json.Marshal(mustRun(t, cfg, 77))
	require.NoError(t, err)
	b, err := json.Marshal(mustRun(t, cfg, 77))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	c, err := json.Marshal(mustRun(t, cfg, 78))
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(c), "different seeds should diverge")
}

func TestSimulator_PeakBeyondHorizonHasNoEffect(t *testing.T) {
	// GIVEN Scenario A with and without a peak that starts after the last day
	plain := scenarioA()
	peaked := scenarioA()
	peaked.DemandPeaks = []DemandPeak{{Day: 330, Multiplier: 2.5}}

	// WHEN both run with the same seed
	a, err := json.Marshal(mustRun(t, plain, 123))
	require.NoError(t, err)
	b, err := json.Marshal(mustRun(t, peaked, 123))
	require.NoError(t, err)

	// THEN the results are identical
	assert.Equal(t, string(a), string(b))
}

func TestSimulator_OrdersRestorePositionToOrderUpTo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 120
	res := mustRun(t, cfg, 5)

	require.NotEmpty(t, res.Trace.Orders)
	for _, o := range res.Trace.Orders {
		assert.LessOrEqual(t, o.PositionBefore, o.ReorderPoint, "order #%d", o.OrderID)
		assert.Equal(t, o.OrderUpTo, o.PositionAfter, "order #%d", o.OrderID)
		assert.Equal(t, o.OrderUpTo-o.PositionBefore, o.Quantity, "order #%d", o.OrderID)
	}
}

func TestSimulator_ConservationAcrossRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 200
	cfg.DemandLambdaPerDay = 30 // enough pressure to backorder at both nodes
	cfg.DisruptionProbabilityPerShipment = 0.2
	cfg.DisruptionDelayDays = 3
	res := mustRun(t, cfg, 31)

	ordered := map[string]int{}
	for _, o := range res.Trace.Orders {
		ordered[o.Node] += o.Quantity
	}
	last := res.Timeseries[len(res.Timeseries)-1]

	storePosition := last.StoreOnHand - last.StoreBackorder + last.StoreOnOrder
	assert.Equal(t, cfg.InitialOnHandStore+ordered["store"]-res.KPIs.DemandUnits, storePosition)

	dcPosition := last.DCOnHand - last.DCBackorder + last.DCOnOrder
	assert.Equal(t, cfg.InitialOnHandDC+ordered["dc"]-ordered["store"], dcPosition)

	for _, rec := range res.Timeseries {
		assert.GreaterOrEqual(t, rec.StoreOnHand, 0)
		assert.GreaterOrEqual(t, rec.DCOnHand, 0)
		assert.GreaterOrEqual(t, rec.StoreBackorder, 0)
		assert.GreaterOrEqual(t, rec.DCBackorder, 0)
	}
}

func TestSimulator_KPIBounds(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		k := mustRun(t, DefaultConfig(), seed).KPIs
		assert.GreaterOrEqual(t, k.FillRate, 0.0)
		assert.LessOrEqual(t, k.FillRate, 1.0)
		assert.GreaterOrEqual(t, k.ServiceLevel, 0.0)
		assert.LessOrEqual(t, k.ServiceLevel, 1.0)
		assert.GreaterOrEqual(t, k.AvgInventory, 0.0)
		assert.Equal(t, k.DemandUnits, k.FulfilledUnits+k.Stockouts)
	}
}

func TestSimulator_ZeroDemand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 60
	cfg.DemandLambdaPerDay = 0
	res := mustRun(t, cfg, 8)

	assert.Equal(t, 1.0, res.KPIs.FillRate)
	assert.Equal(t, 1.0, res.KPIs.ServiceLevel)
	assert.Equal(t, 0, res.KPIs.Stockouts)
	assert.Equal(t, 0, res.KPIs.DemandUnits)
	assert.Empty(t, res.Trace.Orders)
	assert.InDelta(t, float64(cfg.InitialOnHandStore), res.KPIs.AvgInventory, 1e-9)
}

func TestSimulator_ScenarioB_DisruptionDelaysEveryShipment(t *testing.T) {
	cfg := scenarioA()
	cfg.Days = 90
	cfg.DisruptionProbabilityPerShipment = 1
	cfg.DisruptionDelayDays = 5
	res := mustRun(t, cfg, 123)

	require.NotEmpty(t, res.Trace.Shipments)
	for _, s := range res.Trace.Shipments {
		assert.True(t, s.Disrupted)
		assert.Equal(t, 5.0, s.DisruptionDelay)
		assert.GreaterOrEqual(t, s.ArrivesAt, s.DispatchedAt+s.LeadTime+5)
		assert.GreaterOrEqual(t, s.DispatchedAt, s.IssuedAt)
	}
}

func TestSimulator_ScenarioC_MinimalOrderUpToGap(t *testing.T) {
	cfg := scenarioA()
	cfg.Days = 60
	cfg.StoreOrderUpTo = cfg.StoreReorderPoint + 1
	res := mustRun(t, cfg, 123)

	store := res.Trace.OrdersFor(string(NodeStore))
	require.NotEmpty(t, store)
	for _, o := range store {
		assert.GreaterOrEqual(t, o.Quantity, 1)
		assert.Equal(t, cfg.StoreOrderUpTo, o.PositionAfter)
	}
}

func TestSimulator_DCBackorderShipsWholeOrderOnArrival(t *testing.T) {
	// GIVEN an empty DC and a Store below its reorder point, no demand and
	// deterministic 3-day lead times
	cfg := DefaultConfig()
	cfg.Days = 10
	cfg.DemandLambdaPerDay = 0
	cfg.InitialOnHandStore = 50
	cfg.InitialOnHandDC = 0
	cfg.DCReorderPoint = 0
	cfg.DCOrderUpTo = 1000
	cfg.LeadTimeMeanDays = 3
	cfg.LeadTimeStdDays = 0

	// WHEN the run completes
	res := mustRun(t, cfg, 1)

	// THEN the Store order waits at the DC until the DC replenishment lands
	require.Len(t, res.Trace.Orders, 2)
	assert.Equal(t, "store", res.Trace.Orders[0].Node)
	assert.Equal(t, 110, res.Trace.Orders[0].Quantity)
	assert.Equal(t, "dc", res.Trace.Orders[1].Node)
	assert.Equal(t, 1110, res.Trace.Orders[1].Quantity)

	require.Len(t, res.Trace.Shipments, 2)
	dcShipment, storeShipment := res.Trace.Shipments[0], res.Trace.Shipments[1]
	assert.Equal(t, 3.0, dcShipment.ArrivesAt)
	assert.Equal(t, 3.0, storeShipment.DispatchedAt)
	assert.Equal(t, 6.0, storeShipment.ArrivesAt)

	// THEN day snapshots close before same-instant arrivals
	assert.Equal(t, 110, res.Timeseries[2].DCBackorder)
	assert.Equal(t, 0, res.Timeseries[3].DCBackorder)
	assert.Equal(t, 1000, res.Timeseries[3].DCOnHand)
	assert.Equal(t, 50, res.Timeseries[5].StoreOnHand)
	assert.Equal(t, 160, res.Timeseries[6].StoreOnHand)
	assert.Equal(t, 0, res.Timeseries[6].StoreOnOrder)
}

func TestSimulator_ArrivalsPastHorizonStayOnOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Days = 5
	cfg.DemandLambdaPerDay = 0
	cfg.InitialOnHandStore = 10
	cfg.LeadTimeMeanDays = 30
	cfg.LeadTimeStdDays = 0
	res := mustRun(t, cfg, 1)

	require.Len(t, res.Trace.Shipments, 1)
	assert.False(t, res.Trace.Shipments[0].Scheduled)
	last := res.Timeseries[len(res.Timeseries)-1]
	assert.Equal(t, 150, last.StoreOnOrder)
	assert.Equal(t, 10, last.StoreOnHand)
}

// countdownContext reports cancellation after Err has been polled n times.
type countdownContext struct {
	context.Context
	n int
}

func (c *countdownContext) Err() error {
	c.n--
	if c.n < 0 {
		return context.Canceled
	}
	return nil
}

func TestSimulator_CancelAtDayBoundary(t *testing.T) {
	s, err := NewSimulator(scenarioA(), NewSimulationKey(123))
	require.NoError(t, err)

	// polled once before the loop, then after every day
	ctx := &countdownContext{Context: context.Background(), n: 3}
	res, err := s.Run(ctx)

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.Len(t, s.KPIs.Records(), 3)
}

func TestSimulator_AlreadyCancelledContext(t *testing.T) {
	s, err := NewSimulator(scenarioA(), NewSimulationKey(123))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSimulator_RunTwiceFails(t *testing.T) {
	s, err := NewSimulator(scenarioA(), NewSimulationKey(1))
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.Error(t, err)
}

func TestNewSimulator_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StoreOrderUpTo = cfg.StoreReorderPoint
	_, err := NewSimulator(cfg, NewSimulationKey(1))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "S_store", cfgErr.Field)
}

func TestSimulator_AverageInventoryIsTimeWeighted(t *testing.T) {
	// with no demand and no orders the average equals the constant stock
	cfg := DefaultConfig()
	cfg.Days = 7
	cfg.DemandLambdaPerDay = 0
	res := mustRun(t, cfg, 1)
	assert.False(t, math.IsNaN(res.KPIs.AvgOnHandDC))
	assert.InDelta(t, float64(cfg.InitialOnHandDC), res.KPIs.AvgOnHandDC, 1e-9)
}
