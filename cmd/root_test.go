package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stochastix-twin/twin-sim/sim"
	"github.com/stochastix-twin/twin-sim/sim/montecarlo"
)

func TestWriteOutcome_SingleRunJSON(t *testing.T) {
	// GIVEN a finished single run
	cfg := sim.DefaultConfig()
	cfg.Days = 30
	outcome, err := montecarlo.Run(context.Background(), cfg.WithSeed(123), 1, montecarlo.Options{})
	require.NoError(t, err)

	// WHEN it is written
	var buf bytes.Buffer
	require.NoError(t, writeOutcome(&buf, outcome))

	// THEN the JSON carries the external result contract
	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "single", payload["type"])
	assert.Len(t, payload["timeseries"], 30)
	kpis := payload["kpis"].(map[string]any)
	for _, name := range []string{"service_level", "fill_rate", "stockouts", "avg_inventory"} {
		assert.Contains(t, kpis, name)
	}
	assert.NotContains(t, payload, "summary")
}

func TestReportValidation(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, reportValidation(&buf, sim.DefaultConfig()))
	assert.Contains(t, buf.String(), "configuration is valid")

	bad := sim.DefaultConfig()
	bad.Days = 0
	bad.DCOrderUpTo = bad.DCReorderPoint
	buf.Reset()
	assert.False(t, reportValidation(&buf, bad))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.Contains(t, buf.String(), "days")
	assert.Contains(t, buf.String(), "S_dc")
}

func TestProgressLogger_DoesNotPanicOnSmallTotals(t *testing.T) {
	progress := progressLogger()
	for i := 1; i < 3; i++ {
		progress(i, 3)
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["validate"])
	assert.True(t, names["serve"])
}
