package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stochastix-twin/twin-sim/sim/jobs"
)

const scenarioA = `{
	"days": 30,
	"demand_lambda_per_day": 15,
	"demand_peaks": [],
	"s_store": 80,
	"S_store": 160,
	"s_dc": 200,
	"S_dc": 400,
	"initial_on_hand_store": 120,
	"initial_on_hand_dc": 300,
	"lead_time_mean_days": 7,
	"lead_time_std_days": 2,
	"disruption_probability_per_shipment": 0,
	"disruption_delay_days": 0,
	"seed": 123
}`

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Manager) {
	t.Helper()
	m := jobs.NewManager(context.Background(), jobs.Options{Workers: 2})
	srv := httptest.NewServer(NewHandler(m, 5*time.Second))
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return srv, m
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var payload map[string]any
	if res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	}
	return res, payload
}

func pollUntilTerminal(t *testing.T, url string) map[string]any {
	t.Helper()
	var last map[string]any
	require.Eventually(t, func() bool {
		res, payload := doJSON(t, http.MethodGet, url, "")
		if res.StatusCode != http.StatusOK {
			return false
		}
		last = payload
		status := jobs.Status(payload["status"].(string))
		return status.Terminal()
	}, 30*time.Second, 10*time.Millisecond)
	return last
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	res, payload := doJSON(t, http.MethodGet, srv.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestSubmit_SingleRunCompletes(t *testing.T) {
	// GIVEN a running API
	srv, _ := newTestServer(t)

	// WHEN a config is submitted without a replication count
	res, job := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", `{"config": `+scenarioA+`}`)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	id, ok := job["job_id"].(string)
	require.True(t, ok)
	assert.Equal(t, "/api/simulations/"+id, res.Header.Get("Location"))

	// THEN polling reaches a complete single-run result
	final := pollUntilTerminal(t, srv.URL+"/api/simulations/"+id)
	assert.Equal(t, "complete", final["status"])
	assert.Equal(t, 1.0, final["progress"])
	result := final["result"].(map[string]any)
	assert.Equal(t, "single", result["type"])
	assert.Contains(t, result, "kpis")
	assert.Len(t, result["timeseries"], 30)
}

func TestSubmit_MonteCarloCompletes(t *testing.T) {
	srv, _ := newTestServer(t)
	res, job := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", `{"config": `+scenarioA+`, "replications": 6}`)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	final := pollUntilTerminal(t, srv.URL+"/api/simulations/"+job["job_id"].(string))
	assert.Equal(t, "complete", final["status"])
	result := final["result"].(map[string]any)
	assert.Equal(t, "monte_carlo", result["type"])
	summary := result["summary"].(map[string]any)
	assert.Equal(t, 6.0, summary["replications"])
	assert.Contains(t, summary["kpi_mean"], "fill_rate")
	assert.Contains(t, summary["kpi_std"], "fill_rate")
}

func TestSubmit_InvalidConfigReportsFields(t *testing.T) {
	srv, _ := newTestServer(t)
	bad := `{"config": {"days": 0, "demand_lambda_per_day": 15, "s_store": 80, "S_store": 80,
		"s_dc": 200, "S_dc": 400, "initial_on_hand_store": 120, "initial_on_hand_dc": 300,
		"lead_time_mean_days": 7, "lead_time_std_days": 2,
		"disruption_probability_per_shipment": 0, "disruption_delay_days": 0, "seed": null}}`

	res, payload := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	fields := map[string]bool{}
	for _, f := range payload["fields"].([]any) {
		fields[f.(map[string]any)["field"].(string)] = true
	}
	assert.True(t, fields["days"])
	assert.True(t, fields["S_store"])
}

func TestSubmit_ReplicationsOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t)
	res, payload := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", `{"config": `+scenarioA+`, "replications": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "replications", payload["fields"].([]any)[0].(map[string]any)["field"])
}

func TestSubmit_UnknownFieldRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	res, payload := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", `{"config": `+scenarioA+`, "priority": 3}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, payload["error"], "priority")
}

func TestGet_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _ := doJSON(t, http.MethodGet, srv.URL+"/api/simulations/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/simulations/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCancel_LongJob(t *testing.T) {
	srv, _ := newTestServer(t)
	long := `{"config": {"days": 3650, "demand_lambda_per_day": 500, "s_store": 2000, "S_store": 6000,
		"s_dc": 10000, "S_dc": 40000, "initial_on_hand_store": 5000, "initial_on_hand_dc": 30000,
		"lead_time_mean_days": 7, "lead_time_std_days": 2,
		"disruption_probability_per_shipment": 0.1, "disruption_delay_days": 3, "seed": 9},
		"replications": 2000}`

	res, job := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", long)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	url := srv.URL + "/api/simulations/" + job["job_id"].(string)

	res, _ = doJSON(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	final := pollUntilTerminal(t, url)
	assert.Equal(t, "cancelled", final["status"])
	assert.NotContains(t, final, "result")
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	res, _ := doJSON(t, http.MethodOptions, srv.URL+"/api/simulations", "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Contains(t, res.Header.Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestSubmit_ClosedManagerReturns503(t *testing.T) {
	// GIVEN a server whose job manager has shut down
	srv, m := newTestServer(t)
	m.Close()

	// WHEN a valid job is submitted
	res, payload := doJSON(t, http.MethodPost, srv.URL+"/api/simulations", `{"config": `+scenarioA+`}`)

	// THEN the API reports it is unavailable
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, jobs.ErrManagerClosed.Error(), payload["error"])
}
