package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
)

type stubSource struct {
	table  *orchestrator.StatusTable
	report *fetch.Report
}

func (s *stubSource) Status() *orchestrator.StatusTable { return s.table }
func (s *stubSource) LastReport() *fetch.Report         { return s.report }

func newTestServer(report *fetch.Report) (*httptest.Server, *orchestrator.StatusTable) {
	table := orchestrator.NewStatusTable()
	srv := NewServer(&stubSource{table: table, report: report}, nil)
	return httptest.NewServer(srv.Handler()), table
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	ts, table := newTestServer(nil)
	defer ts.Close()

	table.Set("alpha", orchestrator.PhaseStarted)
	table.Set("bravo", orchestrator.PhaseFinished)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Sources  map[string]string `json:"sources"`
		InFlight []string          `json:"inFlight"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "started", body.Sources["alpha"])
	require.Equal(t, "finished", body.Sources["bravo"])
	require.Equal(t, []string{"alpha"}, body.InFlight)
}

func TestReportEndpointBeforeFirstJob(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportEndpoint(t *testing.T) {
	t.Parallel()

	report := &fetch.Report{
		ItemsInserted: 42,
		TimeStarted:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		TimeEnded:     time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		Results:       []fetch.SourceSummary{{SourceName: "acme-air"}},
	}
	ts, _ := newTestServer(report)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got fetch.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, 42, got.ItemsInserted)
	require.Len(t, got.Results, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
