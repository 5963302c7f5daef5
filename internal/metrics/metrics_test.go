package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsim/internal/controller"
	"heatsim/internal/regulator"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder_OnRegulation(t *testing.T) {
	r := NewRecorder()
	r.OnRegulation(controller.Result{
		ActualOutdoor:    -5,
		SimulatedOutdoor: -7.5,
		Horizon:          8,
		ComputationMS:    42,
	})

	body := scrape(t, r)
	assert.Contains(t, body, `regulation_cycles_total{outcome="ok"} 1`)
	assert.Contains(t, body, "regulation_simulated_outdoor_celsius -7.5")
	assert.Contains(t, body, "regulation_outdoor_offset_celsius -2.5")
	assert.Contains(t, body, "regulation_horizon_steps 8")
}

func TestRecorder_OnErrorLabelsOutcome(t *testing.T) {
	r := NewRecorder()
	r.OnError(regulator.ErrInsufficientPriceData)
	r.OnError(regulator.ErrSolver)
	r.OnError(regulator.ErrSolver)

	body := scrape(t, r)
	assert.Contains(t, body, `regulation_cycles_total{outcome="insufficient_price_data"} 1`)
	assert.Contains(t, body, `regulation_cycles_total{outcome="solver"} 2`)
}

func TestRecorder_OnStatus(t *testing.T) {
	r := NewRecorder()
	r.OnStatus(controller.Status{PriceCoverage: 3 * time.Hour})

	body := scrape(t, r)
	assert.Contains(t, body, "regulation_price_coverage_seconds 10800")
}
