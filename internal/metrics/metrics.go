package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"heatsim/internal/controller"
	"heatsim/internal/regulator"
)

// Recorder exposes regulation outcomes as Prometheus metrics. It implements
// controller.Callback so it can sit next to the WebSocket bridge in the
// callback fanout.
type Recorder struct {
	registry *prometheus.Registry

	cyclesTotal      *prometheus.CounterVec
	solveDuration    prometheus.Histogram
	simulatedOutdoor prometheus.Gauge
	outdoorOffset    prometheus.Gauge
	priceCoverage    prometheus.Gauge
	horizonSteps     prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regulation_cycles_total",
			Help: "Total regulation cycles by outcome.",
		}, []string{"outcome"}),
		solveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "regulation_solve_duration_seconds",
			Help:    "Wall-clock duration of the MPC solve.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		simulatedOutdoor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regulation_simulated_outdoor_celsius",
			Help: "Simulated outdoor temperature handed to the heat pump.",
		}),
		outdoorOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regulation_outdoor_offset_celsius",
			Help: "Offset between simulated and actual outdoor temperature.",
		}),
		priceCoverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regulation_price_coverage_seconds",
			Help: "Forward spot-price coverage available to the regulator.",
		}),
		horizonSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "regulation_horizon_steps",
			Help: "Horizon length of the last solve, after any truncation.",
		}),
	}

	r.registry.MustRegister(
		r.cyclesTotal,
		r.solveDuration,
		r.simulatedOutdoor,
		r.outdoorOffset,
		r.priceCoverage,
		r.horizonSteps,
	)
	return r
}

// Handler serves the /metrics endpoint.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) OnRegulation(result controller.Result) {
	r.cyclesTotal.WithLabelValues("ok").Inc()
	r.solveDuration.Observe(result.ComputationMS / 1000)
	r.simulatedOutdoor.Set(result.SimulatedOutdoor)
	r.outdoorOffset.Set(result.SimulatedOutdoor - result.ActualOutdoor)
	r.horizonSteps.Set(float64(result.Horizon))
}

func (r *Recorder) OnStatus(status controller.Status) {
	r.priceCoverage.Set(status.PriceCoverage.Seconds())
}

func (r *Recorder) OnError(err error) {
	r.cyclesTotal.WithLabelValues(regulator.ErrorKind(err)).Inc()
}
