package ws

import (
	"encoding/json"
	"time"

	"heatsim/internal/controller"
	"heatsim/internal/model"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeRegulateNow     = "control:regulate"
	TypeSetPriceControl = "control:price"
	TypeSetOption       = "control:set_option"

	// Server -> Client
	TypeRegulation      = "regulation:result"
	TypeRegulationError = "regulation:error"
	TypeStatus          = "controller:status"
)

// Client -> Server messages

type SetPriceControlPayload struct {
	Enabled bool `json:"enabled"`
}

type SetOptionPayload struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Server -> Client messages

type TrajectoryPointPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Value float64   `json:"value"`
}

type RegulationPayload struct {
	Timestamp        time.Time `json:"timestamp"`
	ActualOutdoor    float64   `json:"actual_outdoor"`
	SimulatedOutdoor float64   `json:"simulated_outdoor"`
	Horizon          int       `json:"horizon"`
	ComputationMS    float64   `json:"computation_ms"`

	SimulatedOutdoorTemperatures []TrajectoryPointPayload `json:"simulated_outdoor_temperatures"`
	OutdoorTemperatureOffsets    []TrajectoryPointPayload `json:"outdoor_temperature_offsets"`
	ProjectedIndoorTemperature   []TrajectoryPointPayload `json:"projected_indoor_temperature"`
	ProjectedMediumTemperature   []TrajectoryPointPayload `json:"projected_medium_temperature"`
	ProjectedThermalPower        []TrajectoryPointPayload `json:"projected_thermal_power"`
}

type StatusPayload struct {
	Phase                string  `json:"phase"`
	Running              bool    `json:"running"`
	IntervalSeconds      float64 `json:"interval_seconds"`
	LastCycle            string  `json:"last_cycle,omitempty"`
	PriceCoverageSeconds float64 `json:"price_coverage_seconds"`
}

type ErrorPayload struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// NewEnvelope marshals a typed payload into a wire message.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// RegulationFromResult converts a controller result into its wire form.
func RegulationFromResult(r controller.Result) RegulationPayload {
	return RegulationPayload{
		Timestamp:        r.Timestamp,
		ActualOutdoor:    r.ActualOutdoor,
		SimulatedOutdoor: r.SimulatedOutdoor,
		Horizon:          r.Horizon,
		ComputationMS:    r.ComputationMS,

		SimulatedOutdoorTemperatures: trajectoryPayload(r.SimulatedOutdoorTemperatures),
		OutdoorTemperatureOffsets:    trajectoryPayload(r.OutdoorTemperatureOffsets),
		ProjectedIndoorTemperature:   trajectoryPayload(r.ProjectedIndoorTemperature),
		ProjectedMediumTemperature:   trajectoryPayload(r.ProjectedMediumTemperature),
		ProjectedThermalPower:        trajectoryPayload(r.ProjectedThermalPower),
	}
}

// StatusFromController converts a controller status into its wire form.
func StatusFromController(s controller.Status) StatusPayload {
	p := StatusPayload{
		Phase:                s.Phase,
		Running:              s.Running,
		IntervalSeconds:      s.IntervalSeconds,
		PriceCoverageSeconds: s.PriceCoverage.Seconds(),
	}
	if !s.LastCycle.IsZero() {
		p.LastCycle = s.LastCycle.Format(time.RFC3339)
	}
	return p
}

func trajectoryPayload(points []model.TrajectoryPoint) []TrajectoryPointPayload {
	out := make([]TrajectoryPointPayload, len(points))
	for i, p := range points {
		out[i] = TrajectoryPointPayload{Start: p.Start, End: p.End, Value: p.Value}
	}
	return out
}
