package regulator

import (
	"fmt"
	"sync"
	"time"

	"heatsim/internal/model"
)

// PassthroughRegulator republishes the actual outdoor temperature unchanged.
// It is the baseline used when model-predictive control is disabled, and a
// convenient stand-in for tests.
type PassthroughRegulator struct {
	mu       sync.Mutex
	state    ControllerState
	phase    Phase
	timeStep float64
}

func NewPassthroughRegulator(timeStep float64) *PassthroughRegulator {
	if timeStep <= 0 {
		timeStep = DefaultParameters().TimeStep
	}
	return &PassthroughRegulator{phase: PhaseIdle, timeStep: timeStep}
}

func (r *PassthroughRegulator) SetState(update StateUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if update.ActualOutdoorTemperature != nil {
		r.state.ActualOutdoorTemperature = copyFloat(update.ActualOutdoorTemperature)
	}
	if update.IndoorTemperature != nil {
		r.state.IndoorTemperature = copyFloat(update.IndoorTemperature)
	}
	if r.state.ActualOutdoorTemperature != nil {
		if r.phase == PhaseIdle {
			r.phase = PhaseReady
		}
	} else {
		r.phase = PhaseIdle
	}
}

func (r *PassthroughRegulator) State() ControllerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

func (r *PassthroughRegulator) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// UpdateParametersFromOptions rejects every key: the passthrough has nothing
// to tune.
func (r *PassthroughRegulator) UpdateParametersFromOptions(options map[string]any) error {
	for key := range options {
		return fmt.Errorf("%w: unknown option %q", ErrConfig, key)
	}
	return nil
}

// Regulate publishes a one-step trajectory equal to the measured outdoor
// temperature.
func (r *PassthroughRegulator) Regulate(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.ActualOutdoorTemperature == nil {
		return fmt.Errorf("%w: outdoor temperature not yet measured", ErrInvalidState)
	}
	outdoor := *r.state.ActualOutdoorTemperature

	step := time.Duration(r.timeStep * float64(time.Second))
	point := model.TrajectoryPoint{Start: now, End: now.Add(step), Value: outdoor}
	r.state.SimulatedOutdoorTemperatures = []model.TrajectoryPoint{point}
	r.state.OutdoorTemperatureOffsets = []model.TrajectoryPoint{{Start: now, End: now.Add(step), Value: 0}}
	r.state.ProjectedIndoorTemperature = nil
	r.state.ProjectedMediumTemperature = nil
	r.state.ProjectedThermalPower = nil
	r.phase = PhaseSolved
	return nil
}
