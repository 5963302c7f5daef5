package regulator

import (
	"fmt"
	"log"
	"sync"
	"time"

	"heatsim/internal/model"
)

// Phase describes where a regulator is in its lifecycle.
type Phase int

const (
	PhaseIdle   Phase = iota // no valid measurements yet
	PhaseReady               // measurements valid, nothing solved
	PhaseSolved              // a trajectory is available
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReady:
		return "ready"
	case PhaseSolved:
		return "solved"
	default:
		return "unknown"
	}
}

// Regulator computes a simulated outdoor temperature from the current state.
type Regulator interface {
	SetState(update StateUpdate)
	State() ControllerState
	Phase() Phase
	UpdateParametersFromOptions(options map[string]any) error
	Regulate(now time.Time) error
}

// MPCRegulator runs the receding-horizon optimization on every Regulate call
// and converts the result into a disguised outdoor-temperature trajectory.
//
// Regulate is not reentrant: serialize calls externally (one regulator per
// zone, driven by a single control loop). State reads and parameter updates
// are safe at any time; updates take effect on the next Regulate call.
type MPCRegulator struct {
	mu     sync.Mutex
	params MPCParameters
	state  ControllerState
	phase  Phase

	// first simulated temperature of the last successful solve, anchors the
	// step-0 ramp constraint of the next one
	lastSimulated *float64
}

// NewMPCRegulator creates a regulator with its own copy of params.
func NewMPCRegulator(params MPCParameters) *MPCRegulator {
	return &MPCRegulator{params: params, phase: PhaseIdle}
}

// SetState merges measured values into the controller state and re-validates
// the phase.
func (r *MPCRegulator) SetState(update StateUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if update.ActualOutdoorTemperature != nil {
		r.state.ActualOutdoorTemperature = copyFloat(update.ActualOutdoorTemperature)
	}
	if update.IndoorTemperature != nil {
		r.state.IndoorTemperature = copyFloat(update.IndoorTemperature)
	}
	if update.MediumTemperature != nil {
		r.state.MediumTemperature = copyFloat(update.MediumTemperature)
	}
	if update.ElectricityPrice != nil {
		r.state.ElectricityPrice = PriceSeries{
			Points: append([]model.PricePoint(nil), update.ElectricityPrice.Points...),
		}
	}
	r.revalidate()
}

// State returns a deep snapshot of the controller state.
func (r *MPCRegulator) State() ControllerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Phase returns the current lifecycle phase.
func (r *MPCRegulator) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Parameters returns a copy of the current parameter set.
func (r *MPCRegulator) Parameters() MPCParameters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// UpdateParametersFromOptions merges a whitelist-checked option map into the
// parameters. Any unknown key rejects the whole update; nothing is applied
// partially. Disabling price control clears the stored trajectories, since
// they were computed against prices that no longer steer the controller.
func (r *MPCRegulator) UpdateParametersFromOptions(options map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.params
	for key, value := range options {
		if err := next.applyOption(key, value); err != nil {
			return err
		}
	}

	priceDisabled := r.params.ElectricityPriceEnabled && !next.ElectricityPriceEnabled
	r.params = next

	if priceDisabled {
		r.state.clearTrajectories()
		r.lastSimulated = nil
		r.revalidate()
	}
	return nil
}

// Regulate runs one receding-horizon solve and atomically replaces the
// trajectory fields on success. On any failure the previous trajectories
// are preserved untouched.
func (r *MPCRegulator) Regulate(now time.Time) error {
	r.mu.Lock()
	params := r.params
	state := r.state.clone()
	prevSolved := r.lastSimulated
	r.mu.Unlock()

	if err := params.Validate(); err != nil {
		return err
	}
	if !state.IsValid() {
		return fmt.Errorf("%w: outdoor or indoor temperature not yet measured", ErrInvalidState)
	}

	outdoor := *state.ActualOutdoorTemperature
	curve := params.HeatCurve()

	horizon := params.PredictionHorizon
	var priceAt func(step int) float64
	if params.ElectricityPriceEnabled {
		steps, err := state.ElectricityPrice.HorizonSteps(
			params.PredictionHorizon, params.TimeStep, params.MinimumPriceCoverage())
		if err != nil {
			return err
		}
		if steps < horizon {
			log.Printf("price coverage %s truncates horizon %d -> %d steps",
				state.ElectricityPrice.Coverage(), horizon, steps)
			horizon = steps
		}
		prices := state.ElectricityPrice
		timeStep := params.TimeStep
		priceAt = func(step int) float64 { return prices.PriceForStep(step, timeStep) }
	}

	// Without a measured loop temperature, seed the medium from the curve at
	// the real outdoor temperature: the loop tracks its nominal setpoint.
	initialMedium := curve.Setpoint(outdoor)
	if state.MediumTemperature != nil {
		initialMedium = *state.MediumTemperature
	}

	prevSimulated := outdoor
	if prevSolved != nil {
		prevSimulated = *prevSolved
	}

	started := time.Now()
	solver := NewMPCSolver(params)
	sol, err := solver.Solve(SolveInput{
		InitialRoomTemp:      *state.IndoorTemperature,
		InitialMediumTemp:    initialMedium,
		PrevSimulatedOutdoor: prevSimulated,
		OutdoorTemp:          outdoor,
		Horizon:              horizon,
		PriceAt:              priceAt,
	})
	if err != nil {
		return err
	}
	elapsedMS := float64(time.Since(started)) / float64(time.Millisecond)

	// Build every trajectory before touching shared state, then swap all of
	// them in one critical section: readers never see a torn update.
	step := time.Duration(params.TimeStep * float64(time.Second))
	simulated := make([]model.TrajectoryPoint, horizon)
	offsets := make([]model.TrajectoryPoint, horizon)
	indoor := make([]model.TrajectoryPoint, horizon)
	medium := make([]model.TrajectoryPoint, horizon)
	power := make([]model.TrajectoryPoint, horizon)

	for k := 0; k < horizon; k++ {
		start := now.Add(time.Duration(k) * step)
		end := start.Add(step)

		sim := curve.SimulatedOutdoor(sol.Setpoints[k])
		if sim < MinSimulatedTemp {
			sim = MinSimulatedTemp
		}
		if sim > MaxSimulatedTemp {
			sim = MaxSimulatedTemp
		}

		simulated[k] = model.TrajectoryPoint{Start: start, End: end, Value: sim}
		offsets[k] = model.TrajectoryPoint{Start: start, End: end, Value: sim - outdoor}
		indoor[k] = model.TrajectoryPoint{Start: start, End: end, Value: sol.RoomTemps[k]}
		medium[k] = model.TrajectoryPoint{Start: start, End: end, Value: sol.MediumTemps[k]}
		power[k] = model.TrajectoryPoint{Start: start, End: end, Value: sol.HeatFlows[k]}
	}

	first := simulated[0].Value

	r.mu.Lock()
	r.state.SimulatedOutdoorTemperatures = simulated
	r.state.OutdoorTemperatureOffsets = offsets
	r.state.ProjectedIndoorTemperature = indoor
	r.state.ProjectedMediumTemperature = medium
	r.state.ProjectedThermalPower = power
	r.state.ComputationTime = &elapsedMS
	r.lastSimulated = &first
	r.phase = PhaseSolved
	r.mu.Unlock()

	log.Printf("regulate: simulated outdoor %.2f°C (actual %.2f°C), horizon %d, %d iterations, %.0fms",
		first, outdoor, horizon, sol.Iterations, elapsedMS)
	return nil
}

// revalidate recomputes the phase from the state. Callers hold r.mu.
func (r *MPCRegulator) revalidate() {
	switch {
	case !r.state.IsValid():
		r.phase = PhaseIdle
	case len(r.state.SimulatedOutdoorTemperatures) > 0:
		r.phase = PhaseSolved
	default:
		r.phase = PhaseReady
	}
}
