package regulator

import (
	"fmt"
	"math"
)

const (
	solverMaxIterations  = 200
	solverTolerance      = 1e-6
	solverMaxLineHalving = 40
	// largest setpoint move tried on the first line-search probe, °C
	solverInitialStep = 2.0
	// clamp on the spectral step length so a degenerate curvature estimate
	// cannot stall or explode the line search
	solverMinSpectralStep = 1e-10
	solverMaxSpectralStep = 1e3
)

// SolveInput is everything one receding-horizon solve depends on. The solver
// is a pure function of this input: it holds no locks and touches no shared
// state.
type SolveInput struct {
	InitialRoomTemp   float64
	InitialMediumTemp float64

	// PrevSimulatedOutdoor anchors the ramp constraint for step 0: the
	// simulated outdoor temperature the heat pump currently sees.
	PrevSimulatedOutdoor float64

	// OutdoorTemp is the measured disturbance, held constant over the horizon.
	OutdoorTemp float64

	Horizon int

	// PriceAt returns the spot price for an MPC step. Nil disables the
	// energy-cost objective term.
	PriceAt func(step int) float64
}

// Solution holds the optimal trajectories of one solve.
type Solution struct {
	Setpoints   []float64 // medium return setpoints, one per step
	RoomTemps   []float64 // horizon+1 entries, index 0 is the initial state
	MediumTemps []float64 // horizon+1 entries
	HeatFlows   []float64 // one per step
	SlackLow    []float64 // comfort-floor slack per step, zero when respected
	Objective   float64
	Iterations  int
}

// MPCSolver solves the receding-horizon program by spectral projected
// gradient descent with an analytic adjoint and backtracking. States are
// eliminated by single shooting (the dynamics equalities hold by
// construction) and the comfort slacks by their closed form
// slack_low[k] = max(0, floor − room[k]), which is exact for a quadratic
// slack penalty. Ramp and box constraints are enforced by a forward clamping
// sweep used as the projection, so every iterate is feasible.
type MPCSolver struct {
	params MPCParameters
	model  ThermalModel
	curve  HeatCurve
}

func NewMPCSolver(params MPCParameters) *MPCSolver {
	return &MPCSolver{
		params: params,
		model:  newThermalModel(params),
		curve:  params.HeatCurve(),
	}
}

// Solve runs the optimization. It fails with ErrSolver when the objective
// turns non-finite or no convergence is reached within the iteration cap.
func (s *MPCSolver) Solve(in SolveInput) (*Solution, error) {
	if in.Horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrConfig, in.Horizon)
	}

	// Stateless warm start: hold the setpoint at the curve intercept, then
	// project onto the feasible set.
	u := make([]float64, in.Horizon)
	for k := range u {
		u[k] = s.params.HeatCurveIntercept
	}
	s.project(u, in.PrevSimulatedOutdoor)

	room, med, heat := s.rollout(in, u)
	f := s.objective(in, u, room, heat)
	if !isFinite(f) {
		return nil, fmt.Errorf("%w: non-finite objective at warm start", ErrSolver)
	}

	alpha := 1.0
	converged := false
	iter := 0
	var prevU, prevGrad []float64

	for ; iter < solverMaxIterations; iter++ {
		grad := s.gradient(in, u, room, med)

		// Stationarity is measured after projection: against an active ramp
		// bound the raw gradient never vanishes, but a full gradient step
		// projected back onto the constraints stops moving the iterate.
		if probe := s.projectedStep(in, u, grad, 1); maxAbsDiff(probe, u) < solverTolerance {
			converged = true
			break
		}

		if prevU != nil {
			// Spectral (Barzilai-Borwein) step length from the last accepted
			// move. It tracks local curvature, so the iterate walks along an
			// active ramp face instead of zigzagging across it.
			var ss, sy float64
			for k := range u {
				sk := u[k] - prevU[k]
				yk := grad[k] - prevGrad[k]
				ss += sk * sk
				sy += sk * yk
			}
			if sy > 0 {
				alpha = math.Min(math.Max(ss/sy, solverMinSpectralStep), solverMaxSpectralStep)
			}
		} else if gmax := maxAbs(grad); alpha*gmax > solverInitialStep {
			// Bound the very first probe so a huge gradient cannot fling the
			// setpoints across the whole box.
			alpha = solverInitialStep / gmax
		}

		accepted := false
		for ls := 0; ls < solverMaxLineHalving; ls++ {
			cand := s.projectedStep(in, u, grad, alpha)

			cRoom, cMed, cHeat := s.rollout(in, cand)
			cf := s.objective(in, cand, cRoom, cHeat)
			if !isFinite(cf) {
				return nil, fmt.Errorf("%w: non-finite objective during line search", ErrSolver)
			}

			if cf < f {
				moved := maxAbsDiff(cand, u)
				improvement := f - cf
				prevU, prevGrad = u, grad
				u, room, med, heat = cand, cRoom, cMed, cHeat
				f = cf
				accepted = true
				if moved < solverTolerance ||
					improvement <= solverTolerance*math.Max(1, math.Abs(f)) {
					converged = true
				}
				break
			}
			alpha /= 2
		}

		if !accepted {
			// No descent direction survives the projection: stationary.
			converged = true
		}
		if converged {
			break
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w: no convergence after %d iterations", ErrSolver, solverMaxIterations)
	}

	slack := make([]float64, in.Horizon)
	for k := 0; k < in.Horizon; k++ {
		slack[k] = math.Max(0, s.params.LowerTemperatureBound-room[k])
	}

	return &Solution{
		Setpoints:   u,
		RoomTemps:   room,
		MediumTemps: med,
		HeatFlows:   heat,
		SlackLow:    slack,
		Objective:   f,
		Iterations:  iter + 1,
	}, nil
}

// rollout integrates the thermal model forward over the horizon.
func (s *MPCSolver) rollout(in SolveInput, u []float64) (room, med, heat []float64) {
	h := len(u)
	room = make([]float64, h+1)
	med = make([]float64, h+1)
	heat = make([]float64, h)

	room[0] = in.InitialRoomTemp
	med[0] = in.InitialMediumTemp
	for k := 0; k < h; k++ {
		heat[k] = s.model.HeatFlow(u[k], med[k])
		room[k+1], med[k+1] = s.model.Next(room[k], med[k], in.OutdoorTemp, heat[k])
	}
	return room, med, heat
}

// objective evaluates the stage costs at a feasible point.
func (s *MPCSolver) objective(in SolveInput, u, room, heat []float64) float64 {
	p := s.params
	total := 0.0
	prevSim := in.PrevSimulatedOutdoor

	for k := range u {
		// Asymmetric target tracking: only being below target costs.
		if dev := room[k] - p.TargetTemperature; dev < 0 {
			total += p.TemperatureDeviationPenalty * dev * dev
		}
		// Soft comfort floor via the eliminated slack.
		if sl := p.LowerTemperatureBound - room[k]; sl > 0 {
			total += p.ComfortBandViolationPenalty * sl * sl
		}
		// Energy drawn against the time-aligned spot price.
		if in.PriceAt != nil {
			total += p.EnergyCostPenalty * heat[k] / 1000 * in.PriceAt(k) * p.TimeStep / 3600
		}
		// Discourage chattering the disguised outdoor signal.
		sim := s.curve.SimulatedOutdoor(u[k])
		d := sim - prevSim
		total += p.SimulatedOutdoorMovePenalty * d * d
		prevSim = sim
	}
	return total
}

// gradient computes dJ/du by a discrete adjoint (backward) sweep, the same
// backpropagation pattern as any reverse-mode pass: accumulate stage-cost
// partials, then chain them through the linearized dynamics.
func (s *MPCSolver) gradient(in SolveInput, u, room, med []float64) []float64 {
	p := s.params
	h := len(u)
	dt := p.TimeStep
	grad := make([]float64, h)

	// Move-penalty terms live purely in control space.
	prevSim := in.PrevSimulatedOutdoor
	for k := 0; k < h; k++ {
		sim := s.curve.SimulatedOutdoor(u[k])
		d := 2 * p.SimulatedOutdoorMovePenalty * (sim - prevSim) / p.HeatCurveSlope
		grad[k] += d
		if k > 0 {
			grad[k-1] -= d
		}
		prevSim = sim
	}

	// Constant partials of the room update.
	dRoomRoom := 1 - dt*(1/(p.ThermalResistance*p.ThermalCapacitance)+
		1/(p.MediumToBuildingThermalResistance*p.ThermalCapacitance))
	dRoomMed := dt / (p.MediumToBuildingThermalResistance * p.ThermalCapacitance)
	dMedRoom := dt / (p.MediumToBuildingThermalResistance * p.MediumThermalCapacity)
	dMedMedBase := 1 - dt*(1/(p.MediumToBuildingThermalResistance*p.MediumThermalCapacity)+
		1/(p.MediumToOutdoorThermalResistance*p.MediumThermalCapacity))

	var adjRoom, adjMed float64 // dJ/droom[k+1], dJ/dmed[k+1]
	for k := h - 1; k >= 0; k-- {
		var costRoom float64
		if dev := room[k] - p.TargetTemperature; dev < 0 {
			costRoom += 2 * p.TemperatureDeviationPenalty * dev
		}
		if sl := p.LowerTemperatureBound - room[k]; sl > 0 {
			costRoom -= 2 * p.ComfortBandViolationPenalty * sl
		}

		var costHeat float64
		if in.PriceAt != nil {
			costHeat = p.EnergyCostPenalty * in.PriceAt(k) * dt / 3600 / 1000
		}

		// Saturation gate: the actuator only transmits gradient while
		// unsaturated.
		gate := 0.0
		if raw := p.HeaterTransferCoefficient * (u[k] - med[k]); raw > 0 && raw < p.HeaterThermalPower {
			gate = p.HeaterTransferCoefficient
		}
		dMedMed := dMedMedBase - dt/p.MediumThermalCapacity*gate
		dMedU := dt / p.MediumThermalCapacity * gate

		grad[k] += costHeat*gate + adjMed*dMedU

		costMed := -costHeat * gate // heat flow falls as the medium warms
		adjRoomK := costRoom + adjRoom*dRoomRoom + adjMed*dMedRoom
		adjMedK := costMed + adjRoom*dRoomMed + adjMed*dMedMed
		adjRoom, adjMed = adjRoomK, adjMedK
	}
	return grad
}

// project clamps the setpoint trajectory onto the feasible set with a single
// forward sweep in simulated-outdoor space: each step is confined to the
// ramp window around the (already clamped) previous step, intersected with
// the setpoint box. The sweep keeps the chain consistent, so the ramp bound
// holds exactly for every step including step 0 against the previous solve.
func (s *MPCSolver) project(u []float64, prevSimulated float64) {
	p := s.params
	boxLo := s.curve.SimulatedOutdoor(p.MaximumMediumReturnTemperature)
	boxHi := s.curve.SimulatedOutdoor(p.MinimumMediumReturnTemperature)
	if boxLo > boxHi {
		boxLo, boxHi = boxHi, boxLo
	}

	prev := prevSimulated
	for k := range u {
		sim := s.curve.SimulatedOutdoor(u[k])
		lo := math.Max(prev-p.OutdoorRampLimit, boxLo)
		hi := math.Min(prev+p.OutdoorRampLimit, boxHi)
		if lo > hi {
			// Ramp window and box are disjoint; the ramp bound wins so the
			// heat pump never sees a jump.
			lo, hi = prev-p.OutdoorRampLimit, prev+p.OutdoorRampLimit
		}
		sim = math.Min(math.Max(sim, lo), hi)
		u[k] = s.curve.Setpoint(sim)
		prev = sim
	}
}

// projectedStep takes a gradient step of length alpha and projects it back
// onto the ramp and box constraints.
func (s *MPCSolver) projectedStep(in SolveInput, u, grad []float64, alpha float64) []float64 {
	cand := make([]float64, len(u))
	for k := range cand {
		cand[k] = u[k] - alpha*grad[k]
	}
	s.project(cand, in.PrevSimulatedOutdoor)
	return cand
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for k := range a {
		if d := math.Abs(a[k] - b[k]); d > m {
			m = d
		}
	}
	return m
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
