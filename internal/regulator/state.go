package regulator

import "heatsim/internal/model"

// ControllerState is the regulator's view of the world: last measured
// temperatures, the forward price series, and the trajectories of the last
// successful solve. It is owned exclusively by the regulator; callers merge
// measurements in via SetState and read snapshots back via State.
type ControllerState struct {
	ActualOutdoorTemperature *float64
	IndoorTemperature        *float64

	// MediumTemperature is a model-internal estimate of the heating-loop
	// temperature. When nil it is re-seeded from the heat curve each solve.
	MediumTemperature *float64

	ElectricityPrice PriceSeries

	// Trajectories of the last solve, one entry per horizon step, index 0 is
	// "now". Fully replaced on success, never merged.
	SimulatedOutdoorTemperatures []model.TrajectoryPoint
	ProjectedIndoorTemperature   []model.TrajectoryPoint
	ProjectedMediumTemperature   []model.TrajectoryPoint
	ProjectedThermalPower        []model.TrajectoryPoint
	OutdoorTemperatureOffsets    []model.TrajectoryPoint

	// ComputationTime is the wall-clock milliseconds of the last solve.
	ComputationTime *float64
}

// IsValid reports whether a solve may be attempted.
func (s ControllerState) IsValid() bool {
	return s.ActualOutdoorTemperature != nil && s.IndoorTemperature != nil
}

// clone returns a deep copy so readers never observe later mutation.
func (s ControllerState) clone() ControllerState {
	c := s
	c.ElectricityPrice = PriceSeries{Points: append([]model.PricePoint(nil), s.ElectricityPrice.Points...)}
	c.SimulatedOutdoorTemperatures = append([]model.TrajectoryPoint(nil), s.SimulatedOutdoorTemperatures...)
	c.ProjectedIndoorTemperature = append([]model.TrajectoryPoint(nil), s.ProjectedIndoorTemperature...)
	c.ProjectedMediumTemperature = append([]model.TrajectoryPoint(nil), s.ProjectedMediumTemperature...)
	c.ProjectedThermalPower = append([]model.TrajectoryPoint(nil), s.ProjectedThermalPower...)
	c.OutdoorTemperatureOffsets = append([]model.TrajectoryPoint(nil), s.OutdoorTemperatureOffsets...)
	c.ActualOutdoorTemperature = copyFloat(s.ActualOutdoorTemperature)
	c.IndoorTemperature = copyFloat(s.IndoorTemperature)
	c.MediumTemperature = copyFloat(s.MediumTemperature)
	c.ComputationTime = copyFloat(s.ComputationTime)
	return c
}

func (s *ControllerState) clearTrajectories() {
	s.SimulatedOutdoorTemperatures = nil
	s.ProjectedIndoorTemperature = nil
	s.ProjectedMediumTemperature = nil
	s.ProjectedThermalPower = nil
	s.OutdoorTemperatureOffsets = nil
	s.ComputationTime = nil
}

// StateUpdate carries measured values into the regulator. Nil fields are
// left untouched.
type StateUpdate struct {
	ActualOutdoorTemperature *float64
	IndoorTemperature        *float64
	MediumTemperature        *float64
	ElectricityPrice         *PriceSeries
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
