package regulator

// ThermalModel is a two-node lumped (2R2C) building model: one node for the
// room air, one for the heating-medium loop. It is pure: a function of
// (state, control, disturbance) to the next state, discretized by explicit
// Euler with a fixed step.
type ThermalModel struct {
	RoomToOutdoorResistance   float64 // K/W, room <-> outdoor
	RoomCapacitance           float64 // J/K
	MediumToRoomResistance    float64 // K/W, heating loop <-> room
	MediumToOutdoorResistance float64 // K/W, heating loop <-> outdoor
	MediumCapacitance         float64 // J/K

	HeaterMaxPower float64 // W, rated heat output
	HeaterGain     float64 // W/K, proportional actuator gain
	TimeStep       float64 // s
}

func newThermalModel(p MPCParameters) ThermalModel {
	return ThermalModel{
		RoomToOutdoorResistance:   p.ThermalResistance,
		RoomCapacitance:           p.ThermalCapacitance,
		MediumToRoomResistance:    p.MediumToBuildingThermalResistance,
		MediumToOutdoorResistance: p.MediumToOutdoorThermalResistance,
		MediumCapacitance:         p.MediumThermalCapacity,
		HeaterMaxPower:            p.HeaterThermalPower,
		HeaterGain:                p.HeaterTransferCoefficient,
		TimeStep:                  p.TimeStep,
	}
}

// HeatFlow models the saturating proportional actuator: the heater pushes the
// medium toward the return setpoint at a fixed gain, capped at rated power,
// never negative (no active cooling).
func (m ThermalModel) HeatFlow(returnSetpoint, medium float64) float64 {
	flow := m.HeaterGain * (returnSetpoint - medium)
	if flow < 0 {
		return 0
	}
	if flow > m.HeaterMaxPower {
		return m.HeaterMaxPower
	}
	return flow
}

// Next advances both nodes by one time step given the outdoor disturbance and
// the heat flow delivered into the medium.
func (m ThermalModel) Next(room, medium, outdoor, heatFlow float64) (roomNext, mediumNext float64) {
	dt := m.TimeStep
	roomNext = room + dt*((outdoor-room)/(m.RoomToOutdoorResistance*m.RoomCapacitance)+
		(medium-room)/(m.MediumToRoomResistance*m.RoomCapacitance))
	mediumNext = medium + dt*(heatFlow/m.MediumCapacitance-
		(medium-room)/(m.MediumToRoomResistance*m.MediumCapacitance)-
		(medium-outdoor)/(m.MediumToOutdoorResistance*m.MediumCapacitance))
	return roomNext, mediumNext
}
