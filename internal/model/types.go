package model

import "time"

type SensorType string

const (
	SensorOutdoorTemp SensorType = "outdoor_temperature"
	SensorIndoorTemp  SensorType = "indoor_temperature"
	SensorMediumTemp  SensorType = "medium_return_temperature"
	SensorEnergyPrice SensorType = "energy_price"
)

// SensorHomeAssistantID maps our sensor slugs to Home Assistant entity IDs.
var SensorHomeAssistantID = map[SensorType]string{
	SensorOutdoorTemp: "sensor.panasonic_heat_pump_main_outside_temp",
	SensorIndoorTemp:  "sensor.panasonic_heat_pump_main_z1_temp",
	SensorMediumTemp:  "sensor.panasonic_heat_pump_main_main_inlet_temp",
	SensorEnergyPrice: "sensor.spotprice_now",
}

// HAEntityToSensorType is the reverse of SensorHomeAssistantID.
var HAEntityToSensorType map[string]SensorType

func init() {
	HAEntityToSensorType = make(map[string]SensorType, len(SensorHomeAssistantID))
	for st, entity := range SensorHomeAssistantID {
		HAEntityToSensorType[entity] = st
	}
}

// SensorInfo holds display name and unit for a sensor type.
type SensorInfo struct {
	Name string
	Unit string
}

// SensorCatalog maps every known SensorType to its display name and unit.
var SensorCatalog = map[SensorType]SensorInfo{
	SensorOutdoorTemp: {Name: "Outdoor Temperature", Unit: "°C"},
	SensorIndoorTemp:  {Name: "Indoor Temperature", Unit: "°C"},
	SensorMediumTemp:  {Name: "Medium Return Temperature", Unit: "°C"},
	SensorEnergyPrice: {Name: "Energy Price", Unit: "EUR/kWh"},
}

type Reading struct {
	Timestamp time.Time
	SensorID  string
	Type      SensorType
	Value     float64
	Unit      string
}

type Sensor struct {
	ID   string
	Name string
	Type SensorType
	Unit string
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

// PricePoint is one fixed-width day-ahead market interval.
type PricePoint struct {
	Start time.Time
	End   time.Time
	Price float64 // per kWh
}

// TrajectoryPoint is one horizon step of a solved trajectory.
// End is always Start plus the controller time step.
type TrajectoryPoint struct {
	Start time.Time
	End   time.Time
	Value float64
}
