package regulator

import (
	"fmt"
	"time"
)

// Simulated outdoor temperature is always clamped into this range before it
// is handed to the heat pump.
const (
	MinSimulatedTemp = -40.0
	MaxSimulatedTemp = 22.0
)

// MPCParameters holds every tunable of the MPC regulator. Instances are
// value types: customize a copy of DefaultParameters(), never share one
// parameter struct between regulator instances.
type MPCParameters struct {
	// Thermal model (room node)
	ThermalResistance  float64 // K/W, room <-> outdoor
	ThermalCapacitance float64 // J/K

	// Thermal model (heating-medium node)
	MediumToBuildingThermalResistance float64 // K/W
	MediumToOutdoorThermalResistance  float64 // K/W
	MediumThermalCapacity             float64 // J/K

	// Actuator
	HeaterThermalPower             float64 // W, rated output
	HeaterTransferCoefficient      float64 // W/K
	MinimumMediumReturnTemperature float64 // °C
	MaximumMediumReturnTemperature float64 // °C

	// Heat curve
	HeatCurveSlope     float64 // must be nonzero, conventionally negative
	HeatCurveIntercept float64

	// Comfort
	TargetTemperature     float64 // °C
	LowerTemperatureBound float64 // °C, soft floor via slack

	// Horizon
	PredictionHorizon int     // steps
	TimeStep          float64 // s
	OutdoorRampLimit  float64 // max |Δ simulated outdoor temp| per step, °C

	// Cost weights
	TemperatureDeviationPenalty float64
	ComfortBandViolationPenalty float64
	EnergyCostPenalty           float64
	SimulatedOutdoorMovePenalty float64

	// Electricity
	ElectricityPriceEnabled  bool
	ElectricityPriceArea     string
	ElectricityPriceCurrency string
	MinimumPriceHours        float64 // truncation floor for degraded solves
}

// DefaultParameters returns the stock tuning for a single-zone hydronic
// heat-pump installation.
func DefaultParameters() MPCParameters {
	return MPCParameters{
		ThermalResistance:  0.01,
		ThermalCapacitance: 3.6e6,

		MediumToBuildingThermalResistance: 0.005,
		MediumToOutdoorThermalResistance:  0.1,
		MediumThermalCapacity:             8.0e5,

		HeaterThermalPower:             5000,
		HeaterTransferCoefficient:      500,
		MinimumMediumReturnTemperature: 20,
		MaximumMediumReturnTemperature: 55,

		HeatCurveSlope:     -0.7,
		HeatCurveIntercept: 35,

		TargetTemperature:     21.0,
		LowerTemperatureBound: 19.5,

		PredictionHorizon: 8,
		TimeStep:          900,
		OutdoorRampLimit:  2.0,

		TemperatureDeviationPenalty: 1000,
		ComfortBandViolationPenalty: 10000,
		EnergyCostPenalty:           25,
		SimulatedOutdoorMovePenalty: 5,

		ElectricityPriceEnabled:  false,
		ElectricityPriceArea:     "FI",
		ElectricityPriceCurrency: "EUR",
		MinimumPriceHours:        2,
	}
}

// HeatCurve returns the heat curve configured in the parameters.
func (p MPCParameters) HeatCurve() HeatCurve {
	return HeatCurve{Slope: p.HeatCurveSlope, Intercept: p.HeatCurveIntercept}
}

// MinimumPriceCoverage returns the truncation floor as a duration.
func (p MPCParameters) MinimumPriceCoverage() time.Duration {
	return time.Duration(p.MinimumPriceHours * float64(time.Hour))
}

// Validate rejects physically meaningless parameter sets before a solve.
func (p MPCParameters) Validate() error {
	if err := p.HeatCurve().Validate(); err != nil {
		return err
	}
	positive := []struct {
		name  string
		value float64
	}{
		{"thermal_resistance", p.ThermalResistance},
		{"thermal_capacitance", p.ThermalCapacitance},
		{"medium_to_building_thermal_resistance", p.MediumToBuildingThermalResistance},
		{"medium_to_outdoor_thermal_resistance", p.MediumToOutdoorThermalResistance},
		{"medium_thermal_capacity", p.MediumThermalCapacity},
		{"heater_thermal_power", p.HeaterThermalPower},
		{"heater_transfer_coefficient", p.HeaterTransferCoefficient},
		{"time_step", p.TimeStep},
		{"outdoor_ramp_limit", p.OutdoorRampLimit},
	}
	for _, f := range positive {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrConfig, f.name, f.value)
		}
	}
	if p.PredictionHorizon <= 0 {
		return fmt.Errorf("%w: prediction_horizon must be positive, got %d", ErrConfig, p.PredictionHorizon)
	}
	if p.MinimumMediumReturnTemperature >= p.MaximumMediumReturnTemperature {
		return fmt.Errorf("%w: medium return temperature range [%g, %g] is empty",
			ErrConfig, p.MinimumMediumReturnTemperature, p.MaximumMediumReturnTemperature)
	}
	return nil
}

// applyOption merges a single option into the parameter set. Unknown keys are
// rejected loudly rather than silently ignored.
func (p *MPCParameters) applyOption(key string, value any) error {
	switch key {
	case "thermal_resistance":
		return setFloat(&p.ThermalResistance, key, value)
	case "thermal_capacitance":
		return setFloat(&p.ThermalCapacitance, key, value)
	case "medium_to_building_thermal_resistance":
		return setFloat(&p.MediumToBuildingThermalResistance, key, value)
	case "medium_to_outdoor_thermal_resistance":
		return setFloat(&p.MediumToOutdoorThermalResistance, key, value)
	case "medium_thermal_capacity":
		return setFloat(&p.MediumThermalCapacity, key, value)
	case "heater_thermal_power":
		return setFloat(&p.HeaterThermalPower, key, value)
	case "heater_transfer_coefficient":
		return setFloat(&p.HeaterTransferCoefficient, key, value)
	case "minimum_medium_return_temperature":
		return setFloat(&p.MinimumMediumReturnTemperature, key, value)
	case "maximum_medium_return_temperature":
		return setFloat(&p.MaximumMediumReturnTemperature, key, value)
	case "heat_curve_slope":
		return setFloat(&p.HeatCurveSlope, key, value)
	case "heat_curve_intercept":
		return setFloat(&p.HeatCurveIntercept, key, value)
	case "target_temperature":
		return setFloat(&p.TargetTemperature, key, value)
	case "lower_temperature_bound":
		return setFloat(&p.LowerTemperatureBound, key, value)
	case "prediction_horizon":
		return setInt(&p.PredictionHorizon, key, value)
	case "time_step":
		return setFloat(&p.TimeStep, key, value)
	case "outdoor_ramp_limit":
		return setFloat(&p.OutdoorRampLimit, key, value)
	case "temperature_deviation_penalty":
		return setFloat(&p.TemperatureDeviationPenalty, key, value)
	case "comfort_band_violation_penalty":
		return setFloat(&p.ComfortBandViolationPenalty, key, value)
	case "energy_cost_penalty":
		return setFloat(&p.EnergyCostPenalty, key, value)
	case "simulated_outdoor_move_penalty":
		return setFloat(&p.SimulatedOutdoorMovePenalty, key, value)
	case "electricity_price_enabled":
		return setBool(&p.ElectricityPriceEnabled, key, value)
	case "electricity_price_area":
		return setString(&p.ElectricityPriceArea, key, value)
	case "electricity_price_currency":
		return setString(&p.ElectricityPriceCurrency, key, value)
	case "minimum_price_hours":
		return setFloat(&p.MinimumPriceHours, key, value)
	default:
		return fmt.Errorf("%w: unknown option %q", ErrConfig, key)
	}
}

func setFloat(dst *float64, key string, value any) error {
	switch v := value.(type) {
	case float64:
		*dst = v
	case float32:
		*dst = float64(v)
	case int:
		*dst = float64(v)
	default:
		return fmt.Errorf("%w: option %q expects a number, got %T", ErrConfig, key, value)
	}
	return nil
}

func setInt(dst *int, key string, value any) error {
	switch v := value.(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	default:
		return fmt.Errorf("%w: option %q expects an integer, got %T", ErrConfig, key, value)
	}
	return nil
}

func setBool(dst *bool, key string, value any) error {
	v, ok := value.(bool)
	if !ok {
		return fmt.Errorf("%w: option %q expects a boolean, got %T", ErrConfig, key, value)
	}
	*dst = v
	return nil
}

func setString(dst *string, key string, value any) error {
	v, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: option %q expects a string, got %T", ErrConfig, key, value)
	}
	*dst = v
	return nil
}
