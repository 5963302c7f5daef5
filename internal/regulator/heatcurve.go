package regulator

import "fmt"

// HeatCurve is the heat pump's built-in affine map from outdoor temperature
// to medium return-temperature setpoint. The slope is conventionally negative:
// colder outside means a hotter heating loop. The controller exploits the
// curve in reverse, disguising a desired setpoint as an outdoor temperature.
type HeatCurve struct {
	Slope     float64
	Intercept float64
}

// Validate fails when the curve cannot be inverted.
func (hc HeatCurve) Validate() error {
	if hc.Slope == 0 {
		return fmt.Errorf("%w: heat curve slope must be nonzero", ErrConfig)
	}
	return nil
}

// Setpoint returns the medium return-temperature setpoint the heat pump
// derives from the given (simulated) outdoor temperature.
func (hc HeatCurve) Setpoint(simulatedOutdoor float64) float64 {
	return hc.Slope*simulatedOutdoor + hc.Intercept
}

// SimulatedOutdoor inverts the curve: the outdoor temperature that makes the
// heat pump choose the given setpoint.
func (hc HeatCurve) SimulatedOutdoor(setpoint float64) float64 {
	return (setpoint - hc.Intercept) / hc.Slope
}
