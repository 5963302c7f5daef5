package regulator

import (
	"fmt"
	"math"
	"time"

	"heatsim/internal/model"
)

// PriceInterval is the fixed width of one day-ahead market interval. It is a
// property of the market, independent of the controller's own time step.
const PriceInterval = 15 * time.Minute

// PriceSeries is an ordered, forward-looking sequence of fixed-width spot
// price intervals. Index 0 is the interval covering "now".
type PriceSeries struct {
	Points []model.PricePoint
}

// Coverage returns how much horizon the series spans, in wall-clock time.
func (ps PriceSeries) Coverage() time.Duration {
	if len(ps.Points) == 0 {
		return 0
	}
	return ps.Points[len(ps.Points)-1].End.Sub(ps.Points[0].Start)
}

// PriceForStep maps an MPC step index to a price. Step k covers wall-clock
// time k*timeStep from now; the nearest price interval is used, clamped to
// the series bounds.
func (ps PriceSeries) PriceForStep(step int, timeStep float64) float64 {
	if len(ps.Points) == 0 {
		return 0
	}
	idx := int(math.Round(float64(step) * timeStep / PriceInterval.Seconds()))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ps.Points) {
		idx = len(ps.Points) - 1
	}
	return ps.Points[idx].Price
}

// HorizonSteps applies the horizon-availability policy: the full requested
// horizon when price coverage allows it, a truncated horizon when coverage is
// at least the configured minimum, an error otherwise. Day-ahead markets
// publish tomorrow's prices only by a fixed clock time, so shrinking coverage
// over the afternoon is the normal case, not a fault.
func (ps PriceSeries) HorizonSteps(requested int, timeStep float64, minimum time.Duration) (int, error) {
	coverage := ps.Coverage()
	needed := time.Duration(float64(requested) * timeStep * float64(time.Second))
	if coverage >= needed {
		return requested, nil
	}
	if coverage >= minimum {
		steps := int(coverage.Seconds() / timeStep)
		if steps > 0 {
			return steps, nil
		}
	}
	return 0, fmt.Errorf("%w: %s of price coverage available, need at least %s",
		ErrInsufficientPriceData, coverage, minimum)
}
