package regulator

import "errors"

// Error taxonomy for Regulate. Callers discriminate with errors.Is;
// every failure leaves the previous trajectory untouched.
var (
	// ErrConfig covers non-invertible heat curves, unknown option keys and
	// zero/negative physical constants. Never retried automatically.
	ErrConfig = errors.New("configuration error")

	// ErrInvalidState means required temperature readings are missing.
	// Recoverable: wait for the next sensor update.
	ErrInvalidState = errors.New("controller state invalid")

	// ErrInsufficientPriceData means forward price coverage is below the
	// configured minimum. Recoverable once new price data arrives.
	ErrInsufficientPriceData = errors.New("insufficient price data")

	// ErrSolver means the optimizer failed to converge or produced a
	// non-finite objective.
	ErrSolver = errors.New("solver error")
)

// ErrorKind names the taxonomy bucket an error belongs to, for logs,
// metrics labels and wire messages.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInsufficientPriceData):
		return "insufficient_price_data"
	case errors.Is(err, ErrSolver):
		return "solver"
	default:
		return "internal"
	}
}
