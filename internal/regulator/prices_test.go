package regulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsim/internal/model"
)

func makePrices(start time.Time, prices ...float64) PriceSeries {
	points := make([]model.PricePoint, len(prices))
	for i, p := range prices {
		s := start.Add(time.Duration(i) * PriceInterval)
		points[i] = model.PricePoint{Start: s, End: s.Add(PriceInterval), Price: p}
	}
	return PriceSeries{Points: points}
}

func TestPriceSeries_Coverage(t *testing.T) {
	start := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)

	assert.Zero(t, PriceSeries{}.Coverage())
	assert.Equal(t, PriceInterval, makePrices(start, 0.1).Coverage())
	assert.Equal(t, 4*PriceInterval, makePrices(start, 0.1, 0.2, 0.3, 0.4).Coverage())
}

func TestPriceSeries_PriceForStep(t *testing.T) {
	start := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	ps := makePrices(start, 0.10, 0.20, 0.30, 0.40)

	t.Run("matching step widths", func(t *testing.T) {
		// 900s controller step equals the market interval.
		assert.Equal(t, 0.10, ps.PriceForStep(0, 900))
		assert.Equal(t, 0.20, ps.PriceForStep(1, 900))
		assert.Equal(t, 0.40, ps.PriceForStep(3, 900))
	})

	t.Run("coarser controller step", func(t *testing.T) {
		// 1800s steps: step 1 lands on interval 2.
		assert.Equal(t, 0.10, ps.PriceForStep(0, 1800))
		assert.Equal(t, 0.30, ps.PriceForStep(1, 1800))
	})

	t.Run("finer controller step rounds to nearest", func(t *testing.T) {
		// 600s steps: step 1 is 600s in, nearest interval boundary is 900s.
		assert.Equal(t, 0.20, ps.PriceForStep(1, 600))
		assert.Equal(t, 0.20, ps.PriceForStep(2, 600)) // 1200s -> index 1
	})

	t.Run("clamps beyond the series", func(t *testing.T) {
		assert.Equal(t, 0.40, ps.PriceForStep(10, 900))
	})

	t.Run("empty series", func(t *testing.T) {
		assert.Zero(t, PriceSeries{}.PriceForStep(0, 900))
	})
}

func TestPriceSeries_HorizonSteps(t *testing.T) {
	start := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	minimum := 2 * time.Hour

	t.Run("full horizon when coverage suffices", func(t *testing.T) {
		ps := makePrices(start, make([]float64, 8)...)
		steps, err := ps.HorizonSteps(8, 900, minimum)
		require.NoError(t, err)
		assert.Equal(t, 8, steps)
	})

	t.Run("truncates to available coverage", func(t *testing.T) {
		// 12 intervals = 3h of coverage against a 6h request.
		ps := makePrices(start, make([]float64, 12)...)
		steps, err := ps.HorizonSteps(24, 900, minimum)
		require.NoError(t, err)
		assert.Equal(t, 12, steps)
	})

	t.Run("coverage exactly at the minimum", func(t *testing.T) {
		ps := makePrices(start, make([]float64, 8)...) // exactly 2h
		steps, err := ps.HorizonSteps(24, 900, minimum)
		require.NoError(t, err)
		assert.Equal(t, 8, steps)
	})

	t.Run("one interval short of the minimum", func(t *testing.T) {
		ps := makePrices(start, make([]float64, 7)...)
		_, err := ps.HorizonSteps(24, 900, minimum)
		assert.ErrorIs(t, err, ErrInsufficientPriceData)
	})

	t.Run("empty series", func(t *testing.T) {
		_, err := PriceSeries{}.HorizonSteps(8, 900, minimum)
		assert.ErrorIs(t, err, ErrInsufficientPriceData)
	})
}
