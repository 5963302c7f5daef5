package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsim/internal/model"
)

var (
	sensorID  = "sensor.panasonic_heat_pump_main_outside_temp"
	startTime = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
)

func makeReadings(sensorID string, values []float64, start time.Time, interval time.Duration) []model.Reading {
	readings := make([]model.Reading, len(values))
	for i, v := range values {
		readings[i] = model.Reading{
			Timestamp: start.Add(time.Duration(i) * interval),
			SensorID:  sensorID,
			Type:      model.SensorOutdoorTemp,
			Value:     v,
			Unit:      "°C",
		}
	}
	return readings
}

func TestStore_AddAndCount(t *testing.T) {
	s := New()
	s.AddReadings(makeReadings(sensorID, []float64{-5, -4.5, -4}, startTime, time.Hour))

	assert.Equal(t, 3, s.ReadingCount(sensorID))
	assert.Equal(t, 0, s.ReadingCount("nonexistent"))
}

func TestStore_OutOfOrderInsertsAreSorted(t *testing.T) {
	s := New()
	s.AddReadings([]model.Reading{
		{Timestamp: startTime.Add(2 * time.Hour), SensorID: sensorID, Value: 3},
		{Timestamp: startTime, SensorID: sensorID, Value: 1},
		{Timestamp: startTime.Add(time.Hour), SensorID: sensorID, Value: 2},
	})

	got := s.ReadingsInRange(sensorID, startTime, startTime.Add(3*time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value})
}

func TestStore_TimeRange(t *testing.T) {
	s := New()
	s.AddReadings(makeReadings(sensorID, []float64{-5, -4, -3}, startTime, time.Hour))

	tr, ok := s.TimeRange(sensorID)
	require.True(t, ok)
	assert.Equal(t, startTime, tr.Start)
	assert.Equal(t, startTime.Add(2*time.Hour), tr.End)

	_, ok = s.TimeRange("nonexistent")
	assert.False(t, ok)
}

func TestStore_GlobalTimeRange(t *testing.T) {
	s := New()
	_, ok := s.GlobalTimeRange()
	assert.False(t, ok)

	s.AddReadings(makeReadings("sensor.a", []float64{1, 2}, startTime, time.Hour))
	s.AddReadings(makeReadings("sensor.b", []float64{1}, startTime.Add(-time.Hour), time.Hour))

	tr, ok := s.GlobalTimeRange()
	require.True(t, ok)
	assert.Equal(t, startTime.Add(-time.Hour), tr.Start)
	assert.Equal(t, startTime.Add(time.Hour), tr.End)
}

func TestStore_ReadingsInRange(t *testing.T) {
	s := New()
	s.AddReadings(makeReadings(sensorID, []float64{1, 2, 3, 4, 5}, startTime, time.Hour))

	t.Run("start inclusive, end exclusive", func(t *testing.T) {
		got := s.ReadingsInRange(sensorID, startTime.Add(time.Hour), startTime.Add(3*time.Hour))
		require.Len(t, got, 2)
		assert.Equal(t, 2.0, got[0].Value)
		assert.Equal(t, 3.0, got[1].Value)
	})

	t.Run("empty window", func(t *testing.T) {
		assert.Nil(t, s.ReadingsInRange(sensorID, startTime.Add(10*time.Hour), startTime.Add(11*time.Hour)))
	})

	t.Run("unknown sensor", func(t *testing.T) {
		assert.Nil(t, s.ReadingsInRange("nonexistent", startTime, startTime.Add(time.Hour)))
	})
}

func TestStore_ReadingAt(t *testing.T) {
	s := New()
	s.AddReadings(makeReadings(sensorID, []float64{1, 2, 3}, startTime, time.Hour))

	t.Run("exact match", func(t *testing.T) {
		r, ok := s.ReadingAt(sensorID, startTime.Add(time.Hour))
		require.True(t, ok)
		assert.Equal(t, 2.0, r.Value)
	})

	t.Run("between readings returns the earlier one", func(t *testing.T) {
		r, ok := s.ReadingAt(sensorID, startTime.Add(90*time.Minute))
		require.True(t, ok)
		assert.Equal(t, 2.0, r.Value)
	})

	t.Run("before the first reading", func(t *testing.T) {
		_, ok := s.ReadingAt(sensorID, startTime.Add(-time.Minute))
		assert.False(t, ok)
	})

	t.Run("after the last reading", func(t *testing.T) {
		r, ok := s.ReadingAt(sensorID, startTime.Add(24*time.Hour))
		require.True(t, ok)
		assert.Equal(t, 3.0, r.Value)
	})
}

func TestStore_Sensors(t *testing.T) {
	s := New()
	s.AddSensor(model.Sensor{ID: "sensor.a", Name: "A", Type: model.SensorOutdoorTemp, Unit: "°C"})
	s.AddSensor(model.Sensor{ID: "sensor.b", Name: "B", Type: model.SensorEnergyPrice, Unit: "EUR/kWh"})
	// Re-adding replaces.
	s.AddSensor(model.Sensor{ID: "sensor.a", Name: "A2", Type: model.SensorOutdoorTemp, Unit: "°C"})

	sensors := s.Sensors()
	require.Len(t, sensors, 2)
}
