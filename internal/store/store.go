package store

import (
	"sort"
	"sync"
	"time"

	"heatsim/internal/model"
)

// Store holds sensor readings in memory, indexed by sensor ID and sorted by
// timestamp so lookups can binary-search.
type Store struct {
	mu       sync.RWMutex
	sensors  map[string]model.Sensor
	readings map[string][]model.Reading
}

func New() *Store {
	return &Store{
		sensors:  make(map[string]model.Sensor),
		readings: make(map[string][]model.Reading),
	}
}

// AddSensor registers a sensor.
func (s *Store) AddSensor(sensor model.Sensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensors[sensor.ID] = sensor
}

// AddReadings appends readings and keeps each sensor's slice sorted.
func (s *Store) AddReadings(readings []model.Reading) {
	if len(readings) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]bool)
	for _, r := range readings {
		s.readings[r.SensorID] = append(s.readings[r.SensorID], r)
		touched[r.SensorID] = true
	}
	for id := range touched {
		rs := s.readings[id]
		sort.Slice(rs, func(i, j int) bool {
			return rs[i].Timestamp.Before(rs[j].Timestamp)
		})
	}
}

// Sensors returns all registered sensors.
func (s *Store) Sensors() []model.Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sensors := make([]model.Sensor, 0, len(s.sensors))
	for _, sensor := range s.sensors {
		sensors = append(sensors, sensor)
	}
	return sensors
}

// ReadingCount returns the number of readings stored for a sensor.
func (s *Store) ReadingCount(sensorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.readings[sensorID])
}

// TimeRange returns the span covered by a sensor's readings.
func (s *Store) TimeRange(sensorID string) (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := s.readings[sensorID]
	if len(rs) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: rs[0].Timestamp,
		End:   rs[len(rs)-1].Timestamp,
	}, true
}

// GlobalTimeRange returns the union of all sensors' time ranges.
func (s *Store) GlobalTimeRange() (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tr model.TimeRange
	found := false
	for _, rs := range s.readings {
		if len(rs) == 0 {
			continue
		}
		if !found || rs[0].Timestamp.Before(tr.Start) {
			tr.Start = rs[0].Timestamp
		}
		if !found || rs[len(rs)-1].Timestamp.After(tr.End) {
			tr.End = rs[len(rs)-1].Timestamp
		}
		found = true
	}
	return tr, found
}

// ReadingsInRange returns readings between start (inclusive) and end
// (exclusive).
func (s *Store) ReadingsInRange(sensorID string, start, end time.Time) []model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.readings[sensorID]
	if len(all) == 0 {
		return nil
	}

	lo := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(end)
	})
	if lo >= hi {
		return nil
	}

	out := make([]model.Reading, hi-lo)
	copy(out, all[lo:hi])
	return out
}

// ReadingAt returns the most recent reading at or before t.
func (s *Store) ReadingAt(sensorID string, t time.Time) (model.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.readings[sensorID]
	if len(all) == 0 {
		return model.Reading{}, false
	}

	idx := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp.After(t)
	})
	if idx == 0 {
		return model.Reading{}, false
	}
	return all[idx-1], true
}
