package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"heatsim/internal/model"
)

// Parser reads sensor data from a source and returns readings.
type Parser interface {
	Parse(r io.Reader) ([]model.Reading, error)
}

// CSVParser parses Home Assistant measurement exports.
//
// Expected format:
//
//	sensor_id,value,updated_ts
//	sensor.panasonic_heat_pump_main_outside_temp,-4.5,1770896300.6877737
//
// Rows with unknown entities or unparseable fields are skipped; a file with
// a wrong header fails outright.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader) ([]model.Reading, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	var readings []model.Reading
	lineNum := 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		reading, err := parseRecord(record, lineNum)
		if err != nil {
			continue
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

func validateHeader(header []string) error {
	if len(header) < 3 {
		return fmt.Errorf("expected at least 3 columns, got %d", len(header))
	}
	expected := []string{"sensor_id", "value", "updated_ts"}
	for i, col := range expected {
		if strings.TrimSpace(header[i]) != col {
			return fmt.Errorf("expected column %d to be %q, got %q", i, col, header[i])
		}
	}
	return nil
}

func parseRecord(record []string, lineNum int) (model.Reading, error) {
	if len(record) < 3 {
		return model.Reading{}, fmt.Errorf("line %d: expected 3 fields, got %d", lineNum, len(record))
	}

	entityID := strings.TrimSpace(record[0])
	sensorType, ok := model.HAEntityToSensorType[entityID]
	if !ok {
		return model.Reading{}, fmt.Errorf("line %d: unknown entity %q", lineNum, entityID)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: parsing value: %w", lineNum, err)
	}

	ts, err := parseUnixTimestamp(strings.TrimSpace(record[2]))
	if err != nil {
		return model.Reading{}, fmt.Errorf("line %d: parsing timestamp: %w", lineNum, err)
	}

	info := model.SensorCatalog[sensorType]
	return model.Reading{
		Timestamp: ts,
		SensorID:  entityID,
		Type:      sensorType,
		Value:     value,
		Unit:      info.Unit,
	}, nil
}

// parseUnixTimestamp accepts both integer and fractional epoch seconds.
func parseUnixTimestamp(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}
