package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"heatsim/internal/ingest"
	"heatsim/internal/model"
	"heatsim/internal/regulator"
)

// Offline closed-loop run: the regulator's own one-step prediction is fed
// back as the next measurement, so the plant is the thermal model itself.
// Useful for tuning weights and comparing price-aware against plain MPC.
func main() {
	hours := flag.Float64("hours", 24, "simulation length in hours")
	outdoor := flag.Float64("outdoor", -5, "constant outdoor temperature, °C")
	indoor := flag.Float64("indoor", 18, "initial indoor temperature, °C")
	priceCSV := flag.String("price-csv", "", "optional spot price CSV (enables price control)")
	startFlag := flag.String("start", "", "simulation start time, RFC3339 (default now)")
	flag.Parse()

	start := time.Now().UTC().Truncate(regulator.PriceInterval)
	if *startFlag != "" {
		t, err := time.Parse(time.RFC3339, *startFlag)
		if err != nil {
			log.Fatalf("Invalid start time %q: %v", *startFlag, err)
		}
		start = t.UTC()
	}

	params := regulator.DefaultParameters()

	var prices regulator.PriceSeries
	if *priceCSV != "" {
		var err error
		prices, err = loadPrices(*priceCSV)
		if err != nil {
			log.Fatalf("Loading prices: %v", err)
		}
		params.ElectricityPriceEnabled = true
		log.Printf("Loaded %d price points, coverage %s", len(prices.Points), prices.Coverage())
	}

	reg := regulator.NewMPCRegulator(params)

	roomTemp := *indoor
	outdoorTemp := *outdoor
	update := regulator.StateUpdate{
		ActualOutdoorTemperature: &outdoorTemp,
		IndoorTemperature:        &roomTemp,
	}

	step := time.Duration(params.TimeStep * float64(time.Second))
	steps := int(*hours * 3600 / params.TimeStep)

	w := csv.NewWriter(os.Stdout)
	w.Write([]string{"time", "indoor", "medium", "simulated_outdoor", "offset", "power_w", "price"})

	now := start
	for i := 0; i < steps; i++ {
		price := 0.0
		if params.ElectricityPriceEnabled {
			// Slide the series so its first interval covers the simulated now.
			idx := int(now.Sub(start) / regulator.PriceInterval)
			if idx >= len(prices.Points) {
				log.Fatalf("Price data exhausted at step %d (%s)", i, now.Format(time.RFC3339))
			}
			remaining := regulator.PriceSeries{Points: prices.Points[idx:]}
			update.ElectricityPrice = &remaining
			price = remaining.Points[0].Price
		}

		reg.SetState(update)
		if err := reg.Regulate(now); err != nil {
			log.Fatalf("Step %d (%s): %v", i, now.Format(time.RFC3339), err)
		}

		state := reg.State()

		w.Write([]string{
			now.Format(time.RFC3339),
			fmt.Sprintf("%.3f", roomTemp),
			fmt.Sprintf("%.3f", state.ProjectedMediumTemperature[0].Value),
			fmt.Sprintf("%.3f", state.SimulatedOutdoorTemperatures[0].Value),
			fmt.Sprintf("%.3f", state.OutdoorTemperatureOffsets[0].Value),
			fmt.Sprintf("%.1f", state.ProjectedThermalPower[0].Value),
			strconv.FormatFloat(price, 'f', -1, 64),
		})

		// The one-step-ahead prediction becomes the next measurement.
		// Trajectory index 0 holds the state at the start of the interval.
		next := 1
		if len(state.ProjectedIndoorTemperature) == 1 {
			next = 0
		}
		roomTemp = state.ProjectedIndoorTemperature[next].Value
		medium := state.ProjectedMediumTemperature[next].Value
		update.IndoorTemperature = &roomTemp
		update.MediumTemperature = &medium
		now = now.Add(step)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		log.Fatal(err)
	}
}

func loadPrices(path string) (regulator.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return regulator.PriceSeries{}, err
	}
	defer f.Close()

	parser := &ingest.CSVParser{}
	readings, err := parser.Parse(f)
	if err != nil {
		return regulator.PriceSeries{}, err
	}

	priceID := model.SensorHomeAssistantID[model.SensorEnergyPrice]
	points := make([]model.PricePoint, 0, len(readings))
	for _, r := range readings {
		if r.SensorID != priceID {
			continue
		}
		points = append(points, model.PricePoint{
			Start: r.Timestamp,
			End:   r.Timestamp.Add(regulator.PriceInterval),
			Price: r.Value,
		})
	}
	return regulator.PriceSeries{Points: points}, nil
}
