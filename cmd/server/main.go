package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"heatsim/internal/controller"
	"heatsim/internal/ingest"
	"heatsim/internal/metrics"
	"heatsim/internal/model"
	"heatsim/internal/regulator"
	"heatsim/internal/store"
	"heatsim/internal/ws"
)

func main() {
	inputDir := flag.String("input-dir", "input", "directory containing CSV measurement exports")
	addr := flag.String("addr", ":8080", "listen address")
	interval := flag.Duration("interval", 15*time.Minute, "regulation cadence")
	priceWindow := flag.Duration("price-window", 24*time.Hour, "how far ahead spot prices are loaded")
	priceControl := flag.Bool("price-control", false, "enable the price-aware objective at startup")
	passthrough := flag.Bool("passthrough", false, "disable MPC and forward the measured outdoor temperature")
	flag.Parse()

	dataStore := store.New()
	if err := loadCSVs(*inputDir, dataStore); err != nil {
		log.Fatalf("Failed to load CSV data: %v", err)
	}

	tr, ok := dataStore.GlobalTimeRange()
	if !ok {
		log.Fatal("No data loaded")
	}
	log.Printf("Data loaded: %s to %s", tr.Start.Format(time.RFC3339), tr.End.Format(time.RFC3339))

	params := regulator.DefaultParameters()
	params.ElectricityPriceEnabled = *priceControl

	var reg regulator.Regulator
	if *passthrough {
		reg = regulator.NewPassthroughRegulator(params.TimeStep)
	} else {
		reg = regulator.NewMPCRegulator(params)
	}

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub)
	recorder := metrics.NewRecorder()

	ctrl := controller.New(controller.Config{
		OutdoorSensorID: model.SensorHomeAssistantID[model.SensorOutdoorTemp],
		IndoorSensorID:  model.SensorHomeAssistantID[model.SensorIndoorTemp],
		MediumSensorID:  model.SensorHomeAssistantID[model.SensorMediumTemp],
		PriceSensorID:   model.SensorHomeAssistantID[model.SensorEnergyPrice],
		Interval:        *interval,
		PriceWindow:     *priceWindow,
	}, reg, dataStore, controller.MultiCallback{bridge, recorder})

	ctrl.Start()
	defer ctrl.Stop()

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)
	r.Handle("/ws", ws.NewHandler(hub, ctrl))
	r.Handle("/metrics", recorder.Handler()).Methods(http.MethodGet)

	log.Printf("Starting server on %s (interval %s, price control %v)", *addr, *interval, *priceControl)
	if err := http.ListenAndServe(*addr, handlers.LoggingHandler(os.Stdout, r)); err != nil {
		log.Fatal(err)
	}
}

// loadCSVs loads every CSV file in dir into the store and registers the
// sensors it discovers.
func loadCSVs(dir string, s *store.Store) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading input directory: %w", err)
	}

	parser := &ingest.CSVParser{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		log.Printf("Loading %s...", path)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}

		readings, err := parser.Parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}

		if len(readings) > 0 {
			registerSensors(readings, s)
			s.AddReadings(readings)
			log.Printf("  Loaded %d readings from %s", len(readings), entry.Name())
		}
	}

	return nil
}

// registerSensors registers each sensor type seen in a batch of readings.
func registerSensors(readings []model.Reading, s *store.Store) {
	seen := make(map[model.SensorType]bool)
	for _, r := range readings {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true

		name := string(r.Type)
		unit := r.Unit
		if info, ok := model.SensorCatalog[r.Type]; ok {
			name = info.Name
			unit = info.Unit
		}
		s.AddSensor(model.Sensor{
			ID:   r.SensorID,
			Name: name,
			Type: r.Type,
			Unit: unit,
		})
	}
}
