package controller

import (
	"log"
	"sync"
	"time"

	"heatsim/internal/model"
	"heatsim/internal/regulator"
	"heatsim/internal/store"
)

// Result is one successful regulation cycle, ready for publishing.
type Result struct {
	Timestamp        time.Time
	ActualOutdoor    float64
	SimulatedOutdoor float64 // first step of the trajectory, what the pump sees
	Horizon          int
	ComputationMS    float64

	SimulatedOutdoorTemperatures []model.TrajectoryPoint
	OutdoorTemperatureOffsets    []model.TrajectoryPoint
	ProjectedIndoorTemperature   []model.TrajectoryPoint
	ProjectedMediumTemperature   []model.TrajectoryPoint
	ProjectedThermalPower        []model.TrajectoryPoint
}

// Status describes the controller loop.
type Status struct {
	Phase           string
	Running         bool
	IntervalSeconds float64
	LastCycle       time.Time
	PriceCoverage   time.Duration
}

// Callback receives controller events.
type Callback interface {
	OnRegulation(result Result)
	OnStatus(status Status)
	OnError(err error)
}

// MultiCallback fans events out to several callbacks.
type MultiCallback []Callback

func (m MultiCallback) OnRegulation(result Result) {
	for _, cb := range m {
		cb.OnRegulation(result)
	}
}

func (m MultiCallback) OnStatus(status Status) {
	for _, cb := range m {
		cb.OnStatus(status)
	}
}

func (m MultiCallback) OnError(err error) {
	for _, cb := range m {
		cb.OnError(err)
	}
}

// Config wires the controller to its sensors.
type Config struct {
	OutdoorSensorID string
	IndoorSensorID  string
	MediumSensorID  string // optional, loop temperature rarely measured
	PriceSensorID   string // optional, required for price control

	Interval    time.Duration // control cadence
	PriceWindow time.Duration // how far ahead prices are loaded
}

// Controller is the external-facing orchestrator: it feeds fresh
// measurements and prices into the regulator, runs Regulate on a fixed
// cadence, and fans results out to callbacks. Failed cycles keep the
// regulator's previous trajectory.
type Controller struct {
	mu        sync.Mutex
	cycleMu   sync.Mutex // serializes cycles, Regulate is not reentrant
	cfg       Config
	reg       regulator.Regulator
	store     *store.Store
	callback  Callback
	running   bool
	stopCh    chan struct{}
	lastCycle time.Time
}

func New(cfg Config, reg regulator.Regulator, s *store.Store, cb Callback) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.PriceWindow <= 0 {
		cfg.PriceWindow = 24 * time.Hour
	}
	return &Controller{cfg: cfg, reg: reg, store: s, callback: cb}
}

// Start begins the control loop.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	c.mu.Unlock()

	c.broadcastStatus()
	go c.loop(stop)
}

// Stop halts the control loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.broadcastStatus()
}

func (c *Controller) loop(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// First cycle immediately rather than one interval in.
	if err := c.Cycle(time.Now()); err != nil {
		log.Printf("regulation cycle: %v", err)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Cycle(time.Now()); err != nil {
				log.Printf("regulation cycle: %v", err)
			}
		}
	}
}

// Cycle runs one control step: refresh measurements and prices, regulate,
// publish. Exposed for deterministic testing and manual triggering.
func (c *Controller) Cycle(now time.Time) error {
	// A manual trigger must not overlap the ticker's cycle: two in-flight
	// solves would race on the ramp anchor and the trajectory swap.
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	update := regulator.StateUpdate{}

	if r, ok := c.store.ReadingAt(c.cfg.OutdoorSensorID, now); ok {
		v := r.Value
		update.ActualOutdoorTemperature = &v
	}
	if r, ok := c.store.ReadingAt(c.cfg.IndoorSensorID, now); ok {
		v := r.Value
		update.IndoorTemperature = &v
	}
	if c.cfg.MediumSensorID != "" {
		if r, ok := c.store.ReadingAt(c.cfg.MediumSensorID, now); ok {
			v := r.Value
			update.MediumTemperature = &v
		}
	}
	if c.cfg.PriceSensorID != "" {
		series := c.loadPrices(now)
		update.ElectricityPrice = &series
	}

	c.reg.SetState(update)

	err := c.reg.Regulate(now)

	c.mu.Lock()
	c.lastCycle = now
	c.mu.Unlock()

	if err != nil {
		c.callback.OnError(err)
		c.broadcastStatus()
		return err
	}

	c.callback.OnRegulation(c.resultFromState(now))
	c.broadcastStatus()
	return nil
}

// TriggerRegulate runs a cycle off the caller's goroutine.
func (c *Controller) TriggerRegulate() {
	go func() {
		if err := c.Cycle(time.Now()); err != nil {
			log.Printf("manual regulation cycle: %v", err)
		}
	}()
}

// SetPriceControl toggles the price-aware objective.
func (c *Controller) SetPriceControl(enabled bool) error {
	err := c.reg.UpdateParametersFromOptions(map[string]any{
		"electricity_price_enabled": enabled,
	})
	if err != nil {
		return err
	}
	c.broadcastStatus()
	return nil
}

// UpdateOptions forwards a whitelist-checked option map to the regulator.
func (c *Controller) UpdateOptions(options map[string]any) error {
	return c.reg.UpdateParametersFromOptions(options)
}

// Status returns the current loop status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	running := c.running
	last := c.lastCycle
	c.mu.Unlock()

	state := c.reg.State()
	return Status{
		Phase:           c.reg.Phase().String(),
		Running:         running,
		IntervalSeconds: c.cfg.Interval.Seconds(),
		LastCycle:       last,
		PriceCoverage:   state.ElectricityPrice.Coverage(),
	}
}

// loadPrices maps stored price readings into a forward-looking series whose
// first interval covers now.
func (c *Controller) loadPrices(now time.Time) regulator.PriceSeries {
	from := now.Truncate(regulator.PriceInterval)
	readings := c.store.ReadingsInRange(c.cfg.PriceSensorID, from, now.Add(c.cfg.PriceWindow))

	points := make([]model.PricePoint, 0, len(readings))
	for _, r := range readings {
		points = append(points, model.PricePoint{
			Start: r.Timestamp,
			End:   r.Timestamp.Add(regulator.PriceInterval),
			Price: r.Value,
		})
	}
	return regulator.PriceSeries{Points: points}
}

func (c *Controller) resultFromState(now time.Time) Result {
	state := c.reg.State()

	res := Result{
		Timestamp:                    now,
		Horizon:                      len(state.SimulatedOutdoorTemperatures),
		SimulatedOutdoorTemperatures: state.SimulatedOutdoorTemperatures,
		OutdoorTemperatureOffsets:    state.OutdoorTemperatureOffsets,
		ProjectedIndoorTemperature:   state.ProjectedIndoorTemperature,
		ProjectedMediumTemperature:   state.ProjectedMediumTemperature,
		ProjectedThermalPower:        state.ProjectedThermalPower,
	}
	if state.ActualOutdoorTemperature != nil {
		res.ActualOutdoor = *state.ActualOutdoorTemperature
	}
	if len(state.SimulatedOutdoorTemperatures) > 0 {
		res.SimulatedOutdoor = state.SimulatedOutdoorTemperatures[0].Value
	}
	if state.ComputationTime != nil {
		res.ComputationMS = *state.ComputationTime
	}
	return res
}

func (c *Controller) broadcastStatus() {
	c.callback.OnStatus(c.Status())
}
