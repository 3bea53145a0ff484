// Package runtimeloop is the top-level orchestrator: it owns the fixed
// rate tick loop and wires together the intersection model, the signal
// state machine, the adaptive timing engine, the two safety watchdogs,
// and a detection provider. Nothing outside this package drives the
// signal.Controller's clock.
package runtimeloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/model"
	"github.com/tiger/adaptive-intersection-controller/internal/observability/telemetry"
	"github.com/tiger/adaptive-intersection-controller/internal/provider"
	"github.com/tiger/adaptive-intersection-controller/internal/provider/mock"
	"github.com/tiger/adaptive-intersection-controller/internal/provider/roi"
	"github.com/tiger/adaptive-intersection-controller/internal/safety"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
	"github.com/tiger/adaptive-intersection-controller/internal/timing"
)

// permissiveLeftThroughShare is the fraction of a quadrant-counted
// approach attributed to the through lane when no ROI polygons are
// configured; the remainder is attributed to the left-turn lane. A
// quadrant split alone cannot tell a through vehicle from a
// left-turning one, so this is a coarse, fixed approximation.
const permissiveLeftThroughShare = 0.85

// Observer receives a snapshot after every tick — the controller's
// equivalent of the teacher's on_tick callback list, used by a CLI
// status printer or a future dashboard.
type Observer interface {
	OnTick(StatusSnapshot)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(StatusSnapshot)

// OnTick calls f.
func (f ObserverFunc) OnTick(s StatusSnapshot) { f(s) }

// StatusSnapshot is the complete per-tick system status: what the
// teacher's get_full_status returns, flattened into a struct so callers
// don't need to walk a map[string]any.
type StatusSnapshot struct {
	Tick             int
	Queues           map[config.Direction]model.QueueSnapshot
	Heads            map[config.Direction]signal.Heads
	Mode             signal.Mode
	Step             signal.Step
	CycleCount       int
	CycleTimeS       float64
	PreemptionStatus string
	ConflictFault    bool
	ConflictCount    int
	LastCyclePlan    *timing.CyclePlan
}

// Controller is the top-level coordinator for a single intersection.
type Controller struct {
	Config config.IntersectionConfig

	Intersection    *model.Intersection
	Ring            *signal.Ring
	Signal          *signal.Controller
	TimingEngine    *timing.Engine
	ConflictMonitor *safety.ConflictMonitor
	Preemption      *safety.Manager
	Provider        provider.Provider
	Telemetry       telemetry.Emitter

	running    bool
	tickCount  int
	lastVision time.Time
	lastTick   time.Time
	lastPlan   *timing.CyclePlan

	observers []Observer

	asyncCancel context.CancelFunc
	asyncGroup  *errgroup.Group
	asyncBuf    asyncBuffer
}

type asyncBuffer struct {
	mu     sync.Mutex
	result *provider.DetectionResult
}

func (b *asyncBuffer) publish(r provider.DetectionResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = &r
}

func (b *asyncBuffer) take() (provider.DetectionResult, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result == nil {
		return provider.DetectionResult{}, false
	}
	r := *b.result
	b.result = nil
	return r, true
}

// New builds an unwired controller for the given config; call Setup
// before Tick or Run.
func New(cfg config.IntersectionConfig, emitter telemetry.Emitter) *Controller {
	if emitter == nil {
		emitter = telemetry.NoopEmitter
	}
	return &Controller{Config: cfg, Telemetry: emitter}
}

// AddObserver registers an observer to be notified after every tick.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Setup initializes every subsystem: the intersection model, the phase
// ring, the signal state machine, the adaptive timing engine, the two
// safety watchdogs, and the configured detection provider. It then runs
// one initial cycle-plan computation so the first tick already has
// sane green times.
func (c *Controller) Setup() error {
	cfg := c.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid intersection config: %w", err)
	}

	c.Intersection = model.NewStandardIntersection(cfg.Name, cfg.Flow, cfg.Timing.DefaultCrosswalkFt)
	c.Ring = signal.NewStandardFourWayRing(cfg.Timing)

	sc, err := signal.NewController(c.Ring)
	if err != nil {
		return fmt.Errorf("building signal controller: %w", err)
	}
	c.Signal = sc

	c.TimingEngine = timing.NewEngine(c.Intersection, cfg.Timing)
	c.ConflictMonitor = safety.NewConflictMonitor()
	c.Preemption = safety.NewManager(c.Signal)

	p, err := NewProvider(cfg.Vision.ProviderType)
	if err != nil {
		return err
	}
	providerCfg := cfg.Vision.ToMap()
	if err := config.ValidateProviderConfig(providerCfg); err != nil {
		return fmt.Errorf("provider %q config: %w", cfg.Vision.ProviderType, err)
	}
	if err := p.Initialize(providerCfg); err != nil {
		return fmt.Errorf("initializing provider %q: %w", cfg.Vision.ProviderType, err)
	}
	c.Provider = p

	if cfg.Vision.Async {
		c.startAsyncWorker()
	}

	plan := c.TimingEngine.ComputeCyclePlan(c.Ring)
	c.TimingEngine.ApplyPlan(plan, c.Ring)
	c.lastPlan = &plan

	return nil
}

// Teardown stops the async detection worker (if running) and shuts down
// the provider.
func (c *Controller) Teardown() error {
	c.running = false
	if c.asyncCancel != nil {
		c.asyncCancel()
		_ = c.asyncGroup.Wait()
	}
	if c.Provider != nil {
		return c.Provider.Shutdown()
	}
	return nil
}

// startAsyncWorker launches a background goroutine that repeatedly
// calls Provider.Detect at the configured target FPS and publishes its
// result into a single-slot buffer. It never touches intersection
// state: only runVision, called from the tick loop, reads the buffer
// and mutates lanes. This keeps every mutation of shared state on the
// single tick goroutine even though detection itself may be slow.
func (c *Controller) startAsyncWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	c.asyncCancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.asyncGroup = g

	interval := time.Duration(1.0 / c.Config.Vision.TargetFPS * float64(time.Second))
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				result, err := c.Provider.Detect(nil, c.Config.Vision.InputResolution, c.Config.Vision.InputResolution)
				if err != nil {
					c.Telemetry.Emit(telemetry.EventFault, fmt.Sprintf("async detect failed: %v", err), nil)
					continue
				}
				c.asyncBuf.publish(result)
			}
		}
	})
}

// Run blocks, advancing the tick loop at the configured rate until
// Teardown-equivalent stop is requested or maxTicks is reached (0 means
// unbounded). It corrects for drift by scheduling the next tick from
// the previous target time rather than from "now", so a slow tick never
// compounds into a growing lag.
func (c *Controller) Run(maxTicks int) {
	c.running = true
	interval := time.Duration(c.Config.TickInterval() * float64(time.Second))
	nextTick := time.Now()

	for c.running {
		now := time.Now()
		if !now.Before(nextTick) {
			c.Tick(now)
			nextTick = nextTick.Add(interval)

			if maxTicks > 0 && c.tickCount >= maxTicks {
				break
			}
		}

		sleep := time.Until(nextTick)
		if sleep > 0 {
			time.Sleep(time.Duration(float64(sleep) * 0.9))
		}
	}
	c.running = false
}

// Stop requests that Run return at the next opportunity.
func (c *Controller) Stop() {
	c.running = false
}

// Tick executes one controller tick: it runs vision at its own target
// rate (not necessarily every tick), runs the conflict monitor against
// the current heads, advances the signal state machine (which runs its
// own internal conflict check), advances the preemption lifecycle, and
// notifies observers.
func (c *Controller) Tick(now time.Time) StatusSnapshot {
	c.tickCount++

	dt := c.Config.TickInterval()
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick).Seconds()
	}
	c.lastTick = now

	visionInterval := 1.0 / c.Config.Vision.TargetFPS
	if now.Sub(c.lastVision).Seconds() >= visionInterval {
		c.runVision()
		c.lastVision = now
	}

	// Run the independent conflict monitor against the heads as they
	// stand right now, before anything this tick changes them — the
	// same input signal.Controller's own internal check will evaluate
	// an instant later inside Tick. If either watchdog sees a
	// conflicting pair, the signal machine is forced to all-red and
	// halted; only the monitor's own clean-check latch governs release.
	preTickHeads := c.Signal.Heads()
	if !c.ConflictMonitor.Check(preTickHeads) {
		c.Signal.EnterFault()
		c.Telemetry.Emit(telemetry.EventFault, c.ConflictMonitor.Describe(), map[string]string{
			"conflict_count": fmt.Sprint(c.ConflictMonitor.ConflictCount),
		})
	} else if c.Signal.IsFaulted() && !c.ConflictMonitor.FaultActive {
		c.Signal.ReleaseFault()
		c.Telemetry.Emit(telemetry.EventFault, "conflict monitor cleared, resuming normal cycling", nil)
	}

	transition := c.Signal.Tick(dt)
	if transition.CycleComplete {
		c.onCycleComplete()
	}

	heads := c.Signal.Heads()
	c.Preemption.Tick(dt)

	snapshot := c.snapshot(heads)
	for _, o := range c.observers {
		o.OnTick(snapshot)
	}
	return snapshot
}

// runVision pulls one detection result — synchronously from the
// provider, or from the async worker's single-slot buffer when
// Vision.Async is set — and folds it into the intersection's lane
// queues. The mock provider's own queue bookkeeping is trusted
// directly; any other provider is fed through ROI counting when lane
// polygons are configured, or a coarse quadrant split otherwise.
func (c *Controller) runVision() {
	var (
		result provider.DetectionResult
		err    error
		ok     = true
	)

	if c.Config.Vision.Async {
		result, ok = c.asyncBuf.take()
		if !ok {
			return
		}
	} else {
		result, err = c.Provider.Detect(nil, c.Config.Vision.InputResolution, c.Config.Vision.InputResolution)
		if err != nil {
			c.Telemetry.Emit(telemetry.EventFault, fmt.Sprintf("vision detect failed: %v", err), nil)
			return
		}
	}

	if mp, isMock := c.Provider.(*mock.Provider); isMock {
		for _, lq := range mp.QueueCounts() {
			approach, aerr := c.Intersection.Approach(lq.Direction)
			if aerr != nil {
				continue
			}
			lane := approach.ThroughLane
			if lq.Lane == config.LeftTurn {
				lane = approach.LeftTurnLane
			}
			lane.Update(lq.Count, lane.ArrivalRate)
		}
		return
	}

	if len(c.Config.LaneROIs) > 0 {
		for _, lc := range roi.CountByROI(result, c.Config.LaneROIs) {
			approach, aerr := c.Intersection.Approach(lc.Direction)
			if aerr != nil {
				continue
			}
			lane := approach.ThroughLane
			if lc.Lane == config.LeftTurn {
				lane = approach.LeftTurnLane
			}
			lane.Update(lc.Count, lane.ArrivalRate)
		}
		return
	}

	for d, count := range roi.CountByQuadrant(result) {
		approach, aerr := c.Intersection.Approach(d)
		if aerr != nil {
			continue
		}
		throughCount := int(float64(count) * permissiveLeftThroughShare)
		leftCount := count - throughCount
		if leftCount < 0 {
			leftCount = 0
		}
		approach.ThroughLane.Update(throughCount, approach.ThroughLane.ArrivalRate)
		approach.LeftTurnLane.Update(leftCount, approach.LeftTurnLane.ArrivalRate)
	}
}

// onCycleComplete recomputes and applies a fresh cycle plan, unless a
// preemption is currently holding the intersection — recomputing green
// splits mid-preemption would be wasted work applied to a ring that
// isn't being followed right now anyway.
func (c *Controller) onCycleComplete() {
	if c.Preemption.IsActive() {
		return
	}
	plan := c.TimingEngine.ComputeCyclePlan(c.Ring)
	c.TimingEngine.ApplyPlan(plan, c.Ring)
	c.lastPlan = &plan
	c.Telemetry.Emit(telemetry.EventCyclePlan, fmt.Sprintf("cycle plan: length=%.0fs", plan.CycleLengthS), nil)
}

// TriggerPreemption requests emergency-vehicle preemption for dir.
func (c *Controller) TriggerPreemption(dir config.Direction) error {
	_, err := c.Preemption.Request(dir, safety.DefaultMinHoldS)
	if err == nil {
		c.Telemetry.Emit(telemetry.EventPreemption, fmt.Sprintf("preemption requested for %s", dir), nil)
	}
	return err
}

// ClearPreemption manually clears the active preemption.
func (c *Controller) ClearPreemption() {
	c.Preemption.Clear()
}

func (c *Controller) snapshot(heads map[config.Direction]signal.Heads) StatusSnapshot {
	return StatusSnapshot{
		Tick:             c.tickCount,
		Queues:           c.Intersection.Snapshot(),
		Heads:            heads,
		Mode:             c.Signal.CurrentMode(),
		Step:             c.Signal.Step(),
		CycleCount:       c.Signal.CycleCount(),
		CycleTimeS:       c.Ring.TotalCycleTime(),
		PreemptionStatus: c.Preemption.Status(),
		ConflictFault:    c.ConflictMonitor.FaultActive || c.Signal.IsFaulted(),
		ConflictCount:    c.ConflictMonitor.ConflictCount,
		LastCyclePlan:    c.lastPlan,
	}
}
