// Package telemetry is the controller's only "logging" mechanism: a
// bounded, non-blocking event pipeline that never lets a slow or stuck
// sink stall the safety-critical tick loop. Every subsystem that needs
// to report something — a clamp, a latched fault, a preemption
// lifecycle transition, a new cycle plan — emits an Event through an
// Emitter; a background goroutine drains the queue and hands events to
// a pluggable Sink.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies what kind of diagnostic record an Event carries.
type EventKind string

const (
	EventCyclePlan  EventKind = "cycle_plan"
	EventClamp      EventKind = "clamp"
	EventFault      EventKind = "fault"
	EventPreemption EventKind = "preemption"
	EventTick       EventKind = "tick"
)

// Event is the normalized telemetry emission envelope. Fields not
// relevant to Kind are left zero-valued; Sinks switch on Kind.
type Event struct {
	Kind        EventKind
	TimestampMS int64

	// Message is a short human-readable summary, always populated.
	Message string

	// Attributes carries kind-specific structured detail (phase id,
	// direction, clamp delta, fault description, ...).
	Attributes map[string]string
}

// Sink exports normalized telemetry events. Implementations must return
// promptly; the pipeline bounds every export with Config.ExportTimeout.
type Sink interface {
	Export(context.Context, Event) error
}

// Emitter is the non-blocking emission handle every subsystem holds.
type Emitter interface {
	Emit(kind EventKind, message string, attributes map[string]string)
}

type noopEmitter struct{}

func (noopEmitter) Emit(EventKind, string, map[string]string) {}

// NoopEmitter is an Emitter that discards everything, used where no
// pipeline has been wired (e.g. in unit tests for unrelated packages).
var NoopEmitter Emitter = noopEmitter{}

// Config controls the pipeline's bounded queue and export behavior.
type Config struct {
	QueueCapacity int
	ExportTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity < 1 {
		c.QueueCapacity = 256
	}
	if c.ExportTimeout <= 0 {
		c.ExportTimeout = 200 * time.Millisecond
	}
	return c
}

// Stats captures current pipeline counters, for status snapshots.
type Stats struct {
	Enqueued       uint64
	Dropped        uint64
	Exported       uint64
	ExportFailures uint64
	QueueDepth     int
}

// Pipeline is a bounded, non-blocking telemetry pipeline: Emit always
// returns immediately, either enqueuing the event or incrementing a
// drop counter if the queue is full. A single background goroutine
// drains the queue and exports to Sink.
type Pipeline struct {
	sink Sink
	cfg  Config

	queue chan Event
	stop  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	enqueued       atomic.Uint64
	dropped        atomic.Uint64
	exported       atomic.Uint64
	exportFailures atomic.Uint64
}

type discardSink struct{}

func (discardSink) Export(context.Context, Event) error { return nil }

// NewPipeline constructs and starts a telemetry pipeline. A nil sink
// discards every event while still exercising the bounded-queue
// machinery (useful for tests that only care about counters).
func NewPipeline(sink Sink, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = discardSink{}
	}
	p := &Pipeline{
		sink:  sink,
		cfg:   cfg,
		queue: make(chan Event, cfg.QueueCapacity),
		stop:  make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Close drains pending events and stops the background goroutine. Safe
// to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
	})
	return nil
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Enqueued:       p.enqueued.Load(),
		Dropped:        p.dropped.Load(),
		Exported:       p.exported.Load(),
		ExportFailures: p.exportFailures.Load(),
		QueueDepth:     len(p.queue),
	}
}

// Emit enqueues an event without blocking. If the queue is full the
// event is dropped and counted, never blocking the caller — the caller
// is very often the safety-critical tick loop itself.
func (p *Pipeline) Emit(kind EventKind, message string, attributes map[string]string) {
	event := Event{
		Kind:        kind,
		TimestampMS: time.Now().UnixMilli(),
		Message:     message,
		Attributes:  cloneAttributes(attributes),
	}
	select {
	case p.queue <- event:
		p.enqueued.Add(1)
	default:
		p.dropped.Add(1)
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			for {
				select {
				case event := <-p.queue:
					p.export(event)
				default:
					return
				}
			}
		case event := <-p.queue:
			p.export(event)
		}
	}
}

func (p *Pipeline) export(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ExportTimeout)
	defer cancel()
	if err := p.sink.Export(ctx, event); err != nil {
		p.exportFailures.Add(1)
		return
	}
	p.exported.Add(1)
}

func cloneAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
