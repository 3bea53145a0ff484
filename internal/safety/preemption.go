package safety

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
)

// DefaultMaxHoldS is the maximum time a preemption hold may run before
// the manager auto-clears it, regardless of whether the emergency
// vehicle has actually cleared the intersection.
const DefaultMaxHoldS = 30.0

// DefaultMinHoldS is the minimum hold requested when a caller does not
// specify one.
const DefaultMinHoldS = 10.0

// Event is a single preemption request and its lifecycle timestamps.
type Event struct {
	ID          string
	Direction   config.Direction
	MinHoldS    float64
	RequestedAt time.Time
	ActivatedAt *time.Time
	ClearedAt   *time.Time

	holdElapsedS float64
}

// IsActive reports whether this event is the one currently holding the
// intersection.
func (e *Event) IsActive() bool {
	return e.ActivatedAt != nil && e.ClearedAt == nil
}

// HoldElapsedS returns how long this event has held the intersection, as
// of the last Manager.Tick call.
func (e *Event) HoldElapsedS() float64 {
	return e.holdElapsedS
}

// Manager sequences emergency-vehicle preemption requests against a
// signal Controller: at most one event is active at a time, additional
// requests queue in FIFO order, and a hold auto-clears after MaxHoldS
// even if nobody calls Clear.
type Manager struct {
	Controller *signal.Controller
	MaxHoldS   float64

	pending     []*Event
	active      *Event
	history     []*Event
}

// NewManager builds a preemption manager bound to a controller, using
// the standard max-hold timeout.
func NewManager(c *signal.Controller) *Manager {
	return &Manager{Controller: c, MaxHoldS: DefaultMaxHoldS}
}

// Request asks for preemption for an emergency vehicle approaching from
// dir. If a preemption is already active, the request is appended to the
// FIFO queue instead of preempting the current hold.
func (m *Manager) Request(dir config.Direction, minHoldS float64) (*Event, error) {
	if err := dir.Validate(); err != nil {
		return nil, err
	}
	if minHoldS <= 0 {
		minHoldS = DefaultMinHoldS
	}
	event := &Event{
		ID:          uuid.NewString(),
		Direction:   dir,
		MinHoldS:    minHoldS,
		RequestedAt: time.Now(),
	}

	if m.active != nil {
		m.pending = append(m.pending, event)
		return event, nil
	}
	if err := m.activate(event); err != nil {
		return nil, err
	}
	return event, nil
}

// Tick advances the preemption lifecycle by dtS seconds: it accumulates
// hold time against the active event and auto-clears it once the hold
// time reaches MaxHoldS. It also activates a pending event if none is active — a
// defensive backstop for Clear's own inline activation, not the primary
// path.
func (m *Manager) Tick(dtS float64) {
	if m.active == nil {
		if len(m.pending) > 0 {
			next := m.pending[0]
			m.pending = m.pending[1:]
			_ = m.activate(next) // direction was already validated at Request time
		}
		return
	}

	m.active.holdElapsedS += dtS
	if m.active.holdElapsedS >= m.MaxHoldS {
		m.Clear()
	}
}

// Clear ends the active preemption and tells the controller to resume
// normal cycling, then immediately activates the next queued event, if
// any — so, e.g., a second emergency vehicle queued behind the first
// takes over the instant the first clears, with no intervening tick.
// signal.Controller.RequestPreemption is built to accept this immediate
// handoff even though the controller has not yet actually reached
// ModeNormal.
func (m *Manager) Clear() {
	if m.active == nil {
		return
	}
	now := time.Now()
	m.active.ClearedAt = &now
	m.history = append(m.history, m.active)
	m.Controller.ClearPreemption()
	m.active = nil

	if len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		_ = m.activate(next)
	}
}

func (m *Manager) activate(event *Event) error {
	now := time.Now()
	event.ActivatedAt = &now
	m.active = event
	return m.Controller.RequestPreemption(event.Direction, event.MinHoldS)
}

// IsActive reports whether a preemption is currently holding the
// intersection.
func (m *Manager) IsActive() bool {
	return m.active != nil
}

// QueueDepth returns how many preemption requests are waiting behind the
// active one.
func (m *Manager) QueueDepth() int {
	return len(m.pending)
}

// Status renders a short status line for telemetry and CLI display.
func (m *Manager) Status() string {
	if m.active == nil {
		return fmt.Sprintf("idle (queue depth %d, %d total events)", len(m.pending), len(m.history))
	}
	return fmt.Sprintf("active for %s, held %.1fs (queue depth %d)", m.active.Direction, m.active.holdElapsedS, len(m.pending))
}
