package safety

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/signal"
)

func newTestManager(t *testing.T) (*Manager, *signal.Controller) {
	t.Helper()
	ring := signal.NewStandardFourWayRing(config.DefaultTimingConstraints())
	c, err := signal.NewController(ring)
	require.NoError(t, err)
	return NewManager(c), c
}

func TestRequestActivatesImmediatelyWhenIdle(t *testing.T) {
	m, c := newTestManager(t)
	ev, err := m.Request(config.East, 10)
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.True(t, m.IsActive())
	require.NotEqual(t, signal.ModeNormal, c.CurrentMode())
}

func TestSecondRequestQueuesBehindActive(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Request(config.East, 10)
	require.NoError(t, err)
	_, err = m.Request(config.West, 10)
	require.NoError(t, err)
	require.Equal(t, 1, m.QueueDepth())
}

func TestRequestRejectsInvalidDirection(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Request(config.Direction("NE"), 10)
	require.Error(t, err)
}

func TestTickAutoClearsAfterMaxHold(t *testing.T) {
	m, c := newTestManager(t)
	m.MaxHoldS = 5
	_, err := m.Request(config.East, 2)
	require.NoError(t, err)

	// drive the controller through its pre-hold clearance so it actually
	// enters the hold, then exceed the max hold.
	timing := config.DefaultTimingConstraints()
	c.Tick(timing.YellowS)
	c.Tick(timing.AllRedS)
	require.Equal(t, signal.ModePreemptHold, c.CurrentMode())

	m.Tick(5)
	require.False(t, m.IsActive())
}

// TestClearActivatesQueuedEventImmediately is scenario S6: request(N),
// request(E), clear() — the queued event must become active and the
// queue must be empty the instant clear() returns, with no intervening
// tick of the controller or the manager.
func TestClearActivatesQueuedEventImmediately(t *testing.T) {
	m, c := newTestManager(t)
	timing := config.DefaultTimingConstraints()

	_, err := m.Request(config.North, 1)
	require.NoError(t, err)
	require.Equal(t, config.North, m.active.Direction)

	_, err = m.Request(config.East, 1)
	require.NoError(t, err)
	require.Equal(t, 1, m.QueueDepth())

	c.Tick(timing.YellowS)
	c.Tick(timing.AllRedS)
	require.Equal(t, signal.ModePreemptHold, c.CurrentMode())

	m.Clear()

	require.True(t, m.IsActive())
	require.Equal(t, config.East, m.active.Direction)
	require.Equal(t, 0, m.QueueDepth())

	// The controller accepted the handoff without round-tripping through
	// ModeNormal: it rides out the first hold's own clearance, then
	// serves East.
	require.NotEqual(t, signal.ModeNormal, c.CurrentMode())
	c.Tick(timing.YellowS)
	c.Tick(timing.AllRedS)
	require.Equal(t, signal.ModePreemptHold, c.CurrentMode())
}
