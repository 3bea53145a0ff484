package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitExportsToSink(t *testing.T) {
	sink := NewMemorySink()
	p := NewPipeline(sink, Config{})
	defer p.Close()

	p.Emit(EventFault, "conflict detected", map[string]string{"pair": "N-E"})

	require.Eventually(t, func() bool {
		return len(sink.Events()) == 1
	}, time.Second, time.Millisecond)

	events := sink.Events()
	require.Equal(t, EventFault, events[0].Kind)
	require.Equal(t, "conflict detected", events[0].Message)
}

func TestEmitDropsWhenQueueFull(t *testing.T) {
	sink := NewMemorySink()
	p := NewPipeline(sink, Config{QueueCapacity: 1})
	defer p.Close()

	for i := 0; i < 100; i++ {
		p.Emit(EventTick, "tick", nil)
	}

	require.Eventually(t, func() bool {
		stats := p.Stats()
		return stats.Enqueued+stats.Dropped == 100
	}, time.Second, time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	p := NewPipeline(nil, Config{})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestNoopEmitterDiscardsSilently(t *testing.T) {
	require.NotPanics(t, func() {
		NoopEmitter.Emit(EventTick, "tick", nil)
	})
}
