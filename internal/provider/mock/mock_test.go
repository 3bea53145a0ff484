package mock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
)

func TestInitializeAppliesDefaultsAndIgnoresUnknownKeys(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialize(map[string]any{
		"random_seed":      int64(42),
		"enable_surge":     false,
		"some_unknown_key": "ignored",
	}))
	require.Equal(t, "mock", p.Name())
}

func TestDetectFailsBeforeInitialize(t *testing.T) {
	p := New()
	_, err := p.Detect(nil, 0, 0)
	require.Error(t, err)
}

func TestDetectReturnsDeterministicProviderName(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialize(map[string]any{"random_seed": int64(7)}))
	result, err := p.Detect(nil, 640, 640)
	require.NoError(t, err)
	require.Equal(t, "mock", result.ProviderName)
	require.Equal(t, 0.95, result.ConfidenceThreshold)
}

func TestSetQueueFeedsDetectVehicleCount(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialize(map[string]any{"random_seed": int64(1), "enable_surge": false}))
	p.SetQueue(config.North, config.Through, 5)

	result, err := p.Detect(nil, 640, 640)
	require.NoError(t, err)

	northThrough := 0
	for _, v := range result.Vehicles {
		if v.Y < 0.5 && v.X > 0.3 && v.X < 0.6 {
			northThrough++
		}
	}
	require.GreaterOrEqual(t, northThrough, 4)
	require.LessOrEqual(t, northThrough, 6)
}
