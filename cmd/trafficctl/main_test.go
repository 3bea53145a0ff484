package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunWithMockProviderCompletesBoundedTicks(t *testing.T) {
	var stdout bytes.Buffer
	err := run([]string{"-headless=true", "-provider=mock", "-hz=20", "-max-ticks=5"}, &stdout)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "trafficctl: running")
	require.Contains(t, stdout.String(), "stopped after")
}

func TestRunRejectsUnknownProvider(t *testing.T) {
	var stdout bytes.Buffer
	err := run([]string{"-provider=nonexistent", "-max-ticks=1"}, &stdout)
	require.Error(t, err)
}

func TestRunPrintsPerTickStatusWhenNotHeadless(t *testing.T) {
	var stdout bytes.Buffer
	err := run([]string{"-headless=false", "-hz=20", "-max-ticks=2"}, &stdout)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "tick=1")
}
