// Command trafficctl runs the adaptive intersection controller from the
// command line: headless simulation against the mock detection
// provider, or a bounded number of ticks for scripted testing.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tiger/adaptive-intersection-controller/internal/config"
	"github.com/tiger/adaptive-intersection-controller/internal/observability/telemetry"
	"github.com/tiger/adaptive-intersection-controller/internal/runtimeloop"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "trafficctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("trafficctl", flag.ContinueOnError)

	headless := fs.Bool("headless", true, "run without any interactive display")
	providerType := fs.String("provider", "mock", "detection provider type (only mock is registered in this binary)")
	hz := fs.Float64("hz", 10, "controller tick rate in Hz")
	maxTicks := fs.Int("max-ticks", 0, "stop after this many ticks (0 = run until interrupted)")
	configPath := fs.String("config", "", "path to an intersection config YAML file (defaults to built-in defaults)")
	logLevel := fs.String("log-level", "info", "log level label echoed in the startup line; telemetry events are not filtered or printed by it")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadIntersectionConfig(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.ControllerHz = *hz
	cfg.Vision.ProviderType = *providerType
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config after flag overrides: %w", err)
	}

	sink := telemetry.NewMemorySink()
	pipeline := telemetry.NewPipeline(sink, telemetry.Config{})
	defer pipeline.Close()

	controller := runtimeloop.New(cfg, pipeline)
	if err := controller.Setup(); err != nil {
		return fmt.Errorf("controller setup: %w", err)
	}
	defer controller.Teardown()

	controller.AddObserver(runtimeloop.ObserverFunc(func(s runtimeloop.StatusSnapshot) {
		if *headless {
			return
		}
		fmt.Fprintf(stdout, "tick=%d mode=%s step=%s cycle=%d fault=%v\n",
			s.Tick, s.Mode, s.Step, s.CycleCount, s.ConflictFault)
	}))

	fmt.Fprintf(stdout, "trafficctl: running %q at %.0f Hz (provider=%s, headless=%v, log-level=%s)\n",
		cfg.Name, cfg.ControllerHz, cfg.Vision.ProviderType, *headless, *logLevel)

	start := time.Now()
	controller.Run(*maxTicks)
	elapsed := time.Since(start)

	stats := pipeline.Stats()
	fmt.Fprintf(stdout, "trafficctl: stopped after %s — telemetry exported=%d dropped=%d\n",
		elapsed.Round(time.Millisecond), stats.Exported, stats.Dropped)
	return nil
}
