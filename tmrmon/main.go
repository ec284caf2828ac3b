package main

import (
	"context"
	"fmt"
	"os"
	"time"

	terminate "github.com/pulcy/go-terminate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/metrics"
	"github.com/itohio/tmrmux/pkg/tmr"
)

const projectName = "TMR mux monitor"

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var configPath string
	var levelFlag string
	var sourceFlag string
	var portFlag string
	var metricsAddr string
	var statsEvery time.Duration

	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file path")
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&sourceFlag, "source", "s", string(tmr.SourceSerial), "Step source (serial|local|mock)")
	pflag.StringVarP(&portFlag, "port", "p", "", "Serial port override")
	pflag.StringVar(&metricsAddr, "metrics-addr", "", "Address of the metrics endpoint (overrides config)")
	pflag.DurationVar(&statsEvery, "stats-every", 10*time.Second, "Interval between frame statistics log lines (0 disables)")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	cfg, err := config.Load(configPath)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}
	if portFlag != "" {
		cfg.Serial.Port = portFlag
	}
	if metricsAddr != "" {
		cfg.Metrics.Listen = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}

	device, err := tmr.Open(cfg, tmr.Source(sourceFlag), logger)
	if err != nil {
		Exitf("Failed to initialize device: %v\n", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := metrics.New(reg)
	if err != nil {
		Exitf("Failed to register metrics: %v\n", err)
	}

	mon := newMonitor(device, cfg, exporter, logger)
	mon.statsEvery = statsEvery

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(ctx) })
	if cfg.Metrics.Listen != "" {
		srv := newServer(cfg.Metrics.Listen, reg, mon, logger)
		g.Go(func() error { return srv.Run(ctx) })
	}
	if err := g.Wait(); err != nil {
		Exitf("Monitor failed: %v\n", err)
	}
}

// Exitf prints the given error message and exits with code 1.
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
