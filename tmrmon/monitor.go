package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/metrics"
	"github.com/itohio/tmrmux/pkg/sample"
	"github.com/itohio/tmrmux/pkg/tmr"
	"github.com/rs/zerolog"
)

var errStreamEnded = errors.New("device stopped streaming")

// Status is the monitor state served on /status.
type Status struct {
	Connected  bool      `json:"connected"`
	Started    time.Time `json:"started"`
	Updated    time.Time `json:"updated"`
	Frames     uint64    `json:"frames"`
	Incomplete uint64    `json:"incomplete"`
	ReadErrors uint64    `json:"read_errors"`
	Sweep      uint32    `json:"sweep"`
	Min        float32   `json:"min"`
	Max        float32   `json:"max"`
	Mean       float32   `json:"mean"`
	RMS        float32   `json:"rms"`
}

// monitor pulls frames from a device into the exporter.
// Frames are exported unaveraged; Prometheus queries do their own smoothing.
type monitor struct {
	device     tmr.Device
	adc        config.ADCConfig
	bufSize    int
	exporter   *metrics.Exporter
	log        zerolog.Logger
	statsEvery time.Duration

	mu     sync.RWMutex
	status Status
}

func newMonitor(device tmr.Device, cfg *config.Config, exporter *metrics.Exporter, log zerolog.Logger) *monitor {
	return &monitor{
		device:     device,
		adc:        cfg.ADC,
		bufSize:    cfg.Sampling.BufferSize,
		exporter:   exporter,
		log:        log,
		statsEvery: 10 * time.Second,
	}
}

// Run connects the device and processes frames until ctx is canceled or
// the device stops streaming.
func (m *monitor) Run(ctx context.Context) error {
	if err := m.device.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer m.device.Close()

	m.mu.Lock()
	m.status.Connected = true
	m.status.Started = time.Now()
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.status.Connected = false
		m.mu.Unlock()
	}()

	// Closing the device closes the steps channel, which drains the converter.
	stop := context.AfterFunc(ctx, func() { m.device.Close() })
	defer stop()

	frames := sample.NewConverter(m.adc, m.bufSize, m.log)(m.device.Steps())

	// A non-positive interval disables the statistics log.
	var tick <-chan time.Time
	if m.statsEvery > 0 {
		ticker := time.NewTicker(m.statsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.log.Info().Msg("Monitoring started")
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					m.log.Info().Msg("Monitoring stopped")
					return nil
				}
				return errStreamEnded
			}
			m.observe(f)
		case <-tick:
			m.logStats()
		}
	}
}

func (m *monitor) observe(f sample.Frame) {
	if m.exporter != nil {
		m.exporter.Observe(f)
	}
	stats := f.Stats()

	m.mu.Lock()
	defer m.mu.Unlock()
	s := &m.status
	s.Frames++
	if !f.Complete() {
		s.Incomplete++
	}
	s.ReadErrors += uint64(f.FailedCount())
	s.Updated = f.Timestamp
	s.Sweep = f.Sweep
	s.Min, s.Max, s.Mean, s.RMS = stats.Min, stats.Max, stats.Mean, stats.RMS
}

func (m *monitor) logStats() {
	s := m.Status()
	if s.Frames == 0 {
		m.log.Warn().Msg("No frames received yet")
		return
	}
	m.log.Info().
		Str("frames", humanize.Comma(int64(s.Frames))).
		Str("incomplete", humanize.Comma(int64(s.Incomplete))).
		Str("read_errors", humanize.Comma(int64(s.ReadErrors))).
		Str("last", humanize.Time(s.Updated)).
		Uint32("sweep", s.Sweep).
		Float32("min", s.Min).
		Float32("max", s.Max).
		Float32("rms", s.RMS).
		Msg("Frame statistics")
}

// Status returns a snapshot of the monitor state.
func (m *monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
