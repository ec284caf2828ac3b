// Package metrics exports sensor frames as Prometheus metrics.
package metrics

import (
	"strconv"

	"github.com/itohio/tmrmux/pkg/sample"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tmrmux"

// Exporter turns frames into Prometheus gauges and counters.
type Exporter struct {
	volts      *prometheus.GaugeVec
	readErrors *prometheus.CounterVec
	frames     prometheus.Counter
	incomplete prometheus.Counter
	lastSweep  prometheus.Gauge

	// label values are built once; Observe runs for every frame
	labels [sample.Cols][sample.Rows][2]string
}

// New creates an exporter and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Exporter, error) {
	e := &Exporter{
		volts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_volts",
			Help:      "Last converted voltage per sensor.",
		}, []string{"mux", "channel"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Failed ADC conversions per sensor.",
		}, []string{"mux", "channel"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames observed.",
		}),
		incomplete: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incomplete_frames_total",
			Help:      "Frames missing at least one mux step.",
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep",
			Help:      "Sweep counter of the last observed frame.",
		}),
	}

	for _, c := range []prometheus.Collector{e.volts, e.readErrors, e.frames, e.incomplete, e.lastSweep} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	for addr := range e.labels {
		for ch := range e.labels[addr] {
			e.labels[addr][ch] = [2]string{strconv.Itoa(addr), strconv.Itoa(ch)}
		}
	}
	return e, nil
}

// Observe records one frame. Cells whose step is missing or whose conversion
// failed keep their previous gauge value.
func (e *Exporter) Observe(f sample.Frame) {
	e.frames.Inc()
	if !f.Complete() {
		e.incomplete.Inc()
	}
	e.lastSweep.Set(float64(f.Sweep))

	for addr := 0; addr < sample.Cols; addr++ {
		if f.Steps&(1<<addr) == 0 {
			continue
		}
		for ch := 0; ch < sample.Rows; ch++ {
			l := e.labels[addr][ch]
			if f.Failed[addr][ch] {
				e.readErrors.WithLabelValues(l[0], l[1]).Inc()
				continue
			}
			e.volts.WithLabelValues(l[0], l[1]).Set(float64(f.Volts[addr][ch]))
		}
	}
}
