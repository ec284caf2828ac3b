package sample

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/wire"
	"github.com/rs/zerolog"
)

const (
	// Rows is the number of ADC channels (one multiplexer per row).
	Rows = wire.Channels
	// Cols is the number of mux addresses (one sensor per column).
	Cols = wire.Addresses

	allSteps = uint8(1<<Cols - 1)
)

// Frame is one full sweep of the sensor array converted to volts.
// Cells are indexed [address][channel], matching the sweep order.
type Frame struct {
	Timestamp time.Time     // Host time the frame was completed
	Uptime    time.Duration // Board uptime of the first step
	Sweep     uint32
	Volts     [Cols][Rows]float32
	Failed    [Cols][Rows]bool
	Steps     uint8 // Bit i set when the step for address i arrived
}

// Complete reports whether every address of the sweep arrived.
func (f *Frame) Complete() bool {
	return f.Steps == allSteps
}

// FailedCount returns the number of failed conversions in the frame.
func (f *Frame) FailedCount() int {
	n := 0
	for addr := range f.Failed {
		for ch := range f.Failed[addr] {
			if f.Failed[addr][ch] {
				n++
			}
		}
	}
	return n
}

// Stats summarizes the valid cells of a frame.
type Stats struct {
	Min, Max, Mean, RMS float32
	Valid               int
}

// Stats computes min, max, mean and RMS over cells that converted successfully.
func (f *Frame) Stats() Stats {
	s := Stats{Min: math32.Inf(1), Max: math32.Inf(-1)}
	var sum, sumSq float32
	for addr := range f.Volts {
		if f.Steps&(1<<addr) == 0 {
			continue
		}
		for ch, v := range f.Volts[addr] {
			if f.Failed[addr][ch] {
				continue
			}
			s.Min = math32.Min(s.Min, v)
			s.Max = math32.Max(s.Max, v)
			sum += v
			sumSq += v * v
			s.Valid++
		}
	}
	if s.Valid == 0 {
		return Stats{}
	}
	n := float32(s.Valid)
	s.Mean = sum / n
	s.RMS = math32.Sqrt(sumSq / n)
	return s
}

// CountsToVolts converts a raw conversion to volts.
func CountsToVolts(counts int16, vref float32, resolution int) float32 {
	top := float32(int(1)<<resolution - 1)
	return float32(counts) / top * vref
}

// Assembler collects steps into frames.
type Assembler struct {
	vref       float32
	resolution int
	now        func() time.Time

	cur    Frame
	active bool
}

// NewAssembler creates an assembler using the ADC settings from cfg.
func NewAssembler(cfg config.ADCConfig) *Assembler {
	return &Assembler{
		vref:       float32(cfg.VRef),
		resolution: cfg.Resolution,
		now:        time.Now,
	}
}

// Add adds a step. emit is called for every finished frame: when the last
// address arrives, or when a step from a new sweep flushes a partial frame.
func (a *Assembler) Add(step wire.Step, emit func(Frame)) {
	if a.active && (step.Sweep != a.cur.Sweep || a.cur.Steps&(1<<step.Address) != 0) {
		a.flush(emit)
	}
	if !a.active {
		a.cur = Frame{
			Uptime: time.Duration(step.Micros) * time.Microsecond,
			Sweep:  step.Sweep,
		}
		a.active = true
	}

	addr := step.Address
	for ch, counts := range step.Samples {
		a.cur.Volts[addr][ch] = CountsToVolts(counts, a.vref, a.resolution)
		a.cur.Failed[addr][ch] = step.ChannelFailed(ch)
	}
	a.cur.Steps |= 1 << addr

	if addr == Cols-1 {
		a.flush(emit)
	}
}

// Flush emits the pending partial frame, if any.
func (a *Assembler) Flush(emit func(Frame)) {
	if a.active {
		a.flush(emit)
	}
}

func (a *Assembler) flush(emit func(Frame)) {
	a.cur.Timestamp = a.now()
	a.active = false
	emit(a.cur)
}

// Converter is a function type that converts a step channel to a frame channel.
type Converter func(in <-chan wire.Step) <-chan Frame

// NewConverter creates a converter that assembles steps into frames.
// Incomplete frames are passed on; consumers decide what to do with them.
func NewConverter(cfg config.ADCConfig, bufSize int, log zerolog.Logger) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan wire.Step) <-chan Frame {
		out := make(chan Frame, bufSize)

		go func() {
			defer close(out)

			asm := NewAssembler(cfg)
			emit := func(f Frame) {
				if !f.Complete() {
					log.Debug().Uint32("sweep", f.Sweep).Uint8("steps", f.Steps).Msg("Incomplete frame")
				}
				select {
				case out <- f:
				case <-time.After(time.Second):
					log.Warn().Uint32("sweep", f.Sweep).Msg("Converter output channel full, dropping frame")
				}
			}

			for step := range in {
				asm.Add(step, emit)
			}
			asm.Flush(emit)
		}()

		return out
	}
}
