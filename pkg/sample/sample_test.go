package sample

import (
	"testing"
	"time"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testADC = config.ADCConfig{VRef: 3.3, Resolution: 12}

func TestCountsToVolts(t *testing.T) {
	tests := []struct {
		name       string
		counts     int16
		vref       float32
		resolution int
		want       float32
	}{
		{"zero", 0, 3.3, 12, 0},
		{"full scale", 4095, 3.3, 12, 3.3},
		{"half scale", 2047, 3.3, 12, 1.65},
		{"negative", -2048, 3.3, 12, -1.65},
		{"10-bit full scale", 1023, 3.6, 10, 3.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountsToVolts(tt.counts, tt.vref, tt.resolution)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func step(sweep uint32, addr uint8, counts int16, failed uint8) wire.Step {
	s := wire.Step{
		Micros:  int64(sweep)*1000 + int64(addr),
		Sweep:   sweep,
		Address: addr,
		Failed:  failed,
	}
	for ch := range s.Samples {
		s.Samples[ch] = counts
	}
	return s
}

func collect(a *Assembler, steps ...wire.Step) []Frame {
	var frames []Frame
	for _, s := range steps {
		a.Add(s, func(f Frame) { frames = append(frames, f) })
	}
	return frames
}

func TestAssembler_CompleteFrame(t *testing.T) {
	a := NewAssembler(testADC)
	fixed := time.Unix(100, 0)
	a.now = func() time.Time { return fixed }

	var steps []wire.Step
	for addr := uint8(0); addr < Cols; addr++ {
		steps = append(steps, step(5, addr, int16(addr)*500, 0))
	}
	frames := collect(a, steps...)

	require.Len(t, frames, 1)
	f := frames[0]
	assert.True(t, f.Complete())
	assert.Equal(t, uint32(5), f.Sweep)
	assert.Equal(t, fixed, f.Timestamp)
	assert.Equal(t, 5000*time.Microsecond, f.Uptime)
	assert.Zero(t, f.FailedCount())
	for addr := 0; addr < Cols; addr++ {
		for ch := 0; ch < Rows; ch++ {
			assert.InDelta(t, float32(addr*500)/4095*3.3, f.Volts[addr][ch], 0.0001)
		}
	}
}

func TestAssembler_FailedChannels(t *testing.T) {
	a := NewAssembler(testADC)

	var steps []wire.Step
	for addr := uint8(0); addr < Cols; addr++ {
		var failed uint8
		if addr == 3 {
			failed = 0b0000_0110
		}
		steps = append(steps, step(1, addr, 100, failed))
	}
	frames := collect(a, steps...)

	require.Len(t, frames, 1)
	assert.Equal(t, 2, frames[0].FailedCount())
	assert.True(t, frames[0].Failed[3][1])
	assert.True(t, frames[0].Failed[3][2])
	assert.False(t, frames[0].Failed[3][0])
}

func TestAssembler_NewSweepFlushesPartial(t *testing.T) {
	a := NewAssembler(testADC)

	frames := collect(a,
		step(1, 0, 10, 0),
		step(1, 1, 10, 0),
		step(1, 2, 10, 0),
		step(2, 0, 20, 0),
	)

	require.Len(t, frames, 1)
	assert.Equal(t, uint32(1), frames[0].Sweep)
	assert.False(t, frames[0].Complete())
	assert.Equal(t, uint8(0b0000_0111), frames[0].Steps)

	var flushed []Frame
	a.Flush(func(f Frame) { flushed = append(flushed, f) })
	require.Len(t, flushed, 1)
	assert.Equal(t, uint32(2), flushed[0].Sweep)
	assert.Equal(t, uint8(0b0000_0001), flushed[0].Steps)

	a.Flush(func(f Frame) { t.Fatal("nothing left to flush") })
}

func TestAssembler_RepeatedAddressFlushes(t *testing.T) {
	a := NewAssembler(testADC)

	frames := collect(a,
		step(9, 0, 10, 0),
		step(9, 1, 10, 0),
		step(9, 0, 10, 0),
	)

	require.Len(t, frames, 1)
	assert.Equal(t, uint8(0b0000_0011), frames[0].Steps)
}

func TestAssembler_LoneLastStep(t *testing.T) {
	a := NewAssembler(testADC)

	frames := collect(a,
		step(1, 0, 10, 0),
		step(2, 7, 10, 0),
	)

	require.Len(t, frames, 2)
	assert.Equal(t, uint32(1), frames[0].Sweep)
	assert.Equal(t, uint32(2), frames[1].Sweep)
	assert.Equal(t, uint8(0b1000_0000), frames[1].Steps)
}

func TestFrame_Stats(t *testing.T) {
	var f Frame
	f.Steps = allSteps
	for addr := 0; addr < Cols; addr++ {
		for ch := 0; ch < Rows; ch++ {
			f.Volts[addr][ch] = 1
		}
	}
	f.Volts[0][0] = 3
	f.Volts[7][7] = -1
	f.Volts[4][4] = 100
	f.Failed[4][4] = true

	s := f.Stats()
	assert.Equal(t, 63, s.Valid)
	assert.Equal(t, float32(-1), s.Min)
	assert.Equal(t, float32(3), s.Max)
	assert.InDelta(t, 1.0, s.Mean, 0.0001) // (61 + 3 - 1) / 63
	assert.InDelta(t, 1.0616, s.RMS, 0.001) // sqrt((61 + 9 + 1) / 63)
}

func TestFrame_Stats_Empty(t *testing.T) {
	var f Frame
	assert.Equal(t, Stats{}, f.Stats())
}
