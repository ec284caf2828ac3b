package mux

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects pin writes, delays and conversions in call order.
type recorder struct {
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

type fakePin struct {
	name  string
	state bool
	rec   *recorder
}

func (p *fakePin) Set(high bool) {
	p.state = high
	if p.rec != nil {
		p.rec.add("%s=%v", p.name, high)
	}
}

type fakeADC struct {
	address *[AddressLines]*fakePin
	rec     *recorder
	fail    map[[2]uint8]error
}

func (a *fakeADC) addr() uint8 {
	var addr uint8
	for i, p := range a.address {
		if p.state {
			addr |= 1 << i
		}
	}
	return addr
}

func (a *fakeADC) Read(ch uint8) (int16, error) {
	addr := a.addr()
	if a.rec != nil {
		a.rec.add("read %d/%d", addr, ch)
	}
	if err, ok := a.fail[[2]uint8{addr, ch}]; ok {
		return 0, err
	}
	return int16(addr)*100 + int16(ch), nil
}

func newTestBank(rec *recorder) (*Bank, [AddressLines]*fakePin, *fakePin) {
	enable := &fakePin{name: "a0", state: true, rec: rec}
	pins := [AddressLines]*fakePin{
		{name: "b0", state: true, rec: rec},
		{name: "b1", state: true, rec: rec},
		{name: "b2", state: true, rec: rec},
	}
	bank := &Bank{
		Enable:  enable,
		Address: [AddressLines]Pin{pins[0], pins[1], pins[2]},
		Delay: func(d time.Duration) {
			if rec != nil {
				rec.add("wait %s", d)
			}
		},
	}
	return bank, pins, enable
}

func TestBank_Init(t *testing.T) {
	bank, pins, enable := newTestBank(nil)

	bank.Init()

	assert.False(t, enable.state)
	for _, p := range pins {
		assert.False(t, p.state, p.name)
	}
}

func TestBank_Init_NilEnable(t *testing.T) {
	bank, pins, _ := newTestBank(nil)
	bank.Enable = nil

	assert.NotPanics(t, bank.Init)
	for _, p := range pins {
		assert.False(t, p.state)
	}
}

func TestBank_Select_BitOrder(t *testing.T) {
	tests := []struct {
		addr uint8
		want [AddressLines]bool
	}{
		{0, [3]bool{false, false, false}},
		{1, [3]bool{true, false, false}},
		{2, [3]bool{false, true, false}},
		{3, [3]bool{true, true, false}},
		{4, [3]bool{false, false, true}},
		{5, [3]bool{true, false, true}},
		{6, [3]bool{false, true, true}},
		{7, [3]bool{true, true, true}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("addr %d", tt.addr), func(t *testing.T) {
			bank, pins, _ := newTestBank(nil)
			require.NoError(t, bank.Select(tt.addr))
			for i, p := range pins {
				assert.Equal(t, tt.want[i], p.state, p.name)
			}
		})
	}
}

func TestBank_Select_WaitsAfterPins(t *testing.T) {
	rec := &recorder{}
	bank, _, _ := newTestBank(rec)

	require.NoError(t, bank.Select(5))

	assert.Equal(t, []string{"b0=true", "b1=false", "b2=true", "wait " + DefaultSettle.String()}, rec.events)
}

func TestBank_Select_CustomSettle(t *testing.T) {
	var waited time.Duration
	bank, _, _ := newTestBank(nil)
	bank.Settle = 25 * time.Microsecond
	bank.Delay = func(d time.Duration) { waited = d }

	require.NoError(t, bank.Select(1))
	assert.Equal(t, 25*time.Microsecond, waited)
}

func TestBank_Select_InvalidAddress(t *testing.T) {
	rec := &recorder{}
	bank, pins, _ := newTestBank(rec)

	err := bank.Select(Addresses)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Empty(t, rec.events)
	for _, p := range pins {
		assert.True(t, p.state, "pins must be left alone")
	}
}

func TestBusyWait(t *testing.T) {
	start := time.Now()
	BusyWait(200 * time.Microsecond)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Microsecond)
}

// coarseClock advances real time by one microsecond per reading but only
// reports it in ticks of resolution, like the nRF RTC.
type coarseClock struct {
	real       time.Duration
	resolution time.Duration
}

func (c *coarseClock) now() time.Time {
	c.real += time.Microsecond
	return time.Unix(0, int64(c.real/c.resolution*c.resolution))
}

func TestBusyWait_CoarseClock(t *testing.T) {
	const resolution = 30517 * time.Nanosecond

	tests := []struct {
		name  string
		phase time.Duration // real time before the wait starts
	}{
		{"just before a tick", resolution - 2*time.Microsecond},
		{"just after a tick", resolution + time.Microsecond},
		{"mid tick", resolution / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &coarseClock{real: tt.phase, resolution: resolution}
			busyWait(DefaultSettle, clock.now)
			assert.GreaterOrEqual(t, clock.real-tt.phase, DefaultSettle)
		})
	}
}

func TestBusyWait_Zero(t *testing.T) {
	clock := &coarseClock{resolution: time.Second}
	busyWait(0, clock.now)
	assert.Zero(t, clock.real, "zero wait must not read the clock")
}

func TestSampler_Sweep_Order(t *testing.T) {
	rec := &recorder{}
	bank, pins, _ := newTestBank(nil)
	adc := &fakeADC{address: &pins, rec: rec}
	bank.Delay = func(time.Duration) { rec.add("settled %d", adc.addr()) }
	s := &Sampler{Bank: bank, ADC: adc}

	var visited []uint8
	err := s.Sweep(func(addr uint8, samples *Samples, failed uint8) {
		visited = append(visited, addr)
		assert.Zero(t, failed)
		for ch, v := range samples {
			assert.Equal(t, int16(addr)*100+int16(ch), v)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 1, 2, 3, 4, 5, 6, 7}, visited)
	require.Len(t, rec.events, Addresses*(Channels+1))
	for addr := 0; addr < Addresses; addr++ {
		step := rec.events[addr*(Channels+1) : (addr+1)*(Channels+1)]
		assert.Equal(t, fmt.Sprintf("settled %d", addr), step[0])
		for ch := 0; ch < Channels; ch++ {
			assert.Equal(t, fmt.Sprintf("read %d/%d", addr, ch), step[ch+1])
		}
	}
}

func TestSampler_Sweep_BufferReused(t *testing.T) {
	bank, pins, _ := newTestBank(nil)
	s := &Sampler{Bank: bank, ADC: &fakeADC{address: &pins}}

	var buffers []*Samples
	require.NoError(t, s.Sweep(func(_ uint8, samples *Samples, _ uint8) {
		buffers = append(buffers, samples)
	}))

	for _, b := range buffers[1:] {
		assert.Same(t, buffers[0], b)
	}
	// Only the last address survives in the shared buffer.
	assert.Equal(t, int16(700), buffers[0][0])
}

func TestSampler_Sweep_ErrorsAreNonFatal(t *testing.T) {
	errBoom := errors.New("boom")
	bank, pins, _ := newTestBank(nil)
	adc := &fakeADC{
		address: &pins,
		fail: map[[2]uint8]error{
			{2, 3}: errBoom,
			{2, 5}: errBoom,
			{6, 0}: errBoom,
		},
	}
	var reported []*ReadError
	s := &Sampler{
		Bank:    bank,
		ADC:     adc,
		OnError: func(err *ReadError) { reported = append(reported, err) },
	}

	masks := make(map[uint8]uint8)
	var frame Frame
	err := s.Sweep(func(addr uint8, samples *Samples, failed uint8) {
		masks[addr] = failed
		frame[addr] = *samples
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, masks, Addresses, "sweep must visit every address")

	require.Len(t, reported, 3)
	assert.Equal(t, &ReadError{Address: 2, Channel: 3, Err: errBoom}, reported[0])
	assert.Equal(t, &ReadError{Address: 2, Channel: 5, Err: errBoom}, reported[1])
	assert.Equal(t, &ReadError{Address: 6, Channel: 0, Err: errBoom}, reported[2])
	assert.Contains(t, reported[0].Error(), "ADC read failed")

	assert.Equal(t, uint8(0b0010_1000), masks[2])
	assert.Equal(t, uint8(0b0000_0001), masks[6])
	assert.Zero(t, masks[0])

	// Failed slots keep the value from the previous address.
	assert.Equal(t, int16(103), frame[2][3])
	assert.Equal(t, int16(105), frame[2][5])
	assert.Equal(t, int16(204), frame[2][4])
	assert.Equal(t, int16(500), frame[6][0])
}

func TestSampler_Sweep_PowerGate(t *testing.T) {
	rec := &recorder{}
	bank, pins, _ := newTestBank(nil)
	power := &fakePin{name: "pwr", rec: rec}
	s := &Sampler{Bank: bank, ADC: &fakeADC{address: &pins, rec: rec}, Power: power}

	require.NoError(t, s.Sweep(nil))

	require.NotEmpty(t, rec.events)
	assert.Equal(t, "pwr=true", rec.events[0])
	assert.Equal(t, "pwr=false", rec.events[len(rec.events)-1])
	assert.False(t, power.state)
}

func TestSampler_SweepFrame(t *testing.T) {
	bank, pins, _ := newTestBank(nil)
	s := &Sampler{Bank: bank, ADC: &fakeADC{address: &pins}}

	var f Frame
	require.NoError(t, s.SweepFrame(&f))

	for addr := range f {
		for ch := range f[addr] {
			assert.Equal(t, int16(addr*100+ch), f[addr][ch])
		}
	}
}
