package mux

import (
	"errors"
	"fmt"
	"time"
)

const (
	// AddressLines is the number of bank B address pins shared by all multiplexers.
	AddressLines = 3
	// Addresses is the number of selectable multiplexer inputs (8:1 mux).
	Addresses = 1 << AddressLines
	// Channels is the number of ADC inputs, one per multiplexer output.
	Channels = 8
	// Resolution is the ADC resolution in bits (12-bit = 0-4095).
	Resolution = 12
	// DefaultSettle is the analog settling time after the address changes.
	DefaultSettle = 10 * time.Microsecond
)

// ErrInvalidAddress is returned when selecting an address outside 0..Addresses-1.
var ErrInvalidAddress = errors.New("invalid mux address")

// Pin is a GPIO line configured as an output.
// machine.Pin satisfies it on TinyGo targets.
type Pin interface {
	Set(high bool)
}

// Bank groups the GPIO lines driving the analog multiplexers.
type Bank struct {
	// Enable is the single bank A line. Held inactive.
	Enable Pin
	// Address holds the bank B lines, LSB first.
	Address [AddressLines]Pin
	// Settle is the delay between an address change and the first trusted conversion.
	// Zero means DefaultSettle.
	Settle time.Duration
	// Delay waits for the given duration. Nil means BusyWait.
	Delay func(time.Duration)
}

// Init drives all bank lines to the inactive (low) state.
func (b *Bank) Init() {
	if b.Enable != nil {
		b.Enable.Set(false)
	}
	for _, p := range b.Address {
		if p != nil {
			p.Set(false)
		}
	}
}

// Select drives bank B pin i to bit i of addr and waits for the muxes to settle.
func (b *Bank) Select(addr uint8) error {
	if addr >= Addresses {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}
	for i, p := range b.Address {
		if p != nil {
			p.Set((addr>>i)&1 != 0)
		}
	}
	b.wait()
	return nil
}

func (b *Bank) wait() {
	settle := b.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	delay := b.Delay
	if delay == nil {
		delay = BusyWait
	}
	delay(settle)
}

// BusyWait spins until at least d has elapsed without yielding to the
// scheduler. It first waits for the clock to tick and measures from that
// edge, so a coarse clock makes it overshoot by up to one tick instead of
// returning early. On MCUs whose clock ticks slower than d (the nRF RTC
// ticks every ~30.5us) set Bank.Delay to a cycle-counted wait instead.
func BusyWait(d time.Duration) {
	busyWait(d, time.Now)
}

func busyWait(d time.Duration, now func() time.Time) {
	if d <= 0 {
		return
	}
	first := now()
	start := now()
	for start.Equal(first) {
		start = now()
	}
	for now().Sub(start) < d {
	}
}
