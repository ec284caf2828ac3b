//go:build tinygo

package main

import "machine"

const (
	// Board name printed in the greeting. The sensor board is a custom
	// nRF52840 design; nrf52840-mdk is the TinyGo target with the same
	// P0 pin-out routed to headers (all of AIN0..AIN7 included).
	BOARD_TARGET = "nrf52840-mdk"

	// Stream sweeps over USB serial after the greeting. When false the
	// firmware only greets and returns.
	STREAM_SWEEPS = false

	// ADC configuration
	ADC_RESOLUTION = 12 // ADC resolution in bits (12-bit = 0-4095)

	// Multiplexer settling time after an address change, in microseconds
	MUX_SETTLE_US = 10

	// Pause between sweeps in milliseconds
	SWEEP_INTERVAL_MS = 20

	// Serial configuration
	// Format "micros,sweep,addr,s0,...,s7,errmask\n" is at most ~70 bytes per step.
	// 8 steps per sweep at 50 sweeps/sec = 28,000 bytes/sec, which is fine over
	// USB CDC. Over a physical UART at 115200 (11,520 bytes/sec) raise
	// SWEEP_INTERVAL_MS to at least 50.
	UART_BAUD_RATE = 115200

	// Power gate for the sensor array, driven high only while sweeping
	SENSOR_POWER_GATE = false

	// Digital lines are kept off P0_02..P0_05 and P0_28..P0_31, which
	// are the only analog-capable pins.

	// Bank A (held inactive)
	PIN_MUX_A0 = machine.P0_11

	// Bank B address lines, LSB first
	PIN_MUX_B0 = machine.P0_12
	PIN_MUX_B1 = machine.P0_13
	PIN_MUX_B2 = machine.P0_14

	PIN_SENSOR_POWER = machine.P0_15

	// Single WS2812 status pixel
	PIN_STATUS_LED = machine.P0_16
)

// ADC inputs, indexed by ADC channel (AIN0..AIN7). Must not overlap the
// digital pins above.
var ADC_PINS = [8]machine.Pin{
	machine.P0_02,
	machine.P0_03,
	machine.P0_04,
	machine.P0_05,
	machine.P0_28,
	machine.P0_29,
	machine.P0_30,
	machine.P0_31,
}
