//go:build tinygo

package main

import (
	"device/arm"
	"machine"
	"time"
)

// cycleDelay spins for at least d by counting CPU cycles. The RTC behind
// time.Now ticks every ~30.5us on nRF, far too coarse for the mux settle.
// Each iteration takes at least one cycle, so the wait never undershoots.
func cycleDelay(d time.Duration) {
	n := uint64(d) * uint64(machine.CPUFrequency()) / uint64(time.Second)
	for i := uint64(0); i < n; i++ {
		arm.Asm("nop")
	}
}
