//go:build tinygo

package main

import (
	"image/color"
	"machine"
	"time"

	"github.com/itohio/tmrmux/pkg/mux"
	"github.com/itohio/tmrmux/pkg/wire"
	"tinygo.org/x/drivers/ws2812"
)

var (
	colorBoot  = color.RGBA{R: 0, G: 0, B: 60}
	colorClean = color.RGBA{R: 0, G: 60, B: 0}
	colorError = color.RGBA{R: 255, G: 0, B: 0}
)

// newSampler configures the mux lines and the ADC and returns a sampler
// with the bank initialized.
func newSampler() *mux.Sampler {
	out := machine.PinConfig{Mode: machine.PinOutput}
	PIN_MUX_A0.Configure(out)
	PIN_MUX_B0.Configure(out)
	PIN_MUX_B1.Configure(out)
	PIN_MUX_B2.Configure(out)

	bank := &mux.Bank{
		Enable:  PIN_MUX_A0,
		Address: [mux.AddressLines]mux.Pin{PIN_MUX_B0, PIN_MUX_B1, PIN_MUX_B2},
		Settle:  MUX_SETTLE_US * time.Microsecond,
		Delay:   cycleDelay,
	}
	bank.Init()

	s := &mux.Sampler{
		Bank: bank,
		ADC:  newAnalogInputs(ADC_PINS),
		OnError: func(err *mux.ReadError) {
			println(err.Error())
		},
	}
	if SENSOR_POWER_GATE {
		PIN_SENSOR_POWER.Configure(out)
		PIN_SENSOR_POWER.Low()
		s.Power = PIN_SENSOR_POWER
	}
	return s
}

// streamSweeps sweeps the array forever and writes every mux step to the
// USB serial port. The status pixel turns red after a sweep with failed
// conversions and back to green after a clean one.
func streamSweeps() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	PIN_STATUS_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := ws2812.New(PIN_STATUS_LED)
	led.WriteColors([]color.RGBA{colorBoot})

	sampler := newSampler()
	start := time.Now()
	line := make([]byte, 0, 96)

	for sweep := uint32(0); ; sweep++ {
		err := sampler.Sweep(func(addr uint8, samples *mux.Samples, failed uint8) {
			line = wire.AppendStep(line[:0], wire.Step{
				Micros:  time.Since(start).Microseconds(),
				Sweep:   sweep,
				Address: addr,
				Samples: *samples,
				Failed:  failed,
			})
			machine.Serial.Write(line)
		})

		if err != nil {
			led.WriteColors([]color.RGBA{colorError})
		} else {
			led.WriteColors([]color.RGBA{colorClean})
		}

		time.Sleep(SWEEP_INTERVAL_MS * time.Millisecond)
	}
}
