//go:build tinygo

package main

import (
	"errors"
	"machine"

	"github.com/itohio/tmrmux/pkg/mux"
)

var errUnknownChannel = errors.New("unknown ADC channel")

// analogInputs reads the SAADC through one machine.ADC per analog pin.
type analogInputs struct {
	adcs [mux.Channels]machine.ADC
}

func newAnalogInputs(pins [mux.Channels]machine.Pin) *analogInputs {
	machine.InitADC()

	a := &analogInputs{}
	for i, pin := range pins {
		a.adcs[i] = machine.ADC{Pin: pin}
		a.adcs[i].Configure(machine.ADCConfig{Resolution: ADC_RESOLUTION})
	}
	return a
}

// Read implements mux.ADC. machine.ADC scales every conversion to 16 bits,
// so the result is shifted back down to ADC_RESOLUTION bits.
func (a *analogInputs) Read(ch uint8) (int16, error) {
	if int(ch) >= len(a.adcs) {
		return 0, errUnknownChannel
	}
	return int16(a.adcs[ch].Get() >> (16 - ADC_RESOLUTION)), nil
}
