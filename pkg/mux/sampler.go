package mux

import (
	"errors"
	"fmt"
)

// ADC performs blocking single-channel conversions.
type ADC interface {
	// Read converts the given channel and returns the raw 12-bit result.
	Read(channel uint8) (int16, error)
}

// Samples holds one conversion per ADC channel for the currently selected address.
type Samples [Channels]int16

// Frame holds a full sweep, indexed by [address][channel].
type Frame [Addresses]Samples

// ReadError reports a failed conversion during a sweep.
type ReadError struct {
	Address uint8
	Channel uint8
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("ADC read failed: mux %d channel %d: %v", e.Address, e.Channel, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Sampler sweeps every sensor behind the multiplexers.
type Sampler struct {
	Bank *Bank
	ADC  ADC
	// Power, when set, is driven high for the duration of a sweep.
	Power Pin
	// OnError is called for every failed conversion. The sweep continues afterwards.
	OnError func(err *ReadError)

	buf Samples
}

// Sweep selects each mux address in turn and converts all ADC channels.
// visit receives the sample buffer after every address; the buffer is reused
// for the next address, so copy it to keep it. failed has bit i set when
// channel i failed, in which case its slot keeps the previous value.
//
// Conversion failures never stop the sweep; they are reported through
// OnError and returned joined once the sweep is complete.
func (s *Sampler) Sweep(visit func(addr uint8, samples *Samples, failed uint8)) error {
	if s.Power != nil {
		s.Power.Set(true)
		defer s.Power.Set(false)
	}

	var errs []error
	for addr := uint8(0); addr < Addresses; addr++ {
		if err := s.Bank.Select(addr); err != nil {
			return err
		}

		failed := uint8(0)
		for ch := uint8(0); ch < Channels; ch++ {
			value, err := s.ADC.Read(ch)
			if err != nil {
				rerr := &ReadError{Address: addr, Channel: ch, Err: err}
				if s.OnError != nil {
					s.OnError(rerr)
				}
				errs = append(errs, rerr)
				failed |= 1 << ch
				continue
			}
			s.buf[ch] = value
		}

		if visit != nil {
			visit(addr, &s.buf, failed)
		}
	}
	return errors.Join(errs...)
}

// SweepFrame runs a sweep and copies every step into f.
func (s *Sampler) SweepFrame(f *Frame) error {
	return s.Sweep(func(addr uint8, samples *Samples, _ uint8) {
		f[addr] = *samples
	})
}
