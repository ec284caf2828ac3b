// Package bridge connects a sensor board to Linux GPIO lines so the host can
// drive the multiplexers and read the ADC itself.
package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/itohio/tmrmux/pkg/mux"
	"github.com/rs/zerolog"
)

// lineSetter is the subset of a GPIO line the bridge needs.
type lineSetter interface {
	SetValue(value int) error
}

// converter is a multichannel ADC returning raw counts.
type converter interface {
	Read(ch int) (uint16, error)
}

// linePin adapts a GPIO line to mux.Pin. mux.Pin has no error path,
// so failures are logged.
type linePin struct {
	name string
	line lineSetter
	log  zerolog.Logger
}

func (p *linePin) Set(high bool) {
	v := 0
	if high {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		p.log.Error().Err(err).Str("line", p.name).Int("value", v).Msg("Failed to set line")
	}
}

// adc adapts a converter to mux.ADC.
type adc struct {
	conv converter
	max  uint16
}

func (a *adc) Read(ch uint8) (int16, error) {
	v, err := a.conv.Read(int(ch))
	if err != nil {
		return 0, err
	}
	if v > a.max {
		return 0, fmt.Errorf("conversion out of range: %d (max %d)", v, a.max)
	}
	return int16(v), nil
}

// Board owns the requested lines and the sampler built on them.
type Board struct {
	sampler *mux.Sampler

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

type boardLines struct {
	enable  lineSetter
	address [mux.AddressLines]lineSetter
	power   lineSetter // nil when not gated
	conv    converter
}

func newBoard(lines boardLines, settle time.Duration, log zerolog.Logger, closers []io.Closer) *Board {
	bank := &mux.Bank{
		Enable: &linePin{name: "enable", line: lines.enable, log: log},
		Settle: settle,
	}
	for i, l := range lines.address {
		bank.Address[i] = &linePin{name: fmt.Sprintf("address%d", i), line: l, log: log}
	}

	sampler := &mux.Sampler{
		Bank: bank,
		ADC:  &adc{conv: lines.conv, max: 1<<mux.Resolution - 1},
	}
	if lines.power != nil {
		sampler.Power = &linePin{name: "power", line: lines.power, log: log}
	}

	return &Board{
		sampler: sampler,
		closers: closers,
	}
}

// Sampler returns the sampler driving this board.
func (b *Board) Sampler() *mux.Sampler {
	return b.sampler
}

// Close releases all lines. Calling it more than once is a no-op.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
