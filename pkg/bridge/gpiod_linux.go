//go:build linux

package bridge

import (
	"fmt"
	"io"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/mux"
	"github.com/rs/zerolog"
	"github.com/warthog618/gpiod"
	"github.com/warthog618/gpiod/spi/mcp3w0c"
)

const consumer = "tmrmux"

// Open requests the mux lines and the MCP3208 lines described by cfg.Bridge.
// All lines start low.
func Open(cfg *config.Config, log zerolog.Logger) (*Board, error) {
	bc := cfg.Bridge
	if len(bc.Address) != mux.AddressLines {
		return nil, fmt.Errorf("bridge needs exactly %d address lines, got %d", mux.AddressLines, len(bc.Address))
	}

	chip, err := gpiod.NewChip(bc.Chip, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", bc.Chip, err)
	}
	closers := []io.Closer{chip}
	fail := func(err error) (*Board, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		return nil, err
	}

	request := func(offset int) (*gpiod.Line, error) {
		l, err := chip.RequestLine(offset, gpiod.AsOutput(0))
		if err != nil {
			return nil, fmt.Errorf("failed to request line %d: %w", offset, err)
		}
		closers = append(closers, l)
		return l, nil
	}

	var lines boardLines
	if lines.enable, err = request(bc.Enable); err != nil {
		return fail(err)
	}
	for i, offset := range bc.Address {
		if lines.address[i], err = request(offset); err != nil {
			return fail(err)
		}
	}
	if bc.Power >= 0 {
		if lines.power, err = request(bc.Power); err != nil {
			return fail(err)
		}
	}

	conv, err := mcp3w0c.NewMCP3208(chip, bc.CLK, bc.CSZ, bc.DI, bc.DO, mcp3w0c.WithTclk(bc.Tclk))
	if err != nil {
		return fail(fmt.Errorf("failed to open MCP3208: %w", err))
	}
	closers = append(closers, conv)
	lines.conv = conv

	log.Info().
		Str("chip", bc.Chip).
		Ints("address", bc.Address).
		Int("enable", bc.Enable).
		Msg("Bridge lines requested")

	return newBoard(lines, cfg.Mux.Settle, log, closers), nil
}
