package tmr

import (
	"fmt"

	"github.com/itohio/tmrmux/pkg/bridge"
	"github.com/itohio/tmrmux/pkg/config"
	"github.com/rs/zerolog"
)

// Source selects where steps come from.
type Source string

const (
	SourceSerial Source = "serial" // firmware streaming over a serial port
	SourceLocal  Source = "local"  // host GPIO and MCP3208 via the bridge
	SourceMock   Source = "mock"   // simulated board
)

// Open creates (but does not connect) the device for the given source.
func Open(cfg *config.Config, source Source, log zerolog.Logger) (Device, error) {
	switch source {
	case SourceSerial, "":
		return New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Sampling.BufferSize, log), nil
	case SourceMock:
		return NewMock(cfg, log), nil
	case SourceLocal:
		board, err := bridge.Open(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open bridge: %w", err)
		}
		return &boardDevice{
			Local: NewLocal(board.Sampler(), cfg.Sampling.Interval, cfg.Sampling.BufferSize, log),
			board: board,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}

// boardDevice releases the bridge lines after sweeping stops.
type boardDevice struct {
	*Local
	board *bridge.Board
}

func (d *boardDevice) Close() error {
	if err := d.Local.Close(); err != nil {
		return err
	}
	return d.board.Close()
}
