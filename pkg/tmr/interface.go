package tmr

import (
	"errors"

	"github.com/itohio/tmrmux/pkg/wire"
)

var (
	// ErrClosed is returned by Connect after Close. Devices are single use;
	// open a new one to reconnect.
	ErrClosed = errors.New("device closed")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
)

// Device defines the interface for TMR sensor boards (serial, host-driven or mocked).
type Device interface {
	Connect() error
	Close() error
	// Steps returns the stream of mux steps. It is closed after Close.
	Steps() <-chan wire.Step
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Local)(nil)
	_ Device = (*Mock)(nil)
)
