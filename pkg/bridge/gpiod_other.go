//go:build !linux

package bridge

import (
	"errors"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/rs/zerolog"
)

// ErrUnsupported is returned on platforms without the Linux GPIO character device.
var ErrUnsupported = errors.New("bridge requires linux")

// Open is only available on linux.
func Open(cfg *config.Config, log zerolog.Logger) (*Board, error) {
	return nil, ErrUnsupported
}
