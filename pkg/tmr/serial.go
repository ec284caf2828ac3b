package tmr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/itohio/tmrmux/pkg/wire"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the firmware UART rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the steps channel buffer.
	DefaultBufferSize = 100
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads mux steps streamed by the firmware over a serial link.
type Serial struct {
	port     string
	baudRate int
	bufSize  int
	log      zerolog.Logger

	conn      serial.Port
	steps     chan wire.Step
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int, log zerolog.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		log:      log.With().Str("port", port).Logger(),
		steps:    make(chan wire.Step, bufSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port and starts reading steps.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}
	if d.ctx.Err() != nil {
		return ErrClosed
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readSteps(port)

	return nil
}

// Close closes the port and waits for the reader to exit.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}

	d.cancel()
	if err := d.conn.Close(); err != nil {
		d.log.Warn().Err(err).Msg("Error closing serial port")
	}
	d.conn = nil
	d.connected = false
	d.mu.Unlock()

	<-d.done
	return nil
}

// Steps returns the channel of parsed steps.
func (d *Serial) Steps() <-chan wire.Step {
	return d.steps
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSteps reads lines from r until it fails or the device is closed.
func (d *Serial) readSteps(r io.Reader) {
	defer close(d.done)
	defer close(d.steps)

	scanLines(d.ctx, r, d.steps, d.log)
}

// scanLines parses lines from r into out. Lines that fail to parse are
// logged and skipped; the firmware greeting is one of them.
func scanLines(ctx context.Context, r io.Reader, out chan<- wire.Step, log zerolog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		step, err := wire.ParseStep(line)
		if err != nil {
			log.Debug().Err(err).Str("line", line).Msg("Skipping line")
			continue
		}

		select {
		case out <- step:
		case <-ctx.Done():
			return
		default:
			log.Warn().Uint32("sweep", step.Sweep).Uint8("addr", step.Address).Msg("Steps channel full, dropping step")
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Error reading from serial port")
	}
}
