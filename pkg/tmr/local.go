package tmr

import (
	"context"
	"sync"
	"time"

	"github.com/itohio/tmrmux/pkg/mux"
	"github.com/itohio/tmrmux/pkg/wire"
	"github.com/rs/zerolog"
)

// Local drives the multiplexers and ADC directly from the host,
// e.g. a Raspberry Pi wired to the sensor board.
type Local struct {
	sampler  *mux.Sampler
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	steps     chan wire.Step
	done      chan struct{}
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewLocal creates a host-driven device. Read errors are logged unless the
// sampler already has an OnError hook.
func NewLocal(sampler *mux.Sampler, interval time.Duration, bufSize int, log zerolog.Logger) *Local {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if sampler.OnError == nil {
		sampler.OnError = func(err *mux.ReadError) {
			log.Warn().Err(err.Err).Uint8("addr", err.Address).Uint8("channel", err.Channel).Msg("ADC read failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Local{
		sampler:  sampler,
		interval: interval,
		log:      log,
		now:      time.Now,
		steps:    make(chan wire.Step, bufSize),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect initializes the mux bank and starts sweeping.
func (l *Local) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return ErrAlreadyConnected
	}
	if l.ctx.Err() != nil {
		return ErrClosed
	}

	l.sampler.Bank.Init()
	l.connected = true

	go l.run()

	return nil
}

// Close stops sweeping and waits for the current sweep to finish.
func (l *Local) Close() error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return nil
	}
	l.cancel()
	l.connected = false
	l.mu.Unlock()

	<-l.done
	return nil
}

// Steps returns the channel of sampled steps.
func (l *Local) Steps() <-chan wire.Step {
	return l.steps
}

// IsConnected returns whether the device is currently sweeping.
func (l *Local) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected
}

func (l *Local) run() {
	defer close(l.done)
	defer close(l.steps)

	start := l.now()
	for sweep := uint32(0); ; sweep++ {
		if l.ctx.Err() != nil {
			return
		}

		err := l.sampler.Sweep(func(addr uint8, samples *mux.Samples, failed uint8) {
			step := wire.Step{
				Micros:  l.now().Sub(start).Microseconds(),
				Sweep:   sweep,
				Address: addr,
				Samples: *samples,
				Failed:  failed,
			}
			select {
			case l.steps <- step:
			default:
				l.log.Warn().Uint32("sweep", sweep).Uint8("addr", addr).Msg("Steps channel full, dropping step")
			}
		})
		if err != nil {
			l.log.Debug().Uint32("sweep", sweep).Msg("Sweep completed with read errors")
		}

		if l.interval > 0 {
			timer := time.NewTimer(l.interval)
			select {
			case <-l.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}
