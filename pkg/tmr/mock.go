package tmr

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/mux"
	"github.com/rs/zerolog"
)

// errSimulated is returned by the simulated ADC when a failure is injected.
var errSimulated = errors.New("simulated conversion failure")

// Mock simulates a sensor board with a magnet circling over the array.
// It runs the real sweep logic against simulated pins and ADC.
type Mock struct {
	*Local
	board *simBoard
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.Config, log zerolog.Logger) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	board := &simBoard{
		mock:  cfg.Mock,
		vref:  cfg.ADC.VRef,
		top:   float64(int(1)<<cfg.ADC.Resolution - 1),
		start: time.Now(),
		now:   time.Now,
	}
	bank := &mux.Bank{
		Enable: &simPin{},
		Delay:  func(time.Duration) {},
	}
	for i := range bank.Address {
		bank.Address[i] = &board.address[i]
	}
	sampler := &mux.Sampler{Bank: bank, ADC: board}

	return &Mock{
		Local: NewLocal(sampler, cfg.Mock.SampleRate, DefaultBufferSize, log),
		board: board,
	}
}

type simPin struct {
	mu   sync.Mutex
	high bool
}

func (p *simPin) Set(high bool) {
	p.mu.Lock()
	p.high = high
	p.mu.Unlock()
}

func (p *simPin) get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// simBoard decodes the address lines and converts the simulated field.
type simBoard struct {
	mock    config.MockConfig
	vref    float64
	top     float64
	start   time.Time
	now     func() time.Time
	address [mux.AddressLines]simPin

	conversions int
}

func (b *simBoard) selected() int {
	addr := 0
	for i := range b.address {
		if b.address[i].get() {
			addr |= 1 << i
		}
	}
	return addr
}

// Read implements mux.ADC.
func (b *simBoard) Read(ch uint8) (int16, error) {
	b.conversions++
	if b.mock.FailEvery > 0 && b.conversions%b.mock.FailEvery == 0 {
		return 0, errSimulated
	}

	v := b.field(b.selected(), int(ch), b.now().Sub(b.start))
	counts := math.Round(v / b.vref * b.top)
	if counts < 0 {
		counts = 0
	} else if counts > b.top {
		counts = b.top
	}
	return int16(counts), nil
}

// field returns the simulated sensor output (V) for the sensor at column addr, row ch.
func (b *simBoard) field(addr, ch int, elapsed time.Duration) float64 {
	theta := 2 * math.Pi * elapsed.Seconds() / b.mock.MagnetPeriod.Seconds()
	cx := 3.5 + 2.5*math.Cos(theta)
	cy := 3.5 + 2.5*math.Sin(theta)

	dx := float64(addr) - cx
	dy := float64(ch) - cy
	sigma := b.mock.Spread
	response := b.mock.Amplitude * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))

	t := float64(elapsed.Nanoseconds())
	noise := (math.Sin(t*0.001+float64(addr)) +
		math.Cos(t*0.0013+float64(ch))) *
		b.mock.NoiseLevel * 0.5

	return b.mock.Bias + response + noise
}
