package tmr

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dev := New("/dev/ttyACM0", 230400, 50, zerolog.Nop())
	assert.NotNil(t, dev)
	assert.Equal(t, "/dev/ttyACM0", dev.port)
	assert.Equal(t, 230400, dev.baudRate)
	assert.Equal(t, 50, dev.bufSize)
	assert.Equal(t, 50, cap(dev.steps))
	assert.False(t, dev.IsConnected())
}

func TestNew_Defaults(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0, zerolog.Nop())
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, dev.bufSize)
}

func TestSerial_CloseNotConnected(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0, zerolog.Nop())
	assert.NoError(t, dev.Close())
}

func TestSerial_ConnectAfterClose(t *testing.T) {
	dev := New("/dev/ttyACM0", 0, 0, zerolog.Nop())
	dev.cancel()

	err := dev.Connect()
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, dev.IsConnected())
}

func TestScanLines(t *testing.T) {
	input := strings.Join([]string{
		"Hello World! nrf52840-mdk",
		"",
		"100,7,0,1,2,3,4,5,6,7,8,00000000",
		"garbage,line",
		"200,7,1,9,10,11,12,13,14,15,16,00000010",
	}, "\n")

	out := make(chan wire.Step, 10)
	scanLines(context.Background(), strings.NewReader(input), out, zerolog.Nop())
	close(out)

	var steps []wire.Step
	for s := range out {
		steps = append(steps, s)
	}

	require.Len(t, steps, 2)
	assert.Equal(t, uint8(0), steps[0].Address)
	assert.Equal(t, int64(100), steps[0].Micros)
	assert.Equal(t, uint8(1), steps[1].Address)
	assert.True(t, steps[1].ChannelFailed(1))
}

func TestScanLines_DropsWhenFull(t *testing.T) {
	input := "1,0,0,0,0,0,0,0,0,0,0,00000000\n2,0,1,0,0,0,0,0,0,0,0,00000000\n"

	out := make(chan wire.Step, 1)
	scanLines(context.Background(), strings.NewReader(input), out, zerolog.Nop())

	require.Len(t, out, 1)
	assert.Equal(t, int64(1), (<-out).Micros)
}

func TestScanLines_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan wire.Step, 10)
	scanLines(ctx, strings.NewReader("1,0,0,0,0,0,0,0,0,0,0,00000000\n"), out, zerolog.Nop())
	assert.Empty(t, out)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()

	dev, err := Open(cfg, SourceSerial, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Serial{}, dev)

	dev, err = Open(cfg, SourceMock, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Mock{}, dev)

	_, err = Open(cfg, "carrier-pigeon", zerolog.Nop())
	assert.Error(t, err)
}

func TestMock_Lifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.SampleRate = time.Millisecond
	dev := NewMock(cfg, zerolog.Nop())
	assert.False(t, dev.IsConnected())

	require.NoError(t, dev.Connect())
	assert.True(t, dev.IsConnected())

	err := dev.Connect()
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	// One full sweep arrives in address order.
	for addr := uint8(0); addr < wire.Addresses; addr++ {
		select {
		case s := <-dev.Steps():
			assert.Equal(t, addr, s.Address)
			assert.Equal(t, uint32(0), s.Sweep)
			assert.Zero(t, s.Failed)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for step")
		}
	}

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())

	// Steps channel is closed after Close.
	for range dev.Steps() {
	}
}

func TestMock_ConnectAfterClose(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.SampleRate = time.Millisecond
	dev := NewMock(cfg, zerolog.Nop())

	require.NoError(t, dev.Connect())
	require.NoError(t, dev.Close())

	assert.ErrorIs(t, dev.Connect(), ErrClosed)
	assert.False(t, dev.IsConnected())
}

func TestMock_FailureInjection(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.FailEvery = 8
	cfg.Mock.SampleRate = time.Millisecond
	dev := NewMock(cfg, zerolog.Nop())

	require.NoError(t, dev.Connect())
	defer dev.Close()

	// Every 8th conversion fails: channel 7 of every step.
	for i := 0; i < wire.Addresses; i++ {
		select {
		case s := <-dev.Steps():
			assert.Equal(t, uint8(0b1000_0000), s.Failed, "addr %d", s.Address)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for step")
		}
	}
}

func TestSimBoard_Field(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.NoiseLevel = 0
	b := &simBoard{mock: cfg.Mock, vref: cfg.ADC.VRef, top: 4095}

	// At t=0 the magnet sits at (6, 3.5): column 6 responds, column 0 barely does.
	near := b.field(6, 3, 0)
	far := b.field(0, 3, 0)
	assert.Greater(t, near, far)
	assert.InDelta(t, cfg.Mock.Bias, far, 0.01)
	assert.LessOrEqual(t, near, cfg.Mock.Bias+cfg.Mock.Amplitude)
}

func TestSimBoard_ReadClamps(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.Bias = 10 // far above vref
	cfg.Mock.NoiseLevel = 0
	b := &simBoard{mock: cfg.Mock, vref: cfg.ADC.VRef, top: 4095, start: time.Now(), now: time.Now}

	v, err := b.Read(0)
	require.NoError(t, err)
	assert.Equal(t, int16(4095), v)
}
