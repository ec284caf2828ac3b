package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/tmrmux/pkg/config"
	"github.com/itohio/tmrmux/pkg/heatmap"
	"github.com/itohio/tmrmux/pkg/sample"
	"github.com/itohio/tmrmux/pkg/tmr"
	"github.com/rs/zerolog"
)

func main() {
	var (
		portFlag          = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag        = flag.String("config", "config.yaml", "Configuration file path")
		sourceFlag        = flag.String("source", string(tmr.SourceSerial), "Step source: serial, local or mock")
		averageFramesFlag = flag.Int("average-frames", -1, "Number of frames to average (0 = disabled, overrides config)")
		debugFlag         = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	if !*debugFlag {
		log = log.Level(zerolog.InfoLevel)
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	// Override averaging if provided via command line
	if *averageFramesFlag >= 0 {
		cfg.Sampling.AverageFrames = *averageFramesFlag
	}

	// Create Fyne application
	application := app.NewWithID("com.itohio.tmrmux")

	// Create main window
	window := application.NewWindow("TMR Sensor Array")
	window.Resize(fyne.NewSize(800, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:     cfg,
		cfgPath: *configFlag,
		source:  tmr.Source(*sourceFlag),
		window:  window,
		log:     log,
	}

	// Create heatmap widget for frame display
	state.heatmap = heatmap.New()

	// Create border layout with toolbar at top and heatmap as content
	content := container.NewBorder(
		createToolbar(state),
		nil,
		nil,
		nil,
		state.heatmap,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		closeFrameChain(state.chain)
		state.chain = nil
	})
	window.ShowAndRun()
}

// frameChain tracks the components of the frame chain for graceful shutdown.
type frameChain struct {
	device tmr.Device
	frames <-chan sample.Frame
	done   chan struct{} // Closed when the display goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	cfgPath    string
	source     tmr.Source
	heatmap    *heatmap.HeatmapWidget
	window     fyne.Window
	connectBtn *widget.Button
	sourceSel  *widget.Select
	log        zerolog.Logger
	chain      *frameChain // Current frame chain (nil if not connected)

	// Throttling for heatmap updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the application toolbar with Connect, Settings, source and display controls.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	sourceSel := widget.NewSelect(
		[]string{string(tmr.SourceSerial), string(tmr.SourceLocal), string(tmr.SourceMock)},
		func(selected string) {
			state.source = tmr.Source(selected)
		},
	)
	sourceSel.SetSelected(string(state.source))
	state.sourceSel = sourceSel

	valuesCheck := widget.NewCheck("Values", func(on bool) {
		state.heatmap.ShowValues = on
		state.heatmap.Refresh()
	})
	valuesCheck.SetChecked(state.heatmap.ShowValues)

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn, sourceSel),
		valuesCheck,
		nil,
	)
}

// isConnected reports whether a frame chain is running.
func (s *appState) isConnected() bool {
	return s.chain != nil && s.chain.device.IsConnected()
}

// closeFrameChain gracefully closes the frame chain.
// Closing the device closes its steps channel, which drains the converters
// and finally ends the display goroutine.
func closeFrameChain(chain *frameChain) {
	if chain == nil {
		return
	}
	if chain.device != nil {
		chain.device.Close()
	}
	if chain.done != nil {
		<-chain.done
	}
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.isConnected() {
		closeFrameChain(state.chain)
		state.chain = nil
		state.connectBtn.SetIcon(theme.LoginIcon())
		state.sourceSel.Enable()
		state.log.Info().Str("source", string(state.source)).Msg("Disconnected")
		return
	}

	device, err := tmr.Open(state.cfg, state.source, state.log)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := device.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s device: %w", state.source, err), state.window)
		return
	}
	state.log.Info().Str("source", string(state.source)).Str("port", state.cfg.Serial.Port).Msg("Connected")
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.sourceSel.Disable()

	// Chain converters: frame assembly always, averaging only when enabled
	bufSize := state.cfg.Sampling.BufferSize
	frames := sample.NewConverter(state.cfg.ADC, bufSize, state.log)(device.Steps())
	if state.cfg.Sampling.AverageFrames > 0 {
		frames = sample.NewAveragingConverter(state.cfg.Sampling.AverageFrames, bufSize)(frames)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for f := range frames {
			showFrame(state, f)
		}
	}()

	state.chain = &frameChain{
		device: device,
		frames: frames,
		done:   done,
	}
}

// showFrame pushes a frame to the heatmap, throttled to ~60 FPS.
func showFrame(state *appState, f sample.Frame) {
	const updateInterval = 16 * time.Millisecond

	state.updateMu.Lock()
	now := time.Now()
	if now.Sub(state.lastUpdateTime) < updateInterval {
		state.updateMu.Unlock()
		return
	}
	state.lastUpdateTime = now
	state.updateMu.Unlock()

	fyne.Do(func() {
		state.heatmap.UpdateFrame(f)
	})
}
