package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/tmrmux/pkg/tmr"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createADCTab(state),
		createSamplingTab(state),
		createDisplayTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// saveConfig validates and writes the configuration, reporting failures in a dialog.
func saveConfig(state *appState) bool {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return false
	}
	if err := state.cfg.Save(state.cfgPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return false
	}
	return true
}

// reconnect restarts a running frame chain so new settings take effect.
func reconnect(state *appState) {
	if !state.isConnected() {
		return
	}
	handleConnect(state) // disconnect
	handleConnect(state) // connect with new settings
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := tmr.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Map display name to actual port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	// Add current port if not in list
	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.BaudRate))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			changed := false
			if portSelect.Selected != "" {
				selectedPort := portMap[portSelect.Selected]
				if selectedPort == "" {
					selectedPort = portSelect.Selected
				}
				changed = state.cfg.Serial.Port != selectedPort
				state.cfg.Serial.Port = selectedPort
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
				changed = changed || state.cfg.Serial.BaudRate != baud
				state.cfg.Serial.BaudRate = baud
			}
			if !saveConfig(state) {
				return
			}
			if changed && state.source == tmr.SourceSerial {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createADCTab creates the ADC configuration tab.
func createADCTab(state *appState) *container.TabItem {
	vrefEntry := widget.NewEntry()
	vrefEntry.SetText(fmt.Sprintf("%.2f", state.cfg.ADC.VRef))

	resolutionEntry := widget.NewEntry()
	resolutionEntry.SetText(strconv.Itoa(state.cfg.ADC.Resolution))

	settleEntry := widget.NewEntry()
	settleEntry.SetText(state.cfg.Mux.Settle.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "VRef (V)", Widget: vrefEntry},
			{Text: "Resolution (bits)", Widget: resolutionEntry},
			{Text: "Mux Settle", Widget: settleEntry},
		},
		OnSubmit: func() {
			if vref, err := strconv.ParseFloat(vrefEntry.Text, 64); err == nil {
				state.cfg.ADC.VRef = vref
			}
			if res, err := strconv.Atoi(resolutionEntry.Text); err == nil {
				state.cfg.ADC.Resolution = res
			}
			if settle, err := time.ParseDuration(settleEntry.Text); err == nil {
				state.cfg.Mux.Settle = settle
			}
			if saveConfig(state) {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("ADC", form)
}

// createSamplingTab creates the Sampling configuration tab.
func createSamplingTab(state *appState) *container.TabItem {
	intervalEntry := widget.NewEntry()
	intervalEntry.SetText(state.cfg.Sampling.Interval.String())

	averageEntry := widget.NewEntry()
	averageEntry.SetText(strconv.Itoa(state.cfg.Sampling.AverageFrames))

	bufferEntry := widget.NewEntry()
	bufferEntry.SetText(strconv.Itoa(state.cfg.Sampling.BufferSize))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Sweep Interval", Widget: intervalEntry},
			{Text: "Average Frames (0=disabled)", Widget: averageEntry},
			{Text: "Buffer Size", Widget: bufferEntry},
		},
		OnSubmit: func() {
			if iv, err := time.ParseDuration(intervalEntry.Text); err == nil {
				state.cfg.Sampling.Interval = iv
			}
			if avg, err := strconv.Atoi(averageEntry.Text); err == nil {
				state.cfg.Sampling.AverageFrames = avg
			}
			if buf, err := strconv.Atoi(bufferEntry.Text); err == nil {
				state.cfg.Sampling.BufferSize = buf
			}
			if saveConfig(state) {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Sampling", form)
}

// createDisplayTab creates the heatmap scale tab. Not persisted.
func createDisplayTab(state *appState) *container.TabItem {
	minEntry := widget.NewEntry()
	minEntry.SetPlaceHolder("auto")
	maxEntry := widget.NewEntry()
	maxEntry.SetPlaceHolder("auto")

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Scale Min (V)", Widget: minEntry},
			{Text: "Scale Max (V)", Widget: maxEntry},
		},
		OnSubmit: func() {
			lo, errLo := strconv.ParseFloat(minEntry.Text, 32)
			hi, errHi := strconv.ParseFloat(maxEntry.Text, 32)
			if errLo != nil || errHi != nil {
				state.heatmap.SetRange(0, 0)
				return
			}
			state.heatmap.SetRange(float32(lo), float32(hi))
		},
	}

	return container.NewTabItem("Display", form)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	biasEntry := widget.NewEntry()
	biasEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.Bias))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.Amplitude))

	spreadEntry := widget.NewEntry()
	spreadEntry.SetText(fmt.Sprintf("%.2f", state.cfg.Mock.Spread))

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.6f", state.cfg.Mock.NoiseLevel))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Mock.MagnetPeriod.String())

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	failEveryEntry := widget.NewEntry()
	failEveryEntry.SetText(strconv.Itoa(state.cfg.Mock.FailEvery))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Bias (V)", Widget: biasEntry},
			{Text: "Amplitude (V)", Widget: amplitudeEntry},
			{Text: "Spread (pitches)", Widget: spreadEntry},
			{Text: "Noise Level (V)", Widget: noiseLevelEntry},
			{Text: "Magnet Period", Widget: periodEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Fail Every (0=never)", Widget: failEveryEntry},
		},
		OnSubmit: func() {
			if bias, err := strconv.ParseFloat(biasEntry.Text, 64); err == nil {
				state.cfg.Mock.Bias = bias
			}
			if amp, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				state.cfg.Mock.Amplitude = amp
			}
			if sp, err := strconv.ParseFloat(spreadEntry.Text, 64); err == nil {
				state.cfg.Mock.Spread = sp
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			if p, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Mock.MagnetPeriod = p
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			if fe, err := strconv.Atoi(failEveryEntry.Text); err == nil {
				state.cfg.Mock.FailEvery = fe
			}
			if saveConfig(state) && state.source == tmr.SourceMock {
				reconnect(state)
			}
		},
	}

	return container.NewTabItem("Mock", form)
}
