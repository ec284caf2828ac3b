package heatmap

import (
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/tmrmux/pkg/sample"
)

// HeatmapWidget is a custom Fyne widget that displays one 8x8 sensor frame.
// Columns are mux addresses, rows are ADC channels.
type HeatmapWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu         sync.RWMutex
	frame      sample.Frame
	hasFrame   bool
	stats      sample.Stats
	vMin, vMax float32

	// Fixed scale; auto-scales to each frame when vMin == vMax
	fixedMin, fixedMax float32

	// ShowValues draws the voltage in every cell.
	ShowValues bool
}

// New creates a new HeatmapWidget instance with auto-scaling.
func New() *HeatmapWidget {
	h := &HeatmapWidget{
		vMin:       0,
		vMax:       1,
		ShowValues: true,
	}
	h.ExtendBaseWidget(h)
	h.Refresh()
	return h
}

// SetRange fixes the color scale. Passing min == max restores auto-scaling.
func (h *HeatmapWidget) SetRange(min, max float32) {
	h.mu.Lock()
	h.fixedMin, h.fixedMax = min, max
	h.updateScale()
	h.mu.Unlock()
	h.Refresh()
}

// UpdateFrame shows a new frame.
// This should be called from the frame callback using fyne.Do().
func (h *HeatmapWidget) UpdateFrame(f sample.Frame) {
	h.mu.Lock()
	h.frame = f
	h.hasFrame = true
	h.stats = f.Stats()
	h.updateScale()
	h.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	h.Refresh()
}

// updateScale picks the color range. Caller holds mu.
func (h *HeatmapWidget) updateScale() {
	if h.fixedMin != h.fixedMax {
		h.vMin, h.vMax = h.fixedMin, h.fixedMax
		return
	}
	if h.stats.Valid == 0 {
		h.vMin, h.vMax = 0, 1
		return
	}
	h.vMin, h.vMax = h.stats.Min, h.stats.Max
	if h.vMax-h.vMin < 1e-3 {
		h.vMin -= 0.05
		h.vMax += 0.05
	}
}

// CreateRenderer creates the widget renderer.
func (h *HeatmapWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &heatmapRenderer{
		heatmap:    h,
		background: canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}),
		status:     canvas.NewText("", textColor),
	}
	r.status.TextSize = 11
	r.objects = append(r.objects, r.background, r.status)

	for addr := 0; addr < sample.Cols; addr++ {
		for ch := 0; ch < sample.Rows; ch++ {
			cell := canvas.NewRectangle(missingColor)
			value := canvas.NewText("", color.White)
			value.TextSize = 10
			value.Alignment = fyne.TextAlignCenter
			r.cells[addr][ch] = cell
			r.values[addr][ch] = value
			r.objects = append(r.objects, cell, value)
		}
	}
	for i := range r.colLabels {
		r.colLabels[i] = canvas.NewText(axisLabel('M', i), textColor)
		r.colLabels[i].TextSize = 10
		r.colLabels[i].Alignment = fyne.TextAlignCenter
		r.rowLabels[i] = canvas.NewText(axisLabel('C', i), textColor)
		r.rowLabels[i].TextSize = 10
		r.rowLabels[i].Alignment = fyne.TextAlignTrailing
		r.objects = append(r.objects, r.colLabels[i], r.rowLabels[i])
	}
	return r
}
