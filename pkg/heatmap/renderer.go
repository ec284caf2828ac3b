package heatmap

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
	"github.com/itohio/tmrmux/pkg/sample"
)

var (
	textColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	missingColor = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	failedColor  = color.RGBA{R: 90, G: 0, B: 90, A: 255}
)

const (
	marginLeft   = float32(30)
	marginTop    = float32(20)
	marginBottom = float32(24)
	cellGap      = float32(2)
)

// heatmapRenderer renders the heatmap widget.
type heatmapRenderer struct {
	heatmap *HeatmapWidget

	background *canvas.Rectangle
	cells      [sample.Cols][sample.Rows]*canvas.Rectangle
	values     [sample.Cols][sample.Rows]*canvas.Text
	colLabels  [sample.Cols]*canvas.Text
	rowLabels  [sample.Rows]*canvas.Text
	status     *canvas.Text

	objects []fyne.CanvasObject
}

// MinSize returns the minimum size of the widget.
func (r *heatmapRenderer) MinSize() fyne.Size {
	return fyne.NewSize(320, 320)
}

// Layout arranges the grid to fill the widget.
func (r *heatmapRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	plotWidth := size.Width - marginLeft
	plotHeight := size.Height - marginTop - marginBottom
	cellW := plotWidth / sample.Cols
	cellH := plotHeight / sample.Rows

	for addr := 0; addr < sample.Cols; addr++ {
		x := marginLeft + float32(addr)*cellW
		for ch := 0; ch < sample.Rows; ch++ {
			y := marginTop + float32(ch)*cellH
			cell := r.cells[addr][ch]
			cell.Move(fyne.NewPos(x+cellGap/2, y+cellGap/2))
			cell.Resize(fyne.NewSize(cellW-cellGap, cellH-cellGap))

			value := r.values[addr][ch]
			value.Move(fyne.NewPos(x, y+cellH/2-7))
			value.Resize(fyne.NewSize(cellW, 14))
		}
		r.colLabels[addr].Move(fyne.NewPos(x, 2))
		r.colLabels[addr].Resize(fyne.NewSize(cellW, 14))
	}
	for ch := 0; ch < sample.Rows; ch++ {
		y := marginTop + float32(ch)*cellH
		r.rowLabels[ch].Move(fyne.NewPos(0, y+cellH/2-7))
		r.rowLabels[ch].Resize(fyne.NewSize(marginLeft-4, 14))
	}
	r.status.Move(fyne.NewPos(marginLeft, size.Height-marginBottom+4))
}

// Refresh recolors the cells from the current frame.
func (r *heatmapRenderer) Refresh() {
	h := r.heatmap
	h.mu.RLock()
	f := h.frame
	hasFrame := h.hasFrame
	stats := h.stats
	vMin, vMax := h.vMin, h.vMax
	showValues := h.ShowValues
	h.mu.RUnlock()

	for addr := 0; addr < sample.Cols; addr++ {
		present := hasFrame && f.Steps&(1<<addr) != 0
		for ch := 0; ch < sample.Rows; ch++ {
			cell := r.cells[addr][ch]
			value := r.values[addr][ch]
			switch {
			case !present:
				cell.FillColor = missingColor
				value.Text = ""
			case f.Failed[addr][ch]:
				cell.FillColor = failedColor
				value.Text = "ERR"
			default:
				v := f.Volts[addr][ch]
				cell.FillColor = colorFor(v, vMin, vMax)
				value.Text = ""
				if showValues {
					value.Text = formatVolts(v)
				}
			}
			cell.Refresh()
			value.Refresh()
		}
	}

	if hasFrame {
		r.status.Text = "sweep " + strconv.FormatUint(uint64(f.Sweep), 10) +
			"  min " + formatVolts(stats.Min) +
			"  max " + formatVolts(stats.Max) +
			"  rms " + formatVolts(stats.RMS) +
			"  errors " + strconv.Itoa(f.FailedCount())
	} else {
		r.status.Text = "no data"
	}
	r.status.Refresh()
	r.background.Refresh()
}

// Objects returns all canvas objects for rendering.
func (r *heatmapRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *heatmapRenderer) Destroy() {}

// colorFor maps v within [min, max] onto a blue-green-red ramp.
func colorFor(v, min, max float32) color.RGBA {
	if max <= min {
		return color.RGBA{G: 255, A: 255}
	}
	t := (v - min) / (max - min)
	t = math32.Max(0, math32.Min(1, t))

	if t < 0.5 {
		k := t * 2
		return color.RGBA{
			G: uint8(math32.Round(255 * k)),
			B: uint8(math32.Round(255 * (1 - k))),
			A: 255,
		}
	}
	k := (t - 0.5) * 2
	return color.RGBA{
		R: uint8(math32.Round(255 * k)),
		G: uint8(math32.Round(255 * (1 - k))),
		A: 255,
	}
}

func axisLabel(prefix byte, i int) string {
	return string([]byte{prefix, byte('0' + i)})
}

func formatVolts(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 3, 32)
}
