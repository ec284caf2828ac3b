package sample

// NewAveragingConverter creates a filter that replaces every frame with the
// per-cell mean of the last windowSize frames. Failed cells are left out of
// the mean; a cell is only marked failed when it failed in every frame of the
// window. The newest frame's timestamp and sweep are kept; the step mask is
// the union of the window's masks, so an address missing from the newest
// frame still shows its average from older ones.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Frame) <-chan Frame {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Frame) <-chan Frame {
		out := make(chan Frame, bufSize)

		go func() {
			defer close(out)

			buffer := make([]Frame, 0, windowSize)
			for f := range in {
				if len(buffer) == windowSize {
					copy(buffer, buffer[1:])
					buffer = buffer[:windowSize-1]
				}
				buffer = append(buffer, f)
				out <- averageFrames(buffer)
			}
		}()

		return out
	}
}

// averageFrames averages a slice of frames cell by cell.
func averageFrames(frames []Frame) Frame {
	if len(frames) == 0 {
		return Frame{}
	}

	last := frames[len(frames)-1]
	avg := Frame{
		Timestamp: last.Timestamp,
		Uptime:    last.Uptime,
		Sweep:     last.Sweep,
	}
	for i := range frames {
		avg.Steps |= frames[i].Steps
	}

	for addr := 0; addr < Cols; addr++ {
		for ch := 0; ch < Rows; ch++ {
			var sum float32
			n := 0
			for i := range frames {
				f := &frames[i]
				if f.Steps&(1<<addr) == 0 || f.Failed[addr][ch] {
					continue
				}
				sum += f.Volts[addr][ch]
				n++
			}
			if n == 0 {
				avg.Failed[addr][ch] = true
				continue
			}
			avg.Volts[addr][ch] = sum / float32(n)
		}
	}

	return avg
}
