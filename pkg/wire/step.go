// Package wire encodes mux steps as text lines sent from the board to the host.
//
// Format: uptime_micros,sweep,addr,s0,s1,s2,s3,s4,s5,s6,s7,errmask
// Example: 1234567,42,3,2048,2051,1999,2100,2047,2046,2050,2049,00000100
//
// errmask has one character per ADC channel, '1' marking a failed conversion.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// Channels is the number of samples per step.
	Channels = 8
	// Addresses is the number of mux addresses per sweep.
	Addresses = 8

	// MinSample and MaxSample bound a 12-bit conversion (signed for differential inputs).
	MinSample = -2048
	MaxSample = 4095

	fieldCount = 4 + Channels
)

// Step is one mux address worth of samples.
type Step struct {
	Micros  int64           // Board uptime in microseconds
	Sweep   uint32          // Sweep counter, wraps
	Address uint8           // Mux address (0-7)
	Samples [Channels]int16 // One sample per ADC channel
	Failed  uint8           // Bit i set when channel i failed
}

// ChannelFailed reports whether the conversion for channel ch failed.
func (s Step) ChannelFailed(ch int) bool {
	return s.Failed&(1<<ch) != 0
}

// AppendStep appends the encoded step, including the trailing newline, to dst.
// It does not use fmt so it stays cheap on the MCU.
func AppendStep(dst []byte, s Step) []byte {
	dst = strconv.AppendInt(dst, s.Micros, 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.Sweep), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.Address), 10)
	for _, v := range s.Samples {
		dst = append(dst, ',')
		dst = strconv.AppendInt(dst, int64(v), 10)
	}
	dst = append(dst, ',')
	for ch := 0; ch < Channels; ch++ {
		if s.ChannelFailed(ch) {
			dst = append(dst, '1')
		} else {
			dst = append(dst, '0')
		}
	}
	return append(dst, '\n')
}

// ParseStep parses a single line (without the trailing newline) into a Step.
func ParseStep(line string) (Step, error) {
	parts := strings.Split(line, ",")
	if len(parts) != fieldCount {
		return Step{}, fmt.Errorf("invalid line format: expected %d comma-separated values, got %d", fieldCount, len(parts))
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Step{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	sweep, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return Step{}, fmt.Errorf("invalid sweep: %w", err)
	}

	addr, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil {
		return Step{}, fmt.Errorf("invalid address: %w", err)
	}
	if addr >= Addresses {
		return Step{}, fmt.Errorf("address out of range: %d (max %d)", addr, Addresses-1)
	}

	step := Step{
		Micros:  micros,
		Sweep:   uint32(sweep),
		Address: uint8(addr),
	}

	for ch := 0; ch < Channels; ch++ {
		v, err := strconv.ParseInt(parts[3+ch], 10, 16)
		if err != nil {
			return Step{}, fmt.Errorf("invalid sample %d: %w", ch, err)
		}
		if v < MinSample || v > MaxSample {
			return Step{}, fmt.Errorf("sample %d out of range: %d", ch, v)
		}
		step.Samples[ch] = int16(v)
	}

	mask := parts[fieldCount-1]
	if len(mask) != Channels {
		return Step{}, fmt.Errorf("invalid error mask: expected %d digits, got %d", Channels, len(mask))
	}
	for ch := 0; ch < Channels; ch++ {
		switch mask[ch] {
		case '0':
		case '1':
			step.Failed |= 1 << ch
		default:
			return Step{}, fmt.Errorf("invalid error mask digit %q", mask[ch])
		}
	}

	return step, nil
}
