package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	ADC      ADCConfig      `yaml:"adc"`
	Mux      MuxConfig      `yaml:"mux"`
	Sampling SamplingConfig `yaml:"sampling"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Mock     MockConfig     `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ADCConfig describes the converter behind the multiplexers.
type ADCConfig struct {
	VRef       float64 `yaml:"vref"`       // Reference voltage (V)
	Resolution int     `yaml:"resolution"` // Bits per conversion
}

// MuxConfig contains multiplexer timing.
type MuxConfig struct {
	Settle time.Duration `yaml:"settle"` // Delay after an address change before converting
}

// SamplingConfig contains sweep pacing and host-side filtering.
type SamplingConfig struct {
	Interval      time.Duration `yaml:"interval"`       // Pause between sweeps for host-driven boards
	AverageFrames int           `yaml:"average_frames"` // Number of frames to average (0 = disabled, default)
	BufferSize    int           `yaml:"buffer_size"`    // Channel buffer size between pipeline stages
}

// BridgeConfig maps a host-driven board onto Linux GPIO lines.
// Offsets are line numbers on Chip.
type BridgeConfig struct {
	Chip    string        `yaml:"chip"`
	Enable  int           `yaml:"enable"`  // Bank A line
	Address []int         `yaml:"address"` // Bank B lines, LSB first
	Power   int           `yaml:"power"`   // Power gate line (-1 = none)
	CLK     int           `yaml:"clk"`     // MCP3208 clock
	CSZ     int           `yaml:"csz"`     // MCP3208 chip select
	DI      int           `yaml:"di"`      // MCP3208 data in
	DO      int           `yaml:"do"`      // MCP3208 data out
	Tclk    time.Duration `yaml:"tclk"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the endpoint
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Bias         float64       `yaml:"bias"`          // Sensor output with no field (V)
	Amplitude    float64       `yaml:"amplitude"`     // Peak response to the simulated magnet (V)
	Spread       float64       `yaml:"spread"`        // Magnet footprint in sensor pitches
	NoiseLevel   float64       `yaml:"noise_level"`   // Noise level (V)
	MagnetPeriod time.Duration `yaml:"magnet_period"` // Time for the magnet to circle the array
	SampleRate   time.Duration `yaml:"sample_rate"`   // Time between sweeps
	FailEvery    int           `yaml:"fail_every"`    // Inject a failed conversion every N conversions (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		ADC: ADCConfig{
			VRef:       3.6, // nRF52 SAADC internal reference with gain 1/6
			Resolution: 12,
		},
		Mux: MuxConfig{
			Settle: 10 * time.Microsecond,
		},
		Sampling: SamplingConfig{
			Interval:      10 * time.Millisecond,
			AverageFrames: 0,
			BufferSize:    100,
		},
		Bridge: BridgeConfig{
			Chip:    "gpiochip0",
			Enable:  5,
			Address: []int{6, 13, 19},
			Power:   -1,
			CLK:     16, // J8p36
			CSZ:     26, // J8p37
			DI:      20, // J8p38
			DO:      21, // J8p40
			Tclk:    500 * time.Nanosecond,
		},
		Metrics: MetricsConfig{
			Listen: ":9464",
		},
		Mock: MockConfig{
			Bias:         1.65,
			Amplitude:    1.2,
			Spread:       1.5,
			NoiseLevel:   0.005,
			MagnetPeriod: 8 * time.Second,
			SampleRate:   50 * time.Millisecond,
			FailEvery:    0,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.ADC.Resolution < 1 || c.ADC.Resolution > 15 {
		return fmt.Errorf("adc resolution out of range: %d", c.ADC.Resolution)
	}
	if len(c.Bridge.Address) != 3 {
		return fmt.Errorf("bridge needs exactly 3 address lines, got %d", len(c.Bridge.Address))
	}
	if c.Sampling.AverageFrames < 0 {
		return fmt.Errorf("average_frames must not be negative: %d", c.Sampling.AverageFrames)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.ADC.VRef == 0 {
		c.ADC.VRef = def.ADC.VRef
	}
	if c.ADC.Resolution == 0 {
		c.ADC.Resolution = def.ADC.Resolution
	}

	if c.Mux.Settle == 0 {
		c.Mux.Settle = def.Mux.Settle
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}
	if c.Sampling.BufferSize == 0 {
		c.Sampling.BufferSize = def.Sampling.BufferSize
	}

	if c.Bridge.Chip == "" {
		c.Bridge.Chip = def.Bridge.Chip
	}
	if len(c.Bridge.Address) == 0 {
		c.Bridge.Address = def.Bridge.Address
	}
	if c.Bridge.Tclk == 0 {
		c.Bridge.Tclk = def.Bridge.Tclk
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.MagnetPeriod == 0 {
		c.Mock.MagnetPeriod = def.Mock.MagnetPeriod
	}
	if c.Mock.Spread == 0 {
		c.Mock.Spread = def.Mock.Spread
	}
}
