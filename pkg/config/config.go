package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MuxAINCOM is the multiplexer code of the shared analog common input used
// as the negative leg of single-ended channels. Inputs 0-7 are the
// dedicated analog pins.
const MuxAINCOM byte = 0x08

// Flow estimation strategies.
const (
	FlowModeVoltage = "voltage"
	FlowModePulse   = "pulse"
)

// validGains are the PGA settings supported by the converter.
var validGains = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true, 64: true}

// Config represents the instrument configuration. Immutable after Load.
type Config struct {
	// ID is the instrument identifier, used as the MQTT topic prefix.
	ID           string          `yaml:"id"`
	MQTT         MQTTConfig      `yaml:"mqtt"`
	ADC          ADCConfig       `yaml:"adc"`
	Filter       FilterConfig    `yaml:"filter"`
	Fluid        string          `yaml:"fluid"`
	Flow         FlowConfig      `yaml:"flow"`
	Reference    ReferenceConfig `yaml:"reference"`
	Channels     []Channel       `yaml:"channels"`
	FlowSequence []string        `yaml:"flow_sequence"`
}

// MQTTConfig contains the broker endpoint for the remote surface.
type MQTTConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ADCConfig contains converter hardware parameters.
type ADCConfig struct {
	SPIDevice string `yaml:"spi_device"`
	// DRDYPin names the data-ready input, e.g. "GPIO17".
	DRDYPin string `yaml:"drdy_pin"`
	// VRef is the analog reference voltage between VREFP and VREFN.
	VRef float64 `yaml:"vref"`
	// Gain is the PGA setting; one of 1, 2, 4, 8, 16, 32, 64.
	Gain int `yaml:"gain"`
	// CommonMux is the negative input used for single-ended channels.
	CommonMux byte `yaml:"common_mux"`
	// DRDYTimeout bounds every data-ready wait. After a self-calibration
	// at low data rates the chip can take up to roughly 1.2 seconds.
	DRDYTimeout time.Duration `yaml:"drdy_timeout"`
}

// FilterConfig contains the moving-average window sizes.
type FilterConfig struct {
	// Window is the number of full channel sweeps averaged per scan.
	Window int `yaml:"window"`
	// FlowWindow is the extra averaging window of the flow channel.
	FlowWindow int `yaml:"flow_window"`
}

// FlowConfig describes the coolant flow sensor.
type FlowConfig struct {
	Info string `yaml:"info"`
	// Mode selects the sensing strategy: "voltage" or "pulse".
	Mode string `yaml:"mode"`
	// Mux is the converter input of the flow channel (voltage mode).
	Mux byte `yaml:"mux"`
	// Offset is the raw-count offset of the flow channel (voltage mode).
	Offset float64 `yaml:"offset"`
	// Sensitivity is liter/sec per volt in voltage mode and pulses per
	// liter in pulse mode.
	Sensitivity float64 `yaml:"sensitivity"`
	// GPIOPin names the edge input in pulse mode, e.g. "GPIO6".
	GPIOPin string `yaml:"gpio_pin"`
	// Period is the pulse averaging period in pulse mode.
	Period time.Duration `yaml:"period"`
}

// ReferenceConfig describes the fixed resistance reference bridge leg.
type ReferenceConfig struct {
	Mux byte `yaml:"mux"`
	// Offset is the system-level channel offset in converter digits.
	Offset float64 `yaml:"offset"`
	// NRef is the divider ratio of the reference channel, rs0/r0.
	NRef float64 `yaml:"n_ref"`
}

// Channel is the static descriptor of one RTD sensor channel.
type Channel struct {
	Name string `yaml:"name"`
	Info string `yaml:"info"`
	Mux  byte   `yaml:"mux"`
	// Offset is the system-level channel offset in converter digits.
	Offset float64 `yaml:"offset"`
	// SeriesResistance is the bias resistance of the bridge leg in Ohms.
	SeriesResistance float64 `yaml:"series_resistance"`
	// BaseResistance is the RTD resistance at 0 degC in Ohms.
	BaseResistance float64 `yaml:"base_resistance"`
	// ResistanceOffset accounts for wiring resistance in Ohms.
	ResistanceOffset float64 `yaml:"resistance_offset"`
	// TemperatureOffset accounts for sensor self-heating in K.
	TemperatureOffset float64 `yaml:"temperature_offset"`
}

// Default returns the reference six-channel installation configuration.
func Default() *Config {
	return &Config{
		ID:   "ifx1",
		MQTT: MQTTConfig{Host: "localhost", Port: 1883},
		ADC: ADCConfig{
			SPIDevice:   "SPI0.1",
			DRDYPin:     "GPIO17",
			VRef:        2.5,
			Gain:        8,
			CommonMux:   MuxAINCOM,
			DRDYTimeout: 2 * time.Second,
		},
		Filter: FilterConfig{Window: 16, FlowWindow: 4},
		Fluid:  "glycol60",
		Flow: FlowConfig{
			Info:        "Flow Meter",
			Mode:        FlowModeVoltage,
			Mux:         7,
			Offset:      0,
			Sensitivity: 23.71 / 1000, // liter/sec per volt for glycol60
			Period:      2 * time.Second,
		},
		Reference: ReferenceConfig{Mux: 0, Offset: -100, NRef: 9.091800},
		Channels: []Channel{
			{Name: "cold", Info: "Cold Inlet", Mux: 1,
				SeriesResistance: 9962.00, BaseResistance: 1000.000, ResistanceOffset: 0.428},
			{Name: "hs_1", Info: "Heat Source 1", Mux: 2,
				SeriesResistance: 9960.10, BaseResistance: 1000.055, ResistanceOffset: 0.355},
			{Name: "hs_2", Info: "Heat Source 2", Mux: 3,
				SeriesResistance: 9980.48, BaseResistance: 999.954, ResistanceOffset: 0.350},
			{Name: "hs_3", Info: "Heat Source 3", Mux: 4,
				SeriesResistance: 9974.27, BaseResistance: 1000.100, ResistanceOffset: 0.323},
			{Name: "hs_4", Info: "Heat Source 4", Mux: 5,
				SeriesResistance: 9981.87, BaseResistance: 1000.018, ResistanceOffset: 0.270},
			{Name: "hs_5", Info: "Heat Source 5", Mux: 6,
				SeriesResistance: 9965.30, BaseResistance: 999.936, ResistanceOffset: 0.260},
		},
		FlowSequence: []string{"cold", "hs_1", "hs_2", "hs_3", "hs_4", "hs_5"},
	}
}

// Load loads the configuration from a YAML file and validates it. A missing
// file yields the default configuration.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
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

// Validate checks the configuration once at load time so the measurement
// core can rely on it unconditionally afterwards.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if !validGains[c.ADC.Gain] {
		return fmt.Errorf("gain %d not one of 1, 2, 4, 8, 16, 32, 64", c.ADC.Gain)
	}
	if c.ADC.VRef <= 0 {
		return fmt.Errorf("vref must be positive, got %g", c.ADC.VRef)
	}
	if c.ADC.DRDYTimeout <= 0 {
		return fmt.Errorf("drdy_timeout must be positive, got %v", c.ADC.DRDYTimeout)
	}
	if c.Filter.Window < 1 {
		return fmt.Errorf("filter window must be at least 1, got %d", c.Filter.Window)
	}
	if c.Filter.FlowWindow < 1 {
		return fmt.Errorf("flow filter window must be at least 1, got %d", c.Filter.FlowWindow)
	}

	if err := validMux("common_mux", c.ADC.CommonMux); err != nil {
		return err
	}
	if err := validMux("reference mux", c.Reference.Mux); err != nil {
		return err
	}
	if c.Reference.NRef <= 0 {
		return fmt.Errorf("reference n_ref must be positive, got %g", c.Reference.NRef)
	}

	switch c.Flow.Mode {
	case FlowModeVoltage:
		if err := validMux("flow mux", c.Flow.Mux); err != nil {
			return err
		}
	case FlowModePulse:
		if c.Flow.GPIOPin == "" {
			return fmt.Errorf("flow gpio_pin required in pulse mode")
		}
		if c.Flow.Period <= 0 {
			return fmt.Errorf("flow period must be positive in pulse mode, got %v", c.Flow.Period)
		}
	default:
		return fmt.Errorf("flow mode %q not one of %q, %q",
			c.Flow.Mode, FlowModeVoltage, FlowModePulse)
	}
	if c.Flow.Sensitivity <= 0 {
		return fmt.Errorf("flow sensitivity must be positive, got %g", c.Flow.Sensitivity)
	}

	names := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel %d: name must not be empty", i)
		}
		if names[ch.Name] {
			return fmt.Errorf("channel %d: duplicate name %q", i, ch.Name)
		}
		names[ch.Name] = true
		if err := validMux(fmt.Sprintf("channel %q mux", ch.Name), ch.Mux); err != nil {
			return err
		}
		if ch.SeriesResistance <= 0 {
			return fmt.Errorf("channel %q: series_resistance must be positive, got %g",
				ch.Name, ch.SeriesResistance)
		}
		if ch.BaseResistance <= 0 {
			return fmt.Errorf("channel %q: base_resistance must be positive, got %g",
				ch.Name, ch.BaseResistance)
		}
	}

	if len(c.FlowSequence) < 2 {
		return fmt.Errorf("flow_sequence needs at least 2 channels, got %d", len(c.FlowSequence))
	}
	seen := make(map[string]bool, len(c.FlowSequence))
	for _, name := range c.FlowSequence {
		if !names[name] {
			return fmt.Errorf("flow_sequence entry %q is not a configured channel", name)
		}
		if seen[name] {
			return fmt.Errorf("flow_sequence entry %q appears twice", name)
		}
		seen[name] = true
	}

	return nil
}

// Channel returns the descriptor for the named channel.
func (c *Config) Channel(name string) (Channel, error) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	return Channel{}, fmt.Errorf("channel %q not configured", name)
}

// VPerDigit returns the input-referred voltage of one converter digit for
// the configured reference voltage and gain (24-bit two's complement).
func (c *Config) VPerDigit() float64 {
	return c.ADC.VRef * 2.0 / (float64(c.ADC.Gain) * float64(1<<23-1))
}

// MuxAddr composes the full multiplexer register code from a positive and a
// negative input selector.
func MuxAddr(pos, neg byte) byte {
	return pos<<4 | neg
}

func validMux(what string, code byte) error {
	if code > MuxAINCOM {
		return fmt.Errorf("%s code %d out of range 0-%d", what, code, MuxAINCOM)
	}
	return nil
}
