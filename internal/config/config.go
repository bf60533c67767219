// Package config loads the gateway's YAML configuration document.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Serial describes how to reach and, optionally, reset the KNX
// interface hardware.
type Serial struct {
	Device        string    `yaml:"device"`
	Baud          int       `yaml:"baud"`
	WaitForDevice bool      `yaml:"wait_for_device"`
	ResetGPIO     ResetGPIO `yaml:"reset_gpio"`
}

// ResetGPIO names the optional hardware reset line. Chip empty means
// no reset line is wired.
type ResetGPIO struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
}

// Timing carries the two physical calibration constants used by the
// estimator and planner, expressed as parseable durations so they can
// be tuned per installation without a rebuild.
type Timing struct {
	FullTravel time.Duration `yaml:"full_travel"`
	FullTurn   time.Duration `yaml:"full_turn"`
}

// TCP configures the control server's listen address.
type TCP struct {
	Listen string `yaml:"listen"`
}

// MDNS configures optional service discovery.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Log configures the structured logger and optional trace file.
type Log struct {
	Level     string `yaml:"level"`
	TraceFile string `yaml:"trace_file"`
}

// Config is the top-level gateway configuration document.
type Config struct {
	Serial Serial `yaml:"serial"`
	Timing Timing `yaml:"timing"`
	TCP    TCP    `yaml:"tcp"`
	MDNS   MDNS   `yaml:"mdns"`
	Log    Log    `yaml:"log"`
}

// Default returns the configuration used when no file is given and no
// flags override it: /dev/ttyAMA0 at 19200 baud with no hotplug wait
// and no reset line, 63.5s/2.0s timing, listen on 0.0.0.0:1337, mDNS
// enabled as "baos-gateway", info-level logging and no trace file.
func Default() Config {
	return Config{
		Serial: Serial{Device: "/dev/ttyAMA0", Baud: 19200, WaitForDevice: false},
		Timing: Timing{FullTravel: 63500 * time.Millisecond, FullTurn: 2000 * time.Millisecond},
		TCP:    TCP{Listen: "0.0.0.0:1337"},
		MDNS:   MDNS{Enabled: true, Instance: "baos-gateway"},
		Log:    Log{Level: "info"},
	}
}

// Load reads and parses path, starting from Default so any field the
// document omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
