// Package config persists run parameters between sessions as JSON under the
// user's config directory, so a rig operator gets the same period, trial
// count and scaling back on the next launch.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// RunConfig holds the acquisition-side parameters of a protocol run.
type RunConfig struct {
	// PeriodMS is the sample period in ms.
	PeriodMS float64 `json:"periodMs"`

	// Trials is how many times the whole protocol is traversed.
	Trials int `json:"trials"`

	// IntervalMS is the wait between trials in ms.
	IntervalMS float64 `json:"intervalMs"`

	// JunctionPotentialMV is added to every commanded level before output.
	JunctionPotentialMV float64 `json:"junctionPotentialMv,omitempty"`

	// Record captures acquired input alongside the stimulus.
	Record bool `json:"record,omitempty"`

	// FIFOCapacity bounds the batch queue between the tick loop and its
	// consumers.
	FIFOCapacity int `json:"fifoCapacity,omitempty"`
}

// UIConfig stores terminal UI preferences.
type UIConfig struct {
	LastProtocol string `json:"lastProtocol,omitempty"`
	Monitor      bool   `json:"monitor,omitempty"`
}

// Config is the persisted application configuration.
type Config struct {
	Run  RunConfig `json:"run"`
	UI   UIConfig  `json:"ui,omitempty"`
	Data string    `json:"dataDir,omitempty"`
}

// Default returns the configuration used when nothing is saved yet.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			PeriodMS:     1,
			Trials:       1,
			IntervalMS:   1000,
			FIFOCapacity: 64,
		},
	}
}

// Dir returns the config directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clamp-protocol"), nil
}

// Path returns the full path to config.json.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from its default location, falling back to defaults
// when no file exists yet.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path. A missing file yields the
// defaults, not an error.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the config to its default location, creating the directory if
// needed.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// normalize repairs values a hand-edited file may have broken.
func (c *Config) normalize() {
	if c.Run.PeriodMS <= 0 {
		c.Run.PeriodMS = 1
	}
	if c.Run.Trials < 1 {
		c.Run.Trials = 1
	}
	if c.Run.IntervalMS < 0 {
		c.Run.IntervalMS = 0
	}
	if c.Run.FIFOCapacity < 1 {
		c.Run.FIFOCapacity = 64
	}
}
