// Package config loads throttle settings from standard locations.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/pacekit/errors"
	"github.com/vinayprograms/pacekit/logging"
	"github.com/vinayprograms/pacekit/registry"
	"github.com/vinayprograms/pacekit/throttle"
)

// Config holds the full throttle.toml contents: one global [throttle]
// section, registry coordination settings, and optional per-site overrides.
type Config struct {
	Throttle Delays       `toml:"throttle"`
	Registry Coordination `toml:"registry"`

	// Sites maps a site key to overrides for that site. Fields left at
	// zero inherit the global [throttle] section.
	Sites map[string]Delays `toml:"sites"`
}

// Delays holds pacing parameters. All delay fields are in seconds; zero
// means "use the default" (or, in a site section, "inherit the global
// value").
type Delays struct {
	MinDelay       float64 `toml:"min_delay"`
	MaxDelay       float64 `toml:"max_delay"`
	WriteDelay     float64 `toml:"write_delay"`
	CheckInterval  float64 `toml:"check_interval"`
	NoisyThreshold float64 `toml:"noisy_threshold"`
	DefaultLag     float64 `toml:"default_lag"`
	MaxLag         float64 `toml:"max_lag"`
}

// Coordination configures the shared registry file.
type Coordination struct {
	// Path of the registry file. Empty uses ~/.pacekit/throttle.ctrl.
	Path string `toml:"path"`

	// SingleProcess disables cross-process coordination entirely: no
	// registry file is touched and delays apply as configured.
	SingleProcess bool `toml:"single_process"`

	// DropAfter and ReleaseAfter are the peer staleness windows, in
	// seconds. Zero uses the registry package defaults.
	DropAfter    float64 `toml:"drop_after"`
	ReleaseAfter float64 `toml:"release_after"`
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"throttle.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "pacekit", "throttle.toml"),
			filepath.Join(home, ".pacekit", "throttle.toml"))
	}

	return paths
}

// Load reads the first config file found among the standard locations.
// A missing file is not an error: defaults apply and the returned path
// is empty.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	return &Config{}, "", nil
}

// LoadFile reads and validates a specific config file.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeInvalidConfig,
			"parsing throttle config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects negative delay values anywhere in the file.
func (c *Config) Validate() error {
	if err := c.Throttle.validate(); err != nil {
		return err
	}
	for site, d := range c.Sites {
		if err := d.validate(); err != nil {
			return errors.Wrapf(err, "site %q", site)
		}
	}
	if c.Registry.DropAfter < 0 || c.Registry.ReleaseAfter < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "staleness windows must not be negative")
	}
	return nil
}

func (d *Delays) validate() error {
	values := []float64{d.MinDelay, d.MaxDelay, d.WriteDelay,
		d.CheckInterval, d.NoisyThreshold, d.DefaultLag, d.MaxLag}
	for _, v := range values {
		if v < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "delays must not be negative")
		}
	}
	return nil
}

// RegistryPath returns the configured registry file location, defaulting
// to ~/.pacekit/throttle.ctrl.
func (c *Config) RegistryPath() string {
	if c.Registry.Path != "" {
		return c.Registry.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pacekit", "throttle.ctrl")
	}
	return filepath.Join(home, ".pacekit", "throttle.ctrl")
}

// SiteDelays returns the effective pacing parameters for site: the global
// [throttle] section with the site's own overrides layered on top.
func (c *Config) SiteDelays(site string) Delays {
	out := c.Throttle
	over, ok := c.Sites[site]
	if !ok {
		return out
	}
	if over.MinDelay != 0 {
		out.MinDelay = over.MinDelay
	}
	if over.MaxDelay != 0 {
		out.MaxDelay = over.MaxDelay
	}
	if over.WriteDelay != 0 {
		out.WriteDelay = over.WriteDelay
	}
	if over.CheckInterval != 0 {
		out.CheckInterval = over.CheckInterval
	}
	if over.NoisyThreshold != 0 {
		out.NoisyThreshold = over.NoisyThreshold
	}
	if over.DefaultLag != 0 {
		out.DefaultLag = over.DefaultLag
	}
	if over.MaxLag != 0 {
		out.MaxLag = over.MaxLag
	}
	return out
}

// BuildTracker opens the registry file and constructs the process-wide
// tracker. In single-process mode no registry file is touched and the
// returned tracker is nil, which downstream throttles take as "multiplicity
// off".
func (c *Config) BuildTracker(log *logging.Logger) (*registry.Tracker, error) {
	if c.Registry.SingleProcess {
		return nil, nil
	}
	store, err := registry.NewFileStore(c.RegistryPath())
	if err != nil {
		return nil, err
	}
	return registry.NewTracker(c.TrackerConfig(store, log))
}

// TrackerConfig builds the registry tracker configuration over the given
// store.
func (c *Config) TrackerConfig(store registry.Store, log *logging.Logger) registry.TrackerConfig {
	return registry.TrackerConfig{
		Store:        store,
		DropAfter:    seconds(c.Registry.DropAfter),
		ReleaseAfter: seconds(c.Registry.ReleaseAfter),
		Logger:       log,
	}
}

// ThrottleConfig builds a throttle configuration for site, applying any
// per-site overrides. The tracker may be nil for single-process use; when
// single-process mode is configured any tracker handed in is dropped, so
// the switch holds even for callers that built one anyway.
func (c *Config) ThrottleConfig(site string, tracker *registry.Tracker, log *logging.Logger) throttle.Config {
	if c.Registry.SingleProcess {
		tracker = nil
	}
	d := c.SiteDelays(site)
	return throttle.Config{
		Site:           site,
		Tracker:        tracker,
		MinDelay:       seconds(d.MinDelay),
		MaxDelay:       seconds(d.MaxDelay),
		WriteDelay:     seconds(d.WriteDelay),
		CheckInterval:  seconds(d.CheckInterval),
		NoisyThreshold: seconds(d.NoisyThreshold),
		DefaultLagWait: seconds(d.DefaultLag),
		MaxLagWait:     seconds(d.MaxLag),
		Logger:         log,
	}
}

// seconds converts a float seconds value to a duration, keeping zero as
// zero so package defaults still apply downstream.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
