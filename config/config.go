package config

import (
	"os"
	"sync"

	"emperror.dev/errors"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/pathkit/pathkit/filesystem"
)

const DefaultLocation = "/etc/pathkit/config.yml"

var (
	mu      sync.RWMutex
	_config *Configuration
)

type Configuration struct {
	// The location from which this configuration instance was instantiated.
	path string

	// Determines if pathkit should be running in debug mode. This value is
	// ignored if the debug flag is passed through the command line arguments.
	Debug bool `json:"debug" yaml:"debug"`

	// If set, the current value of every metric is written to this file in the
	// Prometheus text format when a command finishes.
	MetricsTextfile string `json:"metrics_textfile" yaml:"metrics_textfile"`

	Clean CleanConfiguration `json:"clean" yaml:"clean"`
	Walk  WalkConfiguration  `json:"walk" yaml:"walk"`
}

// CleanConfiguration holds the defaults used by the clean command when the
// matching flags are not passed.
type CleanConfiguration struct {
	// Glob pattern files must match in order to be deleted.
	Pattern string `default:"*" json:"pattern" yaml:"pattern"`

	// Number of directory levels below the root to clean. A negative value
	// cleans every level.
	MaxDepth int `default:"-1" json:"max_depth" yaml:"max_depth"`

	// Remove directories once their contents have been cleaned.
	DeleteDirectories bool `json:"delete_directories" yaml:"delete_directories"`

	// Lines in gitignore syntax for paths that must never be deleted, relative
	// to the directory being cleaned.
	Protected []string `json:"protected" yaml:"protected"`
}

type WalkConfiguration struct {
	// Descend into symbolic links to directories.
	FollowLinks bool `json:"follow_links" yaml:"follow_links"`

	// Number of directory levels below the root to walk. A negative value walks
	// every level.
	MaxDepth int `default:"-1" json:"max_depth" yaml:"max_depth"`
}

// NewAtPath creates a new struct and set the path where it should be stored.
// This function does not modify the currently stored global configuration.
func NewAtPath(path string) (*Configuration, error) {
	var c Configuration
	// Configures the default values for many of the configuration options
	// present in the structs. Values set in the configuration file take
	// priority over these defaults.
	if err := defaults.Set(&c); err != nil {
		return nil, errors.Wrap(err, "config: failed to set default values")
	}
	c.path = path
	return &c, nil
}

// FromFile reads the configuration from the provided file. A missing file is
// not an error, the defaults are returned instead.
func FromFile(path string) (*Configuration, error) {
	c, err := NewAtPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, errors.Wrap(err, "config: failed to read configuration file")
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "config: failed to parse configuration file")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetPath returns the location of the file this configuration was loaded
// from.
func (c *Configuration) GetPath() string {
	return c.path
}

func (c *Configuration) validate() error {
	if err := filesystem.ValidatePattern(c.Clean.Pattern); err != nil {
		return errors.WithMessage(err, "config: invalid clean.pattern")
	}
	return nil
}

// Set the global configuration instance.
func Set(c *Configuration) {
	mu.Lock()
	_config = c
	mu.Unlock()
}

// Get returns the global configuration instance. If no configuration has been
// set the defaults are returned.
func Get() *Configuration {
	mu.RLock()
	c := _config
	mu.RUnlock()
	if c != nil {
		return c
	}
	c, _ = NewAtPath("")
	return c
}
