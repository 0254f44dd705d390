package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/log"
	"github.com/arcmem/arcmem/std/utils/toolutils"
)

// ErrInvalidConfig is returned when a configuration does not validate.
var ErrInvalidConfig = errors.New("arcmem: invalid configuration")

// Trace backends
const (
	TraceNone   = "none"
	TraceMemory = "memory"
	TraceLog    = "log"
	TraceBadger = "badger"
)

// Config is the configuration of the arcmem tools.
type Config struct {
	Core struct {
		// Logging level
		LogLevel string `json:"log_level"`
		// Output log to file
		LogFile string `json:"log_file"`
		// Log JSON objects instead of text lines
		LogJson bool `json:"log_json"`
	} `json:"core"`

	Registry struct {
		// Guard counts so handles may be shared between goroutines
		Synchronized bool `json:"synchronized"`
		// Number of count locks of a synchronized registry
		Stripes int `json:"stripes"`
	} `json:"registry"`

	Trace struct {
		// One of none, memory, log or badger
		Backend string `json:"backend"`
		// Database directory of the badger backend
		Path string `json:"path"`
	} `json:"trace"`

	level log.Level
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "WARN"
	c.Registry.Stripes = arc.DefaultStripes
	c.Trace.Backend = TraceNone
	return c
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(file string) (*Config, error) {
	c := DefaultConfig()
	if file != "" {
		if err := toolutils.ReadYaml(c, file); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Parse(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse validates the configuration.
func (c *Config) Parse() (err error) {
	c.level, err = log.ParseLevel(c.Core.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Registry.Stripes < 0 {
		return fmt.Errorf("%w: stripes must not be negative", ErrInvalidConfig)
	}
	if c.Registry.Stripes == 0 {
		c.Registry.Stripes = arc.DefaultStripes
	}

	c.Trace.Backend = strings.ToLower(c.Trace.Backend)
	switch c.Trace.Backend {
	case "":
		c.Trace.Backend = TraceNone
	case TraceNone, TraceMemory, TraceLog:
	case TraceBadger:
		if c.Trace.Path == "" {
			return fmt.Errorf("%w: the badger trace backend needs a path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown trace backend %q", ErrInvalidConfig, c.Trace.Backend)
	}

	return nil
}

// Level returns the parsed logging level.
func (c *Config) Level() log.Level {
	return c.level
}
