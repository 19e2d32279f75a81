package sim

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/protected-buffer/internal/buffer"
)

// Mode selects which buffer operations the workers use.
type Mode string

const (
	ModeBlocking    Mode = "blocking"     // Put / Get
	ModeNonBlocking Mode = "non-blocking" // Add / Remove, retried
	ModeTimed       Mode = "timed"        // Offer / Poll, retried
)

// ParseMode accepts the Mode names plus the short forms "b", "u" and "t".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blocking", "b":
		return ModeBlocking, nil
	case "non-blocking", "nonblocking", "u":
		return ModeNonBlocking, nil
	case "timed", "t":
		return ModeTimed, nil
	default:
		return "", fmt.Errorf("sim: unknown mode %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// Config describes one simulation run.
type Config struct {
	Implementation buffer.Kind `yaml:"implementation"`
	BufferSize     int         `yaml:"buffer_size"`
	Producers      int         `yaml:"producers"`
	Consumers      int         `yaml:"consumers"`
	// Values is the number of values each producer inserts.
	Values int  `yaml:"values"`
	Mode   Mode `yaml:"mode"`
	// Timeout bounds each Offer/Poll in timed mode, and is the retry pause
	// in non-blocking mode.
	Timeout time.Duration `yaml:"timeout"`
	// ProducerRate caps inserts per second per producer; 0 means unlimited.
	ProducerRate float64 `yaml:"producer_rate"`
	// ConsumerDelay is the upper bound of a random pause after each removal.
	ConsumerDelay time.Duration `yaml:"consumer_delay"`
	// ProgressInterval spaces "simulation progress" log records; 0 disables them.
	ProgressInterval time.Duration `yaml:"progress_interval"`
	Debug            bool          `yaml:"debug"`
}

// Default returns a small configuration that finishes quickly.
func Default() Config {
	return Config{
		Implementation: buffer.KindCond,
		BufferSize:     4,
		Producers:      2,
		Consumers:      2,
		Values:         100,
		Mode:           ModeBlocking,
		Timeout:        10 * time.Millisecond,
	}
}

// Load reads a YAML config file. Fields missing from the file keep their
// Default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("sim: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("sim: parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.BufferSize < 1 {
		errs = append(errs, fmt.Errorf("buffer_size must be > 0, got %d", c.BufferSize))
	}
	if c.Producers < 1 {
		errs = append(errs, fmt.Errorf("producers must be > 0, got %d", c.Producers))
	}
	if c.Consumers < 1 {
		errs = append(errs, fmt.Errorf("consumers must be > 0, got %d", c.Consumers))
	}
	if c.Values < 0 {
		errs = append(errs, fmt.Errorf("values must be >= 0, got %d", c.Values))
	}
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		errs = append(errs, err)
	}
	if err == nil && mode != ModeBlocking && c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0 in %s mode", mode))
	}
	if c.ProducerRate < 0 {
		errs = append(errs, fmt.Errorf("producer_rate must be >= 0, got %g", c.ProducerRate))
	}
	if c.ConsumerDelay < 0 {
		errs = append(errs, fmt.Errorf("consumer_delay must be >= 0, got %s", c.ConsumerDelay))
	}
	if c.ProgressInterval < 0 {
		errs = append(errs, fmt.Errorf("progress_interval must be >= 0, got %s", c.ProgressInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("sim: invalid config: %w", errors.Join(errs...))
	}
	return nil
}
