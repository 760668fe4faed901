// Package config loads the visagate daemon configuration from a YAML file
// and applies the documented defaults for absent fields.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/visagate/visagate/bridge"
	"github.com/visagate/visagate/discovery"
	"github.com/visagate/visagate/logger"
)

const (
	// DefaultHost is the bind address used when the file sets none.
	DefaultHost = "0.0.0.0"
	// DefaultLogLevel is the log level used when the file sets none.
	DefaultLogLevel = "info"
)

// Config is the daemon configuration. Load fills absent fields with the
// documented defaults, so an empty file is a valid configuration.
type Config struct {
	Listen     Listen     `yaml:"listen"`
	Instrument Instrument `yaml:"instrument"`

	// Announce is the instance name to register over mDNS for the running
	// bridge. Empty disables the announcement.
	Announce string `yaml:"announce"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// TCPIPEndpoints lists static raw-socket instruments, each either a
	// host:port pair or a full TCPIP0::<host>::<port>::SOCKET descriptor.
	// Raw-socket instruments cannot be probed, so discovery only sees the
	// ones listed here.
	TCPIPEndpoints []string `yaml:"tcpip_endpoints"`
}

// Listen configures the TCP front end of the bridge.
type Listen struct {
	// Host is the bind address. Empty or 0.0.0.0 listens on all interfaces.
	Host string `yaml:"host"`
	// Port is the TCP port clients connect to.
	Port int `yaml:"port"`
	// ReadBufferSize caps one instrument reply in bytes.
	ReadBufferSize int `yaml:"read_buffer_size"`
}

// Instrument configures how the bridged instrument is selected.
type Instrument struct {
	// Key selects the instrument: either a full resource descriptor
	// (recognized by the :: separator) or a case-insensitive substring of
	// the identification string.
	Key string `yaml:"key"`
	// Filter is the resource search expression used during enumeration.
	Filter string `yaml:"filter"`
	// QueryTimeout bounds each identity query during discovery.
	QueryTimeout Duration `yaml:"query_timeout"`
}

// Default returns the configuration the daemon runs with when no file is
// present.
func Default() *Config {
	return &Config{
		Listen: Listen{
			Host:           DefaultHost,
			Port:           bridge.DefaultPort,
			ReadBufferSize: bridge.DefaultReadBufferSize,
		},
		Instrument: Instrument{
			Filter:       discovery.DefaultFilter,
			QueryTimeout: Duration(discovery.DefaultQueryTimeout),
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads the configuration file at path. A missing file, or an empty
// path, yields Default. Decoding is strict: unknown fields and out-of-range
// values are errors naming the offending field.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks every field against its documented range. Load calls it;
// the daemon calls it again after flag overrides are applied.
func (c *Config) Validate() error {
	if c.Listen.Host != "" && net.ParseIP(c.Listen.Host) == nil {
		return fmt.Errorf("listen.host %q is not an IP address", c.Listen.Host)
	}

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range [0, 65535]", c.Listen.Port)
	}

	if c.Listen.ReadBufferSize < 128 || c.Listen.ReadBufferSize > 1<<20 {
		return fmt.Errorf("listen.read_buffer_size %d out of range [128, 1048576]", c.Listen.ReadBufferSize)
	}

	if c.Instrument.Filter == "" {
		return fmt.Errorf("instrument.filter is empty")
	}

	if c.Instrument.QueryTimeout < 0 {
		return fmt.Errorf("instrument.query_timeout is negative")
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	for i, ep := range c.TCPIPEndpoints {
		if strings.TrimSpace(ep) == "" {
			return fmt.Errorf("tcpip_endpoints[%d] is empty", i)
		}
	}

	return nil
}

// ParseLogLevel maps a configuration level name to a logger level. The match
// is case insensitive; an empty name means InfoLevel.
func ParseLogLevel(s string) (logger.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel, nil
	case "", "info":
		return logger.InfoLevel, nil
	case "warn":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}

	return logger.InfoLevel, fmt.Errorf("log_level %q is not one of debug, info, warn, error", s)
}

// Duration is a time.Duration that unmarshals from YAML scalars in
// time.ParseDuration syntax, e.g. "2s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)

	return nil
}
