package bridge

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/visagate/visagate/logger"
)

const (
	// DefaultPort is the TCP port the bridge listens on when none is configured.
	DefaultPort = 12345

	// DefaultReadBufferSize is the size of the buffer used for the single
	// instrument read that answers a query.
	DefaultReadBufferSize = 2048
)

// ServerConfig represents the configuration parameters for a bridge server.
type ServerConfig struct {
	mu sync.RWMutex

	// host specifies the local IP address the server listens on.
	// An empty host listens on all interfaces.
	host string

	// port specifies the TCP port number the server listens on.
	// Port 0 picks an ephemeral port.
	port int

	// readBufferSize defines the size of the buffer used for the single
	// instrument read that answers a query. The reply payload is capped at
	// this size. It should be between 128 bytes and 1 MiB.
	// Defaults to 2048 bytes.
	readBufferSize int

	// acceptConnTimeout defines the timeout for each iteration of accepting a
	// client connection. It bounds how long shutdown waits for the accept
	// loop to observe cancellation. It should be between 0.01 and 10 seconds.
	// Defaults to 1 second.
	acceptConnTimeout time.Duration

	// closeConnTimeout defines the timeout for closing the whole server.
	// It should be between 1 and 30 seconds.
	// Defaults to 3 seconds.
	closeConnTimeout time.Duration

	// statsInterval defines the interval between periodic metric log lines.
	// Zero disables the periodic report.
	// Defaults to 0 (disabled).
	statsInterval time.Duration

	// announce holds the mDNS instance name the server registers itself
	// under. An empty name disables the announcement.
	// Defaults to "" (disabled).
	announce string

	// logger provides a logger instance for logging server events and errors.
	logger logger.Logger
}

// NewServerConfig creates a new bridge server configuration with the given
// listen host, port number, and optional functional options.
//
// It initializes a ServerConfig struct with default values and then applies
// the provided options to customize the configuration.
//
// The host parameter specifies the local IP address to listen on; an empty
// host listens on all interfaces. The port parameter specifies the TCP port
// number; port 0 picks an ephemeral port.
//
// The opts parameter is a variadic argument that accepts a list of
// ServerOption functions to customize the configuration. See the
// documentation for ServerOption and the various WithXXX functions for
// available configuration options.
//
// Returns a pointer to the initialized ServerConfig and an error if any
// occurred during the configuration process.
func NewServerConfig(host string, port int, opts ...ServerOption) (*ServerConfig, error) {
	cfg := &ServerConfig{
		readBufferSize:    DefaultReadBufferSize,
		acceptConnTimeout: 1 * time.Second,
		closeConnTimeout:  3 * time.Second,
		statsInterval:     0,
		announce:          "",
		logger:            logger.GetLogger(),
	}

	if err := withListenHost(host).apply(cfg); err != nil {
		return cfg, err
	}

	if err := withListenPort(port).apply(cfg); err != nil {
		return cfg, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// ReadBufferSize returns the configured instrument read buffer size.
func (cfg *ServerConfig) ReadBufferSize() int {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.readBufferSize
}

// AcceptTimeout returns the configured accept poll timeout.
func (cfg *ServerConfig) AcceptTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.acceptConnTimeout
}

// CloseTimeout returns the configured server close timeout.
func (cfg *ServerConfig) CloseTimeout() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.closeConnTimeout
}

// StatsInterval returns the configured interval between periodic metric log
// lines. Zero means the periodic report is disabled.
func (cfg *ServerConfig) StatsInterval() time.Duration {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.statsInterval
}

// Announce returns the configured mDNS instance name, or an empty string when
// the announcement is disabled.
func (cfg *ServerConfig) Announce() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.announce
}

// update applies runtime-changeable options to the configuration.
// It rejects options that can only be set at construction time.
func (cfg *ServerConfig) update(opts ...ServerOption) error {
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	for _, opt := range opts {
		srvOpt, ok := opt.(*srvOptFunc)
		if !ok {
			return errors.New("invalid ServerOption type")
		}

		if !srvOpt.runtime {
			return fmt.Errorf("%s option can't be changed at runtime", srvOpt.name)
		}

		if err := srvOpt.apply(cfg); err != nil {
			return err
		}
	}

	return nil
}

// ServerOption represents a functional option for configuring a ServerConfig.
type ServerOption interface {
	apply(*ServerConfig) error
}

type srvOptFunc struct {
	name      string
	runtime   bool
	applyFunc func(*ServerConfig) error
}

func (f *srvOptFunc) apply(cfg *ServerConfig) error { return f.applyFunc(cfg) }

func newSrvOptFunc(name string, runtime bool, f func(*ServerConfig) error) *srvOptFunc {
	return &srvOptFunc{
		name:      name,
		runtime:   runtime,
		applyFunc: f,
	}
}

// withListenHost sets the local IP address the server listens on.
// It returns a ServerOption that validates the host and updates the
// configuration. The host must be a valid IP address or empty; an empty host
// listens on all interfaces.
func withListenHost(host string) ServerOption {
	return newSrvOptFunc("withListenHost", false, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if host == "" {
			cfg.host = host
			return nil
		}

		if ip := net.ParseIP(host); ip != nil {
			cfg.host = host
			return nil
		}

		return ErrInvalidHost
	})
}

// withListenPort sets the TCP port number the server listens on.
// It returns a ServerOption that validates the port number and updates the
// configuration. An error is returned if the port number is out of the valid
// range (0-65535) or if the configuration is nil. Port 0 picks an ephemeral
// port.
func withListenPort(port int) ServerOption {
	return newSrvOptFunc("withListenPort", false, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if port < 0 || port > 65535 {
			return ErrInvalidPort
		}
		cfg.port = port

		return nil
	})
}

// WithReadBufferSize sets the size of the buffer used for the single
// instrument read that answers a query. The reply payload of a query is
// capped at this size.
//
// The size must be within the range of 128 bytes to 1 MiB.
// An error is returned if the size is invalid or if the provided
// ServerConfig is nil.
//
// The default value is 2048 bytes.
//
// This option can be changed at runtime.
func WithReadBufferSize(size int) ServerOption {
	return newSrvOptFunc("WithReadBufferSize", true, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if size < 128 || size > 1<<20 {
			return ErrInvalidBufferSize
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithAcceptTimeout sets the timeout for each iteration of accepting a client
// connection. The accept loop polls with this deadline so that shutdown is
// observed within one iteration.
//
// An error is returned if the timeout is outside the valid range
// (0.01-10 seconds) or if the configuration is nil.
//
// The default value is 1 second.
//
// This option can be changed at runtime.
func WithAcceptTimeout(val time.Duration) ServerOption {
	return newSrvOptFunc("WithAcceptTimeout", true, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 10*time.Millisecond || val > 10*time.Second {
			return errors.New("accept timeout out of range [0.01, 10]")
		}
		cfg.acceptConnTimeout = val

		return nil
	})
}

// WithCloseTimeout sets the timeout for closing the whole server, including
// waiting for the accept loop and any in-flight client connection to
// terminate.
//
// An error is returned if the timeout is outside the valid range
// (1-30 seconds) or if the configuration is nil.
//
// The default value is 3 seconds.
//
// This option can be changed at runtime.
func WithCloseTimeout(val time.Duration) ServerOption {
	return newSrvOptFunc("WithCloseTimeout", true, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("close timeout out of range [1, 30]")
		}
		cfg.closeConnTimeout = val

		return nil
	})
}

// WithStatsInterval sets the interval between periodic metric log lines.
// A zero interval disables the periodic report.
//
// An error is returned if the interval is negative or if the configuration
// is nil.
//
// The default value is 0 (disabled).
//
// This option can be changed at runtime.
func WithStatsInterval(val time.Duration) ServerOption {
	return newSrvOptFunc("WithStatsInterval", true, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 0 {
			return errors.New("stats interval is negative")
		}
		cfg.statsInterval = val

		return nil
	})
}

// WithAnnounce sets the mDNS instance name the server registers itself under
// once it is listening. The service is announced as "_scpi-raw._tcp" with TXT
// records carrying the bridged instrument's descriptor and identity.
//
// An error is returned if the instance name is empty or if the configuration
// is nil.
//
// The default is no announcement.
//
// This option can't be changed at runtime.
func WithAnnounce(instance string) ServerOption {
	return newSrvOptFunc("WithAnnounce", false, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if instance == "" {
			return errors.New("announce instance is empty")
		}
		cfg.announce = instance

		return nil
	})
}

// WithLogger sets the logger for the bridge server.
// It returns a ServerOption that updates the configuration with the provided
// logger. An error is returned if the logger or the configuration is nil.
//
// The default logger is the global logger instance.
//
// This option can't be changed at runtime.
func WithLogger(l logger.Logger) ServerOption {
	return newSrvOptFunc("WithLogger", false, func(cfg *ServerConfig) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
