package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visagate/visagate/logger"
)

func TestNewServerConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewServerConfig("127.0.0.1", DefaultPort)
	require.NoError(err)
	require.NotNil(cfg)

	require.Equal("127.0.0.1", cfg.host)
	require.Equal(DefaultPort, cfg.port)
	require.Equal(DefaultReadBufferSize, cfg.ReadBufferSize())
	require.Equal(1*time.Second, cfg.AcceptTimeout())
	require.Equal(3*time.Second, cfg.CloseTimeout())
	require.Equal(time.Duration(0), cfg.StatsInterval())
	require.Equal("", cfg.Announce())
	require.NotNil(cfg.logger)
}

func TestNewServerConfig_ListenAddress(t *testing.T) {
	tests := []struct {
		desc   string
		host   string
		port   int
		errStr string
	}{
		{desc: "ipv4 host", host: "0.0.0.0", port: 12345, errStr: ""},
		{desc: "ipv6 host", host: "::1", port: 12345, errStr: ""},
		{desc: "empty host listens on all interfaces", host: "", port: 12345, errStr: ""},
		{desc: "ephemeral port", host: "127.0.0.1", port: 0, errStr: ""},
		{desc: "hostname rejected", host: "localhost", port: 12345, errStr: "listen host is not an IP address"},
		{desc: "garbage host rejected", host: "not an ip", port: 12345, errStr: "listen host is not an IP address"},
		{desc: "negative port", host: "127.0.0.1", port: -1, errStr: "port is out of range [0, 65535]"},
		{desc: "port too large", host: "127.0.0.1", port: 65536, errStr: "port is out of range [0, 65535]"},
	}

	for i, test := range tests {
		t.Logf("Test #%d: %s", i, test.desc)

		_, err := NewServerConfig(test.host, test.port)
		if test.errStr == "" {
			require.NoError(t, err)
		} else {
			require.EqualError(t, err, test.errStr)
		}
	}
}

func TestNewServerConfig_Options(t *testing.T) {
	require := require.New(t)

	l := logger.NewMockLogger()
	cfg, err := NewServerConfig("127.0.0.1", DefaultPort,
		WithLogger(l),
		WithReadBufferSize(4096),
		WithAcceptTimeout(100*time.Millisecond),
		WithCloseTimeout(5*time.Second),
		WithStatsInterval(30*time.Second),
		WithAnnounce("bench-dmm"),
	)
	require.NoError(err)

	require.Equal(4096, cfg.ReadBufferSize())
	require.Equal(100*time.Millisecond, cfg.AcceptTimeout())
	require.Equal(5*time.Second, cfg.CloseTimeout())
	require.Equal(30*time.Second, cfg.StatsInterval())
	require.Equal("bench-dmm", cfg.Announce())
	require.Equal(l, cfg.logger)
}

func TestNewServerConfig_OptionValidation(t *testing.T) {
	tests := []struct {
		desc   string
		opt    ServerOption
		errStr string
	}{
		{desc: "read buffer too small", opt: WithReadBufferSize(64), errStr: "read buffer size out of range [128, 1048576]"},
		{desc: "read buffer too large", opt: WithReadBufferSize(2 << 20), errStr: "read buffer size out of range [128, 1048576]"},
		{desc: "read buffer lower bound", opt: WithReadBufferSize(128), errStr: ""},
		{desc: "read buffer upper bound", opt: WithReadBufferSize(1 << 20), errStr: ""},
		{desc: "accept timeout too short", opt: WithAcceptTimeout(5 * time.Millisecond), errStr: "accept timeout out of range [0.01, 10]"},
		{desc: "accept timeout too long", opt: WithAcceptTimeout(11 * time.Second), errStr: "accept timeout out of range [0.01, 10]"},
		{desc: "close timeout too short", opt: WithCloseTimeout(500 * time.Millisecond), errStr: "close timeout out of range [1, 30]"},
		{desc: "close timeout too long", opt: WithCloseTimeout(31 * time.Second), errStr: "close timeout out of range [1, 30]"},
		{desc: "negative stats interval", opt: WithStatsInterval(-1 * time.Second), errStr: "stats interval is negative"},
		{desc: "zero stats interval disables the report", opt: WithStatsInterval(0), errStr: ""},
		{desc: "empty announce instance", opt: WithAnnounce(""), errStr: "announce instance is empty"},
		{desc: "nil logger", opt: WithLogger(nil), errStr: "logger is nil"},
	}

	for i, test := range tests {
		t.Logf("Test #%d: %s", i, test.desc)

		_, err := NewServerConfig("127.0.0.1", DefaultPort, test.opt)
		if test.errStr == "" {
			require.NoError(t, err)
		} else {
			require.EqualError(t, err, test.errStr)
		}
	}
}

func TestServerConfig_Update(t *testing.T) {
	require := require.New(t)

	cfg, err := NewServerConfig("127.0.0.1", DefaultPort)
	require.NoError(err)

	require.NoError(cfg.update(WithReadBufferSize(8192), WithStatsInterval(time.Minute)))
	require.Equal(8192, cfg.ReadBufferSize())
	require.Equal(time.Minute, cfg.StatsInterval())

	err = cfg.update(WithAnnounce("late"))
	require.EqualError(err, "WithAnnounce option can't be changed at runtime")

	err = cfg.update(WithLogger(logger.NewMockLogger()))
	require.EqualError(err, "WithLogger option can't be changed at runtime")

	err = cfg.update(WithReadBufferSize(1))
	require.EqualError(err, "read buffer size out of range [128, 1048576]")
	require.Equal(8192, cfg.ReadBufferSize())
}
