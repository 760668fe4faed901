package tcpip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visagate/visagate/visa"
)

func TestSetEndpoints(t *testing.T) {
	require := require.New(t)

	t.Cleanup(func() { _ = SetEndpoints() })

	t.Run("host port form", func(t *testing.T) {
		require.NoError(SetEndpoints("192.168.1.20:5025"))

		rsrcs, err := drv.Enumerate(context.Background())
		require.NoError(err)
		require.Equal([]visa.Resource{"TCPIP0::192.168.1.20::5025::SOCKET"}, rsrcs)
	})

	t.Run("descriptor form", func(t *testing.T) {
		require.NoError(SetEndpoints("TCPIP0::10.0.0.9::5025::SOCKET"))

		rsrcs, err := drv.Enumerate(context.Background())
		require.NoError(err)
		require.Equal([]visa.Resource{"TCPIP0::10.0.0.9::5025::SOCKET"}, rsrcs)
	})

	t.Run("invalid entry", func(t *testing.T) {
		require.Error(SetEndpoints("no-port-here"))
		require.Error(SetEndpoints("TCPIP0::host::bad::SOCKET"))
		require.Error(SetEndpoints("TCPIP0::host::5025::INSTR"))
	})

	t.Run("empty list", func(t *testing.T) {
		require.NoError(SetEndpoints())

		rsrcs, err := drv.Enumerate(context.Background())
		require.NoError(err)
		require.Empty(rsrcs)
	})
}

func TestParseResource(t *testing.T) {
	require := require.New(t)

	host, port, err := parseResource("TCPIP0::192.168.1.20::5025::SOCKET")
	require.NoError(err)
	require.Equal("192.168.1.20", host)
	require.Equal(5025, port)

	_, _, err = parseResource("USB0::0x1::0x2::INSTR")
	require.ErrorIs(err, visa.ErrInvalidResource)

	_, _, err = parseResource("TCPIP0::host::0::SOCKET")
	require.ErrorIs(err, visa.ErrInvalidResource)

	_, _, err = parseResource("TCPIP0::host::5025")
	require.ErrorIs(err, visa.ErrInvalidResource)
}

// echoInstrument accepts one connection and echoes every received line back.
func echoInstrument(t *testing.T) (addr string, done chan struct{}) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	done = make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return
			}
		}
	}()

	return ln.Addr().String(), done
}

func TestOpenAndRoundTrip(t *testing.T) {
	require := require.New(t)

	addr, _ := echoInstrument(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(err)

	rsrc := visa.Resource(fmt.Sprintf("TCPIP0::%s::%s::SOCKET", host, portStr))

	session, err := drv.Open(context.Background(), rsrc)
	require.NoError(err)
	defer session.Close()

	n, err := session.Write([]byte("*IDN?\n"))
	require.NoError(err)
	require.Equal(6, n)

	buf := make([]byte, 64)
	n, err = session.Read(buf)
	require.NoError(err)
	require.Equal("*IDN?\n", string(buf[:n]))
}

func TestOpen_Refused(t *testing.T) {
	require := require.New(t)

	// bind and close a port so nothing is listening on it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = drv.Open(ctx, visa.Resource(fmt.Sprintf("TCPIP0::%s::%s::SOCKET", host, portStr)))
	require.Error(err)
}

func TestSession_Timeout(t *testing.T) {
	require := require.New(t)

	// silent instrument: accepts and never replies
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// hold the conn open without writing
		time.Sleep(5 * time.Second)
		conn.Close()
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(err)

	session, err := drv.Open(context.Background(), visa.Resource(fmt.Sprintf("TCPIP0::%s::%s::SOCKET", host, portStr)))
	require.NoError(err)
	defer session.Close()

	require.NoError(session.SetTimeout(50 * time.Millisecond))

	start := time.Now()
	_, err = session.Read(make([]byte, 16))
	require.Error(err)
	require.True(errors.Is(err, os.ErrDeadlineExceeded), "expected deadline error, got %v", err)
	require.Less(time.Since(start), 2*time.Second)
}

func TestSession_ClosedSemantics(t *testing.T) {
	require := require.New(t)

	addr, _ := echoInstrument(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(err)

	session, err := drv.Open(context.Background(), visa.Resource(fmt.Sprintf("TCPIP0::%s::%s::SOCKET", host, portStr)))
	require.NoError(err)

	require.NoError(session.Close())
	require.NoError(session.Close(), "double close is idempotent")

	_, err = session.Read(make([]byte, 8))
	require.ErrorIs(err, visa.ErrSessionClosed)

	_, err = session.Write([]byte("x"))
	require.ErrorIs(err, visa.ErrSessionClosed)

	require.ErrorIs(session.SetTimeout(time.Second), visa.ErrSessionClosed)
}
