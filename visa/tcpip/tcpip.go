// Package tcpip provides the resource driver for raw-socket network
// instruments, addressed as TCPIP0::<host>::<port>::SOCKET.
//
// Network instruments cannot be discovered by probing, so the driver
// enumerates a statically configured endpoint list:
//
//	tcpip.SetEndpoints("192.168.1.20:5025")
//
// Importing the package registers the driver:
//
//	import _ "github.com/visagate/visagate/visa/tcpip"
package tcpip

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/visagate/visagate/visa"
)

const interfaceClass = "TCPIP"

type driverImpl struct {
	mu        sync.RWMutex
	endpoints []visa.Resource
	dialer    net.Dialer
}

var drv = &driverImpl{}

func init() {
	visa.RegisterDriver(drv)
}

// SetEndpoints replaces the configured endpoint list. Each entry is either a
// plain "host:port" address or a full TCPIP descriptor ending in ::SOCKET.
func SetEndpoints(endpoints ...string) error {
	rsrcs := make([]visa.Resource, 0, len(endpoints))
	for _, ep := range endpoints {
		rsrc, err := toResource(ep)
		if err != nil {
			return err
		}
		rsrcs = append(rsrcs, rsrc)
	}

	drv.mu.Lock()
	drv.endpoints = rsrcs
	drv.mu.Unlock()

	return nil
}

func toResource(ep string) (visa.Resource, error) {
	if strings.Contains(ep, "::") {
		rsrc := visa.Resource(ep)
		if _, _, err := parseResource(rsrc); err != nil {
			return "", err
		}
		return rsrc, nil
	}

	host, port, err := net.SplitHostPort(ep)
	if err != nil {
		return "", fmt.Errorf("endpoint %q: %w", ep, err)
	}
	return visa.Resource(fmt.Sprintf("TCPIP0::%s::%s::SOCKET", host, port)), nil
}

// parseResource extracts host and port from a TCPIP0::host::port::SOCKET
// descriptor.
func parseResource(rsrc visa.Resource) (host string, port int, err error) {
	parts := rsrc.Parts()
	if rsrc.InterfaceClass() != interfaceClass || len(parts) != 4 || !strings.EqualFold(parts[3], "SOCKET") {
		return "", 0, fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	port, err = strconv.Atoi(parts[2])
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%q: invalid port: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	return parts[1], port, nil
}

func (d *driverImpl) InterfaceClass() string {
	return interfaceClass
}

func (d *driverImpl) Enumerate(ctx context.Context) ([]visa.Resource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rsrcs := make([]visa.Resource, len(d.endpoints))
	copy(rsrcs, d.endpoints)

	return rsrcs, nil
}

func (d *driverImpl) Open(ctx context.Context, rsrc visa.Resource) (visa.Session, error) {
	host, port, err := parseResource(rsrc)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	d.mu.RLock()
	dialer := d.dialer
	d.mu.RUnlock()

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &session{conn: conn}, nil
}

// session adapts a net.Conn to visa.Session. The configured timeout is
// applied as a fresh deadline before every Read and Write.
type session struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	closed  bool
}

func (s *session) Read(p []byte) (int, error) {
	conn, timeout, err := s.ioState()
	if err != nil {
		return 0, err
	}

	if err := conn.SetReadDeadline(deadlineFor(timeout)); err != nil {
		return 0, err
	}

	return conn.Read(p)
}

func (s *session) Write(p []byte) (int, error) {
	conn, timeout, err := s.ioState()
	if err != nil {
		return 0, err
	}

	if err := conn.SetWriteDeadline(deadlineFor(timeout)); err != nil {
		return 0, err
	}

	return conn.Write(p)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.conn.Close()
}

func (s *session) SetTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return visa.ErrSessionClosed
	}
	if d < 0 {
		d = 0
	}
	s.timeout = d

	return nil
}

func (s *session) ioState() (net.Conn, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, visa.ErrSessionClosed
	}

	return s.conn, s.timeout, nil
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
