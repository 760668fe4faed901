// Package asrl provides the resource driver for serial-attached instruments,
// addressed as ASRL<port path>::INSTR (e.g. ASRL/dev/ttyUSB0::INSTR).
//
// Enumeration lists the serial ports known to the operating system. Ports are
// opened with a shared mode, 115200 8N1 by default, adjustable with SetMode.
//
// Importing the package registers the driver:
//
//	import _ "github.com/visagate/visagate/visa/asrl"
package asrl

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/visagate/visagate/visa"
)

const interfaceClass = "ASRL"

type driverImpl struct {
	mu   sync.RWMutex
	mode serial.Mode
}

var drv = &driverImpl{
	mode: serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	},
}

func init() {
	visa.RegisterDriver(drv)
}

// SetMode replaces the port mode applied on subsequent opens. Sessions that
// are already open keep their mode.
func SetMode(mode serial.Mode) {
	drv.mu.Lock()
	drv.mode = mode
	drv.mu.Unlock()
}

func (d *driverImpl) InterfaceClass() string {
	return interfaceClass
}

func (d *driverImpl) Enumerate(ctx context.Context) ([]visa.Resource, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	return toResources(ports), nil
}

// toResources maps OS port paths to descriptors in a stable order.
func toResources(ports []string) []visa.Resource {
	sorted := make([]string, len(ports))
	copy(sorted, ports)
	sort.Strings(sorted)

	rsrcs := make([]visa.Resource, 0, len(sorted))
	for _, p := range sorted {
		if p == "" {
			continue
		}
		rsrcs = append(rsrcs, visa.Resource(interfaceClass+p+"::INSTR"))
	}

	return rsrcs
}

// portPath extracts the OS port path from an ASRL<path>::INSTR descriptor.
// The ASRL prefix is case insensitive; the path itself is preserved verbatim.
func portPath(rsrc visa.Resource) (string, error) {
	parts := rsrc.Parts()
	if len(parts) != 2 || !strings.EqualFold(parts[1], "INSTR") {
		return "", fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}
	if len(parts[0]) <= len(interfaceClass) || !strings.EqualFold(parts[0][:len(interfaceClass)], interfaceClass) {
		return "", fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	return parts[0][len(interfaceClass):], nil
}

func (d *driverImpl) Open(ctx context.Context, rsrc visa.Resource) (visa.Session, error) {
	path, err := portPath(rsrc)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	mode := d.mode
	d.mu.RUnlock()

	type result struct {
		port serial.Port
		err  error
	}
	ch := make(chan result, 1)

	// serial.Open does not accept a context, so run it in a goroutine and
	// race it against cancellation. A wedged port must not hang discovery.
	go func() {
		port, err := serial.Open(path, &mode)
		ch <- result{port: port, err: err}
	}()

	select {
	case <-ctx.Done():
		// If the open eventually succeeds, close it to avoid leaking the fd.
		go func() {
			r := <-ch
			if r.err == nil && r.port != nil {
				_ = r.port.Close()
			}
		}()
		return nil, ctx.Err()

	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open serial port %q: %w", path, r.err)
		}
		return &session{port: r.port, path: path}, nil
	}
}

// session adapts a serial.Port to visa.Session.
type session struct {
	mu      sync.Mutex
	port    serial.Port
	path    string
	timeout time.Duration
	closed  bool
}

func (s *session) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, visa.ErrSessionClosed
	}
	port, timeout := s.port, s.timeout
	s.mu.Unlock()

	n, err := port.Read(p)
	if err != nil {
		return n, err
	}
	// An expired read timeout surfaces as (0, nil); report it as a deadline
	// error so callers can tell silence from an empty reply.
	if n == 0 && timeout > 0 {
		return 0, fmt.Errorf("read %s: %w", s.path, os.ErrDeadlineExceeded)
	}

	return n, nil
}

func (s *session) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, visa.ErrSessionClosed
	}
	port := s.port
	s.mu.Unlock()

	return port.Write(p)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.port.Close()
}

func (s *session) SetTimeout(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return visa.ErrSessionClosed
	}

	if d <= 0 {
		s.timeout = 0
		return s.port.SetReadTimeout(serial.NoTimeout)
	}

	s.timeout = d

	return s.port.SetReadTimeout(d)
}
