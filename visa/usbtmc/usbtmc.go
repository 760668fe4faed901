// Package usbtmc provides the resource driver for USB Test & Measurement
// Class instruments exposed by the kernel usbtmc driver as /dev/usbtmcN
// character devices.
//
// Descriptors carry the USB identity read from sysfs:
//
//	USB0::0x0699::0x0522::C012345::INSTR
//
// with the serial part omitted when the device does not report one. One
// write is one USBTMC transfer; the kernel driver frames messages and
// enforces its own transaction timeout.
//
// Importing the package registers the driver:
//
//	import _ "github.com/visagate/visagate/visa/usbtmc"
package usbtmc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/visagate/visagate/logger"
	"github.com/visagate/visagate/visa"
)

const interfaceClass = "USB"

type driverImpl struct {
	devGlob    string
	sysfsClass string
}

var drv = &driverImpl{
	devGlob:    "/dev/usbtmc[0-9]*",
	sysfsClass: "/sys/class/usbmisc",
}

func init() {
	visa.RegisterDriver(drv)
}

// device is one enumerated /dev/usbtmcN node with its USB identity.
type device struct {
	node   string
	vid    string // lower-case hex, no 0x prefix
	pid    string
	serial string
}

func (dev *device) resource() visa.Resource {
	if dev.serial == "" {
		return visa.Resource(fmt.Sprintf("USB0::0x%s::0x%s::INSTR", dev.vid, dev.pid))
	}
	return visa.Resource(fmt.Sprintf("USB0::0x%s::0x%s::%s::INSTR", dev.vid, dev.pid, dev.serial))
}

func (d *driverImpl) InterfaceClass() string {
	return interfaceClass
}

func (d *driverImpl) Enumerate(ctx context.Context) ([]visa.Resource, error) {
	devices, err := d.devices()
	if err != nil {
		return nil, err
	}

	rsrcs := make([]visa.Resource, 0, len(devices))
	for _, dev := range devices {
		rsrcs = append(rsrcs, dev.resource())
	}

	return rsrcs, nil
}

// devices lists the usbtmc nodes in numeric order with their identities.
// Nodes whose sysfs identity cannot be read are skipped with a warning;
// they cannot be addressed by a stable descriptor.
func (d *driverImpl) devices() ([]*device, error) {
	nodes, err := filepath.Glob(d.devGlob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", d.devGlob, err)
	}
	sortNodes(nodes)

	devices := make([]*device, 0, len(nodes))
	for _, node := range nodes {
		dev, err := d.describe(node)
		if err != nil {
			logger.Warn("skipping usbtmc node without sysfs identity", "node", node, "error", err.Error())
			continue
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

// describe resolves the sysfs identity of one /dev/usbtmcN node. The class
// device's "device" link points at the USB interface directory; its parent
// is the USB device directory holding idVendor, idProduct and serial.
func (d *driverImpl) describe(node string) (*device, error) {
	name := filepath.Base(node)

	ifaceDir, err := filepath.EvalSymlinks(filepath.Join(d.sysfsClass, name, "device"))
	if err != nil {
		return nil, err
	}
	usbDir := filepath.Dir(ifaceDir)

	vid, err := readSysfsAttr(filepath.Join(usbDir, "idVendor"))
	if err != nil {
		return nil, err
	}
	pid, err := readSysfsAttr(filepath.Join(usbDir, "idProduct"))
	if err != nil {
		return nil, err
	}
	// serial is optional; many bench instruments report one, some do not
	serial, err := readSysfsAttr(filepath.Join(usbDir, "serial"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return &device{
		node:   node,
		vid:    strings.ToLower(vid),
		pid:    strings.ToLower(pid),
		serial: serial,
	}, nil
}

func readSysfsAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// sortNodes orders /dev/usbtmcN paths by their numeric suffix.
func sortNodes(nodes []string) {
	sort.Slice(nodes, func(i, j int) bool {
		ni, oki := nodeIndex(nodes[i])
		nj, okj := nodeIndex(nodes[j])
		if oki && okj {
			return ni < nj
		}
		return nodes[i] < nodes[j]
	})
}

func nodeIndex(node string) (int, bool) {
	base := filepath.Base(node)
	idx := strings.TrimPrefix(base, "usbtmc")
	n, err := strconv.Atoi(idx)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseResource extracts the vid, pid and optional serial from a USB
// descriptor. Hex parts are normalized to lower case without the 0x prefix.
func parseResource(rsrc visa.Resource) (vid, pid, serial string, err error) {
	parts := rsrc.Parts()
	if rsrc.InterfaceClass() != interfaceClass || !strings.EqualFold(parts[len(parts)-1], "INSTR") {
		return "", "", "", fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	switch len(parts) {
	case 4: // USB0::vid::pid::INSTR
		vid, pid = parts[1], parts[2]
	case 5: // USB0::vid::pid::serial::INSTR
		vid, pid, serial = parts[1], parts[2], parts[3]
	default:
		return "", "", "", fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	vid = normalizeHex(vid)
	pid = normalizeHex(pid)
	if vid == "" || pid == "" {
		return "", "", "", fmt.Errorf("%q: %w", rsrc.String(), visa.ErrInvalidResource)
	}

	return vid, pid, serial, nil
}

func normalizeHex(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if s == "" {
		return ""
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return ""
	}
	return s
}

func (d *driverImpl) Open(ctx context.Context, rsrc visa.Resource) (visa.Session, error) {
	vid, pid, serial, err := parseResource(rsrc)
	if err != nil {
		return nil, err
	}

	devices, err := d.devices()
	if err != nil {
		return nil, err
	}

	for _, dev := range devices {
		if dev.vid != vid || dev.pid != pid {
			continue
		}
		if serial != "" && dev.serial != serial {
			continue
		}

		f, err := os.OpenFile(dev.node, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", dev.node, err)
		}
		return &session{f: f}, nil
	}

	return nil, fmt.Errorf("%q: no attached device matches: %w", rsrc.String(), os.ErrNotExist)
}

// session adapts a usbtmc character device to visa.Session. Deadlines are
// best effort: when the runtime cannot poll the device the configured
// timeout is ignored and the kernel driver's own transaction timeout
// applies.
type session struct {
	mu      sync.Mutex
	f       *os.File
	timeout time.Duration
	closed  bool
}

func (s *session) Read(p []byte) (int, error) {
	f, timeout, err := s.ioState()
	if err != nil {
		return 0, err
	}

	if err := f.SetReadDeadline(deadlineFor(timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return 0, err
	}

	return f.Read(p)
}

func (s *session) Write(p []byte) (int, error) {
	f, timeout, err := s.ioState()
	if err != nil {
		return 0, err
	}

	if err := f.SetWriteDeadline(deadlineFor(timeout)); err != nil && !errors.Is(err, os.ErrNoDeadline) {
		return 0, err
	}

	return f.Write(p)
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.f.Close()
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

func (s *session) ioState() (*os.File, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, visa.ErrSessionClosed
	}

	return s.f, s.timeout, nil
}

func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
