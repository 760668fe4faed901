package visa

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Driver provides enumeration and session opening for one interface class
// of instruments (USB, ASRL, TCPIP, ...).
type Driver interface {
	// InterfaceClass returns the descriptor prefix this driver claims,
	// e.g. "USB". The class is matched case insensitively.
	InterfaceClass() string

	// Enumerate lists the currently attached resources of this class in a
	// stable, driver-defined order. An empty list is not an error.
	Enumerate(ctx context.Context) ([]Resource, error)

	// Open opens an exclusive session to the given resource.
	Open(ctx context.Context, rsrc Resource) (Session, error)
}

var (
	driversMu   sync.Mutex
	driverOrder []string
	drivers     = xsync.NewMapOf[string, Driver]()
)

// RegisterDriver makes a driver available to resource managers under its
// interface class. It is intended to be called from the init function of a
// driver package. RegisterDriver panics if the driver is nil or if a driver
// is already registered for the same class.
func RegisterDriver(d Driver) {
	if d == nil {
		panic("visa: RegisterDriver driver is nil")
	}

	class := strings.ToUpper(d.InterfaceClass())
	if class == "" {
		panic("visa: RegisterDriver driver has empty interface class")
	}

	driversMu.Lock()
	defer driversMu.Unlock()

	if _, loaded := drivers.LoadOrStore(class, d); loaded {
		panic(fmt.Sprintf("visa: RegisterDriver called twice for class %s", class))
	}
	driverOrder = append(driverOrder, class)
}

// RegisteredDrivers returns the registered drivers in registration order.
func RegisteredDrivers() []Driver {
	driversMu.Lock()
	defer driversMu.Unlock()

	list := make([]Driver, 0, len(driverOrder))
	for _, class := range driverOrder {
		if d, ok := drivers.Load(class); ok {
			list = append(list, d)
		}
	}
	return list
}

// LookupDriver returns the registered driver for an interface class.
func LookupDriver(class string) (Driver, bool) {
	return drivers.Load(strings.ToUpper(class))
}
