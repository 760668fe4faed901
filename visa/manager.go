package visa

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/visagate/visagate/logger"
)

// ResourceManager is the entry point to the resource layer. It enumerates
// attached instruments across the registered drivers and opens sessions to
// them. A ResourceManager is safe for concurrent use.
type ResourceManager struct {
	drivers     []Driver
	logger      logger.Logger
	openTimeout time.Duration
	closed      atomic.Bool
}

// Option represents a functional option for configuring a ResourceManager.
type Option interface {
	apply(*ResourceManager) error
}

type optFunc func(*ResourceManager) error

func (f optFunc) apply(rm *ResourceManager) error { return f(rm) }

// WithLogger sets the logger used by the resource manager.
// The default is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(rm *ResourceManager) error {
		if l == nil {
			return fmt.Errorf("logger is nil")
		}
		rm.logger = l

		return nil
	})
}

// WithDrivers overrides the globally registered drivers for this manager.
// The given drivers are used in the given order. Mostly useful for tests and
// for embedding a manager with a restricted driver set.
func WithDrivers(ds ...Driver) Option {
	return optFunc(func(rm *ResourceManager) error {
		for _, d := range ds {
			if d == nil {
				return fmt.Errorf("driver is nil")
			}
		}
		rm.drivers = ds

		return nil
	})
}

// WithOpenTimeout bounds each Open call with the given timeout.
// A zero value, the default, leaves Open bounded only by its context.
func WithOpenTimeout(d time.Duration) Option {
	return optFunc(func(rm *ResourceManager) error {
		if d < 0 {
			return fmt.Errorf("open timeout is negative")
		}
		rm.openTimeout = d

		return nil
	})
}

// NewResourceManager creates a ResourceManager backed by the globally
// registered drivers, unless WithDrivers overrides them.
func NewResourceManager(opts ...Option) (*ResourceManager, error) {
	rm := &ResourceManager{
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(rm); err != nil {
			return nil, err
		}
	}

	if rm.drivers == nil {
		rm.drivers = RegisteredDrivers()
	}

	return rm, nil
}

// FindResources enumerates attached instruments across all drivers and
// returns the descriptors matching the given filter expression (see
// MatchFilter), in enumeration order.
//
// A driver that finds nothing contributes an empty list; a driver whose
// enumeration itself fails aborts the whole search with a wrapped error.
func (rm *ResourceManager) FindResources(ctx context.Context, filter string) ([]Resource, error) {
	if rm.closed.Load() {
		return nil, ErrManagerClosed
	}

	var found []Resource
	for _, d := range rm.drivers {
		rsrcs, err := d.Enumerate(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s resources: %w", d.InterfaceClass(), err)
		}

		matched := 0
		for _, r := range rsrcs {
			if MatchFilter(filter, r) {
				found = append(found, r)
				matched++
			}
		}
		rm.logger.Debug("enumerated resources", "class", d.InterfaceClass(), "total", len(rsrcs), "matched", matched)
	}

	return found, nil
}

// Open opens an exclusive session to the instrument addressed by rsrc,
// dispatching to the driver that claims its interface class.
func (rm *ResourceManager) Open(ctx context.Context, rsrc Resource) (Session, error) {
	if rm.closed.Load() {
		return nil, ErrManagerClosed
	}

	if !rsrc.Valid() {
		return nil, fmt.Errorf("open %q: %w", rsrc.String(), ErrInvalidResource)
	}

	driver := rm.lookup(rsrc.InterfaceClass())
	if driver == nil {
		return nil, fmt.Errorf("open %q: %w", rsrc.String(), ErrUnknownResource)
	}

	if rm.openTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rm.openTimeout)
		defer cancel()
	}

	session, err := driver.Open(ctx, rsrc)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", rsrc.String(), err)
	}
	rm.logger.Debug("session opened", "resource", rsrc.String())

	return session, nil
}

// Close marks the manager closed. Subsequent FindResources and Open calls
// fail with ErrManagerClosed. Sessions already opened are unaffected and must
// be closed by their owners.
func (rm *ResourceManager) Close() error {
	rm.closed.Store(true)
	return nil
}

func (rm *ResourceManager) lookup(class string) Driver {
	for _, d := range rm.drivers {
		if strings.EqualFold(d.InterfaceClass(), class) {
			return d
		}
	}
	return nil
}
