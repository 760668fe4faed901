package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visagate/visagate/logger"
	"github.com/visagate/visagate/visa"
)

var (
	// ErrNotFound indicates that no attached instrument matched the target
	// key. It is also returned when nothing is attached at all.
	ErrNotFound = errors.New("no instrument matches the target key")

	// ErrEmptyKey indicates that an empty target key was given. An empty key
	// would match every instrument, which is never what the caller wants.
	ErrEmptyKey = errors.New("target key is empty")
)

const (
	// DefaultFilter enumerates every message-based instrument class.
	DefaultFilter = "?*INSTR"

	// DefaultQueryTimeout bounds each transient identity query.
	DefaultQueryTimeout = 2 * time.Second
)

// Instrument is one enumerated candidate with its identification string.
// Identity is empty when the candidate did not answer the identity query.
type Instrument struct {
	Resource visa.Resource
	Identity string
}

// Resolver finds instruments by matching identification strings.
type Resolver struct {
	rm           *visa.ResourceManager
	filter       string
	queryTimeout time.Duration
	logger       logger.Logger
}

// Option represents a functional option for configuring a Resolver.
type Option interface {
	apply(*Resolver) error
}

type optFunc func(*Resolver) error

func (f optFunc) apply(r *Resolver) error { return f(r) }

// WithFilter sets the resource search expression used during enumeration.
// The default is DefaultFilter.
func WithFilter(filter string) Option {
	return optFunc(func(r *Resolver) error {
		if filter == "" {
			return fmt.Errorf("filter is empty")
		}
		r.filter = filter

		return nil
	})
}

// WithQueryTimeout bounds each candidate's identity query. Candidates that
// do not answer within the timeout are skipped. The default is
// DefaultQueryTimeout; a zero value disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return optFunc(func(r *Resolver) error {
		if d < 0 {
			return fmt.Errorf("query timeout is negative")
		}
		r.queryTimeout = d

		return nil
	})
}

// WithLogger sets the logger used by the resolver.
// The default is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(r *Resolver) error {
		if l == nil {
			return fmt.Errorf("logger is nil")
		}
		r.logger = l

		return nil
	})
}

// NewResolver creates a Resolver on top of the given resource manager.
func NewResolver(rm *visa.ResourceManager, opts ...Option) (*Resolver, error) {
	if rm == nil {
		return nil, fmt.Errorf("resource manager is nil")
	}

	r := &Resolver{
		rm:           rm,
		filter:       DefaultFilter,
		queryTimeout: DefaultQueryTimeout,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Resolve returns the descriptor of the first instrument, in enumeration
// order, whose identification string contains key (case insensitive).
//
// Enumeration failure aborts with a wrapped error. Candidates that fail to
// open or to answer the identity query are logged and skipped. When no
// candidate matches, or nothing is attached, Resolve returns ErrNotFound.
//
// The returned descriptor is a snapshot: the device may be unplugged between
// resolution and session open, which surfaces as an open failure there.
func (r *Resolver) Resolve(ctx context.Context, key string) (visa.Resource, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	rsrcs, err := r.rm.FindResources(ctx, r.filter)
	if err != nil {
		return "", fmt.Errorf("discover instruments: %w", err)
	}
	if len(rsrcs) == 0 {
		r.logger.Warn("no instruments attached", "filter", r.filter)
		return "", ErrNotFound
	}

	lowerKey := strings.ToLower(key)
	for _, rsrc := range rsrcs {
		identity, err := r.queryIdentity(ctx, rsrc)
		if err != nil {
			r.logger.Warn("skipping unresponsive instrument", "resource", rsrc.String(), "error", err.Error())
			continue
		}

		if strings.Contains(strings.ToLower(identity), lowerKey) {
			r.logger.Info("instrument matched", "resource", rsrc.String(), "identity", identity)
			return rsrc, nil
		}
		r.logger.Debug("instrument did not match", "resource", rsrc.String(), "identity", identity)
	}

	return "", ErrNotFound
}

// Inventory enumerates every candidate with its identification string, in
// enumeration order. Candidates that fail the identity query are included
// with an empty Identity so the caller still sees them attached.
func (r *Resolver) Inventory(ctx context.Context) ([]Instrument, error) {
	rsrcs, err := r.rm.FindResources(ctx, r.filter)
	if err != nil {
		return nil, fmt.Errorf("discover instruments: %w", err)
	}

	instruments := make([]Instrument, 0, len(rsrcs))
	for _, rsrc := range rsrcs {
		identity, err := r.queryIdentity(ctx, rsrc)
		if err != nil {
			r.logger.Warn("instrument did not answer identity query", "resource", rsrc.String(), "error", err.Error())
			identity = ""
		}
		instruments = append(instruments, Instrument{Resource: rsrc, Identity: identity})
	}

	return instruments, nil
}

// queryIdentity opens a transient session to one candidate, queries its
// identity and closes the session again.
func (r *Resolver) queryIdentity(ctx context.Context, rsrc visa.Resource) (string, error) {
	session, err := r.rm.Open(ctx, rsrc)
	if err != nil {
		return "", err
	}
	defer func() { _ = session.Close() }()

	if r.queryTimeout > 0 {
		if err := session.SetTimeout(r.queryTimeout); err != nil {
			return "", err
		}
	}

	return visa.QueryIdentity(session)
}
