package visa

import "errors"

var (
	// ErrInvalidResource indicates that a resource descriptor does not follow
	// the expected double-colon separated VISA addressing syntax.
	ErrInvalidResource = errors.New("invalid resource descriptor")

	// ErrUnknownResource indicates that no registered driver claims the
	// interface class of a resource descriptor.
	ErrUnknownResource = errors.New("no driver registered for resource")

	// ErrManagerClosed indicates that the resource manager has been closed.
	ErrManagerClosed = errors.New("resource manager is closed")

	// ErrSessionClosed indicates that an operation was attempted on a closed
	// instrument session.
	ErrSessionClosed = errors.New("session is closed")
)
