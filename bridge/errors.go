package bridge

import "errors"

// ErrConfigNil indicates that the server configuration is nil.
var ErrConfigNil = errors.New("server config is nil")

// ErrSessionNil indicates that the instrument session is nil.
var ErrSessionNil = errors.New("instrument session is nil")

// ErrServerClosing indicates that an operation was attempted while the server
// is shutting down.
var ErrServerClosing = errors.New("server is closing")

// ErrInvalidHost indicates that the listen host is neither an IP address nor
// empty.
var ErrInvalidHost = errors.New("listen host is not an IP address")

// ErrInvalidPort indicates that the listen port is outside the valid range.
var ErrInvalidPort = errors.New("port is out of range [0, 65535]")

// ErrInvalidBufferSize indicates that the read buffer size is outside the
// valid range.
var ErrInvalidBufferSize = errors.New("read buffer size out of range [128, 1048576]")
