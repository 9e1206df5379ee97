package session

import "errors"

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")
