package minutes

import "errors"

// ErrClosed is returned by every Engine method called after Close.
var ErrClosed = errors.New("engine is closed")
