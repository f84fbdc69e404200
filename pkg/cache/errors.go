package cache

import "errors"

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("cache closed")
