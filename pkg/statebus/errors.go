package statebus

import "errors"

// ErrWaitTimeout indicates Hub.Wait gave up after the configured wait timeout.
var ErrWaitTimeout = errors.New("wait timed out")
