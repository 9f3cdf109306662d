package mocks

import "errors"

// ErrPingFailed is returned by Ping when the store is marked unhealthy.
var ErrPingFailed = errors.New("store unavailable")
