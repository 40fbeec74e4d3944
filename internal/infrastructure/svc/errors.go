package svc

import "errors"

// ErrStorageInitFailed wraps any exporter that could not be opened.
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrRedisUnavailable is returned when redis is configured but does not answer PING.
var ErrRedisUnavailable = errors.New("redis unavailable")
