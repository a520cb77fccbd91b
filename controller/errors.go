package controller

import "errors"

var (
	// ErrConnConfigNil indicates that a nil ConnectionConfig was provided.
	ErrConnConfigNil = errors.New("connection config is nil")

	// ErrConnClosed indicates that the connection is closed, or was lost while
	// a request was waiting for its reply.
	ErrConnClosed = errors.New("connection closed")
)

var (
	// ErrReplyTimeout indicates that no reply arrived within the reply timeout.
	// The request has been withdrawn; a reply arriving later is dropped.
	ErrReplyTimeout = errors.New("reply timeout")

	// ErrNotifyTimeout indicates that a Notify condition was not met within
	// MonitorParams.Timeout.
	ErrNotifyTimeout = errors.New("notify timeout")

	// ErrPullMonitor indicates a subscription requested with flexmsg.CyclePull,
	// which yields a single value instead of a push stream.
	ErrPullMonitor = errors.New("monitor requires a push cycle")
)
