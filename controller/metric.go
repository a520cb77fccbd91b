package controller

import "sync/atomic"

// ConnectionMetrics contains atomic metrics for a session and the monitors it opens.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ConnectionMetrics struct {
	// FrameSendCount indicates the number of envelopes sent.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of envelopes received.
	FrameRecvCount atomic.Uint64
	// FrameErrCount indicates the number of framing, decoding and send errors.
	FrameErrCount atomic.Uint64

	// RequestInflightCount indicates the number of requests waiting for a reply.
	RequestInflightCount atomic.Int64
	// ReplyTimeoutCount indicates the number of requests that timed out.
	ReplyTimeoutCount atomic.Uint64
	// UnsolicitedReplyCount indicates the number of replies dropped for lack of a waiter.
	UnsolicitedReplyCount atomic.Uint64
	// CommandFailCount indicates the number of commands answered with a failure result.
	CommandFailCount atomic.Uint64

	// NotificationCount indicates the number of controller notifications received.
	NotificationCount atomic.Uint64
	// MonitorValueCount indicates the number of pushed values delivered to monitor callbacks.
	MonitorValueCount atomic.Uint64
}

func (m *ConnectionMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *ConnectionMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *ConnectionMetrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}

func (m *ConnectionMetrics) incRequestInflightCount() {
	m.RequestInflightCount.Add(1)
}

func (m *ConnectionMetrics) decRequestInflightCount() {
	m.RequestInflightCount.Add(-1)
}

func (m *ConnectionMetrics) incReplyTimeoutCount() {
	m.ReplyTimeoutCount.Add(1)
}

func (m *ConnectionMetrics) incUnsolicitedReplyCount() {
	m.UnsolicitedReplyCount.Add(1)
}

func (m *ConnectionMetrics) incCommandFailCount() {
	m.CommandFailCount.Add(1)
}

func (m *ConnectionMetrics) incNotificationCount() {
	m.NotificationCount.Add(1)
}

func (m *ConnectionMetrics) incMonitorValueCount() {
	m.MonitorValueCount.Add(1)
}
