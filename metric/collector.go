package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-flexgui/controller"
)

const (
	namespace = "flexgui"
	subsystem = "connection"
)

// ConnectionCollector exports the counters of one controller connection.
// Values are read from the atomic counters at scrape time.
type ConnectionCollector struct {
	collectors []prometheus.Collector
}

var _ prometheus.Collector = (*ConnectionCollector)(nil)

// NewConnectionCollector creates a collector over m. constLabels are attached
// to every exported series.
func NewConnectionCollector(m *controller.ConnectionMetrics, constLabels prometheus.Labels) *ConnectionCollector {
	counter := func(name, help string, load func() uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, func() float64 { return float64(load()) })
	}

	return &ConnectionCollector{
		collectors: []prometheus.Collector{
			counter("frames_sent_total", "Envelopes written to the controller", m.FrameSendCount.Load),
			counter("frames_received_total", "Envelopes read from the controller", m.FrameRecvCount.Load),
			counter("frame_errors_total", "Envelope read, write and decode failures", m.FrameErrCount.Load),
			counter("reply_timeouts_total", "Requests that got no reply within the reply timeout", m.ReplyTimeoutCount.Load),
			counter("unsolicited_replies_total", "Replies that matched no waiting request", m.UnsolicitedReplyCount.Load),
			counter("command_failures_total", "Commands answered with a failure result", m.CommandFailCount.Load),
			counter("notifications_total", "Asynchronous controller notifications", m.NotificationCount.Load),
			counter("monitor_values_total", "Pushed values delivered to monitor callbacks", m.MonitorValueCount.Load),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   subsystem,
				Name:        "requests_inflight",
				Help:        "Requests waiting for their reply",
				ConstLabels: constLabels,
			}, func() float64 { return float64(m.RequestInflightCount.Load()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *ConnectionCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, col := range c.collectors {
		col.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *ConnectionCollector) Collect(ch chan<- prometheus.Metric) {
	for _, col := range c.collectors {
		col.Collect(ch)
	}
}
