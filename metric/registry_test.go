package metric

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-flexgui/controller"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var conn string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "conn" {
					conn = lp.GetValue()
				}
			}
			if conn == "" {
				continue
			}

			key := conn + "/" + mf.GetName()
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	return values
}

func TestConnectionCollector(t *testing.T) {
	var m controller.ConnectionMetrics
	m.FrameSendCount.Add(3)
	m.FrameRecvCount.Add(2)
	m.ReplyTimeoutCount.Add(1)
	m.RequestInflightCount.Add(4)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewConnectionCollector(&m, prometheus.Labels{"conn": "r1"})))

	values := gatherValues(t, reg)
	assert.InDelta(t, 3.0, values["r1/flexgui_connection_frames_sent_total"], 0)
	assert.InDelta(t, 2.0, values["r1/flexgui_connection_frames_received_total"], 0)
	assert.InDelta(t, 1.0, values["r1/flexgui_connection_reply_timeouts_total"], 0)
	assert.InDelta(t, 4.0, values["r1/flexgui_connection_requests_inflight"], 0)
	assert.Len(t, values, 9)

	// values are read at scrape time
	m.FrameSendCount.Add(1)
	values = gatherValues(t, reg)
	assert.InDelta(t, 4.0, values["r1/flexgui_connection_frames_sent_total"], 0)
}

func TestRegistry_RegisterConnection(t *testing.T) {
	require := require.New(t)

	r := NewRegistry()

	var m1, m2 controller.ConnectionMetrics
	m1.NotificationCount.Add(5)
	m2.NotificationCount.Add(7)

	require.NoError(r.RegisterConnection("r1", &m1))
	require.NoError(r.RegisterConnection("r2", &m2))
	require.ErrorIs(r.RegisterConnection("r1", &m1), ErrDuplicateConnection)
	require.Error(r.RegisterConnection("r3", nil))

	values := gatherValues(t, r.PrometheusRegistry())
	require.InDelta(5.0, values["r1/flexgui_connection_notifications_total"], 0)
	require.InDelta(7.0, values["r2/flexgui_connection_notifications_total"], 0)

	require.True(r.UnregisterConnection("r1"))
	require.False(r.UnregisterConnection("r1"))

	values = gatherValues(t, r.PrometheusRegistry())
	require.NotContains(values, "r1/flexgui_connection_notifications_total")
	require.Contains(values, "r2/flexgui_connection_notifications_total")
}

func TestServer(t *testing.T) {
	require := require.New(t)

	r := NewRegistry()
	var m controller.ConnectionMetrics
	m.CommandFailCount.Add(2)
	require.NoError(r.RegisterConnection("r1", &m))

	srv := NewServer("127.0.0.1:0", "", r)
	require.NoError(srv.Start())
	require.Error(srv.Start())
	defer srv.Stop()

	resp, err := http.Get("http://" + srv.Addr().String() + DefaultPath)
	require.NoError(err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(err)
	require.Equal(http.StatusOK, resp.StatusCode)
	require.Contains(string(body), `flexgui_connection_command_failures_total{conn="r1"} 2`)

	resp, err = http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(err)
	_ = resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	require.NoError(srv.Stop())
	require.NoError(srv.Stop())
	require.Nil(srv.Addr())
}
