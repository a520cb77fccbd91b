package controller

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/internal/task"
	"github.com/arloliu/go-flexgui/logger"
)

// MinThreshold is the default push threshold, the float32 machine epsilon (2^-23).
const MinThreshold = 1.1920928955078125e-07

// MonitorParams selects the mechanism and push behavior of a subscription.
type MonitorParams struct {
	// MechID is the 1-based mechanism id.
	MechID int
	// Cycle is the push period. CyclePull is rejected.
	Cycle flexmsg.Cycle
	// Threshold is the change that triggers a push between periods.
	Threshold float64
	// Timeout bounds Notify. Zero waits until the context is done.
	Timeout time.Duration
}

// DefaultMonitorParams returns parameters for mechanism 1 pushing every 5 ms.
func DefaultMonitorParams() MonitorParams {
	return MonitorParams{
		MechID:    1,
		Cycle:     flexmsg.Cycle5ms,
		Threshold: MinThreshold,
	}
}

// MonitorCallback receives the pushed values of a monitor in arrival order.
// Returning false ends the subscription.
type MonitorCallback func(value flexmsg.Value) bool

// Monitor is a push subscription on its own connection. Values are delivered
// to the callback on a dedicated goroutine, one at a time, in arrival order.
type Monitor struct {
	cfg      *ConnectionConfig
	logger   logger.Logger
	conn     net.Conn
	connMu   sync.Mutex
	key      string
	callback MonitorCallback
	metrics  *ConnectionMetrics

	state   AtomicOpState
	taskMgr *task.Manager
	values  chan flexmsg.Value

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Subscribe opens a new connection to the controller and subscribes to desc.
// callback is invoked for every pushed value until Close is called, the
// callback returns false, or the connection is lost.
func Subscribe(ctx context.Context, cfg *ConnectionConfig, desc address.Descriptor, params MonitorParams, callback MonitorCallback) (*Monitor, error) {
	return subscribe(ctx, cfg, desc, params, callback, &ConnectionMetrics{})
}

// Subscribe opens a monitor with the configuration of the session. The
// monitor has its own connection and outlives the session if not closed.
func (s *Session) Subscribe(ctx context.Context, desc address.Descriptor, params MonitorParams, callback MonitorCallback) (*Monitor, error) {
	return subscribe(ctx, s.cfg, desc, params, callback, &s.metrics)
}

func subscribe(ctx context.Context, cfg *ConnectionConfig, desc address.Descriptor, params MonitorParams,
	callback MonitorCallback, metrics *ConnectionMetrics,
) (*Monitor, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}
	if callback == nil {
		return nil, errors.New("monitor callback is nil")
	}
	if !params.Cycle.IsPush() {
		return nil, ErrPullMonitor
	}

	addr, err := desc.Resolve(params.MechID)
	if err != nil {
		return nil, err
	}

	req := flexmsg.NewReadRequest(addr, params.Cycle, params.Threshold)
	frame, err := req.Frame()
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:      cfg,
		logger:   cfg.logger.With("conn_id", uuid.NewString(), "remote", cfg.Address(), "monitor", desc.String()),
		key:      req.Key(),
		callback: callback,
		metrics:  metrics,
		values:   make(chan flexmsg.Value, cfg.monitorQueueSize),
		done:     make(chan struct{}),
	}
	m.state.ToOpening()

	conn, err := dialController(ctx, cfg)
	if err != nil {
		m.state.ToClosing()
		m.state.ToClosed()

		return nil, err
	}
	m.conn = conn

	m.taskMgr = task.NewManager(context.Background(), m.logger)

	reader := flexmsg.NewFrameReader(conn, cfg.FrameTimeout())
	err = m.taskMgr.StartReceiver("monitorReceiverTask",
		func() bool { return m.receiverTask(reader) },
		m.cancelReceiverTask,
	)
	if err != nil {
		m.closeConn(nil)
		return nil, err
	}
	m.taskMgr.Go("monitorDispatchTask", m.dispatchTask)

	if err := writeFrame(&m.connMu, conn, frame, cfg.WriteTimeout()); err != nil {
		metrics.incFrameErrCount()
		_ = m.Close()

		return nil, err
	}
	metrics.incFrameSendCount()

	m.state.ToOpened()
	m.logger.Info("monitor opened", "cycle", params.Cycle, "threshold", params.Threshold)

	return m, nil
}

// Key returns the correlation key of the monitored values.
func (m *Monitor) Key() string {
	return m.key
}

// Done returns a channel closed when the subscription has ended and no more
// callbacks will run.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Err returns ErrConnClosed if the subscription ended because the connection
// was lost, nil otherwise.
func (m *Monitor) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	return m.err
}

// Close ends the subscription and closes its connection. No callback starts
// after Close returns. Close is idempotent.
//
// Close must not be called from the callback; return false from the callback instead.
func (m *Monitor) Close() error {
	m.closeConn(nil)

	m.taskMgr.Stop()
	timeout := m.cfg.CloseTimeout()
	if !m.taskMgr.WaitTimeout(timeout) {
		m.logger.Error("close timeout", "method", "Close", "timeout", timeout)
	}

	return nil
}

// closeConn marks the monitor closed and closes the socket once. reason is
// reported by Err.
func (m *Monitor) closeConn(reason error) {
	m.closeOnce.Do(func() {
		m.errMu.Lock()
		m.err = reason
		m.errMu.Unlock()

		m.state.ToClosing()

		if m.conn != nil {
			if err := m.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				m.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
			}
		}

		m.state.ToClosed()
		m.logger.Info("monitor closed")
	})
}

// cancelReceiverTask ends the value stream when the receiver goroutine exits.
func (m *Monitor) cancelReceiverTask() {
	m.closeConn(ErrConnClosed)
	close(m.values)
}

func (m *Monitor) receiverTask(reader *flexmsg.FrameReader) bool {
	payload, err := reader.ReadFrame()
	if err != nil {
		if m.state.IsOpened() && !isConnClosedErr(err) {
			m.metrics.incFrameErrCount()
			m.logger.Error("failed to read envelope", "method", "receiverTask", "error", err)
		}

		return false
	}

	m.metrics.incFrameRecvCount()

	msg, err := flexmsg.Decode(payload)
	if err != nil {
		m.metrics.incFrameErrCount()
		m.logger.Warn("failed to decode message", "method", "receiverTask", "error", err)

		return true
	}

	switch v := msg.(type) {
	case *flexmsg.DataUpdate:
		if v.Key() != m.key {
			m.logger.Debug("ignore foreign data update", "method", "receiverTask", "key", v.Key())
			return true
		}

		select {
		case m.values <- v.Value:
		case <-m.taskMgr.Context().Done():
			return false
		}

	case *flexmsg.Notification:
		m.metrics.incNotificationCount()
		m.logger.Info("controller notification", v.LogFields()...)
	}

	return true
}

// dispatchTask delivers queued values to the callback until the stream ends.
// Values still queued after a lost connection are delivered; values queued
// when the subscription is closed on request are dropped.
func (m *Monitor) dispatchTask(ctx context.Context) {
	defer close(m.done)
	defer m.taskMgr.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case value, ok := <-m.values:
			if !ok || ctx.Err() != nil || m.closedOnRequest() {
				return
			}

			m.metrics.incMonitorValueCount()
			if !m.invoke(value) {
				m.closeConn(nil)
				return
			}
		}
	}
}

func (m *Monitor) closedOnRequest() bool {
	st := m.state.Get()
	return (st == ClosingState || st == ClosedState) && m.Err() == nil
}

func (m *Monitor) invoke(value flexmsg.Value) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in monitor callback", "panic", r)
			keep = true
		}
	}()

	return m.callback(value)
}
