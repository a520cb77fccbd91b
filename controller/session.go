package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/correlation"
	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/internal/pool"
	"github.com/arloliu/go-flexgui/internal/task"
	"github.com/arloliu/go-flexgui/logger"
)

// readThreshold is the threshold attribute of single-value read requests.
const readThreshold = 0.01

// Session is a connection to a controller that multiplexes reads, writes and
// commands. Any number of requests may be outstanding at once; each caller
// receives exactly the reply matching its request.
//
// Sessions are independent of each other: two sessions to the same controller
// share no state.
type Session struct {
	cfg     *ConnectionConfig
	logger  logger.Logger
	id      string
	conn    net.Conn
	connMu  sync.Mutex // serializes envelope writes
	state   AtomicOpState
	taskMgr *task.Manager
	pending *correlation.Engine

	updateSeq  atomic.Uint64
	commandSeq atomic.Uint64

	closeOnce sync.Once
	metrics   ConnectionMetrics
}

// Dial connects to the controller described by cfg and starts receiving.
//
// ctx bounds the connection establishment only; the session lives until Close
// or until the connection is lost.
func Dial(ctx context.Context, cfg *ConnectionConfig) (*Session, error) {
	if cfg == nil {
		return nil, ErrConnConfigNil
	}

	id := uuid.NewString()
	s := &Session{
		cfg:     cfg,
		id:      id,
		logger:  cfg.logger.With("conn_id", id, "remote", cfg.Address()),
		pending: correlation.NewEngine(),
	}
	s.state.ToOpening()

	conn, err := dialController(ctx, cfg)
	if err != nil {
		s.state.ToClosing()
		s.state.ToClosed()

		return nil, err
	}
	s.conn = conn

	s.taskMgr = task.NewManager(context.Background(), s.logger)

	reader := flexmsg.NewFrameReader(conn, cfg.FrameTimeout())
	err = s.taskMgr.StartReceiver("receiverTask",
		func() bool { return s.receiverTask(reader) },
		s.cancelReceiverTask,
	)
	if err != nil {
		s.closeConn()
		return nil, err
	}

	s.state.ToOpened()
	s.logger.Info("session opened")

	return s, nil
}

func dialController(ctx context.Context, cfg *ConnectionConfig) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout()}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Address(), err)
	}

	return conn, nil
}

// ID returns the unique id of the session, also used as the conn_id log field.
func (s *Session) ID() string {
	return s.id
}

// GetLogger returns the logger of the session.
func (s *Session) GetLogger() logger.Logger {
	return s.logger
}

// GetMetrics returns the metrics of the session and of the monitors it opened.
func (s *Session) GetMetrics() *ConnectionMetrics {
	return &s.metrics
}

// Config returns the configuration of the session.
func (s *Session) Config() *ConnectionConfig {
	return s.cfg
}

// State returns the lifecycle state of the session.
func (s *Session) State() OpState {
	return s.state.Get()
}

// UpdateConfigOptions applies options to a live session. Only options
// documented as changeable at runtime are accepted.
func (s *Session) UpdateConfigOptions(opts ...ConnOption) error {
	for _, opt := range opts {
		connOpt, ok := opt.(*connOptFunc)
		if !ok {
			return errors.New("invalid ConnOption type")
		}

		if !connOpt.runtime {
			return fmt.Errorf("option %s can't be changed at runtime", connOpt.name)
		}

		if err := opt.apply(s.cfg); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the connection. Every request still waiting for a reply fails
// with ErrConnClosed. Close is idempotent.
func (s *Session) Close() error {
	s.closeConn()

	s.taskMgr.Stop()
	timeout := s.cfg.CloseTimeout()
	if !s.taskMgr.WaitTimeout(timeout) {
		s.logger.Error("close timeout", "method", "Close", "timeout", timeout)
	}

	return nil
}

// closeConn fails the pending requests and closes the socket once. It is
// called by Close and by the receiver when the connection is lost.
func (s *Session) closeConn() {
	s.closeOnce.Do(func() {
		s.state.ToClosing()
		s.logger.Debug("start closeConn process", "pending", s.pending.Pending())

		s.pending.FailAll(ErrConnClosed)

		if tcpConn, ok := s.conn.(*net.TCPConn); ok {
			_ = tcpConn.SetLinger(0)
		}
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("failed to close TCP connection", "method", "closeConn", "error", err)
		}

		s.state.ToClosed()
		s.logger.Info("session closed")
	})
}

// Read reads the current value of desc for the 1-based mechID.
func (s *Session) Read(ctx context.Context, desc address.Descriptor, mechID int) (flexmsg.Value, error) {
	addr, err := desc.Resolve(mechID)
	if err != nil {
		return flexmsg.Value{}, err
	}

	msg, err := s.roundTrip(ctx, flexmsg.NewReadRequest(addr, flexmsg.CyclePull, readThreshold))
	if err != nil {
		return flexmsg.Value{}, err
	}

	update, ok := msg.(*flexmsg.DataUpdate)
	if !ok {
		return flexmsg.Value{}, fmt.Errorf("%w: %s reply to read of %s", flexmsg.ErrMalformed, msg.Type(), desc)
	}

	return update.Value, nil
}

// ReadSignal reads a signal by its name, such as address.AxisTheta.
func (s *Session) ReadSignal(ctx context.Context, name string, mechID int) (flexmsg.Value, error) {
	desc, err := address.Lookup(name)
	if err != nil {
		return flexmsg.Value{}, err
	}

	return s.Read(ctx, desc, mechID)
}

// Write writes an integer value to desc for the 1-based mechID and waits for
// the acknowledgement.
func (s *Session) Write(ctx context.Context, desc address.Descriptor, mechID int, value int64) error {
	addr, err := desc.Resolve(mechID)
	if err != nil {
		return err
	}

	seqID := s.updateSeq.Add(1) - 1

	msg, err := s.roundTrip(ctx, flexmsg.NewUpdateRequest(addr, seqID, value))
	if err != nil {
		return err
	}

	if _, ok := msg.(*flexmsg.DataUpdateAck); !ok {
		return fmt.Errorf("%w: %s reply to update of %s", flexmsg.ErrMalformed, msg.Type(), desc)
	}

	return nil
}

// Command issues a named command and waits for its result.
//
// A result code other than flexmsg.ResultSuccess is returned together with a
// *flexmsg.CommandError, which matches flexmsg.ErrCommandFailed.
func (s *Session) Command(ctx context.Context, name string, params ...flexmsg.Param) (*flexmsg.CommandResult, error) {
	seqID := s.commandSeq.Add(1) - 1

	msg, err := s.roundTrip(ctx, flexmsg.NewCommand(name, seqID, params...))

	res, _ := msg.(*flexmsg.CommandResult)
	if err != nil {
		if errors.Is(err, flexmsg.ErrCommandFailed) {
			s.metrics.incCommandFailCount()
			s.logger.Warn("command failed", "name", name, "sequid", seqID, "error", err)
		}

		return res, err
	}

	if res == nil {
		return nil, fmt.Errorf("%w: %s reply to command %s", flexmsg.ErrMalformed, msg.Type(), name)
	}

	return res, nil
}

// roundTrip registers the reply key, sends the request and waits for the reply.
func (s *Session) roundTrip(ctx context.Context, req *flexmsg.Request) (flexmsg.Message, error) {
	if !s.state.IsOpened() {
		return nil, ErrConnClosed
	}

	frame, err := req.Frame()
	if err != nil {
		return nil, err
	}

	// the waiter must be queued before the request can be answered
	w := s.pending.Register(req.Key())

	s.metrics.incRequestInflightCount()
	defer s.metrics.decRequestInflightCount()

	if err := s.send(frame); err != nil {
		s.pending.Retire(w)
		return nil, fmt.Errorf("%w: %w", ErrConnClosed, err)
	}

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("request sent", "method", "roundTrip", "key", req.Key())
	}

	timeout := s.cfg.ReplyTimeout()
	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case <-w.Done():
		return w.Result()

	case <-timer.C:
		if s.pending.Retire(w) {
			s.metrics.incReplyTimeoutCount()
			s.logger.Warn("reply timeout", "method", "roundTrip", "key", req.Key(), "timeout", timeout)

			return nil, fmt.Errorf("%w: %s", ErrReplyTimeout, req.Key())
		}

	case <-ctx.Done():
		if s.pending.Retire(w) {
			return nil, ctx.Err()
		}
	}

	// the reply won the race against the timeout
	<-w.Done()

	return w.Result()
}

// send writes one envelope under the connection mutex with the write timeout
// as deadline. A failed write closes the connection since the stream may be torn.
func (s *Session) send(frame []byte) error {
	err := writeFrame(&s.connMu, s.conn, frame, s.cfg.WriteTimeout())
	if err != nil {
		s.metrics.incFrameErrCount()
		s.logger.Error("failed to send envelope", "method", "send", "error", err)
		s.closeConn()

		return err
	}

	s.metrics.incFrameSendCount()

	return nil
}

func writeFrame(mu *sync.Mutex, conn net.Conn, frame []byte, timeout time.Duration) error {
	mu.Lock()
	defer mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	_, err := conn.Write(frame)

	return err
}

// cancelReceiverTask closes the session when the receiver goroutine exits.
func (s *Session) cancelReceiverTask() {
	s.closeConn()
}

// receiverTask reads, decodes and routes one envelope.
func (s *Session) receiverTask(reader *flexmsg.FrameReader) bool {
	payload, err := reader.ReadFrame()
	if err != nil {
		s.logReadError(err)
		return false
	}

	s.metrics.incFrameRecvCount()

	msg, err := flexmsg.Decode(payload)
	if err != nil {
		s.metrics.incFrameErrCount()
		s.logger.Warn("failed to decode message", "method", "receiverTask", "error", err)

		return true
	}

	s.handleMessage(msg)

	return true
}

func (s *Session) logReadError(err error) {
	switch {
	case !s.state.IsOpened():
		// closing on request
	case errors.Is(err, flexmsg.ErrFraming):
		s.metrics.incFrameErrCount()
		s.logger.Error("corrupt envelope stream", "method", "receiverTask", "error", err)
	case isConnClosedErr(err):
		s.logger.Warn("connection lost", "method", "receiverTask", "error", err)
	default:
		s.metrics.incFrameErrCount()
		s.logger.Error("failed to read envelope", "method", "receiverTask", "error", err)
	}
}

func (s *Session) handleMessage(msg flexmsg.Message) {
	switch m := msg.(type) {
	case *flexmsg.Notification:
		s.metrics.incNotificationCount()
		s.logger.Info("controller notification", m.LogFields()...)

		if handler := s.cfg.notificationCallback(); handler != nil {
			s.callNotificationHandler(handler, m)
		}

	case flexmsg.Keyed:
		if err := s.pending.Dispatch(m); err != nil {
			s.metrics.incUnsolicitedReplyCount()
			s.logger.Warn("drop unsolicited reply", "method", "handleMessage", "type", m.Type(), "key", m.Key())
		}

	default:
		s.logger.Debug("ignore unknown message", "method", "handleMessage", "type", msg.Type())
	}
}

func (s *Session) callNotificationHandler(handler NotificationHandler, note *flexmsg.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in notification handler", "panic", r)
		}
	}()

	handler(note)
}

func isConnClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET)
}
