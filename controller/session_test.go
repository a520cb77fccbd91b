package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/flexmsg"
)

func dialTest(t *testing.T, fc *fakeController, opts ...ConnOption) *Session {
	t.Helper()

	s, err := Dial(context.Background(), fc.config(t, opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

type readResult struct {
	value flexmsg.Value
	err   error
}

func asyncRead(s *Session, name string, mechID int) <-chan readResult {
	ch := make(chan readResult, 1)
	go func() {
		v, err := s.ReadSignal(context.Background(), name, mechID)
		ch <- readResult{v, err}
	}()

	return ch
}

func waitRead(t *testing.T, ch <-chan readResult) readResult {
	t.Helper()

	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		require.FailNow(t, "read did not complete")
		return readResult{}
	}
}

func TestDial_Errors(t *testing.T) {
	_, err := Dial(context.Background(), nil)
	require.ErrorIs(t, err, ErrConnConfigNil)

	fc := newFakeController(t)
	cfg := fc.config(t, WithConnectTimeout(200*time.Millisecond))
	fc.close()

	_, err = Dial(context.Background(), cfg)
	require.Error(t, err)
}

func TestSession_Read(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)
	require.Equal(OpenedState, s.State())
	require.NotEmpty(s.ID())

	ch := asyncRead(s, address.AxisTheta, 3)

	req := fc.next(t)
	require.Equal("read", req.kind())
	require.Equal("420", req.dataAttr("subid"))
	require.Equal("6", req.dataAttr("count"))
	require.Equal("-1", req.dataAttr("push"))
	require.Equal("0.01", req.dataAttr("threshold"))
	require.Equal("5", req.dataAttr("priority"))
	require.NoError(req.replyReals(1, 2, 3, 4, 5, 6))

	res := waitRead(t, ch)
	require.NoError(res.err)
	require.Equal([]float64{1, 2, 3, 4, 5, 6}, res.value.Floats())

	m := s.GetMetrics()
	require.Equal(uint64(1), m.FrameSendCount.Load())
	require.Equal(uint64(1), m.FrameRecvCount.Load())
	require.Zero(m.RequestInflightCount.Load())
}

func TestSession_ReadSameKeyFIFO(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	// issue R1, R2, R3 in order, each only after the previous one is on the wire
	var results []<-chan readResult
	var requests []*fakeRequest
	for i := 0; i < 3; i++ {
		results = append(results, asyncRead(s, address.AxisTheta, 1))
		requests = append(requests, fc.next(t))
	}

	for i, req := range requests {
		require.NoError(req.replyReals(float64(i+1), 0, 0, 0, 0, 0))
	}

	for i, ch := range results {
		res := waitRead(t, ch)
		require.NoError(res.err)
		require.InDelta(float64(i+1), res.value.Float(), 1e-9)
	}
}

func TestSession_ReadDistinctKeys(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	thetaCh := asyncRead(s, address.AxisTheta, 1)
	thetaReq := fc.next(t)
	lampCh := asyncRead(s, address.FixedIOMotorsOnLamp, 1)
	lampReq := fc.next(t)

	// answer out of order
	require.NoError(lampReq.replyValues("b", "true"))
	require.NoError(thetaReq.replyReals(9, 9, 9, 9, 9, 9))

	lamp := waitRead(t, lampCh)
	require.NoError(lamp.err)
	require.True(lamp.value.Bool())

	theta := waitRead(t, thetaCh)
	require.NoError(theta.err)
	require.Equal(6, theta.value.Len())
}

func TestSession_InvalidAddress(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	_, err := s.ReadSignal(context.Background(), address.AxisTheta, 0)
	require.ErrorIs(err, address.ErrInvalidAddress)

	_, err = s.Read(context.Background(), address.Descriptor{Group: address.GroupFixedIO, RequestID: "FI", SubIDBase: 9}, 1)
	require.ErrorIs(err, address.ErrInvalidAddress)

	_, err = s.ReadSignal(context.Background(), "NoSuchSignal", 1)
	require.ErrorIs(err, address.ErrInvalidAddress)

	fc.expectNone(t, 100*time.Millisecond)
}

func TestSession_WriteSequence(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	for i, want := range []string{"0", "1", "2"} {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.SetInterpolationType(context.Background(), 2, InterpolationType(i))
		}()

		req := fc.next(t)
		require.Equal("update", req.kind())
		require.Equal(want, req.seqID())
		require.Equal("2", req.dataAttr("unit"))
		require.Equal("nInterpolation", req.dataAttr("id"))
		require.Equal(want, req.data().SelectElement("i").Text())
		require.NoError(req.replyAck())

		require.NoError(<-errCh)
	}
}

func TestSession_CommandSequence(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	var mu sync.Mutex
	var seen []string
	fc.autoReply(t, func(req *fakeRequest) {
		name, sequid := req.command()
		mu.Lock()
		seen = append(seen, name+":"+sequid+":"+req.params()[0])
		mu.Unlock()
		_ = req.replyResult(flexmsg.ResultSuccess, "OK")
	})

	res, err := s.StartMotor(context.Background())
	require.NoError(err)
	require.Equal(CmdSelectMotorOn, res.Name)
	require.Equal(uint64(1), res.SeqID)

	mu.Lock()
	defer mu.Unlock()
	require.Equal([]string{"selectMotorOn:0:on=1", "selectMotorOn:1:on=0"}, seen)
}

func TestSession_CommandFailure(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	fc.autoReply(t, func(req *fakeRequest) {
		_ = req.replyResult(-1, "servo off")
	})

	res, err := s.MoveTo(context.Background(), [6]float64{100, 0, 300, 180, 0, 0}, MovePositioning)
	require.ErrorIs(err, flexmsg.ErrCommandFailed)
	require.NotNil(res)
	require.Equal(-1, res.Result)

	var cmdErr *flexmsg.CommandError
	require.True(errors.As(err, &cmdErr))
	require.Equal(CmdMoveX, cmdErr.Name)
	require.Equal("servo off", cmdErr.Text)
	require.Equal(uint64(1), s.GetMetrics().CommandFailCount.Load())

	// StartMotor stops after a failed first pulse
	_, err = s.StartMotor(context.Background())
	require.ErrorIs(err, flexmsg.ErrCommandFailed)
}

func TestSession_ReplyTimeout(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc, WithReplyTimeout(100*time.Millisecond))

	_, err := s.GetJointAngle(context.Background(), 1)
	require.ErrorIs(err, ErrReplyTimeout)
	require.Equal(uint64(1), s.GetMetrics().ReplyTimeoutCount.Load())

	// the late reply finds no waiter and is dropped
	late := fc.next(t)
	require.NoError(late.replyReals(7, 7, 7, 7, 7, 7))
	require.Eventually(func() bool {
		return s.GetMetrics().UnsolicitedReplyCount.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// the next read of the same key gets its own reply
	ch := asyncRead(s, address.AxisTheta, 1)
	require.NoError(fc.next(t).replyReals(8, 8, 8, 8, 8, 8))

	res := waitRead(t, ch)
	require.NoError(res.err)
	require.InDelta(8.0, res.value.Float(), 1e-9)
}

func TestSession_ContextCanceled(t *testing.T) {
	fc := newFakeController(t)
	s := dialTest(t, fc)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.GetMotorReady(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Eventually(t, func() bool { return s.GetMetrics().RequestInflightCount.Load() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSession_CloseFailsPending(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	chs := []<-chan readResult{
		asyncRead(s, address.AxisTheta, 1),
		asyncRead(s, address.AxisTheta, 1),
		asyncRead(s, address.AxisSpeed, 1),
	}
	for range chs {
		fc.next(t)
	}

	require.NoError(s.Close())
	require.NoError(s.Close())
	require.Equal(ClosedState, s.State())

	for _, ch := range chs {
		res := waitRead(t, ch)
		require.ErrorIs(res.err, ErrConnClosed)
	}

	_, err := s.GetPosition(context.Background(), 1)
	require.ErrorIs(err, ErrConnClosed)
}

func TestSession_ConnectionLost(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	ch := asyncRead(s, address.AxisTheta, 1)
	req := fc.next(t)
	req.conn.close()

	res := waitRead(t, ch)
	require.ErrorIs(res.err, ErrConnClosed)
	require.Eventually(func() bool { return s.State() == ClosedState }, time.Second, 10*time.Millisecond)
}

func TestSession_FramingErrorClosesConnection(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	ch := asyncRead(s, address.AxisTheta, 1)
	req := fc.next(t)

	req.conn.mu.Lock()
	_, err := req.conn.conn.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 0})
	req.conn.mu.Unlock()
	require.NoError(err)

	res := waitRead(t, ch)
	require.ErrorIs(res.err, ErrConnClosed)
	require.Equal(uint64(1), s.GetMetrics().FrameErrCount.Load())
}

func TestSession_Notifications(t *testing.T) {
	require := require.New(t)

	notes := make(chan *flexmsg.Notification, 1)

	fc := newFakeController(t)
	s := dialTest(t, fc, WithNotificationHandler(func(note *flexmsg.Notification) {
		notes <- note
	}))

	ch := asyncRead(s, address.FixedIOPlayback, 1)
	req := fc.next(t)

	// a notification in the middle of a request is not an error for it
	require.NoError(req.conn.send(notificationXML(2041, "Emergency stop")))
	require.NoError(req.replyValues("b", "false"))

	select {
	case note := <-notes:
		require.Equal(2041, note.Code)
		require.Equal("Emergency stop", note.Message)
	case <-time.After(time.Second):
		require.FailNow("notification not delivered")
	}

	res := waitRead(t, ch)
	require.NoError(res.err)
	require.False(res.value.Bool())
	require.Equal(uint64(1), s.GetMetrics().NotificationCount.Load())
}

func TestSession_UpdateConfigOptions(t *testing.T) {
	fc := newFakeController(t)
	s := dialTest(t, fc)

	require.NoError(t, s.UpdateConfigOptions(WithReplyTimeout(time.Second)))
	assert.Equal(t, time.Second, s.Config().ReplyTimeout())

	err := s.UpdateConfigOptions(WithMonitorQueueSize(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WithMonitorQueueSize")
}

func TestSession_Vocabulary(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	var mu sync.Mutex
	seen := map[string]string{}
	fc.autoReply(t, func(req *fakeRequest) {
		switch req.kind() {
		case "read":
			mu.Lock()
			seen[req.dataAttr("id")+"/"+req.dataAttr("subid")] = req.dataAttr("count")
			mu.Unlock()

			if req.dataAttr("count") == "6" {
				_ = req.replyReals(1, -1, 1, -1, 1, -1)
			} else {
				_ = req.replyValues("i", "1")
			}
		case "command":
			_ = req.replyResult(flexmsg.ResultSuccess, "OK")
		}
	})

	ctx := context.Background()

	for _, get := range []func(context.Context, int) ([]float64, error){
		s.GetPosition, s.GetVelocity, s.GetJointAngleEncoded, s.GetJointAngle,
		s.GetJointVelocity, s.GetJointTargetVelocity, s.GetJointQuadratureCurrent,
	} {
		v, err := get(ctx, 2)
		require.NoError(err)
		require.Len(v, 6)
	}

	for _, get := range []func(context.Context, int) (bool, error){
		s.GetPlaybackMode, s.GetMotorPowerOn, s.GetMotorReady, s.GetMotorLaunched,
		s.GetMotorLamp, s.GetEnergySaving,
	} {
		v, err := get(ctx, 1)
		require.NoError(err)
		require.True(v)
	}

	it, err := s.GetInterpolationType(ctx, 1)
	require.NoError(err)
	require.Equal(InterpolationLinear, it)

	_, err = s.StopMotor(ctx)
	require.NoError(err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal("6", seen["SYSTEM!/820"])  // tool tip, mech 2
	require.Equal("6", seen["SYSTEM!/410"])  // joint angle, mech 2
	require.Equal("6", seen["SYSTEM!/3141"]) // joint speed, mech 2
	require.Equal("6", seen["SYSTEM%/210"])  // encoder, mech 2
	require.Equal("1", seen["FI/16"])
	require.Equal("1", seen["SYSTEM%/171"])
}

func TestMoveParams(t *testing.T) {
	v := [6]float64{1, 2, 3, 4.5, 5, 6}

	params := MoveParams(CmdMoveX, v, MoveThru)
	require.Len(t, params, 7)
	assert.Equal(t, flexmsg.Param{Name: "X", Value: 1.0}, params[0])
	assert.Equal(t, flexmsg.Param{Name: "r", Value: 4.5}, params[3])
	assert.Equal(t, flexmsg.Param{Name: "conf", Value: 0}, params[6])

	params = MoveParams(CmdMoveJA, v, MovePositioning)
	require.Len(t, params, 7)
	assert.Equal(t, "angle1", params[0].Name)
	assert.Equal(t, "angle6", params[5].Name)
	assert.Equal(t, flexmsg.Flag("PAUSE"), params[6])

	params = MoveParams(CmdMoveXR, v, MoveEnd)
	require.Len(t, params, 8)
	assert.Equal(t, flexmsg.Flag("END"), params[7])
}

func TestSession_Move(t *testing.T) {
	require := require.New(t)

	fc := newFakeController(t)
	s := dialTest(t, fc)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.AngulateBy(context.Background(), [6]float64{0, 0, 0, 0, 0, 15}, MoveEnd)
		errCh <- err
	}()

	req := fc.next(t)
	name, sequid := req.command()
	require.Equal(CmdMoveJA, name)
	require.Equal("0", sequid)
	require.Equal([]string{"angle1=0", "angle2=0", "angle3=0", "angle4=0", "angle5=0", "angle6=15", "END="}, req.params())
	require.NoError(req.replyResult(flexmsg.ResultSuccess, "OK"))
	require.NoError(<-errCh)
}

func TestL1Norm(t *testing.T) {
	assert.InDelta(t, 6.0, L1Norm([]float64{1, -2, 3}), 1e-12)
	assert.Zero(t, L1Norm(nil))
}
