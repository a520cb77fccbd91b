package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/internal/pool"
)

// Condition reports whether a value is the one Notify waits for.
type Condition func(value flexmsg.Value) bool

// Notify waits until the value of desc satisfies cond and returns that value.
//
// The current value is read first, and returned at once if it already
// satisfies cond; a signal that never changes is never pushed. Otherwise a
// monitor is opened and the first pushed value satisfying cond is returned.
// The monitor is closed on every return path.
//
// ErrNotifyTimeout is returned when params.Timeout elapses first. A zero
// timeout waits until ctx is done.
func (s *Session) Notify(ctx context.Context, desc address.Descriptor, cond Condition, params MonitorParams) (flexmsg.Value, error) {
	value, err := s.Read(ctx, desc, params.MechID)
	if err != nil {
		return flexmsg.Value{}, err
	}
	if cond(value) {
		return value, nil
	}

	found := make(chan flexmsg.Value, 1)
	mon, err := s.Subscribe(ctx, desc, params, func(v flexmsg.Value) bool {
		if !cond(v) {
			return true
		}

		select {
		case found <- v:
		default:
		}

		return false
	})
	if err != nil {
		return flexmsg.Value{}, err
	}
	defer mon.Close()

	var timeoutC <-chan time.Time
	if params.Timeout > 0 {
		timer := pool.GetTimer(params.Timeout)
		defer pool.PutTimer(timer)
		timeoutC = timer.C
	}

	select {
	case v := <-found:
		return v, nil

	case <-mon.Done():
		// the satisfying value is sent before the monitor stops
		select {
		case v := <-found:
			return v, nil
		default:
		}

		return flexmsg.Value{}, fmt.Errorf("monitor of %s ended: %w", desc, ErrConnClosed)

	case <-timeoutC:
		s.logger.Warn("notify timeout", "signal", desc.String(), "timeout", params.Timeout)
		return flexmsg.Value{}, fmt.Errorf("%w: %s after %s", ErrNotifyTimeout, desc, params.Timeout)

	case <-ctx.Done():
		return flexmsg.Value{}, ctx.Err()
	}
}

// NotifySignal is Notify for a named signal.
func (s *Session) NotifySignal(ctx context.Context, name string, cond Condition, params MonitorParams) (flexmsg.Value, error) {
	desc, err := address.Lookup(name)
	if err != nil {
		return flexmsg.Value{}, err
	}

	return s.Notify(ctx, desc, cond, params)
}

func (s *Session) notifyFlag(ctx context.Context, name string, target bool, params MonitorParams) error {
	_, err := s.NotifySignal(ctx, name, func(v flexmsg.Value) bool { return v.Bool() == target }, params)
	return err
}

// NotifyMotorReady waits until the motors-on confirmation input equals target.
func (s *Session) NotifyMotorReady(ctx context.Context, target bool, params MonitorParams) error {
	return s.notifyFlag(ctx, address.FixedIOConfirmMotorOn, target, params)
}

// NotifyMotorLaunched waits until the running lamp output equals target.
func (s *Session) NotifyMotorLaunched(ctx context.Context, target bool, params MonitorParams) error {
	return s.notifyFlag(ctx, address.FixedIOStartDisplay1, target, params)
}

// NotifyMotorLamp waits until the motors-on lamp output equals target.
func (s *Session) NotifyMotorLamp(ctx context.Context, target bool, params MonitorParams) error {
	return s.notifyFlag(ctx, address.FixedIOMotorsOnLamp, target, params)
}

// NotifyJointAngle waits until the joint angles satisfy cond.
func (s *Session) NotifyJointAngle(ctx context.Context, cond Condition, params MonitorParams) (flexmsg.Value, error) {
	return s.NotifySignal(ctx, address.AxisTheta, cond, params)
}

// NotifyJointVelocity waits until the joint velocities satisfy cond.
func (s *Session) NotifyJointVelocity(ctx context.Context, cond Condition, params MonitorParams) (flexmsg.Value, error) {
	return s.NotifySignal(ctx, address.AxisSpeed, cond, params)
}

// NotifyJointQuadratureCurrent waits until the joint quadrature currents satisfy cond.
func (s *Session) NotifyJointQuadratureCurrent(ctx context.Context, cond Condition, params MonitorParams) (flexmsg.Value, error) {
	return s.NotifySignal(ctx, address.AxisAmpValue, cond, params)
}
