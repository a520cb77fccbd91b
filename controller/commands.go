package controller

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/go-flexgui/address"
	"github.com/arloliu/go-flexgui/flexmsg"
	"github.com/arloliu/go-flexgui/internal/pool"
)

// Command names understood by the controller.
const (
	CmdMoveX          = "MoveX"
	CmdMoveXR         = "MoveXR"
	CmdMoveJ          = "MoveJ"
	CmdMoveJA         = "MoveJA"
	CmdSelectMotorOn  = "selectMotorOn"
	CmdSelectMotorOff = "selectMotorOff"
)

// MoveType selects how a motion ends.
type MoveType int

const (
	// MoveThru blends into the next motion.
	MoveThru MoveType = iota
	// MovePositioning stops at the target (PAUSE flag).
	MovePositioning
	// MoveEnd stops at the target and ends the motion sequence (END flag).
	MoveEnd
)

func (t MoveType) flag() (flexmsg.Param, bool) {
	switch t {
	case MovePositioning:
		return flexmsg.Flag("PAUSE"), true
	case MoveEnd:
		return flexmsg.Flag("END"), true
	default:
		return flexmsg.Param{}, false
	}
}

// InterpolationType is the path interpolation of a mechanism.
type InterpolationType int64

const (
	InterpolationJoint InterpolationType = iota
	InterpolationLinear
	InterpolationCircular1
	InterpolationCircular2
)

func (t InterpolationType) String() string {
	switch t {
	case InterpolationJoint:
		return "joint"
	case InterpolationLinear:
		return "lin"
	case InterpolationCircular1:
		return "cir1"
	case InterpolationCircular2:
		return "cir2"
	default:
		return fmt.Sprintf("InterpolationType(%d)", int64(t))
	}
}

// Default L1 norms of the joint quadrature currents that mark a powered and a
// drained motor.
const (
	DefaultCurrentReadyThreshold = 0.7
	DefaultCurrentDrainThreshold = 0.1
)

func (s *Session) readFloats(ctx context.Context, name string, mechID int) ([]float64, error) {
	v, err := s.ReadSignal(ctx, name, mechID)
	if err != nil {
		return nil, err
	}

	return v.Floats(), nil
}

func (s *Session) readBool(ctx context.Context, name string, mechID int) (bool, error) {
	v, err := s.ReadSignal(ctx, name, mechID)
	if err != nil {
		return false, err
	}

	return v.Bool(), nil
}

// GetPosition returns the tool tip pose: X, Y, Z, roll, pitch, yaw.
func (s *Session) GetPosition(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.ToolTipPos, mechID)
}

// GetVelocity returns the tool center point speed.
func (s *Session) GetVelocity(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.TcpSpeed, mechID)
}

// GetJointAngleEncoded returns the raw encoder values of the joints.
func (s *Session) GetJointAngleEncoded(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.AxisEncode, mechID)
}

// GetJointAngle returns the joint angles.
func (s *Session) GetJointAngle(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.AxisTheta, mechID)
}

// GetJointVelocity returns the joint velocities.
func (s *Session) GetJointVelocity(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.AxisSpeed, mechID)
}

// GetJointTargetVelocity returns the commanded joint velocities.
func (s *Session) GetJointTargetVelocity(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.AxisOrderSpeed, mechID)
}

// GetJointQuadratureCurrent returns the quadrature currents of the joint motors.
func (s *Session) GetJointQuadratureCurrent(ctx context.Context, mechID int) ([]float64, error) {
	return s.readFloats(ctx, address.AxisAmpValue, mechID)
}

// GetPlaybackMode reports whether the controller is in playback mode.
func (s *Session) GetPlaybackMode(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.FixedIOPlayback, mechID)
}

// GetMotorPowerOn reports whether servo power is on.
func (s *Session) GetMotorPowerOn(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.ServoMotorOnOff, mechID)
}

// GetMotorReady reports whether the motors-on state is confirmed.
func (s *Session) GetMotorReady(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.FixedIOConfirmMotorOn, mechID)
}

// GetMotorLaunched reports whether the running lamp is lit.
func (s *Session) GetMotorLaunched(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.FixedIOStartDisplay1, mechID)
}

// GetMotorLamp reports whether the motors-on lamp is lit.
func (s *Session) GetMotorLamp(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.FixedIOMotorsOnLamp, mechID)
}

// GetEnergySaving reports whether energy saving is active.
func (s *Session) GetEnergySaving(ctx context.Context, mechID int) (bool, error) {
	return s.readBool(ctx, address.StatusSavingEnergy, mechID)
}

// GetInterpolationType returns the path interpolation of the mechanism.
func (s *Session) GetInterpolationType(ctx context.Context, mechID int) (InterpolationType, error) {
	v, err := s.ReadSignal(ctx, address.InterpolationKind, mechID)
	if err != nil {
		return 0, err
	}

	return InterpolationType(v.Int()), nil
}

// SetInterpolationType sets the path interpolation of the mechanism.
func (s *Session) SetInterpolationType(ctx context.Context, mechID int, t InterpolationType) error {
	return s.Write(ctx, address.MustLookup(address.InterpolationKind), mechID, int64(t))
}

// MoveTo moves the tool tip to an absolute pose (MoveX).
func (s *Session) MoveTo(ctx context.Context, pose [6]float64, moveType MoveType) (*flexmsg.CommandResult, error) {
	return s.move(ctx, CmdMoveX, pose, moveType)
}

// MoveBy moves the tool tip by a relative pose (MoveXR).
func (s *Session) MoveBy(ctx context.Context, shift [6]float64, moveType MoveType) (*flexmsg.CommandResult, error) {
	return s.move(ctx, CmdMoveXR, shift, moveType)
}

// AngulateTo moves the joints to absolute angles (MoveJ).
func (s *Session) AngulateTo(ctx context.Context, angles [6]float64, moveType MoveType) (*flexmsg.CommandResult, error) {
	return s.move(ctx, CmdMoveJ, angles, moveType)
}

// AngulateBy moves the joints by relative angles (MoveJA).
func (s *Session) AngulateBy(ctx context.Context, angles [6]float64, moveType MoveType) (*flexmsg.CommandResult, error) {
	return s.move(ctx, CmdMoveJA, angles, moveType)
}

// MoveParams returns the parameters of a motion command.
//
// Cartesian motions carry X, Y, Z, r, p, y and conf=0; joint motions carry
// angle1 to angle6. A positioning or end motion appends its flag.
func MoveParams(name string, v [6]float64, moveType MoveType) []flexmsg.Param {
	params := make([]flexmsg.Param, 0, 8)

	switch name {
	case CmdMoveX, CmdMoveXR:
		for i, axis := range []string{"X", "Y", "Z", "r", "p", "y"} {
			params = append(params, flexmsg.Param{Name: axis, Value: v[i]})
		}
		params = append(params, flexmsg.Param{Name: "conf", Value: 0})
	default:
		for i := range v {
			params = append(params, flexmsg.Param{Name: fmt.Sprintf("angle%d", i+1), Value: v[i]})
		}
	}

	if flag, ok := moveType.flag(); ok {
		params = append(params, flag)
	}

	return params
}

func (s *Session) move(ctx context.Context, name string, v [6]float64, moveType MoveType) (*flexmsg.CommandResult, error) {
	return s.Command(ctx, name, MoveParams(name, v, moveType)...)
}

// StartMotor pulses the motor-on input: selectMotorOn with on=1, a short
// pause, then on=0. Both commands must succeed.
func (s *Session) StartMotor(ctx context.Context) (*flexmsg.CommandResult, error) {
	if _, err := s.Command(ctx, CmdSelectMotorOn, flexmsg.Param{Name: "on", Value: 1}); err != nil {
		return nil, err
	}

	timer := pool.GetTimer(s.cfg.MotorPulseDelay())
	select {
	case <-timer.C:
		pool.PutTimer(timer)
	case <-ctx.Done():
		pool.PutTimer(timer)
		return nil, ctx.Err()
	}

	return s.Command(ctx, CmdSelectMotorOn, flexmsg.Param{Name: "on", Value: 0})
}

// StopMotor switches the motors off.
func (s *Session) StopMotor(ctx context.Context) (*flexmsg.CommandResult, error) {
	return s.Command(ctx, CmdSelectMotorOff)
}

// StartMotorUntilCurrentReady starts the motors unless they are ready already,
// then waits until the L1 norm of the joint quadrature currents exceeds threshold.
//
// The returned value is empty when the motors were ready.
func (s *Session) StartMotorUntilCurrentReady(ctx context.Context, threshold float64, params MonitorParams) (flexmsg.Value, error) {
	ready, err := s.GetMotorReady(ctx, params.MechID)
	if err != nil || ready {
		return flexmsg.Value{}, err
	}

	if _, err := s.StartMotor(ctx); err != nil {
		return flexmsg.Value{}, err
	}

	return s.NotifyJointQuadratureCurrent(ctx, func(v flexmsg.Value) bool {
		return L1Norm(v.Floats()) > threshold
	}, params)
}

// StopMotorUntilCurrentDrains stops the motors if they are ready, then waits
// until the L1 norm of the joint quadrature currents falls below threshold.
//
// The returned value is empty when the motors were not ready.
func (s *Session) StopMotorUntilCurrentDrains(ctx context.Context, threshold float64, params MonitorParams) (flexmsg.Value, error) {
	ready, err := s.GetMotorReady(ctx, params.MechID)
	if err != nil || !ready {
		return flexmsg.Value{}, err
	}

	if _, err := s.StopMotor(ctx); err != nil {
		return flexmsg.Value{}, err
	}

	return s.NotifyJointQuadratureCurrent(ctx, func(v flexmsg.Value) bool {
		return L1Norm(v.Floats()) < threshold
	}, params)
}

// L1Norm returns the sum of the absolute values of v.
func L1Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += math.Abs(x)
	}

	return sum
}
