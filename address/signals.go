package address

import (
	"fmt"
	"sort"
)

// Signal names known to the controller.
const (
	ToolTipPos            = "AcsToolTipPos"
	OrderToolTipPos       = "AcsOrderToolTipPos"
	TcpSpeed              = "AcsTcpSpeed"
	AxisEncode            = "AcsAxisEncode"
	AxisTheta             = "AcsAxisTheta"
	AxisThetaOrder        = "AcsAxisThetaOrder"
	AxisSpeed             = "AcsAxisSpeed"
	AxisOrderSpeed        = "AcsAxisOrderSpeed"
	AxisAmpValue          = "AcsAxisAmpValue"
	FixedIOPlayback       = "AcsFixedIOPlayback"
	FixedIOConfirmMotorOn = "AcsFixedIOConfirmMotorsOn"
	FixedIOStartDisplay1  = "AcsFixedIOStartDisplay1" // yellow "running" lamp
	FixedIOMotorsOnLamp   = "AcsFixedIOMotorsOnLAMP"
	ServoMotorOnOff       = "AcsServoMotorOnOff"
	StatusSavingEnergy    = "AcsStatusSavingEnergy"
	StatusSlowPlayback    = "AcsStatusSlowPlayback"
	InterpolationKind     = "AcsInterpolationKind"
)

var signals = map[string]Descriptor{
	ToolTipPos:            {GroupGeneric, "SYSTEM!", 810},
	OrderToolTipPos:       {GroupGeneric, "SYSTEM!", 310},
	TcpSpeed:              {GroupGeneric, "SYSTEM!", 800},
	AxisEncode:            {GroupGeneric, "SYSTEM%", 200},
	AxisTheta:             {GroupGeneric, "SYSTEM!", 400},
	AxisThetaOrder:        {GroupGeneric, "SYSTEM!", 900},
	AxisSpeed:             {GroupGeneric, "SYSTEM!", 3041},
	AxisOrderSpeed:        {GroupGeneric, "SYSTEM!", 3051},
	AxisAmpValue:          {GroupGeneric, "SYSTEM!", 3021},
	FixedIOPlayback:       {GroupFixedIO, "FI", 8},
	FixedIOConfirmMotorOn: {GroupFixedIO, "FI", 16},
	FixedIOStartDisplay1:  {GroupFixedIO, "FO", 3},
	FixedIOMotorsOnLamp:   {GroupFixedIO, "FO", 1},
	ServoMotorOnOff:       {GroupGeneric, "SYSTEM%", 171},
	StatusSavingEnergy:    {GroupGeneric, "SYSTEM%", 6},
	StatusSlowPlayback:    {GroupGeneric, "SYSTEM%", 5},
	InterpolationKind:     {GroupSpecial, "nInterpolation", 0},
}

// Lookup returns the descriptor of a named signal.
func Lookup(name string) (Descriptor, error) {
	d, ok := signals[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: unknown signal %q", ErrInvalidAddress, name)
	}

	return d, nil
}

// MustLookup is like Lookup but panics for unknown names.
func MustLookup(name string) Descriptor {
	d, err := Lookup(name)
	if err != nil {
		panic(err)
	}

	return d
}

// Signals returns the sorted names of all known signals.
func Signals() []string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
