// Package address translates semantic controller signals into wire addresses.
//
// A signal such as "AcsAxisTheta" is described by a Descriptor (group,
// request id and sub-id base). Resolving a descriptor for a 1-based mechanism
// id yields the unit, the sub-id multiplier and the number of scalar values
// the controller returns. The rule set is a fixed table; any combination not in
// the table is rejected with ErrInvalidAddress before a request is built.
package address

import (
	"errors"
	"fmt"
	"strconv"
)

// Group is a controller data group.
type Group string

const (
	GroupSpecial Group = "SPECIAL"
	GroupGeneric Group = "Generic"
	GroupFixedIO Group = "FixedIO"
)

// InvalidMultiplier is the multiplier sentinel for combinations missing from the rule table.
const InvalidMultiplier = -1

// ErrInvalidAddress indicates that a group/request id/sub-id/mechanism combination is not addressable.
var ErrInvalidAddress = errors.New("invalid address")

// Descriptor identifies a signal on the wire.
type Descriptor struct {
	Group     Group
	RequestID string
	SubIDBase int
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%s/%d", d.Group, d.RequestID, d.SubIDBase)
}

// Resolved is the wire address of a descriptor for one mechanism.
type Resolved struct {
	Unit       int
	Group      Group
	RequestID  string
	SubID      int
	Count      int
	Multiplier int
}

// Resolve computes the wire address of d for the 1-based mechID.
func (d Descriptor) Resolve(mechID int) (Resolved, error) {
	if mechID < 1 {
		return Resolved{}, fmt.Errorf("%w: mechanism id %d for %s", ErrInvalidAddress, mechID, d)
	}

	unit, multiplier, count := Resolve(d.Group, d.RequestID, d.SubIDBase, mechID)
	if multiplier < 0 {
		return Resolved{}, fmt.Errorf("%w: %s", ErrInvalidAddress, d)
	}

	return Resolved{
		Unit:       unit,
		Group:      d.Group,
		RequestID:  d.RequestID,
		SubID:      d.SubIDBase + (mechID-1)*multiplier,
		Count:      count,
		Multiplier: multiplier,
	}, nil
}

// Key returns the correlation key shared by read requests and data updates for this address.
func (r Resolved) Key() string {
	return Key(r.Unit, string(r.Group), r.RequestID, r.SubID, r.Count)
}

// Key builds the correlation key of a read request or data update.
//
// Requests and replies must both build their keys with this function.
func Key(unit int, group string, requestID string, subID int, count int) string {
	buf := make([]byte, 0, 64)
	buf = append(buf, "unit:"...)
	buf = strconv.AppendInt(buf, int64(unit), 10)
	buf = append(buf, ";group:"...)
	buf = append(buf, group...)
	buf = append(buf, ";id:"...)
	buf = append(buf, requestID...)
	buf = append(buf, ";subid:"...)
	buf = strconv.AppendInt(buf, int64(subID), 10)
	buf = append(buf, ";count:"...)
	buf = strconv.AppendInt(buf, int64(count), 10)
	buf = append(buf, ';')

	return string(buf)
}
