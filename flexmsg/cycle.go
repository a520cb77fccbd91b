package flexmsg

import (
	"fmt"
	"time"
)

// Cycle is the push periodicity code of a read request.
type Cycle int

const (
	Cycle5ms    Cycle = 0
	Cycle10ms   Cycle = 1
	Cycle50ms   Cycle = 2
	Cycle100ms  Cycle = 3
	Cycle200ms  Cycle = 4
	Cycle500ms  Cycle = 5
	Cycle1000ms Cycle = 6
	// CyclePull requests a single value instead of a push stream.
	CyclePull Cycle = 10
)

var cyclePeriods = map[Cycle]time.Duration{
	Cycle5ms:    5 * time.Millisecond,
	Cycle10ms:   10 * time.Millisecond,
	Cycle50ms:   50 * time.Millisecond,
	Cycle100ms:  100 * time.Millisecond,
	Cycle200ms:  200 * time.Millisecond,
	Cycle500ms:  500 * time.Millisecond,
	Cycle1000ms: time.Second,
}

// CycleFromDuration maps a push period to its cycle code.
func CycleFromDuration(d time.Duration) (Cycle, error) {
	for c, period := range cyclePeriods {
		if period == d {
			return c, nil
		}
	}

	return CyclePull, fmt.Errorf("unsupported push cycle %s, want one of 5ms, 10ms, 50ms, 100ms, 200ms, 500ms, 1s", d)
}

// Period returns the push period, or 0 for CyclePull and unknown codes.
func (c Cycle) Period() time.Duration {
	return cyclePeriods[c]
}

// IsPush reports whether c selects a push stream.
func (c Cycle) IsPush() bool {
	_, ok := cyclePeriods[c]
	return ok
}

func (c Cycle) String() string {
	if c == CyclePull {
		return "pull"
	}
	if p, ok := cyclePeriods[c]; ok {
		return p.String()
	}

	return fmt.Sprintf("Cycle(%d)", int(c))
}
