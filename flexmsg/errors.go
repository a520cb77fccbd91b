package flexmsg

import (
	"errors"
	"fmt"
)

var (
	// ErrFraming indicates a corrupt or torn envelope stream. It is fatal to the connection.
	ErrFraming = errors.New("framing error")

	// ErrBadMagic indicates that an envelope does not start with the magic number.
	ErrBadMagic = fmt.Errorf("%w: bad magic number", ErrFraming)

	// ErrTruncatedFrame indicates that a buffer ends inside an envelope.
	ErrTruncatedFrame = fmt.Errorf("%w: truncated envelope", ErrFraming)

	// ErrFrameTooLarge indicates that an envelope length exceeds MaxPayloadSize.
	ErrFrameTooLarge = fmt.Errorf("%w: envelope too large", ErrFraming)
)

var (
	// ErrMalformed indicates a payload that is not a well-formed flex.gui document.
	ErrMalformed = errors.New("malformed message")

	// ErrCommandFailed is matched by every CommandError.
	ErrCommandFailed = errors.New("command failed")
)

// CommandError reports a command the controller answered with a non-success result.
type CommandError struct {
	Name   string
	SeqID  uint64
	Result int
	Text   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s (sequid %d) failed with result %d: %s", e.Name, e.SeqID, e.Result, e.Text)
}

// Is reports whether target is ErrCommandFailed.
func (e *CommandError) Is(target error) bool {
	return target == ErrCommandFailed
}
