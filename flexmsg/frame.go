package flexmsg

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// Magic starts every envelope.
	Magic uint32 = 0x0001BA5E

	// HeaderSize is the size of the magic number plus the length field.
	HeaderSize = 8

	// MaxPayloadSize bounds the payload length accepted from the wire.
	MaxPayloadSize = 16 << 20
)

// Wrap returns payload framed in an envelope.
func Wrap(payload []byte) []byte {
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), payload)
}

// AppendFrame appends the envelope of payload to dst.
func AppendFrame(dst []byte, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, Magic)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload))) //nolint:gosec

	return append(dst, payload...)
}

// Unwrap splits a buffer holding zero or more complete envelopes into their payloads.
//
// The returned payloads alias buf.
func Unwrap(buf []byte) ([][]byte, error) {
	var payloads [][]byte

	for offset := 0; offset < len(buf); {
		if len(buf)-offset < HeaderSize {
			return payloads, fmt.Errorf("%w: %d header bytes at offset %d", ErrTruncatedFrame, len(buf)-offset, offset)
		}

		if magic := binary.LittleEndian.Uint32(buf[offset:]); magic != Magic {
			return payloads, fmt.Errorf("%w: 0x%08X at offset %d", ErrBadMagic, magic, offset)
		}

		length := int(binary.LittleEndian.Uint32(buf[offset+4:]))
		start := offset + HeaderSize
		if length > len(buf)-start {
			return payloads, fmt.Errorf("%w: need %d payload bytes, have %d", ErrTruncatedFrame, length, len(buf)-start)
		}

		payloads = append(payloads, buf[start:start+length])
		offset = start + length
	}

	return payloads, nil
}

type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// FrameReader reads envelopes from a byte stream, reassembling envelopes
// split across reads.
//
// FrameReader is not goroutine-safe; one receive loop owns it.
type FrameReader struct {
	src      *bufio.Reader
	deadline deadlineSetter
	timeout  time.Duration
	header   [HeaderSize]byte
}

// NewFrameReader creates a FrameReader on r.
//
// If r supports read deadlines (net.Conn) and payloadTimeout is positive, the
// payload of an envelope must arrive within payloadTimeout after its header.
// Waiting for a header is never bounded, the connection may idle.
func NewFrameReader(r io.Reader, payloadTimeout time.Duration) *FrameReader {
	fr := &FrameReader{src: bufio.NewReader(r), timeout: payloadTimeout}
	if ds, ok := r.(deadlineSetter); ok && payloadTimeout > 0 {
		fr.deadline = ds
	}

	return fr
}

// ReadFrame returns the payload of the next envelope.
//
// Errors wrapping ErrFraming mean the stream is corrupt; I/O errors are returned as is.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if fr.deadline != nil {
		if err := fr.deadline.SetReadDeadline(time.Time{}); err != nil {
			return nil, fmt.Errorf("clear read deadline: %w", err)
		}
	}

	if _, err := io.ReadFull(fr.src, fr.header[:]); err != nil {
		return nil, err
	}

	if magic := binary.LittleEndian.Uint32(fr.header[:4]); magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, magic)
	}

	length := binary.LittleEndian.Uint32(fr.header[4:])
	if length > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, length, MaxPayloadSize)
	}

	if fr.deadline != nil {
		if err := fr.deadline.SetReadDeadline(time.Now().Add(fr.timeout)); err != nil {
			return nil, fmt.Errorf("set payload deadline: %w", err)
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.src, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}

		return nil, fmt.Errorf("read envelope payload: %w", err)
	}

	return payload, nil
}
